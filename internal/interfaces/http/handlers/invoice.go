// internal/interfaces/http/handlers/invoice.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/your-org/b2b-storefront/internal/config"
	"github.com/your-org/b2b-storefront/internal/domain/order"
	"github.com/your-org/b2b-storefront/internal/interfaces/http/middleware"
	"github.com/your-org/b2b-storefront/internal/pkg/pdf"
)

// InvoiceHandler handles invoice-related endpoints
type InvoiceHandler struct {
	orders *order.Service
	pdf    *pdf.Service
	config *config.Config
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(orders *order.Service, cfg *config.Config) *InvoiceHandler {
	return &InvoiceHandler{
		orders: orders,
		pdf:    pdf.NewService(cfg),
		config: cfg,
	}
}

// GenerateInvoice handles GET /orders/:id/invoice
func (h *InvoiceHandler) GenerateInvoice(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "A session or authentication is required",
		})
		return
	}

	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	o, err := h.orders.Get(c.Request.Context(), identity, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	pdfBuffer, err := h.pdf.GenerateInvoice(o)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to generate invoice",
		})
		return
	}

	// Set headers for PDF download
	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=invoice-%s.pdf", o.OrderNumber))
	c.Header("Content-Length", strconv.Itoa(len(pdfBuffer.Bytes())))

	c.Data(http.StatusOK, "application/pdf", pdfBuffer.Bytes())
}

// GetInvoiceData handles GET /orders/:id/invoice/data for frontend preview
func (h *InvoiceHandler) GetInvoiceData(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "A session or authentication is required",
		})
		return
	}

	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	o, err := h.orders.Get(c.Request.Context(), identity, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	invoiceData := map[string]interface{}{
		"invoice_number": fmt.Sprintf("INV-%s", o.OrderNumber),
		"invoice_date":   time.Now().Format("January 2, 2006"),
		"due_date":       time.Now().AddDate(0, 0, 30).Format("January 2, 2006"),
		"order":          o,
		"company": map[string]interface{}{
			"name":    h.config.App.CompanyName,
			"address": h.config.App.CompanyAddress,
			"phone":   h.config.App.CompanyPhone,
			"email":   h.config.App.CompanyEmail,
			"website": h.config.App.CompanyWebsite,
		},
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Invoice data retrieved successfully",
		"data":    invoiceData,
	})
}
