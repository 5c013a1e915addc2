// internal/interfaces/http/handlers/product.go
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/your-org/b2b-storefront/internal/domain/catalog"
	"github.com/your-org/b2b-storefront/internal/domain/product"
	"github.com/your-org/b2b-storefront/internal/interfaces/http/middleware"
)

// ProductHandler handles catalog endpoints
type ProductHandler struct {
	catalog *catalog.Service
}

// NewProductHandler creates a new product handler
func NewProductHandler(catalogService *catalog.Service) *ProductHandler {
	return &ProductHandler{
		catalog: catalogService,
	}
}

// UpsertProductRequest is the body of the admin product write endpoints
type UpsertProductRequest struct {
	SKU         string `json:"sku" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Brand       string `json:"brand"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	BasePrice   string `json:"base_price" binding:"required"`
	IsActive    *bool  `json:"is_active"`
}

// UpsertCustomerPriceRequest is the body of POST /admin/customer-prices
type UpsertCustomerPriceRequest struct {
	CustomerID uint       `json:"customer_id" binding:"required"`
	SKU        string     `json:"sku" binding:"required"`
	Price      string     `json:"price" binding:"required"`
	ValidFrom  *time.Time `json:"valid_from"`
	ValidUntil *time.Time `json:"valid_until"`
}

// ListProducts handles GET /products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	filter := product.ListFilter{
		Category: c.Query("category"),
		Brand:    c.Query("brand"),
		Limit:    20,
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 && limit <= 100 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	customerID := requestCustomerID(c)
	views, err := h.catalog.ListProducts(c.Request.Context(), filter, customerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Products retrieved successfully",
		"data":    views,
	})
}

// GetProduct handles GET /products/:sku
func (h *ProductHandler) GetProduct(c *gin.Context) {
	customerID := requestCustomerID(c)

	view, err := h.catalog.GetProduct(c.Request.Context(), c.Param("sku"), customerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product retrieved successfully",
		"data":    view,
	})
}

// UpsertProduct handles POST /admin/products
func (h *ProductHandler) UpsertProduct(c *gin.Context) {
	var req UpsertProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	basePrice, err := decimal.NewFromString(req.BasePrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid base price",
		})
		return
	}

	p := product.Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Brand:       req.Brand,
		Category:    req.Category,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		BasePrice:   basePrice,
		IsActive:    true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}

	if err := h.catalog.UpsertProduct(c.Request.Context(), &p); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product saved successfully",
		"data":    p,
	})
}

// UpsertCustomerPrice handles POST /admin/customer-prices. Writing an
// override immediately invalidates the customer's cached product view and
// cart, so the new price is visible on the next read.
func (h *ProductHandler) UpsertCustomerPrice(c *gin.Context) {
	var req UpsertCustomerPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid price",
		})
		return
	}

	override, err := h.catalog.UpsertCustomerPrice(
		c.Request.Context(), req.CustomerID, req.SKU, price, req.ValidFrom, req.ValidUntil)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Customer price saved successfully",
		"data":    override,
	})
}

// requestCustomerID returns the authenticated customer's ID, or nil for
// anonymous readers
func requestCustomerID(c *gin.Context) *uint {
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		return &userID
	}
	return nil
}
