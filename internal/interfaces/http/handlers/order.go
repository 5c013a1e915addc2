// internal/interfaces/http/handlers/order.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/b2b-storefront/internal/domain/order"
	"github.com/your-org/b2b-storefront/internal/interfaces/http/middleware"
)

// OrderHandler handles order endpoints
type OrderHandler struct {
	orders *order.Service
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *order.Service) *OrderHandler {
	return &OrderHandler{
		orders: orders,
	}
}

// CheckoutRequest is the body of POST /orders
type CheckoutRequest struct {
	Notes string `json:"notes"`
}

// UpdateStatusRequest is the body of PUT /admin/orders/:id/status
type UpdateStatusRequest struct {
	Status  order.Status `json:"status" binding:"required"`
	Comment string       `json:"comment"`
}

// Checkout handles POST /orders
func (h *OrderHandler) Checkout(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "A session or authentication is required",
		})
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	result, err := h.orders.Checkout(c.Request.Context(), identity, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order placed successfully",
		"data":    result,
	})
}

// ListOrders handles GET /orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	identity, ok := middleware.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "A session or authentication is required",
		})
		return
	}

	orders, err := h.orders.List(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Orders retrieved successfully",
		"data":    orders,
	})
}

// GetOrder handles GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
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

	result, err := h.orders.Get(c.Request.Context(), identity, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    result,
	})
}

// CancelOrder handles POST /orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
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

	result, err := h.orders.Cancel(c.Request.Context(), identity, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order cancelled successfully",
		"data":    result,
	})
}

// GetAnyOrder handles GET /admin/orders/:id
func (h *OrderHandler) GetAnyOrder(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	result, err := h.orders.GetAny(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order retrieved successfully",
		"data":    result,
	})
}

// UpdateStatus handles PUT /admin/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	adminID, _ := middleware.GetUserIDFromContext(c)
	result, err := h.orders.UpdateStatus(c.Request.Context(), orderID, req.Status, req.Comment, adminID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Order status updated successfully",
		"data":    result,
	})
}

// parseOrderID parses the :id path parameter, responding with 400 on failure
func parseOrderID(c *gin.Context) (uint, bool) {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return 0, false
	}
	return uint(orderID), true
}
