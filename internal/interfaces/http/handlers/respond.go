// internal/interfaces/http/handlers/respond.go
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
)

// respondError maps a service error to an HTTP status: invalid input is the
// caller's fault, a missing resource is 404, an unreachable backing store is
// 503, anything unclassified is 500 without leaking its message.
func respondError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{
			"error": err.Error(),
		})
	case apperrors.IsUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}
