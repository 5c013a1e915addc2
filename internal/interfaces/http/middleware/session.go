// internal/interfaces/http/middleware/session.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/your-org/b2b-storefront/internal/config"
	"github.com/your-org/b2b-storefront/internal/domain/cart"
)

// SessionMiddleware guarantees every request carries a session identifier so
// anonymous visitors can hold a cart. The ID is taken from the X-Session-ID
// header first, then the session cookie; a missing ID is minted and set as a
// cookie on the response.
func SessionMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("X-Session-ID")
		if sessionID == "" {
			if fromCookie, err := c.Cookie(cfg.Security.SessionCookieName); err == nil {
				sessionID = fromCookie
			}
		}

		if sessionID == "" {
			sessionID = uuid.New().String()
			c.SetCookie(
				cfg.Security.SessionCookieName,
				sessionID,
				int(cfg.Security.SessionCookieTTL.Seconds()),
				"/",
				"",
				cfg.IsProduction(),
				true,
			)
		}

		c.Set("session_id", sessionID)
		c.Header("X-Session-ID", sessionID)
		c.Next()
	}
}

// GetSessionIDFromContext extracts the session ID from gin context
func GetSessionIDFromContext(c *gin.Context) (string, bool) {
	sessionID, exists := c.Get("session_id")
	if !exists {
		return "", false
	}
	return sessionID.(string), true
}

// IdentityFromContext derives the cart identity for the request. An
// authenticated customer always wins over the anonymous session, even when
// both are present.
func IdentityFromContext(c *gin.Context) (cart.Identity, bool) {
	if userID, ok := GetUserIDFromContext(c); ok {
		return cart.Customer(userID), true
	}
	if sessionID, ok := GetSessionIDFromContext(c); ok {
		return cart.Anonymous(sessionID), true
	}
	return cart.Identity{}, false
}

// RequireIdentity aborts requests that carry neither a customer token nor a
// session ID
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := IdentityFromContext(c); !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "A session or authentication is required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
