// internal/interfaces/http/handlers/cache_admin.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/b2b-storefront/internal/infrastructure/cache"
	"github.com/your-org/b2b-storefront/internal/interfaces/http/middleware"
)

// CacheAdminHandler exposes the cache-operations surface. Every endpoint here
// is safe to run in production: the cache is an optimization layer, so the
// worst outcome of any operation is a burst of durable-store reads.
type CacheAdminHandler struct {
	cache cache.Cache
	log   *logrus.Logger
}

// NewCacheAdminHandler creates a new cache admin handler
func NewCacheAdminHandler(cacheStore cache.Cache, log *logrus.Logger) *CacheAdminHandler {
	return &CacheAdminHandler{
		cache: cacheStore,
		log:   log,
	}
}

// InvalidateRequest is the body of POST /admin/cache/invalidate
type InvalidateRequest struct {
	Keys    []string `json:"keys"`
	Pattern string   `json:"pattern"`
}

// SetKeyRequest is the body of PUT /admin/cache/keys/:key
type SetKeyRequest struct {
	Value      string `json:"value" binding:"required"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// Stats handles GET /admin/cache/stats
func (h *CacheAdminHandler) Stats(c *gin.Context) {
	stats, err := h.cache.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Cache unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cache statistics retrieved successfully",
		"data":    stats,
	})
}

// Invalidate handles POST /admin/cache/invalidate: exact keys, a glob
// pattern, or both
func (h *CacheAdminHandler) Invalidate(c *gin.Context) {
	var req InvalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}
	if len(req.Keys) == 0 && req.Pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Provide keys or a pattern to invalidate",
		})
		return
	}

	var deleted int64
	if len(req.Keys) > 0 {
		if err := h.cache.Delete(c.Request.Context(), req.Keys...); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Cache unavailable",
			})
			return
		}
		deleted += int64(len(req.Keys))
	}
	if req.Pattern != "" {
		n, err := h.cache.DeletePattern(c.Request.Context(), req.Pattern)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "Cache unavailable",
			})
			return
		}
		deleted += n
	}

	adminID, _ := middleware.GetUserIDFromContext(c)
	h.log.WithFields(logrus.Fields{
		"admin_id": adminID,
		"keys":     req.Keys,
		"pattern":  req.Pattern,
		"deleted":  deleted,
	}).Info("🧹 Cache entries invalidated by admin")

	c.JSON(http.StatusOK, gin.H{
		"message": "Cache entries invalidated successfully",
		"data": gin.H{
			"deleted": deleted,
		},
	})
}

// GetKey handles GET /admin/cache/keys/:key: returns the raw stored value
// for diagnostics
func (h *CacheAdminHandler) GetKey(c *gin.Context) {
	key := c.Param("key")

	value, err := h.cache.GetRaw(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Cache unavailable",
		})
		return
	}
	if value == "" {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Cache key not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cache key retrieved successfully",
		"data": gin.H{
			"key":   key,
			"value": value,
		},
	})
}

// SetKey handles PUT /admin/cache/keys/:key: stores a raw value, used for
// forced cache-warm. A zero TTL falls back to one hour so a warm entry can
// never become immortal.
func (h *CacheAdminHandler) SetKey(c *gin.Context) {
	key := c.Param("key")

	var req SetKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}

	if err := h.cache.SetRaw(c.Request.Context(), key, req.Value, ttl); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Cache unavailable",
		})
		return
	}

	adminID, _ := middleware.GetUserIDFromContext(c)
	h.log.WithFields(logrus.Fields{
		"admin_id": adminID,
		"key":      key,
		"ttl":      ttl.String(),
	}).Info("🧹 Cache key set by admin")

	c.JSON(http.StatusOK, gin.H{
		"message": "Cache key set successfully",
		"data": gin.H{
			"key": key,
			"ttl": ttl.Seconds(),
		},
	})
}

// Flush handles DELETE /admin/cache: drops every entry under the service's
// key prefix. Reads fall back to the durable store until entries repopulate.
func (h *CacheAdminHandler) Flush(c *gin.Context) {
	deleted, err := h.cache.Clear(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Cache unavailable",
		})
		return
	}

	adminID, _ := middleware.GetUserIDFromContext(c)
	h.log.WithFields(logrus.Fields{
		"admin_id": adminID,
		"deleted":  deleted,
	}).Warn("🧹 Cache flushed by admin")

	c.JSON(http.StatusOK, gin.H{
		"message": "Cache flushed successfully",
		"data": gin.H{
			"deleted": deleted,
		},
	})
}
