// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/b2b-storefront/internal/config"
	"github.com/your-org/b2b-storefront/internal/domain/cart"
	"github.com/your-org/b2b-storefront/internal/domain/catalog"
	"github.com/your-org/b2b-storefront/internal/domain/order"
	"github.com/your-org/b2b-storefront/internal/infrastructure/cache"
	"github.com/your-org/b2b-storefront/internal/interfaces/http/handlers"
	"github.com/your-org/b2b-storefront/internal/interfaces/http/middleware"
)

// Dependencies carries the constructed services the routes are wired to.
// Services are built once at startup and shared across handlers.
type Dependencies struct {
	Config  *config.Config
	Log     *logrus.Logger
	Cache   cache.Cache
	Carts   *cart.Service
	Catalog *catalog.Service
	Orders  *order.Service
}

// SetupRoutes wires every API route under the given group
func SetupRoutes(rg *gin.RouterGroup, deps *Dependencies) {
	cartHandler := handlers.NewCartHandler(deps.Carts)
	productHandler := handlers.NewProductHandler(deps.Catalog)
	orderHandler := handlers.NewOrderHandler(deps.Orders)
	invoiceHandler := handlers.NewInvoiceHandler(deps.Orders, deps.Config)
	cacheHandler := handlers.NewCacheAdminHandler(deps.Cache, deps.Log)

	// Storefront reads work anonymously; a valid token upgrades the request
	// to customer pricing
	products := rg.Group("/products")
	products.Use(middleware.OptionalAuthMiddleware(deps.Config))
	{
		products.GET("", productHandler.ListProducts)
		products.GET("/:sku", productHandler.GetProduct)
	}

	// Cart routes work for guest sessions and authenticated customers alike
	carts := rg.Group("/cart")
	carts.Use(middleware.OptionalAuthMiddleware(deps.Config))
	carts.Use(middleware.SessionMiddleware(deps.Config))
	carts.Use(middleware.RequireIdentity())
	{
		carts.GET("", cartHandler.GetCart)
		carts.POST("/items", cartHandler.AddItem)
		carts.PUT("/items/:sku", cartHandler.UpdateItem)
		carts.DELETE("/items/:sku", cartHandler.RemoveItem)
		carts.DELETE("", cartHandler.ClearCart)
		carts.POST("/merge", cartHandler.MergeGuestCart)
	}

	orders := rg.Group("/orders")
	orders.Use(middleware.OptionalAuthMiddleware(deps.Config))
	orders.Use(middleware.SessionMiddleware(deps.Config))
	orders.Use(middleware.RequireIdentity())
	{
		orders.POST("", orderHandler.Checkout)
		orders.GET("", orderHandler.ListOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.POST("/:id/cancel", orderHandler.CancelOrder)
		orders.GET("/:id/invoice", invoiceHandler.GenerateInvoice)
		orders.GET("/:id/invoice/data", invoiceHandler.GetInvoiceData)
	}

	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(deps.Config))
	admin.Use(middleware.AdminMiddleware())
	{
		// Catalog management
		admin.POST("/products", productHandler.UpsertProduct)
		admin.POST("/customer-prices", productHandler.UpsertCustomerPrice)

		// Order management
		admin.GET("/orders/:id", orderHandler.GetAnyOrder)
		admin.PUT("/orders/:id/status", orderHandler.UpdateStatus)

		// Cache operations
		admin.GET("/cache/stats", cacheHandler.Stats)
		admin.POST("/cache/invalidate", cacheHandler.Invalidate)
		admin.GET("/cache/keys/:key", cacheHandler.GetKey)
		admin.PUT("/cache/keys/:key", cacheHandler.SetKey)
		admin.DELETE("/cache", cacheHandler.Flush)
	}
}
