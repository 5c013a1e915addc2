// internal/domain/catalog/service.go
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/b2b-storefront/internal/config"
	"github.com/your-org/b2b-storefront/internal/domain/cart"
	"github.com/your-org/b2b-storefront/internal/domain/pricing"
	"github.com/your-org/b2b-storefront/internal/domain/product"
	"github.com/your-org/b2b-storefront/internal/infrastructure/cache"
	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
)

// PriceResolver resolves effective prices for catalog reads.
// *pricing.Resolver satisfies this.
type PriceResolver interface {
	Resolve(ctx context.Context, customerID *uint, sku string, basePrice decimal.Decimal) pricing.Resolution
	ResolveBatch(ctx context.Context, customerID *uint, basePrices map[string]decimal.Decimal) map[string]pricing.Resolution
}

// View is a product as served to a storefront reader: catalog data plus the
// effective price for the requesting customer. Priced marks views whose price
// fields went through the resolver; a cached entry without the marker is
// treated as a miss so a stale or foreign cache write can never leak an
// unpriced product to a reader.
type View struct {
	ID             uint            `json:"id"`
	SKU            string          `json:"sku"`
	Name           string          `json:"name"`
	Brand          string          `json:"brand,omitempty"`
	Category       string          `json:"category,omitempty"`
	Description    string          `json:"description,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
	BasePrice      decimal.Decimal `json:"base_price"`
	Price          decimal.Decimal `json:"price"`
	HasCustomPrice bool            `json:"has_custom_price"`
	IsActive       bool            `json:"is_active"`
	Priced         bool            `json:"priced"`
}

// Service serves catalog reads through the cache. Product views are cached
// per pricing audience: one key for the base-priced view and one per customer,
// so a customer's override price is never served to anyone else. Writes go to
// the durable store first and then invalidate every cache entry they could
// have made stale.
type Service struct {
	products product.Store
	prices   PriceResolver
	cache    cache.Cache
	config   *config.Config
	log      *logrus.Logger
}

// NewService creates a catalog service
func NewService(products product.Store, prices PriceResolver, cacheStore cache.Cache, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		products: products,
		prices:   prices,
		cache:    cacheStore,
		config:   cfg,
		log:      log,
	}
}

// ViewCacheKey returns the cache key for a product view. Anonymous readers
// share one entry per SKU; authenticated readers get a per-customer entry
// because their effective price can differ.
func ViewCacheKey(sku string, customerID *uint) string {
	sku = product.NormalizeSKU(sku)
	if customerID != nil {
		return fmt.Sprintf("product:%s_user_%d", sku, *customerID)
	}
	return "product:" + sku
}

// GetProduct returns the priced view of an active product for the requesting
// audience, read-through cached.
func (s *Service) GetProduct(ctx context.Context, sku string, customerID *uint) (*View, error) {
	key := ViewCacheKey(sku, customerID)

	var cached View
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.WithError(err).WithField("key", key).
			Warn("Product cache read failed, falling through to durable store")
	}
	if hit && cached.Priced {
		return &cached, nil
	}

	p, err := s.products.FindActiveBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}

	view := s.buildView(ctx, p, customerID)
	if err := s.cache.Set(ctx, key, view, s.config.Cache.ProductTTL); err != nil {
		s.log.WithError(err).WithField("key", key).
			Warn("Product cache update failed, staleness bounded by TTL")
	}
	return view, nil
}

// ListProducts returns priced views of active products matching the filter.
// Prices for the whole page are resolved with one override query.
func (s *Service) ListProducts(ctx context.Context, filter product.ListFilter, customerID *uint) ([]View, error) {
	filter.ActiveOnly = true
	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	basePrices := make(map[string]decimal.Decimal, len(products))
	for _, p := range products {
		basePrices[p.SKU] = p.BasePrice
	}
	resolved := s.prices.ResolveBatch(ctx, customerID, basePrices)

	views := make([]View, 0, len(products))
	for _, p := range products {
		resolution := resolved[p.SKU]
		views = append(views, View{
			ID:             p.ID,
			SKU:            p.SKU,
			Name:           p.Name,
			Brand:          p.Brand,
			Category:       p.Category,
			Description:    p.Description,
			ImageURL:       p.ImageURL,
			BasePrice:      p.BasePrice,
			Price:          resolution.Price,
			HasCustomPrice: resolution.IsOverride,
			IsActive:       p.IsActive,
			Priced:         true,
		})
	}
	return views, nil
}

// UpsertProduct saves a product and invalidates every cached view of it: the
// base-priced entry and all per-customer entries, since a base-price change
// affects any customer without an override.
func (s *Service) UpsertProduct(ctx context.Context, p *product.Product) error {
	if product.NormalizeSKU(p.SKU) == "" {
		return apperrors.Validation("sku is required")
	}
	if p.Name == "" {
		return apperrors.Validation("product name is required")
	}
	if p.BasePrice.IsNegative() {
		return apperrors.Validation("base price must not be negative")
	}

	// Writes are keyed by SKU: a second write for a known SKU updates the
	// existing row instead of inserting a duplicate.
	existing, err := s.products.FindBySKU(ctx, p.SKU)
	switch {
	case err == nil:
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
	case apperrors.IsNotFound(err):
	default:
		return err
	}

	if err := s.products.Save(ctx, p); err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, ViewCacheKey(p.SKU, nil)); err != nil {
		s.log.WithError(err).WithField("sku", p.SKU).
			Warn("Product cache invalidation failed, staleness bounded by TTL")
	}
	pattern := fmt.Sprintf("product:%s_user_*", p.SKU)
	if _, err := s.cache.DeletePattern(ctx, pattern); err != nil {
		s.log.WithError(err).WithField("pattern", pattern).
			Warn("Product cache invalidation failed, staleness bounded by TTL")
	}
	return nil
}

// UpsertCustomerPrice writes a customer price override and fans out the
// invalidation to everything the new price can make stale: the customer's
// cached product view and the customer's cached cart, both of which embed the
// old effective price. The anonymous view is untouched; base prices did not
// change.
func (s *Service) UpsertCustomerPrice(ctx context.Context, customerID uint, sku string, price decimal.Decimal, validFrom, validUntil *time.Time) (*product.CustomerPrice, error) {
	if customerID == 0 {
		return nil, apperrors.Validation("customer id is required")
	}
	if price.IsNegative() {
		return nil, apperrors.Validation("customer price must not be negative")
	}
	if validFrom != nil && validUntil != nil && !validFrom.Before(*validUntil) {
		return nil, apperrors.Validation("valid_from must be before valid_until")
	}

	p, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}

	override := product.CustomerPrice{
		CustomerID: customerID,
		ProductID:  p.ID,
		SKU:        p.SKU,
		Price:      price,
		IsActive:   true,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
	}
	if err := s.products.UpsertOverride(ctx, &override); err != nil {
		return nil, err
	}

	s.invalidateCustomer(ctx, p.SKU, customerID)
	return &override, nil
}

// invalidateCustomer deletes the two cache entries a customer-price change can
// make stale. The key shapes are enumerable, so the fan-out is an exact
// delete rather than a pattern scan.
func (s *Service) invalidateCustomer(ctx context.Context, sku string, customerID uint) {
	keys := []string{
		ViewCacheKey(sku, &customerID),
		cart.Customer(customerID).CacheKey(),
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"sku":         sku,
			"customer_id": customerID,
		}).Warn("Customer price invalidation failed, staleness bounded by TTL")
	}
}

// buildView assembles the priced view of one product for one audience
func (s *Service) buildView(ctx context.Context, p *product.Product, customerID *uint) *View {
	resolution := s.prices.Resolve(ctx, customerID, p.SKU, p.BasePrice)
	return &View{
		ID:             p.ID,
		SKU:            p.SKU,
		Name:           p.Name,
		Brand:          p.Brand,
		Category:       p.Category,
		Description:    p.Description,
		ImageURL:       p.ImageURL,
		BasePrice:      p.BasePrice,
		Price:          resolution.Price,
		HasCustomPrice: resolution.IsOverride,
		IsActive:       p.IsActive,
		Priced:         true,
	}
}
