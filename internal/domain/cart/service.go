// internal/domain/cart/service.go
package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/b2b-storefront/internal/config"
	"github.com/your-org/b2b-storefront/internal/domain/pricing"
	"github.com/your-org/b2b-storefront/internal/domain/product"
	"github.com/your-org/b2b-storefront/internal/infrastructure/cache"
	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
)

// PriceResolver resolves the effective unit price for a (customer, SKU)
// pair. *pricing.Resolver satisfies this.
type PriceResolver interface {
	Resolve(ctx context.Context, customerID *uint, sku string, basePrice decimal.Decimal) pricing.Resolution
}

// Service serves cart reads through the cache and performs mutations with
// write-through-then-refresh semantics: the durable store is always written
// first, and only after a successful durable write is the cache overwritten
// with the new authoritative value. Cache failures degrade to durable-store
// behavior and are never surfaced to callers.
type Service struct {
	store    Store
	products product.Store
	prices   PriceResolver
	cache    cache.Cache
	engine   *Engine
	config   *config.Config
	log      *logrus.Logger
}

// NewService creates a cart service
func NewService(store Store, products product.Store, prices PriceResolver, cacheStore cache.Cache, engine *Engine, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		store:    store,
		products: products,
		prices:   prices,
		cache:    cacheStore,
		engine:   engine,
		config:   cfg,
		log:      log,
	}
}

// Get retrieves the cart for an identity with read-through caching. A cart
// that does not exist yet is created empty; this is the documented
// exception to not-found semantics, so the identity binding exists from the
// first visit.
func (s *Service) Get(ctx context.Context, identity Identity) (*Cart, error) {
	if identity.IsZero() {
		return nil, apperrors.Validation("cart identity is required")
	}

	var cached Cart
	hit, err := s.cache.Get(ctx, identity.CacheKey(), &cached)
	if err != nil {
		// Cache is an optimization, never a dependency for correctness
		s.log.WithError(err).WithField("key", identity.CacheKey()).
			Warn("Cart cache read failed, falling through to durable store")
	}
	if hit {
		return &cached, nil
	}

	c, err := s.loadOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	s.writeCache(ctx, c)
	return c, nil
}

// AddItem adds a product to the cart. The SKU must resolve to an active
// product; the unit price is the customer's effective price at add time.
func (s *Service) AddItem(ctx context.Context, identity Identity, sku string, quantity int) (*Cart, error) {
	if identity.IsZero() {
		return nil, apperrors.Validation("cart identity is required")
	}

	p, err := s.products.FindActiveBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}

	customerID := customerIDPtr(identity)
	resolution := s.prices.Resolve(ctx, customerID, p.SKU, p.BasePrice)

	item := Item{
		SKU:           p.SKU,
		Name:          p.Name,
		Brand:         p.Brand,
		ImageURL:      p.ImageURL,
		UnitPrice:     resolution.Price,
		IsCustomPrice: resolution.IsOverride,
	}

	return s.mutate(ctx, identity, func(c Cart) (Cart, error) {
		return s.engine.AddItem(c, item, quantity)
	})
}

// UpdateItemQuantity sets a line's quantity directly
func (s *Service) UpdateItemQuantity(ctx context.Context, identity Identity, sku string, quantity int) (*Cart, error) {
	if identity.IsZero() {
		return nil, apperrors.Validation("cart identity is required")
	}

	return s.mutate(ctx, identity, func(c Cart) (Cart, error) {
		return s.engine.UpdateQuantity(c, sku, quantity)
	})
}

// RemoveItem removes a line from the cart
func (s *Service) RemoveItem(ctx context.Context, identity Identity, sku string) (*Cart, error) {
	if identity.IsZero() {
		return nil, apperrors.Validation("cart identity is required")
	}

	return s.mutate(ctx, identity, func(c Cart) (Cart, error) {
		return s.engine.RemoveItem(c, sku)
	})
}

// Clear empties the cart. The row survives with zeroed totals so the
// identity binding is preserved for future visits.
func (s *Service) Clear(ctx context.Context, identity Identity) (*Cart, error) {
	if identity.IsZero() {
		return nil, apperrors.Validation("cart identity is required")
	}

	return s.mutate(ctx, identity, func(c Cart) (Cart, error) {
		return s.engine.Clear(c), nil
	})
}

// Merge folds a guest session's cart into the authenticated customer's cart,
// called once after login. The merge is deterministic: quantities for the
// same SKU are summed and clamped to the per-item cap, unit prices are
// re-resolved under the customer's pricing, and the session cart is cleared
// afterwards.
func (s *Service) Merge(ctx context.Context, sessionID string, customerID uint) (*Cart, error) {
	if sessionID == "" {
		return nil, apperrors.Validation("session id is required for cart merge")
	}

	guest, err := s.store.FindByIdentity(ctx, Anonymous(sessionID))
	if apperrors.IsNotFound(err) || (err == nil && len(guest.Items) == 0) {
		// Nothing to merge
		return s.Get(ctx, Customer(customerID))
	}
	if err != nil {
		return nil, err
	}

	target, err := s.loadOrCreate(ctx, Customer(customerID))
	if err != nil {
		return nil, err
	}

	merged := *target
	maxQty := s.engine.MaxItemQuantity()
	for _, guestItem := range guest.Items {
		quantity := guestItem.Quantity
		if idx := merged.ItemIndex(guestItem.SKU); idx >= 0 {
			if room := maxQty - merged.Items[idx].Quantity; quantity > room {
				quantity = room
			}
		} else if quantity > maxQty {
			quantity = maxQty
		}
		if quantity <= 0 {
			continue
		}

		resolution := s.prices.Resolve(ctx, &customerID, guestItem.SKU, guestItem.UnitPrice)
		item := guestItem
		item.UnitPrice = resolution.Price
		item.IsCustomPrice = resolution.IsOverride

		merged, err = s.engine.AddItem(merged, item, quantity)
		if err != nil {
			return nil, err
		}
	}

	merged = s.engine.Recalculate(merged, s.config.Pricing.FreeShippingThreshold)
	if err := s.store.Save(ctx, &merged); err != nil {
		return nil, err
	}
	s.writeCache(ctx, &merged)

	cleared := s.engine.Clear(*guest)
	if err := s.store.Save(ctx, &cleared); err != nil {
		return nil, err
	}
	s.writeCache(ctx, &cleared)

	return &merged, nil
}

// mutate runs an engine operation against the durable cart state, recomputes
// totals, persists, then refreshes the cache. The durable write always
// happens before the cache write; a failed durable write leaves the cache
// untouched.
func (s *Service) mutate(ctx context.Context, identity Identity, op func(Cart) (Cart, error)) (*Cart, error) {
	current, err := s.loadOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}

	updated, err := op(*current)
	if err != nil {
		return nil, err
	}

	updated = s.engine.Recalculate(updated, s.config.Pricing.FreeShippingThreshold)
	if err := s.store.Save(ctx, &updated); err != nil {
		return nil, err
	}

	s.writeCache(ctx, &updated)
	return &updated, nil
}

// loadOrCreate reads the cart from the durable store, creating an empty one
// bound to the identity on first access
func (s *Service) loadOrCreate(ctx context.Context, identity Identity) (*Cart, error) {
	c, err := s.store.FindByIdentity(ctx, identity)
	if err == nil {
		return c, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	fresh := Cart{
		ID:       uuid.New().String(),
		Items:    Items{},
		Subtotal: decimal.Zero,
		Tax:      decimal.Zero,
		Shipping: decimal.Zero,
		Total:    decimal.Zero,
		Currency: s.config.Pricing.Currency,
	}
	if customerID, ok := identity.CustomerID(); ok {
		fresh.CustomerID = &customerID
	} else if sessionID, ok := identity.SessionID(); ok {
		fresh.SessionID = &sessionID
	}

	if err := s.store.Save(ctx, &fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}

// writeCache overwrites the cart's cache entry with the authoritative value.
// Failures are logged and swallowed: staleness is bounded by the TTL and the
// durable store remains the hard guarantee.
func (s *Service) writeCache(ctx context.Context, c *Cart) {
	key := c.Owner().CacheKey()
	if err := s.cache.Set(ctx, key, c, s.config.Cache.CartTTL); err != nil {
		s.log.WithError(err).WithField("key", key).
			Warn("Cart cache update failed, staleness bounded by TTL")
	}
}

func customerIDPtr(identity Identity) *uint {
	if customerID, ok := identity.CustomerID(); ok {
		return &customerID
	}
	return nil
}
