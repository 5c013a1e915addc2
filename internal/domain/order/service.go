// internal/domain/order/service.go
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/b2b-storefront/internal/config"
	"github.com/your-org/b2b-storefront/internal/domain/cart"
	"github.com/your-org/b2b-storefront/internal/infrastructure/cache"
	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
)

// CartSource is the slice of the cart service checkout depends on.
// *cart.Service satisfies this.
type CartSource interface {
	Get(ctx context.Context, identity cart.Identity) (*cart.Cart, error)
	Clear(ctx context.Context, identity cart.Identity) (*cart.Cart, error)
}

// Service places and serves orders. Reads go through the cache; every write
// hits the durable store first and then deletes the cache entries it made
// stale, so a read after a write can only see the old value until the delete
// lands or the TTL expires.
type Service struct {
	orders Store
	carts  CartSource
	cache  cache.Cache
	config *config.Config
	log    *logrus.Logger
}

// NewService creates an order service
func NewService(orders Store, carts CartSource, cacheStore cache.Cache, cfg *config.Config, log *logrus.Logger) *Service {
	return &Service{
		orders: orders,
		carts:  carts,
		cache:  cacheStore,
		config: cfg,
		log:    log,
	}
}

// CacheKey returns the cache key for one order
func CacheKey(id uint) string {
	return fmt.Sprintf("order:%d", id)
}

// ListCacheKey returns the cache key for an identity's order list
func ListCacheKey(identity cart.Identity) string {
	return "orders:" + identity.String()
}

// Checkout places an order from the identity's current cart. The cart's lines
// and totals are snapshotted into the order as-is; the cart was recalculated
// on its last mutation, so the snapshot already satisfies the totals law.
// The cart is cleared after the order is created.
func (s *Service) Checkout(ctx context.Context, identity cart.Identity, notes string) (*Order, error) {
	if identity.IsZero() {
		return nil, apperrors.Validation("order identity is required")
	}

	c, err := s.carts.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, apperrors.Validation("cannot place an order from an empty cart")
	}

	now := time.Now().UTC()
	snapshots := make(Items, 0, len(c.Items))
	for _, item := range c.Items {
		quantity := decimal.NewFromInt(int64(item.Quantity))
		snapshots = append(snapshots, ItemSnapshot{
			SKU:           item.SKU,
			Name:          item.Name,
			Brand:         item.Brand,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			IsCustomPrice: item.IsCustomPrice,
			LineTotal:     item.UnitPrice.Mul(quantity).Round(2),
		})
	}

	o := Order{
		OrderNumber: NewOrderNumber(now),
		Items:       snapshots,
		Subtotal:    c.Subtotal,
		Tax:         c.Tax,
		Shipping:    c.Shipping,
		Total:       c.Total,
		Currency:    c.Currency,
		Notes:       notes,
	}
	if customerID, ok := identity.CustomerID(); ok {
		o.CustomerID = &customerID
	} else if sessionID, ok := identity.SessionID(); ok {
		o.SessionID = &sessionID
	}
	o.RecordStatus(StatusPending, "order placed", 0, now)

	if err := s.orders.Create(ctx, &o); err != nil {
		return nil, err
	}

	if _, err := s.carts.Clear(ctx, identity); err != nil {
		// The order exists; a cart that failed to clear is an annoyance,
		// not a reason to fail the checkout
		s.log.WithError(err).WithField("order_number", o.OrderNumber).
			Warn("Failed to clear cart after checkout")
	}

	s.invalidate(ctx, &o)

	s.log.WithFields(logrus.Fields{
		"order_number": o.OrderNumber,
		"identity":     identity.String(),
		"total":        o.Total.String(),
	}).Info("🧾 Order placed")
	return &o, nil
}

// Get returns one of the identity's orders, read-through cached. An order
// belonging to someone else is indistinguishable from a missing one.
func (s *Service) Get(ctx context.Context, identity cart.Identity, id uint) (*Order, error) {
	if identity.IsZero() {
		return nil, apperrors.Validation("order identity is required")
	}

	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.owns(identity, o) {
		return nil, apperrors.NotFound("order %d not found", id)
	}
	return o, nil
}

// GetAny returns any order by id without an ownership check, for admin use
func (s *Service) GetAny(ctx context.Context, id uint) (*Order, error) {
	return s.load(ctx, id)
}

// List returns the identity's orders, most recent first, read-through cached
func (s *Service) List(ctx context.Context, identity cart.Identity) ([]Order, error) {
	if identity.IsZero() {
		return nil, apperrors.Validation("order identity is required")
	}

	key := ListCacheKey(identity)
	var cached []Order
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.WithError(err).WithField("key", key).
			Warn("Order list cache read failed, falling through to durable store")
	}
	if hit {
		return cached, nil
	}

	orders, err := s.orders.ListByIdentity(ctx, identity)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, orders, s.config.Cache.OrderTTL); err != nil {
		s.log.WithError(err).WithField("key", key).
			Warn("Order list cache update failed, staleness bounded by TTL")
	}
	return orders, nil
}

// Cancel cancels one of the identity's orders if its status still allows it.
// The decision is made against the durable row, not the cached copy, so a
// stale cache entry can never revive a cancellation window that has closed.
func (s *Service) Cancel(ctx context.Context, identity cart.Identity, id uint) (*Order, error) {
	if identity.IsZero() {
		return nil, apperrors.Validation("order identity is required")
	}

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.owns(identity, o) {
		return nil, apperrors.NotFound("order %d not found", id)
	}
	if !o.CanBeCancelled() {
		return nil, apperrors.Validation("order %s cannot be cancelled in status %s", o.OrderNumber, o.Status)
	}

	o.RecordStatus(StatusCancelled, "cancelled by customer", 0, time.Now().UTC())
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, err
	}

	s.invalidate(ctx, o)
	return o, nil
}

// UpdateStatus moves an order along the fulfillment state machine, for admin
// use. Illegal transitions are rejected.
func (s *Service) UpdateStatus(ctx context.Context, id uint, status Status, comment string, changedBy uint) (*Order, error) {
	if !ValidStatus(status) {
		return nil, apperrors.Validation("unknown order status %q", status)
	}

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, status) {
		return nil, apperrors.Validation("order %s cannot move from %s to %s", o.OrderNumber, o.Status, status)
	}

	o.RecordStatus(status, comment, changedBy, time.Now().UTC())
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, err
	}

	s.invalidate(ctx, o)

	s.log.WithFields(logrus.Fields{
		"order_number": o.OrderNumber,
		"status":       o.Status,
	}).Info("📦 Order status updated")
	return o, nil
}

// load reads one order through the cache
func (s *Service) load(ctx context.Context, id uint) (*Order, error) {
	key := CacheKey(id)
	var cached Order
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.WithError(err).WithField("key", key).
			Warn("Order cache read failed, falling through to durable store")
	}
	if hit {
		return &cached, nil
	}

	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, o, s.config.Cache.OrderTTL); err != nil {
		s.log.WithError(err).WithField("key", key).
			Warn("Order cache update failed, staleness bounded by TTL")
	}
	return o, nil
}

// invalidate deletes the order's cache entry and its owner's list entry
func (s *Service) invalidate(ctx context.Context, o *Order) {
	keys := []string{CacheKey(o.ID), ListCacheKey(ownerIdentity(o))}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.WithError(err).WithField("order_id", o.ID).
			Warn("Order cache invalidation failed, staleness bounded by TTL")
	}
}

// owns reports whether the identity owns the order
func (s *Service) owns(identity cart.Identity, o *Order) bool {
	if customerID, ok := identity.CustomerID(); ok {
		return o.CustomerID != nil && *o.CustomerID == customerID
	}
	if sessionID, ok := identity.SessionID(); ok {
		return o.SessionID != nil && *o.SessionID == sessionID
	}
	return false
}

func ownerIdentity(o *Order) cart.Identity {
	if o.CustomerID != nil {
		return cart.Customer(*o.CustomerID)
	}
	if o.SessionID != nil {
		return cart.Anonymous(*o.SessionID)
	}
	return cart.Identity{}
}
