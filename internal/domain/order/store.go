// internal/domain/order/store.go
package order

import (
	"context"
	"errors"

	"github.com/your-org/b2b-storefront/internal/domain/cart"
	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
	"gorm.io/gorm"
)

// Store is the durable-store surface for orders
type Store interface {
	FindByID(ctx context.Context, id uint) (*Order, error)
	ListByIdentity(ctx context.Context, identity cart.Identity) ([]Order, error)
	Create(ctx context.Context, o *Order) error
	Save(ctx context.Context, o *Order) error
}

// GormStore implements Store against PostgreSQL
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed order store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindByID loads an order by primary key
func (s *GormStore) FindByID(ctx context.Context, id uint) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("order %d not found", id)
	}
	if err != nil {
		return nil, apperrors.Unavailable("failed to load order", err)
	}
	return &o, nil
}

// ListByIdentity returns the identity's orders, most recent first
func (s *GormStore) ListByIdentity(ctx context.Context, identity cart.Identity) ([]Order, error) {
	query := s.db.WithContext(ctx)
	if customerID, ok := identity.CustomerID(); ok {
		query = query.Where("customer_id = ?", customerID)
	} else if sessionID, ok := identity.SessionID(); ok {
		query = query.Where("session_id = ?", sessionID)
	} else {
		return nil, apperrors.Validation("order identity is required")
	}

	var orders []Order
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, apperrors.Unavailable("failed to list orders", err)
	}
	return orders, nil
}

// Create inserts a new order row
func (s *GormStore) Create(ctx context.Context, o *Order) error {
	if err := s.db.WithContext(ctx).Create(o).Error; err != nil {
		return apperrors.Unavailable("failed to create order", err)
	}
	return nil
}

// Save updates an existing order row
func (s *GormStore) Save(ctx context.Context, o *Order) error {
	if err := s.db.WithContext(ctx).Save(o).Error; err != nil {
		return apperrors.Unavailable("failed to persist order", err)
	}
	return nil
}
