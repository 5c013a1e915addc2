// internal/domain/cart/store.go
package cart

import (
	"context"
	"errors"

	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
	"gorm.io/gorm"
)

// Store is the durable-store surface for carts. A cart is a single document:
// saves replace the whole row, so concurrent writers follow last-write-wins.
type Store interface {
	FindByIdentity(ctx context.Context, identity Identity) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
}

// GormStore implements Store against PostgreSQL
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed cart store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindByIdentity loads the cart bound to an identity
func (s *GormStore) FindByIdentity(ctx context.Context, identity Identity) (*Cart, error) {
	query := s.db.WithContext(ctx)
	if customerID, ok := identity.CustomerID(); ok {
		query = query.Where("customer_id = ?", customerID)
	} else if sessionID, ok := identity.SessionID(); ok {
		query = query.Where("session_id = ?", sessionID)
	} else {
		return nil, apperrors.Validation("cart identity is required")
	}

	var c Cart
	err := query.First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("cart for %s not found", identity)
	}
	if err != nil {
		return nil, apperrors.Unavailable("failed to load cart", err)
	}
	return &c, nil
}

// Save inserts or replaces a cart row
func (s *GormStore) Save(ctx context.Context, c *Cart) error {
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return apperrors.Unavailable("failed to persist cart", err)
	}
	return nil
}
