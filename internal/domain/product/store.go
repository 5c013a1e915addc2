// internal/domain/product/store.go
package product

import (
	"context"
	"errors"

	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
	"gorm.io/gorm"
)

// Store is the durable-store surface the catalog and cart services depend on
type Store interface {
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	FindActiveBySKU(ctx context.Context, sku string) (*Product, error)
	List(ctx context.Context, filter ListFilter) ([]Product, error)
	Save(ctx context.Context, p *Product) error
	Overrides(ctx context.Context, customerID uint, skus []string) ([]CustomerPrice, error)
	UpsertOverride(ctx context.Context, override *CustomerPrice) error
}

// ListFilter narrows a product listing
type ListFilter struct {
	Category   string
	Brand      string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// GormStore implements Store against PostgreSQL
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed product store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindBySKU loads a product by SKU regardless of active state
func (s *GormStore) FindBySKU(ctx context.Context, sku string) (*Product, error) {
	var p Product
	err := s.db.WithContext(ctx).Where("sku = ?", NormalizeSKU(sku)).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("product %s not found", NormalizeSKU(sku))
	}
	if err != nil {
		return nil, apperrors.Unavailable("failed to load product", err)
	}
	return &p, nil
}

// FindActiveBySKU loads an active product by SKU
func (s *GormStore) FindActiveBySKU(ctx context.Context, sku string) (*Product, error) {
	var p Product
	err := s.db.WithContext(ctx).
		Where("sku = ? AND is_active = ?", NormalizeSKU(sku), true).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("product %s not found", NormalizeSKU(sku))
	}
	if err != nil {
		return nil, apperrors.Unavailable("failed to load product", err)
	}
	return &p, nil
}

// List returns products matching the filter
func (s *GormStore) List(ctx context.Context, filter ListFilter) ([]Product, error) {
	query := s.db.WithContext(ctx).Model(&Product{})

	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Brand != "" {
		query = query.Where("brand = ?", filter.Brand)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var products []Product
	if err := query.Order("name ASC").Find(&products).Error; err != nil {
		return nil, apperrors.Unavailable("failed to list products", err)
	}
	return products, nil
}

// Save inserts or updates a product
func (s *GormStore) Save(ctx context.Context, p *Product) error {
	if err := s.db.WithContext(ctx).Save(p).Error; err != nil {
		return apperrors.Unavailable("failed to save product", err)
	}
	return nil
}

// Overrides returns the active override candidates for a customer across the
// given SKUs. Validity windows are evaluated by the caller at resolution time.
func (s *GormStore) Overrides(ctx context.Context, customerID uint, skus []string) ([]CustomerPrice, error) {
	if len(skus) == 0 {
		return nil, nil
	}

	normalized := make([]string, len(skus))
	for i, sku := range skus {
		normalized[i] = NormalizeSKU(sku)
	}

	var overrides []CustomerPrice
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND sku IN ? AND is_active = ?", customerID, normalized, true).
		Order("updated_at DESC").
		Find(&overrides).Error
	if err != nil {
		return nil, apperrors.Unavailable("failed to load customer prices", err)
	}
	return overrides, nil
}

// UpsertOverride writes a customer price, replacing any previous row for the
// same (customer, product) pair
func (s *GormStore) UpsertOverride(ctx context.Context, override *CustomerPrice) error {
	var existing CustomerPrice
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND product_id = ?", override.CustomerID, override.ProductID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.db.WithContext(ctx).Create(override).Error; err != nil {
			return apperrors.Unavailable("failed to create customer price", err)
		}
		return nil
	}
	if err != nil {
		return apperrors.Unavailable("failed to load customer price", err)
	}

	existing.SKU = override.SKU
	existing.Price = override.Price
	existing.IsActive = override.IsActive
	existing.ValidFrom = override.ValidFrom
	existing.ValidUntil = override.ValidUntil
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return apperrors.Unavailable("failed to update customer price", err)
	}
	*override = existing
	return nil
}
