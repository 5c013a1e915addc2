// internal/domain/product/entity.go
package product

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a catalog product. Products are soft-deactivated via
// IsActive, never deleted; SKU is the external join key used by carts,
// orders and customer pricing.
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	SKU         string          `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name        string          `gorm:"not null;size:255" json:"name"`
	Brand       string          `gorm:"size:255;index" json:"brand"`
	Category    string          `gorm:"size:255;index" json:"category"`
	BasePrice   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"base_price"`
	ImageURL    string          `gorm:"size:500" json:"image_url"`
	Description string          `gorm:"type:text" json:"description"`
	IsActive    bool            `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Product) TableName() string {
	return "products"
}

// BeforeSave normalizes the SKU to its canonical uppercase form
func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.SKU = NormalizeSKU(p.SKU)
	return nil
}

// NormalizeSKU returns the canonical form of a SKU
func NormalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// CustomerPrice represents a per-customer price override for a product.
// At most one active row per (customer, product) pair is authoritative at
// resolution time.
type CustomerPrice struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CustomerID uint            `gorm:"not null;index:idx_customer_prices_customer_sku" json:"customer_id"`
	ProductID  uint            `gorm:"not null;index" json:"product_id"`
	SKU        string          `gorm:"not null;size:100;index:idx_customer_prices_customer_sku" json:"sku"`
	Price      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	IsActive   bool            `gorm:"default:true" json:"is_active"`
	ValidFrom  *time.Time      `json:"valid_from,omitempty"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (CustomerPrice) TableName() string {
	return "customer_prices"
}

// BeforeSave normalizes the SKU to its canonical uppercase form
func (cp *CustomerPrice) BeforeSave(tx *gorm.DB) error {
	cp.SKU = NormalizeSKU(cp.SKU)
	return nil
}

// ActiveAt reports whether the override is authoritative at the given time.
// The validity window is half-open: [from, until).
func (cp *CustomerPrice) ActiveAt(now time.Time) bool {
	if !cp.IsActive {
		return false
	}
	if cp.ValidFrom != nil && now.Before(*cp.ValidFrom) {
		return false
	}
	if cp.ValidUntil != nil && !now.Before(*cp.ValidUntil) {
		return false
	}
	return true
}
