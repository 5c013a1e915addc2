// internal/domain/cart/entity.go
package cart

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Identity is the cart/pricing context key: either an authenticated customer
// or an anonymous session, never both and never neither. The zero Identity is
// invalid and rejected by every operation.
type Identity struct {
	customerID uint
	sessionID  string
}

// Customer creates an identity for an authenticated customer
func Customer(customerID uint) Identity {
	return Identity{customerID: customerID}
}

// Anonymous creates an identity for a guest session
func Anonymous(sessionID string) Identity {
	return Identity{sessionID: sessionID}
}

// IsCustomer reports whether the identity is an authenticated customer
func (i Identity) IsCustomer() bool {
	return i.customerID != 0
}

// IsZero reports whether the identity carries no credential at all
func (i Identity) IsZero() bool {
	return i.customerID == 0 && i.sessionID == ""
}

// CustomerID returns the customer id when the identity is authenticated
func (i Identity) CustomerID() (uint, bool) {
	return i.customerID, i.customerID != 0
}

// SessionID returns the session id when the identity is anonymous
func (i Identity) SessionID() (string, bool) {
	if i.customerID != 0 {
		return "", false
	}
	return i.sessionID, i.sessionID != ""
}

// String renders the identity in its stable cache-key form:
// "user:{id}" or "session:{sessionID}"
func (i Identity) String() string {
	if i.customerID != 0 {
		return fmt.Sprintf("user:%d", i.customerID)
	}
	return fmt.Sprintf("session:%s", i.sessionID)
}

// CacheKey returns the cart cache key for this identity
func (i Identity) CacheKey() string {
	return "cart:" + i.String()
}

// Item is one line of a cart. SKU is the identity key within the cart: a
// repeated add merges into the existing line instead of appending.
type Item struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	IsCustomPrice bool            `json:"is_custom_price"`
	Quantity      int             `json:"quantity"`
	AddedAt       time.Time       `json:"added_at"`
}

// Items is the cart's item list, persisted as a single JSONB document so a
// cart write stays one row and "last write wins per document" holds without
// transactions.
type Items []Item

// Value implements driver.Valuer for JSONB storage
func (items Items) Value() (driver.Value, error) {
	if items == nil {
		items = Items{}
	}
	return json.Marshal(items)
}

// Scan implements sql.Scanner for JSONB storage
func (items *Items) Scan(value interface{}) error {
	if value == nil {
		*items = Items{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for cart items", value)
	}

	return json.Unmarshal(data, items)
}

// Cart represents a shopping cart. Totals are derived fields: they are
// recomputed from the item list on every mutation and never accepted from
// callers. A cart is cleared rather than deleted so its identity binding
// survives for future visits.
type Cart struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	CustomerID *uint           `gorm:"uniqueIndex" json:"customer_id,omitempty"`
	SessionID  *string         `gorm:"uniqueIndex;size:64" json:"session_id,omitempty"`
	Items      Items           `gorm:"type:jsonb" json:"items"`
	Subtotal   decimal.Decimal `gorm:"type:decimal(10,2)" json:"subtotal"`
	Tax        decimal.Decimal `gorm:"type:decimal(10,2)" json:"tax"`
	Shipping   decimal.Decimal `gorm:"type:decimal(10,2)" json:"shipping"`
	Total      decimal.Decimal `gorm:"type:decimal(10,2)" json:"total"`
	Currency   string          `gorm:"size:3;default:'USD'" json:"currency"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName overrides the table name
func (Cart) TableName() string {
	return "carts"
}

// Owner returns the identity the cart is bound to
func (c *Cart) Owner() Identity {
	if c.CustomerID != nil {
		return Customer(*c.CustomerID)
	}
	if c.SessionID != nil {
		return Anonymous(*c.SessionID)
	}
	return Identity{}
}

// ItemIndex returns the position of the item with the given SKU, or -1
func (c *Cart) ItemIndex(sku string) int {
	for i := range c.Items {
		if c.Items[i].SKU == sku {
			return i
		}
	}
	return -1
}

// TotalQuantity returns the sum of all line quantities
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}
