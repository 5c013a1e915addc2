// internal/domain/order/entity.go
package order

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status represents the order status
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// statusTransitions is the legal state machine. Absent keys are terminal.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// CanTransition reports whether moving from one status to another is legal
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s names a known status
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// ItemSnapshot is one order line, frozen at checkout time. Prices are copied
// from the cart so later catalog or override changes never rewrite history.
type ItemSnapshot struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Brand         string          `json:"brand,omitempty"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	IsCustomPrice bool            `json:"is_custom_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// Items is the JSONB column holding the order's line snapshots
type Items []ItemSnapshot

// Value implements driver.Valuer
func (i Items) Value() (driver.Value, error) {
	if i == nil {
		return "[]", nil
	}
	data, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (i *Items) Scan(value interface{}) error {
	if value == nil {
		*i = Items{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, i)
	case string:
		return json.Unmarshal([]byte(v), i)
	default:
		return fmt.Errorf("unsupported type %T for order items", value)
	}
}

// StatusChange is one entry in the order's status history
type StatusChange struct {
	Status    Status    `json:"status"`
	Comment   string    `json:"comment,omitempty"`
	ChangedBy uint      `json:"changed_by,omitempty"`
	At        time.Time `json:"at"`
}

// History is the JSONB column holding the status trail
type History []StatusChange

// Value implements driver.Valuer
func (h History) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (h *History) Scan(value interface{}) error {
	if value == nil {
		*h = History{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("unsupported type %T for order history", value)
	}
}

// Order is a placed order: an immutable snapshot of the cart it came from
// plus a status that walks the fulfillment state machine. Exactly one of
// CustomerID and SessionID is set.
type Order struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	OrderNumber string  `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	CustomerID  *uint   `gorm:"index" json:"customer_id,omitempty"`
	SessionID   *string `gorm:"index;size:255" json:"session_id,omitempty"`
	Status      Status  `gorm:"not null;default:'pending';size:30" json:"status"`

	Items    Items           `gorm:"type:jsonb;not null" json:"items"`
	Subtotal decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"subtotal"`
	Tax      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"tax"`
	Shipping decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"shipping"`
	Total    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total"`
	Currency string          `gorm:"size:3;default:'USD'" json:"currency"`

	Notes   string  `gorm:"type:text" json:"notes,omitempty"`
	History History `gorm:"type:jsonb" json:"status_history,omitempty"`

	ShippedAt   *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Order) TableName() string {
	return "orders"
}

// NewOrderNumber generates a human-readable unique order number.
// Format: ORD-YYYYMMDD-XXXXXXXX
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), suffix)
}

// CanBeCancelled reports whether the order may still be cancelled by its owner
func (o *Order) CanBeCancelled() bool {
	return CanTransition(o.Status, StatusCancelled)
}

// RecordStatus appends a status change to the order's history and applies it
func (o *Order) RecordStatus(status Status, comment string, changedBy uint, now time.Time) {
	o.Status = status
	o.History = append(o.History, StatusChange{
		Status:    status,
		Comment:   comment,
		ChangedBy: changedBy,
		At:        now,
	})
	switch status {
	case StatusShipped:
		o.ShippedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	}
}
