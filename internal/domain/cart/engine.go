// internal/domain/cart/engine.go
package cart

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/b2b-storefront/internal/config"
	"github.com/your-org/b2b-storefront/internal/domain/product"
	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
)

// Engine owns the cart's invariants: item uniqueness by SKU, quantity bounds
// and the totals law (subtotal, tax, shipping and total are always functions
// of the current item list). Every method is a pure function from a cart
// value to a new cart value; the engine performs no I/O.
type Engine struct {
	taxRate         decimal.Decimal
	flatShippingFee decimal.Decimal
	maxItemQuantity int
}

// NewEngine creates a cart engine from pricing configuration
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{
		taxRate:         cfg.Pricing.TaxRate,
		flatShippingFee: cfg.Pricing.FlatShippingFee,
		maxItemQuantity: cfg.Pricing.MaxItemQuantity,
	}
}

// MaxItemQuantity returns the per-line quantity cap
func (e *Engine) MaxItemQuantity() int {
	return e.maxItemQuantity
}

// AddItem merges an item into the cart. If a line with the same SKU already
// exists its quantity is incremented and its added-at timestamp refreshed;
// otherwise a new line is appended. The resulting quantity must stay within
// bounds; violations are rejected, never clamped.
func (e *Engine) AddItem(c Cart, item Item, quantity int) (Cart, error) {
	if err := e.validateQuantity(quantity); err != nil {
		return c, err
	}

	item.SKU = product.NormalizeSKU(item.SKU)
	if item.SKU == "" {
		return c, apperrors.Validation("sku is required")
	}

	out := cloneCart(c)
	now := time.Now().UTC()

	if idx := out.ItemIndex(item.SKU); idx >= 0 {
		merged := out.Items[idx].Quantity + quantity
		if merged > e.maxItemQuantity {
			return c, apperrors.Validation(
				"quantity for %s would exceed the maximum of %d per item",
				item.SKU, e.maxItemQuantity)
		}
		out.Items[idx].Quantity = merged
		out.Items[idx].UnitPrice = item.UnitPrice
		out.Items[idx].IsCustomPrice = item.IsCustomPrice
		out.Items[idx].AddedAt = now
		return out, nil
	}

	item.Quantity = quantity
	item.AddedAt = now
	out.Items = append(out.Items, item)
	return out, nil
}

// UpdateQuantity sets the quantity of the named line directly
func (e *Engine) UpdateQuantity(c Cart, sku string, quantity int) (Cart, error) {
	if err := e.validateQuantity(quantity); err != nil {
		return c, err
	}

	sku = product.NormalizeSKU(sku)
	idx := c.ItemIndex(sku)
	if idx < 0 {
		return c, apperrors.NotFound("item %s not found in cart", sku)
	}

	out := cloneCart(c)
	out.Items[idx].Quantity = quantity
	return out, nil
}

// RemoveItem removes the named line from the cart
func (e *Engine) RemoveItem(c Cart, sku string) (Cart, error) {
	sku = product.NormalizeSKU(sku)
	idx := c.ItemIndex(sku)
	if idx < 0 {
		return c, apperrors.NotFound("item %s not found in cart", sku)
	}

	out := cloneCart(c)
	out.Items = append(out.Items[:idx], out.Items[idx+1:]...)
	return out, nil
}

// Recalculate recomputes all derived totals from the item list:
//
//	subtotal = Σ unit price × quantity
//	tax      = subtotal × tax rate
//	shipping = 0 when subtotal ≥ threshold, else the flat fee
//	total    = subtotal + tax + shipping
//
// The function is idempotent and is invoked after every mutation, so totals
// are never persisted without having just been recomputed.
func (e *Engine) Recalculate(c Cart, freeShippingThreshold decimal.Decimal) Cart {
	out := cloneCart(c)

	if len(out.Items) == 0 {
		out.Subtotal = decimal.Zero
		out.Tax = decimal.Zero
		out.Shipping = decimal.Zero
		out.Total = decimal.Zero
		return out
	}

	subtotal := decimal.Zero
	for _, item := range out.Items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}
	subtotal = subtotal.Round(2)

	out.Subtotal = subtotal
	out.Tax = subtotal.Mul(e.taxRate).Round(2)
	if subtotal.GreaterThanOrEqual(freeShippingThreshold) {
		out.Shipping = decimal.Zero
	} else {
		out.Shipping = e.flatShippingFee
	}
	out.Total = out.Subtotal.Add(out.Tax).Add(out.Shipping)

	return out
}

// Clear empties the item list; all derived fields become zero
func (e *Engine) Clear(c Cart) Cart {
	out := cloneCart(c)
	out.Items = Items{}
	return e.Recalculate(out, decimal.Zero)
}

func (e *Engine) validateQuantity(quantity int) error {
	if quantity < 1 {
		return apperrors.Validation("quantity must be a positive integer, got %d", quantity)
	}
	if quantity > e.maxItemQuantity {
		return apperrors.Validation("quantity must be at most %d, got %d", e.maxItemQuantity, quantity)
	}
	return nil
}

// cloneCart copies the cart with a fresh item slice so engine operations
// never mutate their input
func cloneCart(c Cart) Cart {
	out := c
	out.Items = make(Items, len(c.Items))
	copy(out.Items, c.Items)
	return out
}
