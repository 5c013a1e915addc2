// internal/domain/pricing/resolver.go
package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/your-org/b2b-storefront/internal/domain/product"
)

// OverrideSource supplies active customer-price candidates from the durable
// store. product.GormStore satisfies this.
type OverrideSource interface {
	Overrides(ctx context.Context, customerID uint, skus []string) ([]product.CustomerPrice, error)
}

// Resolution is the outcome of resolving an effective price for one SKU
type Resolution struct {
	Price      decimal.Decimal `json:"price"`
	IsOverride bool            `json:"is_override"`
}

// Resolver computes the effective price for a (customer, SKU) pair: the
// customer's active override when one exists, the product's base price
// otherwise. Resolution never fails: a lookup error downgrades to the base
// price with a logged warning, so pricing can never block an otherwise valid
// read.
type Resolver struct {
	overrides OverrideSource
	log       *logrus.Logger
}

// NewResolver creates a pricing resolver
func NewResolver(overrides OverrideSource, log *logrus.Logger) *Resolver {
	return &Resolver{
		overrides: overrides,
		log:       log,
	}
}

// Resolve returns the effective price for a single SKU
func (r *Resolver) Resolve(ctx context.Context, customerID *uint, sku string, basePrice decimal.Decimal) Resolution {
	if customerID == nil {
		return Resolution{Price: basePrice, IsOverride: false}
	}

	resolved := r.ResolveBatch(ctx, customerID, map[string]decimal.Decimal{sku: basePrice})
	return resolved[product.NormalizeSKU(sku)]
}

// ResolveBatch resolves effective prices for a set of SKUs with a single
// durable-store query, avoiding N+1 lookups on product listings.
// Keys of the result map are normalized SKUs.
func (r *Resolver) ResolveBatch(ctx context.Context, customerID *uint, basePrices map[string]decimal.Decimal) map[string]Resolution {
	resolved := make(map[string]Resolution, len(basePrices))
	skus := make([]string, 0, len(basePrices))
	for sku, base := range basePrices {
		normalized := product.NormalizeSKU(sku)
		resolved[normalized] = Resolution{Price: base, IsOverride: false}
		skus = append(skus, normalized)
	}

	if customerID == nil || len(skus) == 0 {
		return resolved
	}

	overrides, err := r.overrides.Overrides(ctx, *customerID, skus)
	if err != nil {
		// Pricing must never block a read; fall back to base prices
		r.log.WithError(err).WithFields(logrus.Fields{
			"customer_id": *customerID,
			"sku_count":   len(skus),
		}).Warn("Customer price lookup failed, falling back to base prices")
		return resolved
	}

	now := time.Now().UTC()
	for _, override := range overrides {
		sku := product.NormalizeSKU(override.SKU)
		if _, wanted := resolved[sku]; !wanted {
			continue
		}
		// Candidates arrive most-recently-updated first; the first valid one
		// per SKU wins
		if resolved[sku].IsOverride {
			continue
		}
		if !override.ActiveAt(now) {
			continue
		}
		if override.Price.IsNegative() {
			r.log.WithFields(logrus.Fields{
				"customer_id": *customerID,
				"sku":         sku,
				"price":       override.Price.String(),
			}).Warn("Ignoring malformed customer price")
			continue
		}
		resolved[sku] = Resolution{Price: override.Price, IsOverride: true}
	}

	return resolved
}
