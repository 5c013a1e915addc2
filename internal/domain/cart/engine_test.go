package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/b2b-storefront/internal/config"
	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
)

func testEngine() *Engine {
	cfg := &config.Config{
		Pricing: config.PricingConfig{
			Currency:              "USD",
			TaxRate:               decimal.RequireFromString("0.10"),
			FlatShippingFee:       decimal.RequireFromString("10.00"),
			FreeShippingThreshold: decimal.RequireFromString("100.00"),
			MaxItemQuantity:       100,
		},
	}
	return NewEngine(cfg)
}

func testItem(sku string, price string) Item {
	return Item{
		SKU:       sku,
		Name:      "Test " + sku,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func assertDecimalEqual(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(expected).Equal(actual),
		"expected %s, got %s", expected, actual)
}

func TestAddItemAppendsNewLine(t *testing.T) {
	engine := testEngine()

	c, err := engine.AddItem(Cart{}, testItem("A-1", "25.00"), 2)

	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "A-1", c.Items[0].SKU)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.False(t, c.Items[0].AddedAt.IsZero())
}

func TestAddItemMergesSameSKU(t *testing.T) {
	engine := testEngine()

	c, err := engine.AddItem(Cart{}, testItem("A-1", "25.00"), 2)
	require.NoError(t, err)
	c, err = engine.AddItem(c, testItem("a-1", "25.00"), 3)
	require.NoError(t, err)

	// One line with summed quantity, not two lines
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
}

func TestAddItemRefreshesPriceOnMerge(t *testing.T) {
	engine := testEngine()

	c, err := engine.AddItem(Cart{}, testItem("A-1", "25.00"), 1)
	require.NoError(t, err)
	c, err = engine.AddItem(c, testItem("A-1", "20.00"), 1)
	require.NoError(t, err)

	assertDecimalEqual(t, "20.00", c.Items[0].UnitPrice)
}

func TestQuantityValidation(t *testing.T) {
	engine := testEngine()

	testCases := []struct {
		name     string
		quantity int
		valid    bool
	}{
		{"zero rejected", 0, false},
		{"negative rejected", -1, false},
		{"over cap rejected", 101, false},
		{"minimum accepted", 1, true},
		{"cap accepted", 100, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, addErr := engine.AddItem(Cart{}, testItem("A-1", "5.00"), tc.quantity)

			seeded, err := engine.AddItem(Cart{}, testItem("A-1", "5.00"), 1)
			require.NoError(t, err)
			_, updateErr := engine.UpdateQuantity(seeded, "A-1", tc.quantity)

			if tc.valid {
				assert.NoError(t, addErr)
				assert.NoError(t, updateErr)
			} else {
				assert.True(t, apperrors.IsValidation(addErr), "AddItem should reject %d", tc.quantity)
				assert.True(t, apperrors.IsValidation(updateErr), "UpdateQuantity should reject %d", tc.quantity)
			}
		})
	}
}

func TestAddItemRejectsMergeBeyondCap(t *testing.T) {
	engine := testEngine()

	c, err := engine.AddItem(Cart{}, testItem("A-1", "5.00"), 60)
	require.NoError(t, err)

	// 60 + 50 exceeds the cap; rejected, not clamped
	_, err = engine.AddItem(c, testItem("A-1", "5.00"), 50)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdateQuantityUnknownSKU(t *testing.T) {
	engine := testEngine()

	_, err := engine.UpdateQuantity(Cart{}, "MISSING", 1)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRemoveItem(t *testing.T) {
	engine := testEngine()

	c, err := engine.AddItem(Cart{}, testItem("A-1", "5.00"), 1)
	require.NoError(t, err)
	c, err = engine.AddItem(c, testItem("B-2", "7.00"), 1)
	require.NoError(t, err)

	c, err = engine.RemoveItem(c, "A-1")
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "B-2", c.Items[0].SKU)

	_, err = engine.RemoveItem(c, "A-1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRecalculateTotalsLaw(t *testing.T) {
	engine := testEngine()
	threshold := decimal.RequireFromString("100.00")

	c, err := engine.AddItem(Cart{}, testItem("A-1", "19.99"), 3)
	require.NoError(t, err)
	c, err = engine.AddItem(c, testItem("B-2", "4.50"), 2)
	require.NoError(t, err)

	c = engine.Recalculate(c, threshold)

	// subtotal = 3×19.99 + 2×4.50 = 68.97
	assertDecimalEqual(t, "68.97", c.Subtotal)
	// tax = subtotal × 0.10
	assertDecimalEqual(t, "6.90", c.Tax)
	// below threshold → flat fee
	assertDecimalEqual(t, "10.00", c.Shipping)
	// total = subtotal + tax + shipping
	assertDecimalEqual(t, "85.87", c.Total)
	assert.True(t, c.Total.Equal(c.Subtotal.Add(c.Tax).Add(c.Shipping)))
}

func TestFreeShippingBoundary(t *testing.T) {
	engine := testEngine()
	threshold := decimal.RequireFromString("100.00")

	// Subtotal exactly at the threshold ships free
	c, err := engine.AddItem(Cart{}, testItem("A-1", "100.00"), 1)
	require.NoError(t, err)
	c = engine.Recalculate(c, threshold)
	assertDecimalEqual(t, "0", c.Shipping)

	// One cent below pays the flat fee
	c, err = engine.AddItem(Cart{}, testItem("A-1", "99.99"), 1)
	require.NoError(t, err)
	c = engine.Recalculate(c, threshold)
	assertDecimalEqual(t, "10.00", c.Shipping)
}

func TestRecalculateIdempotent(t *testing.T) {
	engine := testEngine()
	threshold := decimal.RequireFromString("100.00")

	c, err := engine.AddItem(Cart{}, testItem("A-1", "33.33"), 3)
	require.NoError(t, err)

	once := engine.Recalculate(c, threshold)
	twice := engine.Recalculate(once, threshold)

	assert.True(t, once.Subtotal.Equal(twice.Subtotal))
	assert.True(t, once.Tax.Equal(twice.Tax))
	assert.True(t, once.Shipping.Equal(twice.Shipping))
	assert.True(t, once.Total.Equal(twice.Total))
}

func TestClearZeroesEverything(t *testing.T) {
	engine := testEngine()

	c, err := engine.AddItem(Cart{}, testItem("A-1", "50.00"), 2)
	require.NoError(t, err)
	c = engine.Recalculate(c, decimal.RequireFromString("100.00"))
	require.False(t, c.Total.IsZero())

	c = engine.Clear(c)

	assert.Empty(t, c.Items)
	assert.True(t, c.Subtotal.IsZero())
	assert.True(t, c.Tax.IsZero())
	assert.True(t, c.Shipping.IsZero())
	assert.True(t, c.Total.IsZero())
}

func TestEngineDoesNotMutateInput(t *testing.T) {
	engine := testEngine()

	original, err := engine.AddItem(Cart{}, testItem("A-1", "5.00"), 1)
	require.NoError(t, err)

	_, err = engine.UpdateQuantity(original, "A-1", 10)
	require.NoError(t, err)

	assert.Equal(t, 1, original.Items[0].Quantity)
}

func TestIdentity(t *testing.T) {
	customer := Customer(42)
	assert.True(t, customer.IsCustomer())
	assert.Equal(t, "user:42", customer.String())
	assert.Equal(t, "cart:user:42", customer.CacheKey())

	guest := Anonymous("s1")
	assert.False(t, guest.IsCustomer())
	assert.Equal(t, "session:s1", guest.String())
	assert.Equal(t, "cart:session:s1", guest.CacheKey())

	assert.True(t, Identity{}.IsZero())
	assert.False(t, customer.IsZero())
	assert.False(t, guest.IsZero())
}
