package order

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/b2b-storefront/internal/config"
	"github.com/your-org/b2b-storefront/internal/domain/cart"
	"github.com/your-org/b2b-storefront/internal/infrastructure/cache"
	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
)

// --- Fakes ---

type fakeCache struct {
	entries map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, ok := f.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = data
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.entries, k)
	}
	return nil
}

func (f *fakeCache) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	return 0, nil
}

func (f *fakeCache) GetRaw(ctx context.Context, key string) (string, error) {
	return string(f.entries[key]), nil
}

func (f *fakeCache) SetRaw(ctx context.Context, key, value string, ttl time.Duration) error {
	f.entries[key] = []byte(value)
	return nil
}

func (f *fakeCache) Stats(ctx context.Context) (*cache.Stats, error) {
	return &cache.Stats{Keys: int64(len(f.entries))}, nil
}

func (f *fakeCache) Clear(ctx context.Context) (int64, error) {
	n := int64(len(f.entries))
	f.entries = map[string][]byte{}
	return n, nil
}

type fakeOrderStore struct {
	orders    map[uint]Order
	nextID    uint
	findCalls int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[uint]Order{}, nextID: 1}
}

func (f *fakeOrderStore) FindByID(ctx context.Context, id uint) (*Order, error) {
	f.findCalls++
	o, ok := f.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order %d not found", id)
	}
	out := o
	return &out, nil
}

func (f *fakeOrderStore) ListByIdentity(ctx context.Context, identity cart.Identity) ([]Order, error) {
	var out []Order
	for _, o := range f.orders {
		owner := ownerIdentity(&o)
		if owner == identity {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) Create(ctx context.Context, o *Order) error {
	o.ID = f.nextID
	f.nextID++
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrderStore) Save(ctx context.Context, o *Order) error {
	f.orders[o.ID] = *o
	return nil
}

type fakeCartSource struct {
	carts   map[string]*cart.Cart
	cleared []string
}

func (f *fakeCartSource) Get(ctx context.Context, identity cart.Identity) (*cart.Cart, error) {
	c, ok := f.carts[identity.String()]
	if !ok {
		return &cart.Cart{Items: cart.Items{}, Currency: "USD"}, nil
	}
	return c, nil
}

func (f *fakeCartSource) Clear(ctx context.Context, identity cart.Identity) (*cart.Cart, error) {
	f.cleared = append(f.cleared, identity.String())
	if c, ok := f.carts[identity.String()]; ok {
		c.Items = cart.Items{}
	}
	return &cart.Cart{Items: cart.Items{}}, nil
}

// --- Harness ---

type orderFixture struct {
	service *Service
	store   *fakeOrderStore
	carts   *fakeCartSource
	cache   *fakeCache
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	customerID := uint(7)
	carts := &fakeCartSource{carts: map[string]*cart.Cart{
		"user:7": {
			ID:         "cart-1",
			CustomerID: &customerID,
			Items: cart.Items{
				{SKU: "WIDGET-1", Name: "Widget", UnitPrice: decimal.RequireFromString("40.00"), IsCustomPrice: true, Quantity: 2},
				{SKU: "GADGET-2", Name: "Gadget", UnitPrice: decimal.RequireFromString("19.99"), Quantity: 1},
			},
			Subtotal: decimal.RequireFromString("99.99"),
			Tax:      decimal.RequireFromString("10.00"),
			Shipping: decimal.RequireFromString("10.00"),
			Total:    decimal.RequireFromString("119.99"),
			Currency: "USD",
		},
	}}

	cfg := &config.Config{
		Cache: config.CacheConfig{OrderTTL: 10 * time.Minute},
	}

	fixture := &orderFixture{
		store: newFakeOrderStore(),
		carts: carts,
		cache: newFakeCache(),
	}
	fixture.service = NewService(fixture.store, carts, fixture.cache, cfg, log)
	return fixture
}

// --- Tests ---

func TestCheckoutSnapshotsCart(t *testing.T) {
	fixture := newOrderFixture(t)
	ctx := context.Background()

	o, err := fixture.service.Checkout(ctx, cart.Customer(7), "leave at the dock")
	require.NoError(t, err)

	assert.NotZero(t, o.ID)
	assert.Contains(t, o.OrderNumber, "ORD-")
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "leave at the dock", o.Notes)
	require.NotNil(t, o.CustomerID)
	assert.Equal(t, uint(7), *o.CustomerID)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "WIDGET-1", o.Items[0].SKU)
	assert.True(t, o.Items[0].IsCustomPrice)
	assert.True(t, o.Items[0].LineTotal.Equal(decimal.RequireFromString("80.00")))

	// Totals copied from the cart as-is
	assert.True(t, o.Total.Equal(decimal.RequireFromString("119.99")))
	assert.True(t, o.Total.Equal(o.Subtotal.Add(o.Tax).Add(o.Shipping)))

	// The cart was cleared and the order list invalidated
	assert.Equal(t, []string{"user:7"}, fixture.carts.cleared)
	require.Len(t, o.History, 1)
	assert.Equal(t, StatusPending, o.History[0].Status)
}

func TestCheckoutEmptyCart(t *testing.T) {
	fixture := newOrderFixture(t)

	_, err := fixture.service.Checkout(context.Background(), cart.Anonymous("empty"), "")
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, fixture.carts.cleared)
}

func TestCheckoutInvalidatesOrderList(t *testing.T) {
	fixture := newOrderFixture(t)
	ctx := context.Background()

	// Warm the list cache with an empty result
	orders, err := fixture.service.List(ctx, cart.Customer(7))
	require.NoError(t, err)
	assert.Empty(t, orders)
	_, cached := fixture.cache.entries["orders:user:7"]
	assert.True(t, cached)

	_, err = fixture.service.Checkout(ctx, cart.Customer(7), "")
	require.NoError(t, err)

	// The stale empty list is gone; the next read sees the order
	_, cached = fixture.cache.entries["orders:user:7"]
	assert.False(t, cached)
	orders, err = fixture.service.List(ctx, cart.Customer(7))
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestGetEnforcesOwnership(t *testing.T) {
	fixture := newOrderFixture(t)
	ctx := context.Background()

	o, err := fixture.service.Checkout(ctx, cart.Customer(7), "")
	require.NoError(t, err)

	mine, err := fixture.service.Get(ctx, cart.Customer(7), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, mine.OrderNumber)

	// Someone else's order reads as not found
	_, err = fixture.service.Get(ctx, cart.Customer(8), o.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = fixture.service.Get(ctx, cart.Anonymous("s1"), o.ID)
	assert.True(t, apperrors.IsNotFound(err))

	// Admin lookup skips the ownership check
	any, err := fixture.service.GetAny(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, any.OrderNumber)
}

func TestGetReadThrough(t *testing.T) {
	fixture := newOrderFixture(t)
	ctx := context.Background()

	o, err := fixture.service.Checkout(ctx, cart.Customer(7), "")
	require.NoError(t, err)
	fixture.store.findCalls = 0

	_, err = fixture.service.Get(ctx, cart.Customer(7), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fixture.store.findCalls)

	// Cached now; the durable store is not consulted again
	_, err = fixture.service.Get(ctx, cart.Customer(7), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fixture.store.findCalls)
}

func TestStatusTransitions(t *testing.T) {
	testCases := []struct {
		from  Status
		to    Status
		legal bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusProcessing, true},
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPending, StatusShipped, false},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.legal, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestUpdateStatusWalksStateMachine(t *testing.T) {
	fixture := newOrderFixture(t)
	ctx := context.Background()

	o, err := fixture.service.Checkout(ctx, cart.Customer(7), "")
	require.NoError(t, err)

	o, err = fixture.service.UpdateStatus(ctx, o.ID, StatusConfirmed, "payment received", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)

	// Skipping states is rejected
	_, err = fixture.service.UpdateStatus(ctx, o.ID, StatusDelivered, "", 1)
	assert.True(t, apperrors.IsValidation(err))

	o, err = fixture.service.UpdateStatus(ctx, o.ID, StatusProcessing, "", 1)
	require.NoError(t, err)
	o, err = fixture.service.UpdateStatus(ctx, o.ID, StatusShipped, "", 1)
	require.NoError(t, err)
	require.NotNil(t, o.ShippedAt)

	o, err = fixture.service.UpdateStatus(ctx, o.ID, StatusDelivered, "", 1)
	require.NoError(t, err)
	require.NotNil(t, o.DeliveredAt)

	// pending + 4 transitions in the trail
	assert.Len(t, o.History, 5)
}

func TestUpdateStatusInvalidatesCache(t *testing.T) {
	fixture := newOrderFixture(t)
	ctx := context.Background()

	o, err := fixture.service.Checkout(ctx, cart.Customer(7), "")
	require.NoError(t, err)

	// Warm the single-order cache
	_, err = fixture.service.Get(ctx, cart.Customer(7), o.ID)
	require.NoError(t, err)

	_, err = fixture.service.UpdateStatus(ctx, o.ID, StatusConfirmed, "", 1)
	require.NoError(t, err)

	// The cached pending view is gone; the next read sees the new status
	fresh, err := fixture.service.Get(ctx, cart.Customer(7), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, fresh.Status)
}

func TestCancel(t *testing.T) {
	fixture := newOrderFixture(t)
	ctx := context.Background()

	o, err := fixture.service.Checkout(ctx, cart.Customer(7), "")
	require.NoError(t, err)

	cancelled, err := fixture.service.Cancel(ctx, cart.Customer(7), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// A shipped order cannot be cancelled
	fixture2 := newOrderFixture(t)
	o2, err := fixture2.service.Checkout(ctx, cart.Customer(7), "")
	require.NoError(t, err)
	for _, next := range []Status{StatusConfirmed, StatusProcessing, StatusShipped} {
		_, err = fixture2.service.UpdateStatus(ctx, o2.ID, next, "", 1)
		require.NoError(t, err)
	}
	_, err = fixture2.service.Cancel(ctx, cart.Customer(7), o2.ID)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCancelDecidesOnDurableState(t *testing.T) {
	fixture := newOrderFixture(t)
	ctx := context.Background()

	o, err := fixture.service.Checkout(ctx, cart.Customer(7), "")
	require.NoError(t, err)

	stale, err := json.Marshal(o)
	require.NoError(t, err)

	for _, next := range []Status{StatusConfirmed, StatusProcessing, StatusShipped} {
		_, err = fixture.service.UpdateStatus(ctx, o.ID, next, "", 1)
		require.NoError(t, err)
	}

	// A cache entry from before the order shipped is still lying around
	fixture.cache.entries[CacheKey(o.ID)] = stale

	_, err = fixture.service.Cancel(ctx, cart.Customer(7), o.ID)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, StatusShipped, fixture.store.orders[o.ID].Status)
}

func TestCancelEnforcesOwnership(t *testing.T) {
	fixture := newOrderFixture(t)
	ctx := context.Background()

	o, err := fixture.service.Checkout(ctx, cart.Customer(7), "")
	require.NoError(t, err)

	_, err = fixture.service.Cancel(ctx, cart.Customer(8), o.ID)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, StatusPending, fixture.store.orders[o.ID].Status)
}
