package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/b2b-storefront/internal/config"
	"github.com/your-org/b2b-storefront/internal/domain/pricing"
	"github.com/your-org/b2b-storefront/internal/domain/product"
	"github.com/your-org/b2b-storefront/internal/infrastructure/cache"
	"github.com/your-org/b2b-storefront/internal/pkg/apperrors"
)

// --- Fakes ---

type fakeCache struct {
	entries map[string][]byte
	gets    []string
	failGet bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]byte{}}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	f.gets = append(f.gets, key)
	if f.failGet {
		return false, errors.New("cache unavailable")
	}
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
	prefix := strings.TrimSuffix(pattern, "*")
	var deleted int64
	for k := range f.entries {
		if strings.HasPrefix(k, prefix) {
			delete(f.entries, k)
			deleted++
		}
	}
	return deleted, nil
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

type fakeProductStore struct {
	products  map[string]product.Product
	overrides []product.CustomerPrice
	findCalls int
	listCalls int
}

func (f *fakeProductStore) FindBySKU(ctx context.Context, sku string) (*product.Product, error) {
	f.findCalls++
	p, ok := f.products[product.NormalizeSKU(sku)]
	if !ok {
		return nil, apperrors.NotFound("product %s not found", product.NormalizeSKU(sku))
	}
	out := p
	return &out, nil
}

func (f *fakeProductStore) FindActiveBySKU(ctx context.Context, sku string) (*product.Product, error) {
	p, err := f.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, apperrors.NotFound("product %s not found", p.SKU)
	}
	return p, nil
}

func (f *fakeProductStore) List(ctx context.Context, filter product.ListFilter) ([]product.Product, error) {
	f.listCalls++
	var out []product.Product
	for _, p := range f.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProductStore) Save(ctx context.Context, p *product.Product) error {
	p.SKU = product.NormalizeSKU(p.SKU)
	if p.ID == 0 {
		p.ID = uint(len(f.products) + 1)
	}
	f.products[p.SKU] = *p
	return nil
}

func (f *fakeProductStore) Overrides(ctx context.Context, customerID uint, skus []string) ([]product.CustomerPrice, error) {
	var out []product.CustomerPrice
	for _, o := range f.overrides {
		if o.CustomerID != customerID || !o.IsActive {
			continue
		}
		for _, sku := range skus {
			if o.SKU == sku {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

func (f *fakeProductStore) UpsertOverride(ctx context.Context, override *product.CustomerPrice) error {
	for i, o := range f.overrides {
		if o.CustomerID == override.CustomerID && o.ProductID == override.ProductID {
			override.ID = o.ID
			f.overrides[i] = *override
			return nil
		}
	}
	override.ID = uint(len(f.overrides) + 1)
	f.overrides = append(f.overrides, *override)
	return nil
}

// countingResolver wraps the real resolver to count batch lookups
type countingResolver struct {
	inner      *pricing.Resolver
	batchCalls int
}

func (c *countingResolver) Resolve(ctx context.Context, customerID *uint, sku string, basePrice decimal.Decimal) pricing.Resolution {
	return c.inner.Resolve(ctx, customerID, sku, basePrice)
}

func (c *countingResolver) ResolveBatch(ctx context.Context, customerID *uint, basePrices map[string]decimal.Decimal) map[string]pricing.Resolution {
	c.batchCalls++
	return c.inner.ResolveBatch(ctx, customerID, basePrices)
}

// --- Harness ---

type catalogFixture struct {
	service  *Service
	store    *fakeProductStore
	cache    *fakeCache
	resolver *countingResolver
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := &fakeProductStore{products: map[string]product.Product{
		"WIDGET-1": {
			ID:        1,
			SKU:       "WIDGET-1",
			Name:      "Widget",
			Brand:     "Acme",
			BasePrice: decimal.RequireFromString("50.00"),
			IsActive:  true,
		},
		"GADGET-2": {
			ID:        2,
			SKU:       "GADGET-2",
			Name:      "Gadget",
			Brand:     "Acme",
			BasePrice: decimal.RequireFromString("19.99"),
			IsActive:  true,
		},
	}}
	store.overrides = []product.CustomerPrice{
		{ID: 1, CustomerID: 7, ProductID: 1, SKU: "WIDGET-1", Price: decimal.RequireFromString("40.00"), IsActive: true},
	}

	resolver := &countingResolver{inner: pricing.NewResolver(store, log)}
	cacheStore := newFakeCache()

	cfg := &config.Config{
		Cache: config.CacheConfig{ProductTTL: 5 * time.Minute},
	}

	return &catalogFixture{
		service:  NewService(store, resolver, cacheStore, cfg, log),
		store:    store,
		cache:    cacheStore,
		resolver: resolver,
	}
}

// --- Tests ---

func TestViewCacheKey(t *testing.T) {
	customerID := uint(42)
	assert.Equal(t, "product:WIDGET-1", ViewCacheKey("widget-1", nil))
	assert.Equal(t, "product:WIDGET-1_user_42", ViewCacheKey("WIDGET-1", &customerID))
}

func TestGetProductReadThrough(t *testing.T) {
	fixture := newCatalogFixture(t)
	ctx := context.Background()

	first, err := fixture.service.GetProduct(ctx, "widget-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "WIDGET-1", first.SKU)
	assert.True(t, first.Price.Equal(decimal.RequireFromString("50.00")))
	assert.False(t, first.HasCustomPrice)
	assert.Equal(t, 1, fixture.store.findCalls)

	// Second read is served from cache
	second, err := fixture.service.GetProduct(ctx, "WIDGET-1", nil)
	require.NoError(t, err)
	assert.Equal(t, first.SKU, second.SKU)
	assert.Equal(t, 1, fixture.store.findCalls)
}

func TestGetProductPerCustomerViews(t *testing.T) {
	fixture := newCatalogFixture(t)
	ctx := context.Background()
	customerID := uint(7)

	mine, err := fixture.service.GetProduct(ctx, "WIDGET-1", &customerID)
	require.NoError(t, err)
	assert.True(t, mine.Price.Equal(decimal.RequireFromString("40.00")))
	assert.True(t, mine.HasCustomPrice)
	assert.True(t, mine.BasePrice.Equal(decimal.RequireFromString("50.00")))

	// The anonymous view is cached under its own key and keeps the base price
	anon, err := fixture.service.GetProduct(ctx, "WIDGET-1", nil)
	require.NoError(t, err)
	assert.True(t, anon.Price.Equal(decimal.RequireFromString("50.00")))
	assert.False(t, anon.HasCustomPrice)

	_, customerCached := fixture.cache.entries["product:WIDGET-1_user_7"]
	_, anonCached := fixture.cache.entries["product:WIDGET-1"]
	assert.True(t, customerCached)
	assert.True(t, anonCached)
}

func TestGetProductIgnoresUnpricedCacheEntry(t *testing.T) {
	fixture := newCatalogFixture(t)
	ctx := context.Background()

	// An entry without the priced marker must be treated as a miss
	stale, err := json.Marshal(View{SKU: "WIDGET-1", Name: "Widget"})
	require.NoError(t, err)
	fixture.cache.entries["product:WIDGET-1"] = stale

	view, err := fixture.service.GetProduct(ctx, "WIDGET-1", nil)
	require.NoError(t, err)
	assert.True(t, view.Priced)
	assert.True(t, view.Price.Equal(decimal.RequireFromString("50.00")))
	assert.Equal(t, 1, fixture.store.findCalls)
}

func TestGetProductFallsThroughOnCacheFailure(t *testing.T) {
	fixture := newCatalogFixture(t)
	fixture.cache.failGet = true

	view, err := fixture.service.GetProduct(context.Background(), "WIDGET-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "WIDGET-1", view.SKU)
}

func TestGetProductUnknownSKU(t *testing.T) {
	fixture := newCatalogFixture(t)

	_, err := fixture.service.GetProduct(context.Background(), "NOPE", nil)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListProductsResolvesPricesInOneBatch(t *testing.T) {
	fixture := newCatalogFixture(t)
	ctx := context.Background()
	customerID := uint(7)

	views, err := fixture.service.ListProducts(ctx, product.ListFilter{}, &customerID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, 1, fixture.resolver.batchCalls)

	byID := map[string]View{}
	for _, v := range views {
		byID[v.SKU] = v
	}
	assert.True(t, byID["WIDGET-1"].Price.Equal(decimal.RequireFromString("40.00")))
	assert.True(t, byID["WIDGET-1"].HasCustomPrice)
	assert.True(t, byID["GADGET-2"].Price.Equal(decimal.RequireFromString("19.99")))
	assert.False(t, byID["GADGET-2"].HasCustomPrice)
}

func TestUpsertProductInvalidatesAllViews(t *testing.T) {
	fixture := newCatalogFixture(t)
	ctx := context.Background()
	customerID := uint(7)

	_, err := fixture.service.GetProduct(ctx, "WIDGET-1", nil)
	require.NoError(t, err)
	_, err = fixture.service.GetProduct(ctx, "WIDGET-1", &customerID)
	require.NoError(t, err)

	updated := fixture.store.products["WIDGET-1"]
	updated.BasePrice = decimal.RequireFromString("55.00")
	require.NoError(t, fixture.service.UpsertProduct(ctx, &updated))

	_, anonCached := fixture.cache.entries["product:WIDGET-1"]
	_, customerCached := fixture.cache.entries["product:WIDGET-1_user_7"]
	assert.False(t, anonCached)
	assert.False(t, customerCached)

	// The next read sees the new base price
	view, err := fixture.service.GetProduct(ctx, "WIDGET-1", nil)
	require.NoError(t, err)
	assert.True(t, view.Price.Equal(decimal.RequireFromString("55.00")))
}

func TestUpsertProductUpdatesExistingSKU(t *testing.T) {
	fixture := newCatalogFixture(t)
	ctx := context.Background()

	// Admin writes carry no row ID, only the SKU
	updated := product.Product{
		SKU:       "widget-1",
		Name:      "Widget, revised",
		Brand:     "Acme",
		BasePrice: decimal.RequireFromString("60.00"),
		IsActive:  false,
	}
	require.NoError(t, fixture.service.UpsertProduct(ctx, &updated))

	// The existing row is updated in place, not duplicated
	assert.Equal(t, uint(1), updated.ID)
	assert.Len(t, fixture.store.products, 2)
	saved := fixture.store.products["WIDGET-1"]
	assert.Equal(t, "Widget, revised", saved.Name)
	assert.True(t, saved.BasePrice.Equal(decimal.RequireFromString("60.00")))
	assert.False(t, saved.IsActive)

	// An unknown SKU still creates a fresh row
	created := product.Product{
		SKU:       "NEW-3",
		Name:      "Newcomer",
		BasePrice: decimal.RequireFromString("9.99"),
		IsActive:  true,
	}
	require.NoError(t, fixture.service.UpsertProduct(ctx, &created))
	assert.NotZero(t, created.ID)
	assert.Len(t, fixture.store.products, 3)
}

func TestUpsertProductValidation(t *testing.T) {
	fixture := newCatalogFixture(t)
	ctx := context.Background()

	err := fixture.service.UpsertProduct(ctx, &product.Product{Name: "No SKU"})
	assert.True(t, apperrors.IsValidation(err))

	err = fixture.service.UpsertProduct(ctx, &product.Product{SKU: "X-1"})
	assert.True(t, apperrors.IsValidation(err))

	err = fixture.service.UpsertProduct(ctx, &product.Product{
		SKU: "X-1", Name: "X", BasePrice: decimal.RequireFromString("-1.00"),
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpsertCustomerPriceFansOutInvalidation(t *testing.T) {
	fixture := newCatalogFixture(t)
	ctx := context.Background()
	customerID := uint(7)

	// Warm the entries the price change will make stale, plus bystanders
	_, err := fixture.service.GetProduct(ctx, "WIDGET-1", &customerID)
	require.NoError(t, err)
	_, err = fixture.service.GetProduct(ctx, "WIDGET-1", nil)
	require.NoError(t, err)
	fixture.cache.entries["cart:user:7"] = []byte(`{}`)
	fixture.cache.entries["cart:user:8"] = []byte(`{}`)
	otherCustomer := uint(8)
	_, err = fixture.service.GetProduct(ctx, "WIDGET-1", &otherCustomer)
	require.NoError(t, err)

	_, err = fixture.service.UpsertCustomerPrice(ctx, customerID, "widget-1",
		decimal.RequireFromString("35.00"), nil, nil)
	require.NoError(t, err)

	// Exactly the customer's product view and cart are invalidated
	_, myView := fixture.cache.entries["product:WIDGET-1_user_7"]
	_, myCart := fixture.cache.entries["cart:user:7"]
	assert.False(t, myView)
	assert.False(t, myCart)

	// Other audiences are untouched
	_, anonView := fixture.cache.entries["product:WIDGET-1"]
	_, otherView := fixture.cache.entries["product:WIDGET-1_user_8"]
	_, otherCart := fixture.cache.entries["cart:user:8"]
	assert.True(t, anonView)
	assert.True(t, otherView)
	assert.True(t, otherCart)

	// The next read reflects the new override
	view, err := fixture.service.GetProduct(ctx, "WIDGET-1", &customerID)
	require.NoError(t, err)
	assert.True(t, view.Price.Equal(decimal.RequireFromString("35.00")))
	assert.True(t, view.HasCustomPrice)
}

func TestUpsertCustomerPriceValidation(t *testing.T) {
	fixture := newCatalogFixture(t)
	ctx := context.Background()

	_, err := fixture.service.UpsertCustomerPrice(ctx, 0, "WIDGET-1",
		decimal.RequireFromString("1.00"), nil, nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = fixture.service.UpsertCustomerPrice(ctx, 7, "WIDGET-1",
		decimal.RequireFromString("-1.00"), nil, nil)
	assert.True(t, apperrors.IsValidation(err))

	from := time.Now()
	until := from.Add(-time.Hour)
	_, err = fixture.service.UpsertCustomerPrice(ctx, 7, "WIDGET-1",
		decimal.RequireFromString("1.00"), &from, &until)
	assert.True(t, apperrors.IsValidation(err))

	_, err = fixture.service.UpsertCustomerPrice(ctx, 7, "NOPE",
		decimal.RequireFromString("1.00"), nil, nil)
	assert.True(t, apperrors.IsNotFound(err))
}
