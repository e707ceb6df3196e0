package service

import (
	"context"
	"sync"
	"testing"

	"luxestore-backend/internal/domains/pricing"
	"luxestore-backend/internal/domains/product/model"
	"luxestore-backend/internal/infrastructure/supplier"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*model.Product
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (f *fakeProductRepo) add(p model.Product) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.products[p.ID] = &p
	return p.ID
}

func (f *fakeProductRepo) InsertStaging(_ context.Context, p *model.Product) error {
	p.Staging = true
	f.add(*p)
	return nil
}

func (f *fakeProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, model.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProductRepo) list(staging bool) []model.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Product
	for _, p := range f.products {
		if p.Staging == staging {
			out = append(out, *p)
		}
	}
	return out
}

func (f *fakeProductRepo) ListStaging(_ context.Context, _ model.ListFilter) ([]model.Product, int, error) {
	out := f.list(true)
	return out, len(out), nil
}

func (f *fakeProductRepo) ListLive(_ context.Context, _ model.ListFilter) ([]model.Product, int, error) {
	out := f.list(false)
	return out, len(out), nil
}

func (f *fakeProductRepo) UpdateStaging(_ context.Context, id uuid.UUID, update model.StagingUpdate) (*model.Product, error) {
	if update.Empty() {
		return nil, model.ErrNoFieldsToUpdate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, model.ErrProductNotFound
	}
	if !p.Staging {
		return nil, model.ErrNotStaging
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Price != nil {
		p.Price = *update.Price
		p.PricingAutoCalculated = false
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProductRepo) Publish(_ context.Context, ids []uuid.UUID) (*model.PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := &model.PublishResult{Failed: []string{}}
	for _, id := range ids {
		p, ok := f.products[id]
		if !ok {
			result.Failed = append(result.Failed, id.String())
			continue
		}
		p.Staging = false
		result.Published++
	}
	return result, nil
}

func (f *fakeProductRepo) ListLiveForRepricing(_ context.Context) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Product
	for _, p := range f.products {
		if !p.Staging && p.SupplierPrice != nil && p.PricingAutoCalculated {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) ListLiveBySource(_ context.Context, source string) ([]model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Product
	for _, p := range f.products {
		if !p.Staging && p.Source == source && p.ExternalID != "" {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProductRepo) UpdatePricing(_ context.Context, id uuid.UUID, price decimal.Decimal, original *decimal.Decimal, breakdown any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return model.ErrProductNotFound
	}
	p.Price = price
	p.OriginalPrice = original
	return nil
}

func (f *fakeProductRepo) UpdateStock(_ context.Context, id uuid.UUID, stock int, inStock bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return model.ErrProductNotFound
	}
	p.Stock = stock
	p.InStock = inStock
	return nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []map[string]any
	actions []string
}

func (f *fakeAudit) Insert(_ context.Context, action, actor string, details map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	f.entries = append(f.entries, details)
	return nil
}

type fakeDetailSupplier struct {
	stocks map[string]int
	err    error
}

func (f *fakeDetailSupplier) ListProducts(context.Context, int, int, string) (*supplier.ProductPage, error) {
	return &supplier.ProductPage{}, nil
}

func (f *fakeDetailSupplier) GetProductDetails(_ context.Context, externalID string) (*supplier.RawProduct, error) {
	if f.err != nil {
		return nil, f.err
	}
	stock, ok := f.stocks[externalID]
	if !ok {
		return nil, &supplier.RemoteError{Status: 404, Body: "not found"}
	}
	return &supplier.RawProduct{ExternalID: externalID, Stock: stock}, nil
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func stagingProduct(name string) model.Product {
	supplierPrice := dec(12)
	shipping := dec(3)
	return model.Product{
		Source:                "cj",
		ExternalID:            "cj-" + name,
		Name:                  name,
		WeightKg:              0.5,
		Stock:                 5,
		InStock:               true,
		SupplierPrice:         &supplierPrice,
		SupplierShipping:      &shipping,
		Price:                 dec(100),
		PricingAutoCalculated: true,
		Staging:               true,
	}
}

// ---- tests ----

func TestPublishCountsExistingAndReportsUnknown(t *testing.T) {
	repo := newFakeProductRepo()
	audit := &fakeAudit{}
	svc := NewStagingService(repo, audit)

	id := repo.add(stagingProduct("bag"))
	unknown := uuid.New()

	result, err := svc.Publish(context.Background(), []uuid.UUID{id, unknown}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, []string{unknown.String()}, result.Failed)

	live, _, _ := repo.ListLive(context.Background(), model.ListFilter{})
	assert.Len(t, live, 1)

	require.Len(t, audit.actions, 1)
	assert.Equal(t, "publish", audit.actions[0])
	assert.Equal(t, 1, audit.entries[0]["published"])
}

func TestPublishIsIdempotent(t *testing.T) {
	repo := newFakeProductRepo()
	svc := NewStagingService(repo, &fakeAudit{})
	id := repo.add(stagingProduct("bag"))
	ids := []uuid.UUID{id}

	for i := 0; i < 3; i++ {
		result, err := svc.Publish(context.Background(), ids, "admin-1")
		require.NoError(t, err)
		assert.Equal(t, 1, result.Published, "publish attempt %d", i+1)
		assert.Empty(t, result.Failed)
	}
}

func TestPublishRequiresIDs(t *testing.T) {
	svc := NewStagingService(newFakeProductRepo(), &fakeAudit{})
	_, err := svc.Publish(context.Background(), nil, "admin-1")
	assert.Error(t, err)
}

func TestUpdateStagingRejectsPublishedRows(t *testing.T) {
	repo := newFakeProductRepo()
	svc := NewStagingService(repo, &fakeAudit{})

	p := stagingProduct("bag")
	p.Staging = false
	id := repo.add(p)

	name := "renamed"
	_, err := svc.UpdateStaging(context.Background(), id, model.StagingUpdate{Name: &name})
	assert.ErrorIs(t, err, model.ErrNotStaging)
}

func TestRepriceLiveUpdatesStalePrices(t *testing.T) {
	repo := newFakeProductRepo()

	stale := stagingProduct("stale")
	stale.Staging = false
	staleID := repo.add(stale)

	// Already carries the exact engine output, must be skipped.
	current := stagingProduct("current")
	current.Staging = false
	current.Price = dec(280.31)
	repo.add(current)

	// Manually priced rows are never touched.
	manual := stagingProduct("manual")
	manual.Staging = false
	manual.PricingAutoCalculated = false
	manualID := repo.add(manual)

	svc := NewRepriceService(repo, pricing.NewEngine(200, 10), nil, "SA")
	updated, failed, err := svc.RepriceLive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.Equal(t, 0, failed)

	repriced, _ := repo.GetByID(context.Background(), staleID)
	assert.Equal(t, "280.31", repriced.Price.String())
	require.NotNil(t, repriced.OriginalPrice)
	assert.Equal(t, "100", repriced.OriginalPrice.String())

	untouched, _ := repo.GetByID(context.Background(), manualID)
	assert.Equal(t, "100", untouched.Price.String())
}

func TestSyncInventoryUpdatesStock(t *testing.T) {
	repo := newFakeProductRepo()

	p := stagingProduct("bag")
	p.Staging = false
	id := repo.add(p)

	soldOut := stagingProduct("gone")
	soldOut.Staging = false
	soldOutID := repo.add(soldOut)

	svc := NewInventoryService(repo, &fakeDetailSupplier{stocks: map[string]int{
		"cj-bag":  42,
		"cj-gone": 0,
	}})
	updated, failed, err := svc.SyncInventory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, 0, failed)

	fresh, _ := repo.GetByID(context.Background(), id)
	assert.Equal(t, 42, fresh.Stock)
	assert.True(t, fresh.InStock)

	gone, _ := repo.GetByID(context.Background(), soldOutID)
	assert.Equal(t, 0, gone.Stock)
	assert.False(t, gone.InStock)
}

func TestSyncInventoryStopsOnTransientSupplierFailure(t *testing.T) {
	repo := newFakeProductRepo()
	p := stagingProduct("bag")
	p.Staging = false
	repo.add(p)

	svc := NewInventoryService(repo, &fakeDetailSupplier{
		err: &supplier.TransientError{Attempts: 5},
	})
	_, failed, err := svc.SyncInventory(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, failed)
}
