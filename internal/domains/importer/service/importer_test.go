package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"luxestore-backend/internal/config"
	"luxestore-backend/internal/domains/importer/model"
	"luxestore-backend/internal/domains/pricing"
	productmodel "luxestore-backend/internal/domains/product/model"
	"luxestore-backend/internal/infrastructure/supplier"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fakes ----

type fakeJobRepo struct {
	mu       sync.Mutex
	jobs     map[uuid.UUID]*model.ImportJob
	progress map[uuid.UUID][]int // processed values in write order
	getCalls int
	onGet    func(call int) // invoked before each GetByID read
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:     make(map[uuid.UUID]*model.ImportJob),
		progress: make(map[uuid.UUID][]int),
	}
}

func (f *fakeJobRepo) Create(_ context.Context, job *model.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = model.StatusPending
	job.CreatedAt = time.Now().UTC()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobRepo) GetByID(_ context.Context, id uuid.UUID) (*model.ImportJob, error) {
	f.mu.Lock()
	f.getCalls++
	call := f.getCalls
	hook := f.onGet
	f.mu.Unlock()
	if hook != nil {
		hook(call)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobRepo) List(_ context.Context, status string, _ int) ([]model.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ImportJob
	for _, job := range f.jobs {
		if status == "" || job.Status == status {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) writable(id uuid.UUID) (*model.ImportJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, model.ErrJobNotFound
	}
	if job.Terminal() {
		return nil, model.ErrJobFinalized
	}
	return job, nil
}

func (f *fakeJobRepo) MarkRunning(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, err := f.writable(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	job.Status = model.StatusRunning
	job.HeartbeatAt = &now
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	return nil
}

func (f *fakeJobRepo) SetTotal(_ context.Context, id uuid.UUID, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, err := f.writable(id)
	if err != nil {
		return err
	}
	job.Total = total
	return nil
}

func (f *fakeJobRepo) UpdateProgress(_ context.Context, id uuid.UUID, processed, imported, failed int, percent float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, err := f.writable(id)
	if err != nil {
		return err
	}
	if processed < job.Processed {
		return fmt.Errorf("processed counter regression %d -> %d", job.Processed, processed)
	}
	job.Processed = processed
	job.Imported = imported
	job.Failed = failed
	job.Percent = percent
	now := time.Now().UTC()
	job.HeartbeatAt = &now
	f.progress[id] = append(f.progress[id], processed)
	return nil
}

func (f *fakeJobRepo) MarkCompleted(_ context.Context, id uuid.UUID, result *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, err := f.writable(id)
	if err != nil {
		return err
	}
	job.Status = model.StatusCompleted
	job.Result = result
	job.Percent = 100
	now := time.Now().UTC()
	job.CompletedAt = &now
	return nil
}

func (f *fakeJobRepo) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, err := f.writable(id)
	if err != nil {
		return err
	}
	job.Status = model.StatusFailed
	job.Error = message
	now := time.Now().UTC()
	job.CompletedAt = &now
	return nil
}

func (f *fakeJobRepo) Heartbeat(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, err := f.writable(id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	job.HeartbeatAt = &now
	return nil
}

func (f *fakeJobRepo) FindRunning(_ context.Context) ([]model.ImportJob, error) {
	return f.List(context.Background(), model.StatusRunning, 0)
}

type fakeStagingWriter struct {
	mu       sync.Mutex
	inserted []productmodel.Product
	seen     map[string]bool
}

func newFakeStagingWriter() *fakeStagingWriter {
	return &fakeStagingWriter{seen: make(map[string]bool)}
}

func (f *fakeStagingWriter) InsertStaging(_ context.Context, p *productmodel.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := p.ImportJobID.String() + "/" + p.ExternalID
	if f.seen[key] {
		return productmodel.ErrDuplicateInJob
	}
	f.seen[key] = true
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	f.inserted = append(f.inserted, *p)
	return nil
}

func (f *fakeStagingWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inserted)
}

type fakeSupplier struct {
	mu       sync.Mutex
	items    []supplier.RawProduct
	listErr  error
	calls    int
	onList   func(call int) // invoked before serving each page
	gate     chan struct{}  // when set, ListProducts blocks until closed
}

func (f *fakeSupplier) ListProducts(ctx context.Context, pageNum, pageSize int, _ string) (*supplier.ProductPage, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	f.calls++
	call := f.calls
	hook := f.onList
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if f.listErr != nil {
		return nil, f.listErr
	}

	start := (pageNum - 1) * pageSize
	if start >= len(f.items) {
		return &supplier.ProductPage{Items: nil, Total: len(f.items)}, nil
	}
	end := start + pageSize
	if end > len(f.items) {
		end = len(f.items)
	}
	return &supplier.ProductPage{Items: f.items[start:end], Total: len(f.items)}, nil
}

func (f *fakeSupplier) GetProductDetails(context.Context, string) (*supplier.RawProduct, error) {
	return nil, supplier.ErrMissingCredentials
}

func rawProducts(n int) []supplier.RawProduct {
	out := make([]supplier.RawProduct, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, supplier.RawProduct{
			ExternalID:    fmt.Sprintf("cj-%03d", i),
			Name:          fmt.Sprintf("Leather Bag %d", i),
			SellPrice:     decimal.NewFromInt(12),
			ShippingPrice: decimal.NewFromInt(3),
			WeightKg:      0.5,
			Stock:         7,
		})
	}
	return out
}

func testImporterConfig() config.ImporterConfig {
	return config.ImporterConfig{
		PauseBetweenBatches: time.Millisecond,
		HeartbeatInterval:   10 * time.Millisecond,
		StaleAfter:          2 * time.Minute,
	}
}

func newTestController(jobs *fakeJobRepo, products *fakeStagingWriter, sup supplier.Client) *Controller {
	importer := NewBatchImporter(jobs, products, sup, pricing.NewEngine(200, 10), nil, testImporterConfig(), "SA")
	return NewController(jobs, importer)
}

// ---- tests ----

func TestImportHappyPath(t *testing.T) {
	jobs := newFakeJobRepo()
	products := newFakeStagingWriter()
	sup := &fakeSupplier{items: rawProducts(10)}
	c := newTestController(jobs, products, sup)

	job, err := c.Start(context.Background(), model.Params{Keyword: "leather bag", Count: 10, BatchSize: 4}, nil)
	require.NoError(t, err)
	c.Wait()

	final, err := jobs.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.Equal(t, 10, final.Total)
	assert.Equal(t, 10, final.Processed)
	assert.Equal(t, 10, final.Imported)
	assert.Equal(t, 0, final.Failed)
	assert.Equal(t, float64(100), final.Percent)
	require.NotNil(t, final.Result)
	assert.Equal(t, 10, final.Result.TotalFound)
	assert.Len(t, final.Result.SampleProducts, model.MaxSampleProducts)
	assert.Equal(t, 10, products.count())

	// Staging rows carry the pricing output.
	first := products.inserted[0]
	require.NotNil(t, first.PriceBreakdown)
	assert.True(t, first.Price.IsPositive())
	assert.Equal(t, "cj", first.Source)
}

func TestImportCountCappedBySupplierTotal(t *testing.T) {
	jobs := newFakeJobRepo()
	sup := &fakeSupplier{items: rawProducts(3)}
	c := newTestController(jobs, newFakeStagingWriter(), sup)

	job, err := c.Start(context.Background(), model.Params{Keyword: "bag", Count: 50, BatchSize: 10}, nil)
	require.NoError(t, err)
	c.Wait()

	final, _ := jobs.GetByID(context.Background(), job.ID)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.Equal(t, 3, final.Total)
	assert.Equal(t, 3, final.Imported)
}

func TestImportDuplicateSkipped(t *testing.T) {
	items := rawProducts(3)
	items[1].ExternalID = items[0].ExternalID // duplicate in the same job

	jobs := newFakeJobRepo()
	products := newFakeStagingWriter()
	c := newTestController(jobs, products, &fakeSupplier{items: items})

	job, err := c.Start(context.Background(), model.Params{Keyword: "bag", Count: 3}, nil)
	require.NoError(t, err)
	c.Wait()

	final, _ := jobs.GetByID(context.Background(), job.ID)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.Equal(t, 3, final.Processed)
	assert.Equal(t, 2, final.Imported)
	assert.Equal(t, 1, final.Failed)
	assert.Equal(t, 2, products.count())
}

func TestImportSupplierFailureFailsJob(t *testing.T) {
	jobs := newFakeJobRepo()
	products := newFakeStagingWriter()
	sup := &fakeSupplier{listErr: &supplier.RemoteError{Status: 401, Body: "bad token"}}
	c := newTestController(jobs, products, sup)

	job, err := c.Start(context.Background(), model.Params{Keyword: "bag", Count: 5}, nil)
	require.NoError(t, err)
	c.Wait()

	final, _ := jobs.GetByID(context.Background(), job.ID)
	assert.Equal(t, model.StatusFailed, final.Status)
	assert.Contains(t, final.Error, "supplier listing failed")
	assert.Equal(t, 0, products.count())
}

func TestImportProgressIsMonotone(t *testing.T) {
	jobs := newFakeJobRepo()
	c := newTestController(jobs, newFakeStagingWriter(), &fakeSupplier{items: rawProducts(25)})

	job, err := c.Start(context.Background(), model.Params{Keyword: "bag", Count: 25, BatchSize: 10}, nil)
	require.NoError(t, err)
	c.Wait()

	seq := jobs.progress[job.ID]
	require.NotEmpty(t, seq)
	for i := 1; i < len(seq); i++ {
		assert.GreaterOrEqual(t, seq[i], seq[i-1], "progress regressed at write %d", i)
	}
	assert.Equal(t, 25, seq[len(seq)-1])
}

func TestImportParamValidation(t *testing.T) {
	c := newTestController(newFakeJobRepo(), newFakeStagingWriter(), &fakeSupplier{})

	_, err := c.Start(context.Background(), model.Params{Keyword: "", Count: 5}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidParams)

	_, err = c.Start(context.Background(), model.Params{Keyword: "bag", Count: 0}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidParams)

	_, err = c.Start(context.Background(), model.Params{Keyword: "bag", Count: 10, BatchSize: 500}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidParams)
}

func TestCancelRunningJob(t *testing.T) {
	jobs := newFakeJobRepo()
	sup := &fakeSupplier{items: rawProducts(40)}
	c := newTestController(jobs, newFakeStagingWriter(), sup)

	// Cancel from inside the second page fetch so the worker is mid-run.
	var once sync.Once
	jobCh := make(chan uuid.UUID, 1)
	sup.onList = func(call int) {
		if call >= 2 {
			once.Do(func() {
				id := <-jobCh
				require.NoError(t, c.Cancel(context.Background(), id))
			})
		}
	}

	job, err := c.Start(context.Background(), model.Params{Keyword: "bag", Count: 40, BatchSize: 10}, nil)
	require.NoError(t, err)
	jobCh <- job.ID
	c.Wait()

	final, _ := jobs.GetByID(context.Background(), job.ID)
	assert.Equal(t, model.StatusFailed, final.Status)
	assert.Equal(t, "cancelled", final.Error)
}

func TestCancelFinalizedJob(t *testing.T) {
	jobs := newFakeJobRepo()
	c := newTestController(jobs, newFakeStagingWriter(), &fakeSupplier{items: rawProducts(2)})

	job, err := c.Start(context.Background(), model.Params{Keyword: "bag", Count: 2}, nil)
	require.NoError(t, err)
	c.Wait()

	err = c.Cancel(context.Background(), job.ID)
	assert.ErrorIs(t, err, model.ErrJobFinalized)
}

func TestTerminalStateIsImmutable(t *testing.T) {
	jobs := newFakeJobRepo()
	job := &model.ImportJob{Params: model.Params{Keyword: "bag", Count: 1}}
	require.NoError(t, jobs.Create(context.Background(), job))
	require.NoError(t, jobs.MarkRunning(context.Background(), job.ID))
	require.NoError(t, jobs.MarkCompleted(context.Background(), job.ID, &model.Result{}))

	assert.ErrorIs(t, jobs.UpdateProgress(context.Background(), job.ID, 1, 1, 0, 10), model.ErrJobFinalized)
	assert.ErrorIs(t, jobs.MarkFailed(context.Background(), job.ID, "late"), model.ErrJobFinalized)
	assert.ErrorIs(t, jobs.MarkRunning(context.Background(), job.ID), model.ErrJobFinalized)
}

func TestSubscribeReceivesTerminalEvent(t *testing.T) {
	jobs := newFakeJobRepo()
	gate := make(chan struct{})
	sup := &fakeSupplier{items: rawProducts(5), gate: gate}
	c := newTestController(jobs, newFakeStagingWriter(), sup)

	job, err := c.Start(context.Background(), model.Params{Keyword: "bag", Count: 5}, nil)
	require.NoError(t, err)

	ch, unsubscribe, err := c.Subscribe(context.Background(), job.ID)
	require.NoError(t, err)
	defer unsubscribe()

	close(gate)
	c.Wait()

	var last model.Snapshot
	var got bool
	deadline := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				require.True(t, got, "channel closed without any snapshot")
				require.True(t, last.Terminal(), "last snapshot before close must be terminal")
				assert.Equal(t, model.StatusCompleted, last.State)
				assert.Equal(t, 5, last.Imported)
				return
			}
			last = s
			got = true
		case <-deadline:
			t.Fatal("timed out waiting for terminal snapshot")
		}
	}
}

func TestSubscribeTerminalJobGetsSnapshotAndClose(t *testing.T) {
	jobs := newFakeJobRepo()
	c := newTestController(jobs, newFakeStagingWriter(), &fakeSupplier{items: rawProducts(2)})

	job, err := c.Start(context.Background(), model.Params{Keyword: "bag", Count: 2}, nil)
	require.NoError(t, err)
	c.Wait()

	ch, unsubscribe, err := c.Subscribe(context.Background(), job.ID)
	require.NoError(t, err)
	defer unsubscribe()

	s, ok := <-ch
	require.True(t, ok)
	assert.True(t, s.Terminal())

	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after the terminal snapshot")
}

func TestRecoverStaleJobs(t *testing.T) {
	jobs := newFakeJobRepo()
	products := newFakeStagingWriter()
	sup := &fakeSupplier{items: rawProducts(10)}
	c := newTestController(jobs, products, sup)
	ctx := context.Background()

	// Abandoned: running with an ancient heartbeat.
	stale := &model.ImportJob{Params: model.Params{Keyword: "bag", Count: 10}}
	require.NoError(t, jobs.Create(ctx, stale))
	require.NoError(t, jobs.MarkRunning(ctx, stale.ID))
	old := time.Now().UTC().Add(-10 * time.Minute)
	jobs.mu.Lock()
	jobs.jobs[stale.ID].HeartbeatAt = &old
	jobs.mu.Unlock()

	// Interrupted but fresh: resumed by the sweep.
	fresh := &model.ImportJob{Type: model.TypeKeywordImport, Supplier: "cj", Params: model.Params{Keyword: "bag", Count: 10, BatchSize: 5}}
	require.NoError(t, jobs.Create(ctx, fresh))
	require.NoError(t, jobs.MarkRunning(ctx, fresh.ID))
	require.NoError(t, jobs.SetTotal(ctx, fresh.ID, 10))
	require.NoError(t, jobs.UpdateProgress(ctx, fresh.ID, 5, 5, 0, 50))

	abandoned, resumed, err := c.RecoverStaleJobs(ctx, 2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, abandoned)
	assert.Equal(t, 1, resumed)

	staleFinal, _ := jobs.GetByID(ctx, stale.ID)
	assert.Equal(t, model.StatusFailed, staleFinal.Status)
	assert.Equal(t, "abandoned", staleFinal.Error)

	c.Wait()
	freshFinal, _ := jobs.GetByID(ctx, fresh.ID)
	assert.Equal(t, model.StatusCompleted, freshFinal.Status)
	assert.Equal(t, 10, freshFinal.Processed)
	assert.Equal(t, 10, freshFinal.Imported)
	assert.Equal(t, 0, freshFinal.Failed)
}

func TestResumeDoesNotRecountStagedRecords(t *testing.T) {
	jobs := newFakeJobRepo()
	products := newFakeStagingWriter()
	sup := &fakeSupplier{items: rawProducts(20)}
	c := newTestController(jobs, products, sup)
	ctx := context.Background()

	// Died mid-page: 10 records persisted, but two more rows reached staging
	// before the progress write could land.
	job := &model.ImportJob{Type: model.TypeKeywordImport, Supplier: "cj", Params: model.Params{Keyword: "bag", Count: 20, BatchSize: 20}}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, jobs.MarkRunning(ctx, job.ID))
	require.NoError(t, jobs.SetTotal(ctx, job.ID, 20))
	require.NoError(t, jobs.UpdateProgress(ctx, job.ID, 10, 10, 0, 50))
	for i := 0; i < 12; i++ {
		require.NoError(t, products.InsertStaging(ctx, &productmodel.Product{
			ImportJobID: &job.ID,
			ExternalID:  fmt.Sprintf("cj-%03d", i),
		}))
	}

	_, resumed, err := c.RecoverStaleJobs(ctx, 2*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, resumed)
	c.Wait()

	final, err := jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, final.Status)
	assert.Equal(t, 20, final.Processed)
	assert.Equal(t, 20, final.Imported)
	assert.Equal(t, 0, final.Failed)
	assert.LessOrEqual(t, final.Imported+final.Failed, final.Processed)
	assert.Equal(t, 20, products.count())
}

func TestSubscribeSeesJobFinishingDuringRegistration(t *testing.T) {
	jobs := newFakeJobRepo()
	c := newTestController(jobs, newFakeStagingWriter(), &fakeSupplier{})
	ctx := context.Background()

	job := &model.ImportJob{Params: model.Params{Keyword: "bag", Count: 5}}
	require.NoError(t, jobs.Create(ctx, job))
	require.NoError(t, jobs.MarkRunning(ctx, job.ID))

	// Finish the job between the initial snapshot read and the registration.
	jobs.onGet = func(call int) {
		if call == 2 {
			jobs.mu.Lock()
			jobs.jobs[job.ID].Status = model.StatusCompleted
			jobs.mu.Unlock()
		}
	}

	ch, unsubscribe, err := c.Subscribe(ctx, job.ID)
	require.NoError(t, err)
	defer unsubscribe()

	first, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, model.StatusRunning, first.State)

	second, ok := <-ch
	require.True(t, ok)
	assert.True(t, second.Terminal())

	_, ok = <-ch
	assert.False(t, ok, "channel must be closed after the terminal snapshot")
}
