package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"luxestore-backend/internal/config"
	"luxestore-backend/internal/domains/importer/model"
	"luxestore-backend/internal/domains/importer/repository"
	"luxestore-backend/internal/domains/pricing"
	productmodel "luxestore-backend/internal/domains/product/model"
	"luxestore-backend/internal/infrastructure/metrics"
	"luxestore-backend/internal/infrastructure/supplier"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// persistEvery is how many records may be processed between progress writes.
const persistEvery = 10

const defaultPageSize = 20

var errCancelled = errors.New("cancelled")

// RateSource provides a point-in-time FX view for pricing staged products.
// The currency service satisfies it.
type RateSource interface {
	Snapshot(ctx context.Context) pricing.RateProvider
}

// StagingWriter inserts staging rows. The product repository satisfies it.
type StagingWriter interface {
	InsertStaging(ctx context.Context, p *productmodel.Product) error
}

// BatchImporter runs one import job to completion: paged supplier fetch,
// pricing, staging insert, durable progress.
type BatchImporter struct {
	jobs     repository.JobRepository
	products StagingWriter
	supplier supplier.Client
	engine   *pricing.Engine
	rates    RateSource
	cfg      config.ImporterConfig
	shipTo   string
	notify   func(model.Snapshot)
}

func NewBatchImporter(
	jobs repository.JobRepository,
	products StagingWriter,
	supplierClient supplier.Client,
	engine *pricing.Engine,
	rates RateSource,
	cfg config.ImporterConfig,
	shipTo string,
) *BatchImporter {
	return &BatchImporter{
		jobs:     jobs,
		products: products,
		supplier: supplierClient,
		engine:   engine,
		rates:    rates,
		cfg:      cfg,
		shipTo:   shipTo,
	}
}

// SetNotifier registers the progress callback. The controller uses it to fan
// snapshots out to stream subscribers.
func (b *BatchImporter) SetNotifier(fn func(model.Snapshot)) {
	b.notify = fn
}

func (b *BatchImporter) emit(job *model.ImportJob) {
	if b.notify != nil {
		b.notify(job.Snapshot())
	}
}

// Run executes the job until it reaches a terminal state. ctx cancellation
// stops the job and records it as failed with reason "cancelled"; persistence
// uses a detached context so terminal writes survive the cancel.
func (b *BatchImporter) Run(ctx context.Context, job *model.ImportJob) {
	logger := log.With().
		Str("job_id", job.ID.String()).
		Str("keyword", job.Params.Keyword).
		Logger()

	persistCtx := context.WithoutCancel(ctx)
	startedAt := time.Now()

	if err := b.jobs.MarkRunning(persistCtx, job.ID); err != nil {
		logger.Error().Err(err).Msg("Failed to mark import job running")
		return
	}
	job.Status = model.StatusRunning
	logger.Info().Int("count", job.Params.Count).Msg("Import job started")
	b.emit(job)

	hbCtx, stopHeartbeat := context.WithCancel(persistCtx)
	defer stopHeartbeat()
	go b.heartbeatLoop(hbCtx, job, logger)

	err := b.run(ctx, persistCtx, job, logger)
	switch {
	case err == nil:
		metrics.ImportJobs.WithLabelValues(model.StatusCompleted).Inc()
		metrics.ImportJobDuration.Observe(time.Since(startedAt).Seconds())
		logger.Info().
			Int("imported", job.Imported).
			Int("failed", job.Failed).
			Msg("Import job completed")
	case errors.Is(err, model.ErrJobFinalized):
		// Finalized from outside (cancel or recovery); nothing left to write.
		logger.Warn().Msg("Import job finalized externally, stopping")
	default:
		b.fail(persistCtx, job, err.Error(), logger)
	}
}

func (b *BatchImporter) fail(ctx context.Context, job *model.ImportJob, reason string, logger zerolog.Logger) {
	if err := b.jobs.MarkFailed(ctx, job.ID, reason); err != nil {
		logger.Error().Err(err).Msg("Failed to mark import job failed")
		if errors.Is(err, model.ErrJobFinalized) {
			return
		}
	}
	job.Status = model.StatusFailed
	job.Error = reason
	metrics.ImportJobs.WithLabelValues(model.StatusFailed).Inc()
	logger.Warn().Str("reason", reason).Msg("Import job failed")
	b.emit(job)
}

func (b *BatchImporter) heartbeatLoop(ctx context.Context, job *model.ImportJob, logger zerolog.Logger) {
	interval := b.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.jobs.Heartbeat(ctx, job.ID); err != nil {
				if errors.Is(err, model.ErrJobFinalized) || errors.Is(err, model.ErrJobNotFound) {
					return
				}
				logger.Warn().Err(err).Msg("Heartbeat write failed")
			}
		}
	}
}

func (b *BatchImporter) run(ctx, persistCtx context.Context, job *model.ImportJob, logger zerolog.Logger) error {
	pageSize := job.Params.BatchSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > supplier.MaxPageSize {
		pageSize = supplier.MaxPageSize
	}

	var rates pricing.RateProvider
	if b.rates != nil {
		rates = b.rates.Snapshot(ctx)
	}

	page := 1
	resumeSkip := 0
	dupStagedBefore := 0
	if job.Processed > 0 {
		// Resume: records already counted in the persisted progress are
		// skipped outright. Rows of the in-flight page may exist in staging
		// from inserts that never reached a progress write, so a duplicate
		// there means the record was imported before the restart.
		page = job.Processed/pageSize + 1
		resumeSkip = job.Processed - (page-1)*pageSize
		dupStagedBefore = page * pageSize
		logger.Info().Int("page", page).Int("processed", job.Processed).Msg("Resuming import job")
	}

	var samples []model.SampleProduct
	if job.Result != nil {
		samples = job.Result.SampleProducts
	}

	prevProcessed := job.Processed
	lastPersisted := job.Processed

	for {
		if ctx.Err() != nil {
			return errCancelled
		}

		productPage, err := b.supplier.ListProducts(ctx, page, pageSize, job.Params.Keyword)
		if err != nil {
			if ctx.Err() != nil {
				return errCancelled
			}
			return fmt.Errorf("supplier listing failed: %w", err)
		}

		if job.Total == 0 {
			total := job.Params.Count
			if productPage.Total < total {
				total = productPage.Total
			}
			job.Total = total
			if err := b.jobs.SetTotal(persistCtx, job.ID, total); err != nil {
				return err
			}
		}

		remaining := job.Total - job.Processed
		if remaining <= 0 {
			break
		}
		items := productPage.Items
		if resumeSkip > 0 {
			if resumeSkip >= len(items) {
				items = nil
			} else {
				items = items[resumeSkip:]
			}
			resumeSkip = 0
		}
		if len(items) > remaining {
			items = items[:remaining]
		}
		if len(items) == 0 {
			// Supplier ran dry before reaching the requested count.
			job.Total = job.Processed
			break
		}

		for _, item := range items {
			if ctx.Err() != nil {
				if err := b.persistProgress(persistCtx, job); err != nil {
					return err
				}
				return errCancelled
			}

			b.importOne(persistCtx, job, item, rates, &samples, job.Processed < dupStagedBefore, logger)

			job.Processed++
			if job.Processed <= prevProcessed {
				panic(fmt.Sprintf("import job %s: processed counter went backwards (%d -> %d)",
					job.ID, prevProcessed, job.Processed))
			}
			prevProcessed = job.Processed
			job.Percent = progressPercent(job.Processed, job.Total)

			if job.Processed-lastPersisted >= persistEvery {
				if err := b.persistProgress(persistCtx, job); err != nil {
					return err
				}
				lastPersisted = job.Processed
			}
		}

		if err := b.persistProgress(persistCtx, job); err != nil {
			return err
		}
		lastPersisted = job.Processed

		if job.Processed >= job.Total {
			break
		}
		page++

		select {
		case <-ctx.Done():
			return errCancelled
		case <-time.After(b.cfg.PauseBetweenBatches):
		}
	}

	result := &model.Result{
		TotalFound:     job.Total,
		Imported:       job.Imported,
		Failed:         job.Failed,
		SampleProducts: samples,
	}
	if err := b.jobs.MarkCompleted(persistCtx, job.ID, result); err != nil {
		return err
	}
	job.Status = model.StatusCompleted
	job.Percent = 100
	job.Result = result
	b.emit(job)
	return nil
}

// importOne prices and stages one record. resumed marks records of the page
// that was in flight when a previous process died: their rows may already be
// staged, so a duplicate collision counts as imported rather than failed.
func (b *BatchImporter) importOne(
	ctx context.Context,
	job *model.ImportJob,
	item supplier.RawProduct,
	rates pricing.RateProvider,
	samples *[]model.SampleProduct,
	resumed bool,
	logger zerolog.Logger,
) {
	breakdown, err := b.engine.Price(pricing.Input{
		BaseCost:         item.SellPrice,
		SupplierShipping: item.ShippingPrice,
		CountryCode:      b.shipTo,
		WeightKg:         item.WeightKg,
	}, rates)
	if err != nil {
		job.Failed++
		logger.Warn().Err(err).Str("external_id", item.ExternalID).Msg("Pricing failed for product")
		return
	}

	jobID := job.ID
	sellPrice := item.SellPrice
	shippingPrice := item.ShippingPrice
	p := &productmodel.Product{
		Source:                job.Supplier,
		ExternalID:            item.ExternalID,
		ImportJobID:           &jobID,
		Name:                  item.Name,
		NameAr:                item.NameAr,
		Description:           item.Description,
		Images:                item.Images,
		SKU:                   item.SKU,
		Category:              item.Category,
		WeightKg:              item.WeightKg,
		Stock:                 item.Stock,
		InStock:               item.Stock > 0,
		SupplierPrice:         &sellPrice,
		SupplierShipping:      &shippingPrice,
		Price:                 breakdown.FinalSAR,
		PriceBreakdown:        breakdown,
		PricingAutoCalculated: true,
	}

	if err := b.products.InsertStaging(ctx, p); err != nil {
		if errors.Is(err, productmodel.ErrDuplicateInJob) {
			if resumed {
				// Staged before the restart; the progress write never landed.
				job.Imported++
				logger.Debug().Str("external_id", item.ExternalID).Msg("Product already staged before restart")
				return
			}
			job.Failed++
			logger.Debug().Str("external_id", item.ExternalID).Msg("Skipping duplicate product")
			return
		}
		job.Failed++
		logger.Warn().Err(err).Str("external_id", item.ExternalID).Msg("Failed to insert staging product")
		return
	}

	job.Imported++
	metrics.ImportedProducts.Inc()
	if len(*samples) < model.MaxSampleProducts {
		*samples = append(*samples, model.SampleProduct{
			ID:    p.ID.String(),
			Name:  p.Name,
			Price: p.Price,
		})
	}
}

func (b *BatchImporter) persistProgress(ctx context.Context, job *model.ImportJob) error {
	err := b.jobs.UpdateProgress(ctx, job.ID, job.Processed, job.Imported, job.Failed, job.Percent)
	if err != nil {
		return err
	}
	b.emit(job)
	return nil
}

func progressPercent(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(processed) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
