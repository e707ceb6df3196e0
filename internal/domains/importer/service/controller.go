package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"luxestore-backend/internal/domains/importer/model"
	"luxestore-backend/internal/domains/importer/repository"
	"luxestore-backend/internal/infrastructure/metrics"
	"luxestore-backend/internal/infrastructure/supplier"
	"luxestore-backend/internal/shared"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxImportCount = 1000

// Controller owns the import job lifecycle: creation, background execution,
// progress fan-out to subscribers, cancellation and crash recovery.
type Controller struct {
	jobs     repository.JobRepository
	importer *BatchImporter

	mu          sync.Mutex
	subscribers map[uuid.UUID][]chan model.Snapshot
	cancels     map[uuid.UUID]context.CancelFunc
	wg          sync.WaitGroup
}

func NewController(jobs repository.JobRepository, importer *BatchImporter) *Controller {
	c := &Controller{
		jobs:        jobs,
		importer:    importer,
		subscribers: make(map[uuid.UUID][]chan model.Snapshot),
		cancels:     make(map[uuid.UUID]context.CancelFunc),
	}
	importer.SetNotifier(c.broadcast)
	return c
}

// Start validates the parameters, persists a pending job and launches it in
// the background. The created job is returned immediately.
func (c *Controller) Start(ctx context.Context, params model.Params, userID *uuid.UUID) (*model.ImportJob, error) {
	params.Keyword = strings.TrimSpace(params.Keyword)
	if params.Keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", model.ErrInvalidParams)
	}
	if params.Count <= 0 || params.Count > maxImportCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", model.ErrInvalidParams, maxImportCount)
	}
	if params.BatchSize < 0 || params.BatchSize > supplier.MaxPageSize {
		return nil, fmt.Errorf("%w: batch_size must be between 0 and %d", model.ErrInvalidParams, supplier.MaxPageSize)
	}

	job := &model.ImportJob{
		Type:     model.TypeKeywordImport,
		Supplier: shared.SourceCJ,
		Params:   params,
		UserID:   userID,
	}
	if err := c.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	c.spawn(job)
	return job, nil
}

func (c *Controller) spawn(job *model.ImportJob) {
	runCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.cancels[job.ID] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.cancels, job.ID)
			c.mu.Unlock()
			cancel()
		}()
		c.importer.Run(runCtx, job)
	}()
}

func (c *Controller) Get(ctx context.Context, id uuid.UUID) (*model.ImportJob, error) {
	return c.jobs.GetByID(ctx, id)
}

func (c *Controller) List(ctx context.Context, status string, limit int) ([]model.ImportJob, error) {
	return c.jobs.List(ctx, status, limit)
}

// Cancel stops a running job. The terminal write happens in the worker
// goroutine when it observes the cancelled context; for jobs owned by another
// process the row is failed directly and the guard stops that worker's next
// progress write.
func (c *Controller) Cancel(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	cancel, owned := c.cancels[id]
	c.mu.Unlock()

	if owned {
		cancel()
		return nil
	}

	job, err := c.jobs.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return model.ErrJobFinalized
	}
	return c.jobs.MarkFailed(ctx, id, "cancelled")
}

// Subscribe returns a channel of progress snapshots for one job, starting
// with the current database state. The channel is closed after a terminal
// snapshot. Slow consumers are coalesced: the latest snapshot wins.
func (c *Controller) Subscribe(ctx context.Context, id uuid.UUID) (<-chan model.Snapshot, func(), error) {
	job, err := c.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan model.Snapshot, 16)
	ch <- job.Snapshot()

	if job.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	c.mu.Lock()
	c.subscribers[id] = append(c.subscribers[id], ch)
	c.mu.Unlock()

	// The job can reach a terminal state between the snapshot read above and
	// the registration; re-check so the terminal event is never missed.
	if current, gerr := c.jobs.GetByID(ctx, id); gerr == nil && current.Terminal() {
		if c.removeSubscriber(id, ch) {
			ch <- current.Snapshot()
			close(ch)
		}
		return ch, func() {}, nil
	}

	unsubscribe := func() { c.removeSubscriber(id, ch) }
	return ch, unsubscribe, nil
}

// removeSubscriber detaches ch and reports whether it was still registered;
// false means a terminal broadcast already closed it.
func (c *Controller) removeSubscriber(id uuid.UUID, ch chan model.Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := c.subscribers[id]
	for i, sub := range subs {
		if sub == ch {
			c.subscribers[id] = append(subs[:i], subs[i+1:]...)
			if len(c.subscribers[id]) == 0 {
				delete(c.subscribers, id)
			}
			return true
		}
	}
	return false
}

func (c *Controller) broadcast(s model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range c.subscribers[s.JobID] {
		select {
		case ch <- s:
		default:
			// Full buffer: drop the oldest pending snapshot so the newest
			// one gets through.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}

	if s.Terminal() {
		for _, ch := range c.subscribers[s.JobID] {
			close(ch)
		}
		delete(c.subscribers, s.JobID)
	}
}

// RecoverStaleJobs sweeps rows left running by a previous process: a
// heartbeat older than staleAfter means the worker died mid-run, so the row
// is failed as abandoned; fresher rows are resumed in this process.
func (c *Controller) RecoverStaleJobs(ctx context.Context, staleAfter time.Duration) (abandoned, resumed int, err error) {
	running, err := c.jobs.FindRunning(ctx)
	if err != nil {
		return 0, 0, err
	}

	now := time.Now().UTC()
	for i := range running {
		job := running[i]

		c.mu.Lock()
		_, owned := c.cancels[job.ID]
		c.mu.Unlock()
		if owned {
			continue
		}

		if job.HeartbeatAt == nil || now.Sub(*job.HeartbeatAt) > staleAfter {
			if markErr := c.jobs.MarkFailed(ctx, job.ID, "abandoned"); markErr != nil {
				if errors.Is(markErr, model.ErrJobFinalized) {
					continue
				}
				return abandoned, resumed, markErr
			}
			metrics.ImportJobs.WithLabelValues(model.StatusFailed).Inc()
			log.Warn().Str("job_id", job.ID.String()).Msg("Abandoned import job marked failed")
			abandoned++
			continue
		}

		log.Info().Str("job_id", job.ID.String()).Msg("Resuming interrupted import job")
		resumedJob := job
		c.spawn(&resumedJob)
		resumed++
	}
	return abandoned, resumed, nil
}

// Wait blocks until every spawned job goroutine has returned. Used during
// graceful shutdown.
func (c *Controller) Wait() {
	c.wg.Wait()
}
