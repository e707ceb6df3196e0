package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"luxestore-backend/internal/domains/importer/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const jobColumns = `
	id, type, supplier, params, user_id, status, total, processed, imported,
	failed, percent, result, error, heartbeat_at, created_at, started_at,
	completed_at`

// notTerminal guards every progress write: completed and failed rows are
// immutable.
const notTerminal = `status NOT IN ('completed', 'failed')`

// maxErrorLen caps the persisted failure message.
const maxErrorLen = 500

func truncateError(message string) string {
	if len(message) > maxErrorLen {
		return message[:maxErrorLen]
	}
	return message
}

// JobRepository persists import jobs and their progress.
type JobRepository interface {
	Create(ctx context.Context, job *model.ImportJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ImportJob, error)
	List(ctx context.Context, status string, limit int) ([]model.ImportJob, error)
	MarkRunning(ctx context.Context, id uuid.UUID) error
	SetTotal(ctx context.Context, id uuid.UUID, total int) error
	UpdateProgress(ctx context.Context, id uuid.UUID, processed, imported, failed int, percent float64) error
	MarkCompleted(ctx context.Context, id uuid.UUID, result *model.Result) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	Heartbeat(ctx context.Context, id uuid.UUID) error
	FindRunning(ctx context.Context) ([]model.ImportJob, error)
}

type jobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) JobRepository {
	return &jobRepository{pool: pool}
}

func scanJob(row pgx.Row) (*model.ImportJob, error) {
	var (
		j        model.ImportJob
		errField *string
	)
	err := row.Scan(
		&j.ID, &j.Type, &j.Supplier, &j.Params, &j.UserID, &j.Status, &j.Total,
		&j.Processed, &j.Imported, &j.Failed, &j.Percent, &j.Result, &errField,
		&j.HeartbeatAt, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to scan import job: %w", err)
	}
	if errField != nil {
		j.Error = *errField
	}
	return &j, nil
}

func (r *jobRepository) Create(ctx context.Context, job *model.ImportJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = model.StatusPending
	job.CreatedAt = time.Now().UTC()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO import_jobs (id, type, supplier, params, user_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.Type, job.Supplier, job.Params, job.UserID, job.Status, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ImportJob, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (r *jobRepository) List(ctx context.Context, status string, limit int) ([]model.ImportJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `SELECT ` + jobColumns + ` FROM import_jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.ImportJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// guardedExec runs a write restricted to non-terminal rows and translates a
// zero-row result into ErrJobFinalized or ErrJobNotFound.
func (r *jobRepository) guardedExec(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update import job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return model.ErrJobFinalized
}

func (r *jobRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.guardedExec(ctx, id, `
		UPDATE import_jobs
		SET status = 'running', started_at = COALESCE(started_at, $2), heartbeat_at = $2, error = NULL
		WHERE id = $1 AND `+notTerminal,
		id, now,
	)
}

func (r *jobRepository) SetTotal(ctx context.Context, id uuid.UUID, total int) error {
	return r.guardedExec(ctx, id, `
		UPDATE import_jobs SET total = $2
		WHERE id = $1 AND `+notTerminal,
		id, total,
	)
}

// UpdateProgress writes the counters. The processed counter may never move
// backwards; a write that would regress it is rejected so the misbehaving
// worker fails loudly instead of corrupting the row.
func (r *jobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, processed, imported, failed int, percent float64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE import_jobs
		SET processed = $2, imported = $3, failed = $4, percent = $5, heartbeat_at = $6
		WHERE id = $1 AND processed <= $2 AND `+notTerminal,
		id, processed, imported, failed, percent, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update import job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	job, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.Terminal() {
		return model.ErrJobFinalized
	}
	return fmt.Errorf("import job %s: processed counter regression %d -> %d", id, job.Processed, processed)
}

func (r *jobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, result *model.Result) error {
	return r.guardedExec(ctx, id, `
		UPDATE import_jobs
		SET status = 'completed', result = $2, percent = 100, completed_at = $3
		WHERE id = $1 AND `+notTerminal,
		id, result, time.Now().UTC(),
	)
}

func (r *jobRepository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	return r.guardedExec(ctx, id, `
		UPDATE import_jobs
		SET status = 'failed', error = $2, completed_at = $3
		WHERE id = $1 AND `+notTerminal,
		id, truncateError(message), time.Now().UTC(),
	)
}

func (r *jobRepository) Heartbeat(ctx context.Context, id uuid.UUID) error {
	return r.guardedExec(ctx, id, `
		UPDATE import_jobs SET heartbeat_at = $2
		WHERE id = $1 AND `+notTerminal,
		id, time.Now().UTC(),
	)
}

func (r *jobRepository) FindRunning(ctx context.Context) ([]model.ImportJob, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM import_jobs WHERE status = 'running' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to find running jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.ImportJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}
