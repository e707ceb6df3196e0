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

// TaskRepository persists file-based bulk import tasks.
type TaskRepository interface {
	Create(ctx context.Context, task *model.BulkImportTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.BulkImportTask, error)
	List(ctx context.Context, limit int) ([]model.BulkImportTask, error)
	FindDue(ctx context.Context, now time.Time) ([]model.BulkImportTask, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, errMessage string) error
}

type taskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

const taskColumns = `id, source, file_key, status, scheduled_at, error, created_at, processed_at`

func scanTask(row pgx.Row) (*model.BulkImportTask, error) {
	var (
		t        model.BulkImportTask
		errField *string
	)
	err := row.Scan(&t.ID, &t.Source, &t.FileKey, &t.Status, &t.ScheduledAt,
		&errField, &t.CreatedAt, &t.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to scan bulk import task: %w", err)
	}
	if errField != nil {
		t.Error = *errField
	}
	return &t, nil
}

func (r *taskRepository) Create(ctx context.Context, task *model.BulkImportTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Source == "" {
		task.Source = "cj"
	}
	task.Status = model.StatusPending
	task.CreatedAt = time.Now().UTC()
	if task.ScheduledAt.IsZero() {
		task.ScheduledAt = task.CreatedAt
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO bulk_import_tasks (id, source, file_key, status, scheduled_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		task.ID, task.Source, task.FileKey, task.Status, task.ScheduledAt, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bulk import task: %w", err)
	}
	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.BulkImportTask, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM bulk_import_tasks WHERE id = $1`, id)
	return scanTask(row)
}

func (r *taskRepository) List(ctx context.Context, limit int) ([]model.BulkImportTask, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM bulk_import_tasks ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bulk import tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.BulkImportTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) FindDue(ctx context.Context, now time.Time) ([]model.BulkImportTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM bulk_import_tasks
		WHERE status = 'pending' AND scheduled_at <= $1
		ORDER BY scheduled_at`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find due bulk import tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.BulkImportTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) MarkProcessed(ctx context.Context, id uuid.UUID, errMessage string) error {
	status := model.StatusCompleted
	var errField *string
	if errMessage != "" {
		status = model.StatusFailed
		errField = &errMessage
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE bulk_import_tasks
		SET status = $2, error = $3, processed_at = $4
		WHERE id = $1`,
		id, status, errField, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark bulk import task processed: %w", err)
	}
	return nil
}
