package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// TaskLogger writes one scheduled_task_logs row per handler run.
type TaskLogger struct {
	pool *pgxpool.Pool
}

func NewTaskLogger(pool *pgxpool.Pool) *TaskLogger {
	return &TaskLogger{pool: pool}
}

func (l *TaskLogger) record(taskType, status, detail string, startedAt, finishedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := l.pool.Exec(ctx, `
		INSERT INTO scheduled_task_logs (id, task_type, status, detail, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), taskType, status, detail, startedAt, finishedAt,
	)
	if err != nil {
		log.Error().Err(err).Str("task", taskType).Msg("Failed to write scheduled task log")
	}
}

// Wrap decorates a handler so every run leaves an audit row, success or not.
func (l *TaskLogger) Wrap(handler func(context.Context, *asynq.Task) error) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		startedAt := time.Now().UTC()
		err := handler(ctx, task)
		finishedAt := time.Now().UTC()

		if err != nil {
			l.record(task.Type(), "failed", err.Error(), startedAt, finishedAt)
			return err
		}
		l.record(task.Type(), "completed", "", startedAt, finishedAt)
		return nil
	}
}
