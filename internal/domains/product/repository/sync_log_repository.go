package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SyncLogRepository appends audit rows for catalog mutations.
type SyncLogRepository interface {
	Insert(ctx context.Context, action, actor string, details map[string]any) error
}

type syncLogRepository struct {
	pool *pgxpool.Pool
}

func NewSyncLogRepository(pool *pgxpool.Pool) SyncLogRepository {
	return &syncLogRepository{pool: pool}
}

func (r *syncLogRepository) Insert(ctx context.Context, action, actor string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sync_logs (id, action, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), action, actor, details, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync log: %w", err)
	}
	return nil
}
