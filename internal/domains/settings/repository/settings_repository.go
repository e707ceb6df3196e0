package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"luxestore-backend/internal/domains/settings/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsRepository persists singleton configuration rows keyed by type.
type SettingsRepository interface {
	Get(ctx context.Context, settingsType string) (*model.Settings, error)
	Merge(ctx context.Context, settingsType string, patch map[string]any) error
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) Get(ctx context.Context, settingsType string) (*model.Settings, error) {
	s := model.Settings{Type: settingsType}
	err := r.pool.QueryRow(ctx,
		`SELECT data, updated_at FROM settings WHERE type = $1`, settingsType,
	).Scan(&s.Data, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrSettingsNotFound
		}
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return &s, nil
}

// Merge upserts the row and shallow-merges patch into the stored JSON, so a
// partial update never wipes the other keys.
func (r *settingsRepository) Merge(ctx context.Context, settingsType string, patch map[string]any) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO settings (type, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (type)
		DO UPDATE SET data = settings.data || EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		settingsType, patch, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to merge settings: %w", err)
	}
	return nil
}
