package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"luxestore-backend/internal/domains/currency/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RateRepository persists exchange rates keyed (base, target).
type RateRepository interface {
	Upsert(ctx context.Context, rates []model.ExchangeRate) error
	Get(ctx context.Context, base, target string) (*model.ExchangeRate, error)
	ListByBase(ctx context.Context, base string) ([]model.ExchangeRate, error)
}

type rateRepository struct {
	pool     *pgxpool.Pool
	rdb      *redis.Client // optional read-through cache; may be nil
	cacheTTL time.Duration
}

func NewRateRepository(pool *pgxpool.Pool, rdb *redis.Client, cacheTTL time.Duration) RateRepository {
	return &rateRepository{pool: pool, rdb: rdb, cacheTTL: cacheTTL}
}

func rateCacheKey(base, target string) string {
	return fmt.Sprintf("fx:%s:%s", base, target)
}

func (r *rateRepository) Upsert(ctx context.Context, rates []model.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rate := range rates {
		batch.Queue(`
			INSERT INTO exchange_rates (base, target, rate, source, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (base, target)
			DO UPDATE SET rate = EXCLUDED.rate, source = EXCLUDED.source, updated_at = EXCLUDED.updated_at`,
			rate.Base, rate.Target, rate.Rate, rate.Source, rate.UpdatedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rates {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert exchange rate: %w", err)
		}
	}

	// Overwrite cached entries so readers see the new rates immediately.
	if r.rdb != nil {
		for _, rate := range rates {
			if payload, err := json.Marshal(rate); err == nil {
				if err := r.rdb.Set(ctx, rateCacheKey(rate.Base, rate.Target), payload, r.cacheTTL).Err(); err != nil {
					log.Debug().Err(err).Msg("Failed to cache exchange rate")
				}
			}
		}
	}

	return nil
}

func (r *rateRepository) Get(ctx context.Context, base, target string) (*model.ExchangeRate, error) {
	if r.rdb != nil {
		if payload, err := r.rdb.Get(ctx, rateCacheKey(base, target)).Bytes(); err == nil {
			var rate model.ExchangeRate
			if err := json.Unmarshal(payload, &rate); err == nil {
				return &rate, nil
			}
		}
	}

	var rate model.ExchangeRate
	err := r.pool.QueryRow(ctx, `
		SELECT base, target, rate, source, updated_at
		FROM exchange_rates
		WHERE base = $1 AND target = $2`,
		base, target,
	).Scan(&rate.Base, &rate.Target, &rate.Rate, &rate.Source, &rate.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrRateNotFound
		}
		return nil, fmt.Errorf("failed to load exchange rate: %w", err)
	}

	if r.rdb != nil {
		if payload, err := json.Marshal(rate); err == nil {
			if err := r.rdb.Set(ctx, rateCacheKey(base, target), payload, r.cacheTTL).Err(); err != nil {
				log.Debug().Err(err).Msg("Failed to cache exchange rate")
			}
		}
	}

	return &rate, nil
}

func (r *rateRepository) ListByBase(ctx context.Context, base string) ([]model.ExchangeRate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT base, target, rate, source, updated_at
		FROM exchange_rates
		WHERE base = $1
		ORDER BY target`,
		base,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchange rates: %w", err)
	}
	defer rows.Close()

	var rates []model.ExchangeRate
	for rows.Next() {
		var rate model.ExchangeRate
		if err := rows.Scan(&rate.Base, &rate.Target, &rate.Rate, &rate.Source, &rate.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange rate: %w", err)
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}
