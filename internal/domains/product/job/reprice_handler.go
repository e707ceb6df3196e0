package job

import (
	"context"

	"luxestore-backend/internal/domains/product/service"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// NewRepriceHandler returns the daily live-catalog repricing handler.
func NewRepriceHandler(svc *service.RepriceService) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, _ *asynq.Task) error {
		log.Info().Msg("Repricing live catalog")
		updated, failed, err := svc.RepriceLive(ctx)
		if err != nil {
			log.Error().Err(err).Int("updated", updated).Int("failed", failed).Msg("Repricing run failed")
			return err
		}
		return nil
	}
}
