package job

import (
	"context"

	"luxestore-backend/internal/domains/currency/service"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// NewFxRefreshHandler returns the hourly exchange-rate refresh handler.
func NewFxRefreshHandler(svc *service.CurrencyService) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, _ *asynq.Task) error {
		log.Info().Msg("Refreshing exchange rates")
		if err := svc.Refresh(ctx); err != nil {
			log.Error().Err(err).Msg("Exchange rate refresh failed")
			return err
		}
		return nil
	}
}
