package job

import (
	"context"

	"luxestore-backend/internal/domains/product/service"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// NewInventorySyncHandler returns the periodic stock refresh handler.
func NewInventorySyncHandler(svc *service.InventoryService) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, _ *asynq.Task) error {
		log.Info().Msg("Syncing inventory from supplier")
		updated, failed, err := svc.SyncInventory(ctx)
		if err != nil {
			log.Error().Err(err).Int("updated", updated).Int("failed", failed).Msg("Inventory sync failed")
			return err
		}
		return nil
	}
}
