package service

import (
	"context"
	"errors"

	"luxestore-backend/internal/domains/product/repository"
	"luxestore-backend/internal/infrastructure/supplier"
	"luxestore-backend/internal/shared"

	"github.com/rs/zerolog/log"
)

// InventoryService refreshes stock levels for live supplier products. Sync
// failures never unpublish anything; they only surface in logs and counters.
type InventoryService struct {
	products repository.ProductRepository
	supplier supplier.Client
}

func NewInventoryService(products repository.ProductRepository, supplierClient supplier.Client) *InventoryService {
	return &InventoryService{products: products, supplier: supplierClient}
}

// SyncInventory pulls current stock for each live CJ product.
func (s *InventoryService) SyncInventory(ctx context.Context) (updated, failed int, err error) {
	products, err := s.products.ListLiveBySource(ctx, shared.SourceCJ)
	if err != nil {
		return 0, 0, err
	}

	for i := range products {
		p := &products[i]
		if err := ctx.Err(); err != nil {
			return updated, failed, err
		}

		details, detailErr := s.supplier.GetProductDetails(ctx, p.ExternalID)
		if detailErr != nil {
			failed++
			log.Warn().Err(detailErr).Str("external_id", p.ExternalID).Msg("Inventory lookup failed")
			var transient *supplier.TransientError
			if errors.As(detailErr, &transient) {
				// The supplier is struggling; stop instead of hammering it.
				return updated, failed, detailErr
			}
			continue
		}

		if details.Stock == p.Stock && (details.Stock > 0) == p.InStock {
			continue
		}
		if updateErr := s.products.UpdateStock(ctx, p.ID, details.Stock, details.Stock > 0); updateErr != nil {
			failed++
			log.Warn().Err(updateErr).Str("product_id", p.ID.String()).Msg("Failed to store stock update")
			continue
		}
		updated++
	}

	log.Info().Int("updated", updated).Int("failed", failed).Int("scanned", len(products)).
		Msg("Inventory synced")
	return updated, failed, nil
}
