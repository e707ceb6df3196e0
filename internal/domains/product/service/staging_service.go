package service

import (
	"context"
	"fmt"
	"time"

	"luxestore-backend/internal/domains/product/model"
	"luxestore-backend/internal/domains/product/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// StagingService manages imported products awaiting review and their
// promotion to the live catalog.
type StagingService struct {
	products repository.ProductRepository
	audit    repository.SyncLogRepository
}

func NewStagingService(products repository.ProductRepository, audit repository.SyncLogRepository) *StagingService {
	return &StagingService{products: products, audit: audit}
}

func (s *StagingService) ListStaging(ctx context.Context, filter model.ListFilter) ([]model.Product, int, error) {
	return s.products.ListStaging(ctx, filter)
}

func (s *StagingService) ListLive(ctx context.Context, filter model.ListFilter) ([]model.Product, int, error) {
	return s.products.ListLive(ctx, filter)
}

func (s *StagingService) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return s.products.GetByID(ctx, id)
}

// UpdateStaging applies an edit to a staging row. Only the whitelisted
// fields can change; everything else is repository-enforced read-only.
func (s *StagingService) UpdateStaging(ctx context.Context, id uuid.UUID, update model.StagingUpdate) (*model.Product, error) {
	return s.products.UpdateStaging(ctx, id, update)
}

// Publish promotes staging rows to the live catalog. Idempotent: republishing
// a live product is counted as published. An audit row records who published
// what.
func (s *StagingService) Publish(ctx context.Context, ids []uuid.UUID, actor string) (*model.PublishResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids are required", model.ErrNoFieldsToUpdate)
	}

	result, err := s.products.Publish(ctx, ids)
	if err != nil {
		return nil, err
	}

	idStrings := make([]string, 0, len(ids))
	for _, id := range ids {
		idStrings = append(idStrings, id.String())
	}
	if err := s.audit.Insert(ctx, "publish", actor, map[string]any{
		"ids":       idStrings,
		"published": result.Published,
		"failed":    result.Failed,
		"at":        time.Now().UTC(),
	}); err != nil {
		// The publish itself succeeded; a missing audit row is logged, not fatal.
		log.Error().Err(err).Msg("Failed to write publish audit log")
	}

	log.Info().Int("published", result.Published).Int("failed", len(result.Failed)).
		Str("actor", actor).Msg("Staging products published")
	return result, nil
}

var exportHeader = []string{
	"ID", "External ID", "Name", "Name (AR)", "Category", "SKU",
	"Supplier Price", "Price", "Stock", "Weight (kg)", "Created At",
}

// ExportStaging renders the staging list as an XLSX workbook.
func (s *StagingService) ExportStaging(ctx context.Context, filter model.ListFilter) ([]byte, error) {
	filter.Limit = 100
	filter.Offset = 0

	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Staging"
	f.SetSheetName(f.GetSheetName(0), sheet)

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}

	row := 2
	for {
		products, _, err := s.products.ListStaging(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(products) == 0 {
			break
		}

		for _, p := range products {
			supplierPrice := ""
			if p.SupplierPrice != nil {
				supplierPrice = p.SupplierPrice.StringFixedBank(2)
			}
			values := []any{
				p.ID.String(), p.ExternalID, p.Name, p.NameAr, p.Category, p.SKU,
				supplierPrice, p.Price.StringFixedBank(2), p.Stock, p.WeightKg,
				p.CreatedAt.UTC().Format(time.RFC3339),
			}
			for col, value := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, row)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheet, cell, value); err != nil {
					return nil, err
				}
			}
			row++
		}

		if len(products) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to build staging export: %w", err)
	}
	return buf.Bytes(), nil
}
