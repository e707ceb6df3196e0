package service

import (
	"context"

	"luxestore-backend/internal/domains/pricing"
	"luxestore-backend/internal/domains/product/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RateSource provides a point-in-time FX view. The currency service
// satisfies it.
type RateSource interface {
	Snapshot(ctx context.Context) pricing.RateProvider
}

// RepriceService recomputes live catalog prices from current supplier costs
// and exchange rates. Rows with manually edited prices
// (pricing_auto_calculated = false) are left alone.
type RepriceService struct {
	products repository.ProductRepository
	engine   *pricing.Engine
	rates    RateSource
	shipTo   string
}

func NewRepriceService(products repository.ProductRepository, engine *pricing.Engine, rates RateSource, shipTo string) *RepriceService {
	return &RepriceService{products: products, engine: engine, rates: rates, shipTo: shipTo}
}

// RepriceLive walks every auto-priced live product and refreshes its price.
func (s *RepriceService) RepriceLive(ctx context.Context) (updated, failed int, err error) {
	products, err := s.products.ListLiveForRepricing(ctx)
	if err != nil {
		return 0, 0, err
	}

	var rates pricing.RateProvider
	if s.rates != nil {
		rates = s.rates.Snapshot(ctx)
	}

	for i := range products {
		p := &products[i]
		if err := ctx.Err(); err != nil {
			return updated, failed, err
		}

		shipping := decimal.Zero
		if p.SupplierShipping != nil {
			shipping = *p.SupplierShipping
		}

		breakdown, priceErr := s.engine.Price(pricing.Input{
			BaseCost:         *p.SupplierPrice,
			SupplierShipping: shipping,
			CountryCode:      s.shipTo,
			WeightKg:         p.WeightKg,
		}, rates)
		if priceErr != nil {
			failed++
			log.Warn().Err(priceErr).Str("product_id", p.ID.String()).Msg("Repricing failed for product")
			continue
		}

		if breakdown.FinalSAR.Equal(p.Price) {
			continue
		}

		previous := p.Price
		if updateErr := s.products.UpdatePricing(ctx, p.ID, breakdown.FinalSAR, &previous, breakdown); updateErr != nil {
			failed++
			log.Warn().Err(updateErr).Str("product_id", p.ID.String()).Msg("Failed to store new price")
			continue
		}
		updated++
	}

	log.Info().Int("updated", updated).Int("failed", failed).Int("scanned", len(products)).
		Msg("Live catalog repriced")
	return updated, failed, nil
}
