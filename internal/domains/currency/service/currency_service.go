package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"luxestore-backend/internal/config"
	"luxestore-backend/internal/domains/currency/model"
	"luxestore-backend/internal/domains/currency/repository"
	"luxestore-backend/internal/domains/pricing"
	"luxestore-backend/internal/infrastructure/metrics"
	"luxestore-backend/internal/shared/utils"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// RateFetcher pulls current rates from the external provider.
// fxprovider.Client satisfies it.
type RateFetcher interface {
	FetchLatest(ctx context.Context, base string) (map[string]float64, error)
}

// currencySymbols maps ISO codes to display symbols.
var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"SAR": "ر.س",
	"AED": "د.إ",
	"KWD": "د.ك",
	"BHD": ".د.ب",
	"OMR": "ر.ع.",
	"QAR": "ر.ق",
}

// CurrencyService owns the USD-based rate cache: refresh from the provider,
// lookups with staleness checks, conversions and display formatting.
type CurrencyService struct {
	repo    repository.RateRepository
	fetcher RateFetcher
	cfg     config.FXConfig
}

func NewCurrencyService(repo repository.RateRepository, fetcher RateFetcher, cfg config.FXConfig) *CurrencyService {
	return &CurrencyService{repo: repo, fetcher: fetcher, cfg: cfg}
}

// Refresh pulls the latest USD-based rates and upserts the configured
// currencies. A "free" or empty provider key disables the provider entirely;
// the pricing engine's static table covers that mode.
func (s *CurrencyService) Refresh(ctx context.Context) error {
	if s.cfg.StaticFallbackMode() {
		log.Info().Msg("FX provider disabled, keeping static rates")
		metrics.FxRefreshes.WithLabelValues("skipped").Inc()
		return nil
	}

	fetched, err := s.fetcher.FetchLatest(ctx, model.BaseCurrency)
	if err != nil {
		metrics.FxRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("fx refresh failed: %w", err)
	}

	now := time.Now().UTC()
	rates := make([]model.ExchangeRate, 0, len(s.cfg.Currencies))
	for _, cur := range s.cfg.Currencies {
		cur = utils.NormalizeCurrency(cur)
		if cur == model.BaseCurrency {
			continue
		}
		value, ok := fetched[cur]
		if !ok || value <= 0 {
			log.Warn().Str("currency", cur).Msg("Provider returned no rate for currency")
			continue
		}
		rates = append(rates, model.ExchangeRate{
			Base:      model.BaseCurrency,
			Target:    cur,
			Rate:      decimal.NewFromFloat(value),
			Source:    model.SourceProvider,
			UpdatedAt: now,
		})
	}

	if err := s.repo.Upsert(ctx, rates); err != nil {
		metrics.FxRefreshes.WithLabelValues("error").Inc()
		return err
	}

	metrics.FxRefreshes.WithLabelValues("ok").Inc()
	log.Info().Int("count", len(rates)).Msg("Exchange rates refreshed")
	return nil
}

// GetRate resolves from→to directly, inverted, or crossed through USD.
func (s *CurrencyService) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = utils.NormalizeCurrency(from)
	to = utils.NormalizeCurrency(to)
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if from == model.BaseCurrency {
		return s.usdRate(ctx, to)
	}
	if to == model.BaseCurrency {
		usdFrom, err := s.usdRate(ctx, from)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(1).Div(usdFrom), nil
	}

	usdTo, err := s.usdRate(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}
	usdFrom, err := s.usdRate(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	return usdTo.Div(usdFrom), nil
}

// usdRate loads USD→cur and enforces the cache TTL. Degraded mode serves the
// newest stored row regardless of age.
func (s *CurrencyService) usdRate(ctx context.Context, cur string) (decimal.Decimal, error) {
	rate, err := s.repo.Get(ctx, model.BaseCurrency, cur)
	if err != nil {
		return decimal.Zero, err
	}
	if rate.Rate.IsZero() {
		return decimal.Zero, model.ErrRateNotFound
	}
	if time.Since(rate.UpdatedAt) > s.cfg.CacheTTL && !s.cfg.DegradedMode {
		return decimal.Zero, model.ErrRateStale
	}
	return rate.Rate, nil
}

// Convert converts an amount between currencies, refreshing once when the
// cache misses or has gone stale.
func (s *CurrencyService) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	rate, err := s.GetRate(ctx, from, to)
	if errors.Is(err, model.ErrRateNotFound) || errors.Is(err, model.ErrRateStale) {
		if refreshErr := s.Refresh(ctx); refreshErr != nil {
			log.Warn().Err(refreshErr).Msg("FX refresh on cache miss failed")
		}
		rate, err = s.GetRate(ctx, from, to)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

// Multi converts one amount into several target currencies. Failures are
// logged and dropped from the result.
func (s *CurrencyService) Multi(ctx context.Context, amount decimal.Decimal, from string, targets []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(targets))
	for _, target := range targets {
		converted, err := s.Convert(ctx, amount, from, target)
		if err != nil {
			log.Warn().Err(err).Str("currency", target).Msg("Skipping currency in multi conversion")
			continue
		}
		out[utils.NormalizeCurrency(target)] = converted.RoundBank(2)
	}
	return out
}

// ApplyMarkup raises an amount by a percentage (100 = double).
func (s *CurrencyService) ApplyMarkup(amount decimal.Decimal, markupPct float64) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(markupPct).Div(decimal.NewFromInt(100)))
	return amount.Mul(factor)
}

// Format renders an amount with its currency symbol. Placement follows the
// display language: Arabic always writes the symbol after the amount, and in
// other languages only the dollar sign is prefixed.
func (s *CurrencyService) Format(amount decimal.Decimal, currency, lang string) string {
	currency = utils.NormalizeCurrency(currency)
	fixed := amount.StringFixedBank(2)

	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency
	}
	if lang != "ar" && currency == model.BaseCurrency {
		return symbol + fixed
	}
	return fixed + " " + symbol
}

// Snapshot loads every fresh USD-based rate into a point-in-time provider for
// the pricing engine. Missing or stale currencies are simply absent, so the
// engine falls back to its static table and flags the breakdown.
func (s *CurrencyService) Snapshot(ctx context.Context) pricing.RateProvider {
	rows, err := s.repo.ListByBase(ctx, model.BaseCurrency)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to snapshot exchange rates")
		return pricing.RateFunc(func(string, string) (decimal.Decimal, bool) {
			return decimal.Zero, false
		})
	}

	perUSD := map[string]decimal.Decimal{model.BaseCurrency: decimal.NewFromInt(1)}
	for _, row := range rows {
		if row.Rate.IsZero() {
			continue
		}
		if time.Since(row.UpdatedAt) > s.cfg.CacheTTL && !s.cfg.DegradedMode {
			continue
		}
		perUSD[row.Target] = row.Rate
	}

	return pricing.RateFunc(func(from, to string) (decimal.Decimal, bool) {
		if from == to {
			return decimal.NewFromInt(1), true
		}
		fromPerUSD, okFrom := perUSD[from]
		toPerUSD, okTo := perUSD[to]
		if !okFrom || !okTo || fromPerUSD.IsZero() {
			return decimal.Zero, false
		}
		return toPerUSD.Div(fromPerUSD), true
	})
}
