package pricing

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// RateProvider supplies an exchange rate between two currencies. The bool
// reports whether a fresh rate was available. A nil provider means "use the
// static table only".
type RateProvider interface {
	Rate(from, to string) (decimal.Decimal, bool)
}

// RateFunc adapts a function to RateProvider.
type RateFunc func(from, to string) (decimal.Decimal, bool)

func (f RateFunc) Rate(from, to string) (decimal.Decimal, bool) { return f(from, to) }

// Engine computes customer-facing prices from supplier costs. It is pure:
// no I/O, deterministic for equal inputs and table state. Tables are
// reloadable at runtime.
type Engine struct {
	mu           sync.RWMutex
	countries    map[string]CountryConfig
	staticRates  map[string]decimal.Decimal // units per USD
	margin       decimal.Decimal            // e.g. 2.0 = 200% of total cost
	minProfitSAR decimal.Decimal
}

func NewEngine(marginPct, minProfitSAR float64) *Engine {
	return &Engine{
		countries:    defaultCountries(),
		staticRates:  defaultStaticRates(),
		margin:       decimal.NewFromFloat(marginPct).Div(decimal.NewFromInt(100)),
		minProfitSAR: decimal.NewFromFloat(minProfitSAR),
	}
}

// ReloadCountries replaces the destination table.
func (e *Engine) ReloadCountries(countries map[string]CountryConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.countries = countries
}

// Country returns the config for a code, falling back to the default entry.
// The bool reports whether the code itself was found.
func (e *Engine) Country(code string) (CountryConfig, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if c, ok := e.countries[code]; ok {
		return c, true
	}
	return e.countries[DefaultCountryKey], false
}

// Price computes the full breakdown for one product. rates may be nil, in
// which case the static table is used and the breakdown is flagged.
func (e *Engine) Price(in Input, rates RateProvider) (*Breakdown, error) {
	if in.BaseCost.IsNegative() || in.SupplierShipping.IsNegative() || in.WeightKg < 0 {
		return nil, ErrInvalidInput
	}
	if in.BaseCost.IsZero() {
		return nil, ErrInvalidInput
	}

	origin := in.OriginCurrency
	if origin == "" {
		origin = "USD"
	}

	country, countryFound := e.Country(in.CountryCode)

	b := &Breakdown{
		CountryCode:     in.CountryCode,
		CountryFallback: !countryFound,
		LocalCurrency:   country.LocalCurrency,
		CalculatedAt:    time.Now().UTC(),
	}

	// 1. Convert supplier amounts into SAR.
	originToSAR, fxFallback, err := e.rate(origin, "SAR", rates)
	if err != nil {
		return nil, err
	}
	b.FxFallback = fxFallback
	b.BaseCostSAR = in.BaseCost.Mul(originToSAR)
	b.SupplierShippingSAR = in.SupplierShipping.Mul(originToSAR)

	// 2. Local shipping: flat leg plus 5 SAR per kg above 0.5.
	b.LocalShippingSAR = country.BaseShippingSAR
	if in.WeightKg > 0.5 {
		excess := decimal.NewFromFloat(in.WeightKg - 0.5)
		b.LocalShippingSAR = b.LocalShippingSAR.Add(excess.Mul(decimal.NewFromInt(5)))
	}
	if in.FreeShipping {
		b.LocalShippingSAR = decimal.Zero
		b.SupplierShippingSAR = decimal.Zero
	}

	// 3-4. Total cost and profit with floor.
	b.TotalCostSAR = b.BaseCostSAR.Add(b.SupplierShippingSAR).Add(b.LocalShippingSAR)

	margin := e.margin
	if in.ProfitMargin != nil {
		margin = *in.ProfitMargin
	}
	b.ProfitSAR = b.TotalCostSAR.Mul(margin)
	if b.ProfitSAR.LessThan(e.minProfitSAR) {
		b.ProfitSAR = e.minProfitSAR
	}
	b.ProfitPercentage = margin.Mul(decimal.NewFromInt(100))

	// 5-7. Tax and final price; banker's rounding on the final step only.
	b.PreTaxSAR = b.TotalCostSAR.Add(b.ProfitSAR)
	b.TaxRate = country.VATRate
	b.TaxSAR = b.PreTaxSAR.Mul(country.VATRate)
	b.FinalSAR = b.PreTaxSAR.Add(b.TaxSAR).RoundBank(2)

	// 8. Destination currency figure.
	if country.LocalCurrency == "SAR" {
		b.FinalLocal = b.FinalSAR
	} else {
		sarToLocal, localFallback, err := e.rate("SAR", country.LocalCurrency, rates)
		if err != nil {
			return nil, err
		}
		b.FxFallback = b.FxFallback || localFallback
		b.FinalLocal = b.FinalSAR.Mul(sarToLocal).RoundBank(2)
	}

	return b, nil
}

// rate resolves from→to through the provider first, then the static table.
// The bool reports a static fallback.
func (e *Engine) rate(from, to string, rates RateProvider) (decimal.Decimal, bool, error) {
	if from == to {
		return decimal.NewFromInt(1), false, nil
	}

	if rates != nil {
		if r, ok := rates.Rate(from, to); ok && r.IsPositive() {
			return r, false, nil
		}
	}

	e.mu.RLock()
	fromPerUSD, okFrom := e.staticRates[from]
	toPerUSD, okTo := e.staticRates[to]
	e.mu.RUnlock()

	if !okFrom || !okTo || fromPerUSD.IsZero() {
		return decimal.Zero, false, ErrFxUnavailable
	}

	return toPerUSD.Div(fromPerUSD), true, nil
}
