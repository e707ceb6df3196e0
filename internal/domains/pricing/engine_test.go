package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRates serves USD→SAR at the pegged 3.75 and nothing else.
func fixedRates() RateProvider {
	return RateFunc(func(from, to string) (decimal.Decimal, bool) {
		if from == "USD" && to == "SAR" {
			return decimal.NewFromFloat(3.75), true
		}
		return decimal.Zero, false
	})
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestPriceHappyPathSA(t *testing.T) {
	e := NewEngine(200, 10)

	b, err := e.Price(Input{
		BaseCost:         dec(12),
		SupplierShipping: dec(3),
		CountryCode:      "SA",
		WeightKg:         0.5,
	}, fixedRates())
	require.NoError(t, err)

	// (12+3)*3.75 = 56.25 cost, +25 local = 81.25 total,
	// profit 162.50, pre-tax 243.75, tax 36.5625, final 280.31.
	assert.Equal(t, "45", b.BaseCostSAR.String())
	assert.Equal(t, "11.25", b.SupplierShippingSAR.String())
	assert.Equal(t, "25", b.LocalShippingSAR.String())
	assert.Equal(t, "81.25", b.TotalCostSAR.String())
	assert.Equal(t, "162.5", b.ProfitSAR.String())
	assert.Equal(t, "280.31", b.FinalSAR.String())
	assert.Equal(t, "SAR", b.LocalCurrency)
	assert.True(t, b.FinalLocal.Equal(b.FinalSAR))
	assert.False(t, b.FxFallback)
	assert.False(t, b.CountryFallback)
}

func TestPriceBreakdownSumsToFinal(t *testing.T) {
	e := NewEngine(200, 10)

	inputs := []Input{
		{BaseCost: dec(12), SupplierShipping: dec(3), CountryCode: "SA", WeightKg: 0.5},
		{BaseCost: dec(0.99), SupplierShipping: dec(0.01), CountryCode: "AE", WeightKg: 2.3},
		{BaseCost: dec(199.99), SupplierShipping: dec(15.5), CountryCode: "KW", WeightKg: 0.1},
		{BaseCost: dec(7), SupplierShipping: dec(0), CountryCode: "QA", WeightKg: 12},
	}

	tolerance := dec(0.01)
	for _, in := range inputs {
		b, err := e.Price(in, fixedRates())
		require.NoError(t, err)

		sum := b.BaseCostSAR.
			Add(b.SupplierShippingSAR).
			Add(b.LocalShippingSAR).
			Add(b.ProfitSAR).
			Add(b.TaxSAR)
		diff := b.FinalSAR.Sub(sum).Abs()
		assert.True(t, diff.LessThanOrEqual(tolerance),
			"final %s deviates from component sum %s", b.FinalSAR, sum)
	}
}

func TestPriceIsDeterministic(t *testing.T) {
	e := NewEngine(200, 10)
	in := Input{BaseCost: dec(42.42), SupplierShipping: dec(1.58), CountryCode: "AE", WeightKg: 1.2}

	b1, err := e.Price(in, fixedRates())
	require.NoError(t, err)
	b2, err := e.Price(in, fixedRates())
	require.NoError(t, err)

	assert.True(t, b1.FinalSAR.Equal(b2.FinalSAR))
	assert.True(t, b1.FinalLocal.Equal(b2.FinalLocal))
	assert.True(t, b1.ProfitSAR.Equal(b2.ProfitSAR))
	assert.True(t, b1.TaxSAR.Equal(b2.TaxSAR))
}

func TestPriceUnknownCountryFallsBack(t *testing.T) {
	e := NewEngine(200, 10)

	b, err := e.Price(Input{BaseCost: dec(10), CountryCode: "XX"}, fixedRates())
	require.NoError(t, err)

	assert.True(t, b.CountryFallback)
	assert.Equal(t, "SAR", b.LocalCurrency)
	assert.Equal(t, "0.15", b.TaxRate.String())
}

func TestPriceStaticFxFallback(t *testing.T) {
	e := NewEngine(200, 10)

	// No live rates at all: the static table is used and flagged.
	b, err := e.Price(Input{BaseCost: dec(10), CountryCode: "SA"}, nil)
	require.NoError(t, err)

	assert.True(t, b.FxFallback)
	assert.Equal(t, "37.5", b.BaseCostSAR.String())
}

func TestPriceFxUnavailable(t *testing.T) {
	e := NewEngine(200, 10)

	_, err := e.Price(Input{BaseCost: dec(10), OriginCurrency: "XAU", CountryCode: "SA"}, nil)
	assert.ErrorIs(t, err, ErrFxUnavailable)
}

func TestPriceFreeShippingZeroesShippingLegs(t *testing.T) {
	e := NewEngine(200, 10)

	b, err := e.Price(Input{
		BaseCost:         dec(10),
		SupplierShipping: dec(5),
		CountryCode:      "SA",
		WeightKg:         3,
		FreeShipping:     true,
	}, fixedRates())
	require.NoError(t, err)

	assert.True(t, b.SupplierShippingSAR.IsZero())
	assert.True(t, b.LocalShippingSAR.IsZero())
}

func TestPriceProfitFloor(t *testing.T) {
	e := NewEngine(200, 10)

	margin := decimal.NewFromFloat(0.01)
	b, err := e.Price(Input{
		BaseCost:     dec(1),
		CountryCode:  "SA",
		ProfitMargin: &margin,
		FreeShipping: true,
	}, fixedRates())
	require.NoError(t, err)

	assert.Equal(t, "10", b.ProfitSAR.String())
}

func TestPriceWeightSurcharge(t *testing.T) {
	e := NewEngine(200, 10)

	b, err := e.Price(Input{BaseCost: dec(10), CountryCode: "SA", WeightKg: 2.5}, fixedRates())
	require.NoError(t, err)

	// 25 base + (2.5-0.5)*5 = 35
	assert.Equal(t, "35", b.LocalShippingSAR.String())
}

func TestPriceInvalidInput(t *testing.T) {
	e := NewEngine(200, 10)

	_, err := e.Price(Input{BaseCost: dec(-1), CountryCode: "SA"}, fixedRates())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.Price(Input{BaseCost: decimal.Zero, CountryCode: "SA"}, fixedRates())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.Price(Input{BaseCost: dec(1), SupplierShipping: dec(-0.5), CountryCode: "SA"}, fixedRates())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPriceBankersRounding(t *testing.T) {
	// Margin and floor zeroed so the final figure is the raw pre-tax value.
	e := NewEngine(0, 0)

	b, err := e.Price(Input{
		BaseCost:       dec(1.005),
		OriginCurrency: "SAR",
		CountryCode:    "KW", // zero VAT
		FreeShipping:   true,
	}, fixedRates())
	require.NoError(t, err)
	assert.Equal(t, "1", b.FinalSAR.String()) // 1.005 rounds to even

	b, err = e.Price(Input{
		BaseCost:       dec(1.015),
		OriginCurrency: "SAR",
		CountryCode:    "KW",
		FreeShipping:   true,
	}, fixedRates())
	require.NoError(t, err)
	assert.Equal(t, "1.02", b.FinalSAR.String())
}
