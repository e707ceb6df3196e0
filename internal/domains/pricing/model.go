package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Input describes a supplier cost to be priced for a destination country.
type Input struct {
	BaseCost         decimal.Decimal
	OriginCurrency   string // defaults to USD when empty
	SupplierShipping decimal.Decimal
	CountryCode      string
	WeightKg         float64
	ProfitMargin     *decimal.Decimal // overrides the engine default when set
	FreeShipping     bool
}

// Breakdown preserves every component that sums to the final price. All SAR
// amounts are exact intermediates; only the final figures are rounded.
type Breakdown struct {
	BaseCostSAR         decimal.Decimal `json:"base_cost_sar"`
	SupplierShippingSAR decimal.Decimal `json:"supplier_shipping_sar"`
	LocalShippingSAR    decimal.Decimal `json:"local_shipping_sar"`
	TotalCostSAR        decimal.Decimal `json:"total_cost_sar"`
	ProfitSAR           decimal.Decimal `json:"profit_sar"`
	ProfitPercentage    decimal.Decimal `json:"profit_percentage"`
	PreTaxSAR           decimal.Decimal `json:"pre_tax_sar"`
	TaxRate             decimal.Decimal `json:"tax_rate"`
	TaxSAR              decimal.Decimal `json:"tax_sar"`
	FinalSAR            decimal.Decimal `json:"final_sar"`
	LocalCurrency       string          `json:"local_currency"`
	FinalLocal          decimal.Decimal `json:"final_local"`
	CountryCode         string          `json:"country_code"`
	CountryFallback     bool            `json:"country_fallback,omitempty"`
	FxFallback          bool            `json:"fx_fallback,omitempty"`
	CalculatedAt        time.Time       `json:"calculated_at"`
}

// CountryConfig is one row of the destination table.
type CountryConfig struct {
	VATRate         decimal.Decimal
	BaseShippingSAR decimal.Decimal
	LocalCurrency   string
}
