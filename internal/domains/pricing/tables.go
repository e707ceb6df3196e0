package pricing

import "github.com/shopspring/decimal"

// DefaultCountryKey is used when the destination country is unknown.
const DefaultCountryKey = "default"

// defaultCountries is the GCC destination table. VAT rates per local law;
// base shipping is the flat local leg in SAR.
func defaultCountries() map[string]CountryConfig {
	return map[string]CountryConfig{
		"SA": {VATRate: decimal.NewFromFloat(0.15), BaseShippingSAR: decimal.NewFromInt(25), LocalCurrency: "SAR"},
		"AE": {VATRate: decimal.NewFromFloat(0.05), BaseShippingSAR: decimal.NewFromInt(30), LocalCurrency: "AED"},
		"BH": {VATRate: decimal.NewFromFloat(0.05), BaseShippingSAR: decimal.NewFromInt(30), LocalCurrency: "BHD"},
		"OM": {VATRate: decimal.NewFromFloat(0.05), BaseShippingSAR: decimal.NewFromInt(30), LocalCurrency: "OMR"},
		"KW": {VATRate: decimal.Zero, BaseShippingSAR: decimal.NewFromInt(30), LocalCurrency: "KWD"},
		"QA": {VATRate: decimal.Zero, BaseShippingSAR: decimal.NewFromInt(30), LocalCurrency: "QAR"},
		DefaultCountryKey: {VATRate: decimal.NewFromFloat(0.15), BaseShippingSAR: decimal.NewFromInt(25), LocalCurrency: "SAR"},
	}
}

// defaultStaticRates is the last-resort FX table, quoted as units of
// currency per USD (pegged GCC rates).
func defaultStaticRates() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"USD": decimal.NewFromInt(1),
		"SAR": decimal.NewFromFloat(3.75),
		"AED": decimal.NewFromFloat(3.6725),
		"BHD": decimal.NewFromFloat(0.376),
		"OMR": decimal.NewFromFloat(0.3845),
		"KWD": decimal.NewFromFloat(0.3065),
		"QAR": decimal.NewFromFloat(3.64),
		"EUR": decimal.NewFromFloat(0.92),
		"GBP": decimal.NewFromFloat(0.79),
	}
}
