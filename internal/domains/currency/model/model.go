package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// BaseCurrency is the quote base for every stored rate.
	BaseCurrency = "USD"

	SourceProvider = "exchangerate-api"
	SourceStatic   = "static"
)

// ExchangeRate is one row of the exchange_rates table, quoted as units of
// Target per one unit of Base.
type ExchangeRate struct {
	Base      string          `json:"base"`
	Target    string          `json:"target"`
	Rate      decimal.Decimal `json:"rate"`
	Source    string          `json:"source"`
	UpdatedAt time.Time       `json:"updated_at"`
}
