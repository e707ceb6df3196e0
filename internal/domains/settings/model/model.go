package model

import "time"

// TypeIntegrations is the singleton settings row holding third-party
// credentials.
const TypeIntegrations = "integrations"

// IntegrationSettings holds supplier and FX provider credentials. Secrets are
// stored raw and masked on every read path.
type IntegrationSettings struct {
	CJEmail            string `json:"cj_email,omitempty"`
	CJAPIKey           string `json:"cj_api_key,omitempty"`
	ExchangeRateAPIKey string `json:"exchange_rate_api_key,omitempty"`
}

// IntegrationUpdate is a partial write; nil fields stay unchanged.
type IntegrationUpdate struct {
	CJEmail            *string `json:"cj_email"`
	CJAPIKey           *string `json:"cj_api_key"`
	ExchangeRateAPIKey *string `json:"exchange_rate_api_key"`
}

// Empty reports whether the update changes nothing.
func (u IntegrationUpdate) Empty() bool {
	return u.CJEmail == nil && u.CJAPIKey == nil && u.ExchangeRateAPIKey == nil
}

// Settings is one row of the settings table.
type Settings struct {
	Type      string              `json:"type"`
	Data      IntegrationSettings `json:"data"`
	UpdatedAt time.Time           `json:"updated_at"`
}
