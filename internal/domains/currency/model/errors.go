package model

import "errors"

var (
	ErrRateNotFound = errors.New("exchange rate not found")

	// ErrRateStale is returned when the cached rate is older than the TTL and
	// degraded mode is off.
	ErrRateStale = errors.New("exchange rate is stale")

	// ErrProviderDisabled is returned when a refresh is requested while the
	// provider key is unset or "free".
	ErrProviderDisabled = errors.New("exchange rate provider is disabled")
)
