package pricing

import "errors"

var (
	// ErrInvalidInput is returned on negative or missing costs.
	ErrInvalidInput = errors.New("pricing input is invalid")

	// ErrFxUnavailable is returned when neither the live rate source nor the
	// static table can convert the origin currency.
	ErrFxUnavailable = errors.New("no exchange rate available")
)
