package supplier

import (
	"errors"
	"fmt"
)

// ErrMissingCredentials is returned when no API credentials are configured.
var ErrMissingCredentials = errors.New("supplier credentials are not configured")

// RemoteError is a non-retryable supplier response (permanent 4xx).
type RemoteError struct {
	Status int
	Body   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("supplier returned %d: %s", e.Status, e.Body)
}

// TransientError is returned once the retry budget is exhausted on
// timeouts, 429s and 5xx responses.
type TransientError struct {
	Attempts int
	Last     error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("supplier unavailable after %d attempts: %v", e.Attempts, e.Last)
}

func (e *TransientError) Unwrap() error {
	return e.Last
}
