package model

import "errors"

var (
	ErrJobNotFound = errors.New("import job not found")

	// ErrJobFinalized is returned when a write targets a completed or failed
	// job. Terminal states never change.
	ErrJobFinalized = errors.New("import job already finalized")

	ErrInvalidParams = errors.New("invalid import parameters")

	ErrJobNotRunning = errors.New("import job is not running")
)
