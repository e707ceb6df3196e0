package model

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")

	// ErrDuplicateInJob is returned when a staging insert collides with an
	// existing row for the same (import job, supplier product).
	ErrDuplicateInJob = errors.New("product already imported in this job")

	ErrNotStaging = errors.New("product is not a staging row")

	ErrNoFieldsToUpdate = errors.New("no fields to update")
)
