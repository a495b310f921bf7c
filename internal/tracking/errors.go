package tracking

import "errors"

// Domain-specific errors for product tracking operations.
var (
	// ErrNotFound is returned when a record or condition does not exist.
	ErrNotFound = errors.New("tracking: not found")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("tracking: invalid record")

	// ErrInvalidState is returned for an unknown product state.
	ErrInvalidState = errors.New("tracking: invalid state")
)
