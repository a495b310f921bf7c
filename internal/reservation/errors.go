package reservation

import "errors"

// Domain-specific errors for reservation operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when a reservation does not exist.
	ErrNotFound = errors.New("reservation: not found")

	// ErrExists is returned when creating a reservation with a
	// duplicate ID.
	ErrExists = errors.New("reservation: already exists")

	// ErrInvalidReservation is returned when a reservation fails
	// validation before any side effect.
	ErrInvalidReservation = errors.New("reservation: invalid reservation")

	// ErrCanceled is returned when operating on a canceled reservation.
	ErrCanceled = errors.New("reservation: canceled")

	// ErrAlreadyStarted is returned when activating a non-recurring
	// reservation that already produced its event.
	ErrAlreadyStarted = errors.New("reservation: already started")

	// ErrNotDue is returned when the requested occurrence start does not
	// match any occurrence of the reservation's window.
	ErrNotDue = errors.New("reservation: occurrence not due")

	// ErrNoSettings is returned when an organisation has no reservation
	// settings configured.
	ErrNoSettings = errors.New("reservation: no settings for organisation")
)
