package event

import (
	"errors"
	"fmt"
)

// Domain-specific errors for event operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotFound is returned when an event does not exist.
	ErrNotFound = errors.New("event: not found")

	// ErrExists is returned when creating an event with a duplicate ID.
	ErrExists = errors.New("event: already exists")

	// ErrInvalidTransition is returned when a trigger is not legal from
	// the event's current status. The event record is never mutated on
	// this error.
	ErrInvalidTransition = errors.New("event: invalid transition")

	// ErrInvalidEvent is returned when an event fails validation.
	ErrInvalidEvent = errors.New("event: invalid event")

	// ErrInvalidAmount is returned for non-positive refund amounts.
	ErrInvalidAmount = errors.New("event: invalid amount")

	// ErrDeviceOccupied is returned when creating an event for a device
	// that already has an active event.
	ErrDeviceOccupied = errors.New("event: device has an active event")

	// ErrNotDue is returned when expiring an event whose deadline has
	// not elapsed.
	ErrNotDue = errors.New("event: deadline not elapsed")
)

// InvalidTransitionError identifies the current state and attempted
// trigger of a rejected transition.
type InvalidTransitionError struct {
	EventID string
	From    Status
	Trigger Trigger
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("event: invalid transition: %q does not accept %q (event %s)",
		e.From, e.Trigger, e.EventID)
}

// Is makes errors.Is(err, ErrInvalidTransition) work.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
