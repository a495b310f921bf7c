package schedule

import (
	"errors"
	"fmt"
)

// Domain errors for the schedule package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, schedule.ErrConflict) {
//	    // surface as "unavailable", not a fault
//	}
var (
	// ErrConflict is returned when a candidate window overlaps an existing
	// reservation within the buffer gap. This is an expected outcome, not
	// a system fault.
	ErrConflict = errors.New("schedule: conflict")

	// ErrInvalidWindow is returned when a window is malformed.
	ErrInvalidWindow = errors.New("schedule: invalid window")

	// ErrInvalidClock is returned when a wall-clock string is not HH:MM.
	ErrInvalidClock = errors.New("schedule: invalid clock time")

	// ErrRentalTooLong is returned when a per-occurrence duration exceeds
	// the organisation's max rental time.
	ErrRentalTooLong = errors.New("schedule: rental exceeds max rental time")

	// ErrReservationTooLong is returned when a window's total span exceeds
	// the organisation's max reservation time.
	ErrReservationTooLong = errors.New("schedule: span exceeds max reservation time")
)

// ConflictError reports which existing reservation a candidate window
// collides with. It matches ErrConflict under errors.Is.
type ConflictError struct {
	// ReservationID identifies the existing reservation.
	ReservationID string

	// Candidate and Existing are the colliding occurrences.
	Candidate Interval
	Existing  Interval
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule: conflict with reservation %s (%s-%s vs %s-%s)",
		e.ReservationID,
		e.Candidate.Start.Format("2006-01-02T15:04"), e.Candidate.End.Format("15:04"),
		e.Existing.Start.Format("2006-01-02T15:04"), e.Existing.End.Format("15:04"),
	)
}

// Is makes errors.Is(err, ErrConflict) succeed for ConflictError values.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
