package reservation

import (
	"fmt"

	"github.com/lockhaven/fleet-core/internal/device"
)

// ValidateReservation checks a reservation's fields before persistence.
// Window-level checks (clock format, day selection, date ordering) are
// delegated to the scheduling engine so validation and expansion cannot
// disagree.
func ValidateReservation(r *Reservation) error {
	if r == nil {
		return fmt.Errorf("%w: nil reservation", ErrInvalidReservation)
	}
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidReservation)
	}
	if r.OrgID == "" {
		return fmt.Errorf("%w: org_id is required", ErrInvalidReservation)
	}
	if err := device.ValidateMode(r.Mode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReservation, err)
	}

	w, err := r.Window()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReservation, err)
	}
	if err := w.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidReservation, err)
	}

	if r.Mode == device.ModeDelivery && r.TrackingNumber == "" {
		return fmt.Errorf("%w: delivery reservations need a tracking number", ErrInvalidReservation)
	}

	return nil
}
