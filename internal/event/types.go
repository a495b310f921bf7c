package event

import "time"

// Event is a single business transaction bound to one device and user,
// from creation through a terminal outcome.
type Event struct {
	ID            string  `json:"id"`
	OrgID         string  `json:"org_id"`
	DeviceID      string  `json:"device_id"`
	UserID        *string `json:"user_id,omitempty"`
	ReservationID *string `json:"reservation_id,omitempty"`

	EventType EventType `json:"event_type"`
	Status    Status    `json:"event_status"`

	// Monetary fields in the organisation's currency.
	Total          float64         `json:"total"`
	RefundedAmount float64         `json:"refunded_amount"`
	PenalizeCharge *float64        `json:"penalize_charge,omitempty"`
	PenalizeReason *PenalizeReason `json:"penalize_reason,omitempty"`

	// Access codes handed to the user or courier for this transaction.
	Passcode       *string `json:"passcode,omitempty"`
	CourierPinCode *string `json:"courier_pin_code,omitempty"`

	// FaultFlagged marks an event whose hardware command failed after all
	// retries. The lifecycle continued; the flag calls for operator
	// attention instead of leaving the outcome ambiguous.
	FaultFlagged bool `json:"fault_flagged"`

	// ExpiresAt is the deadline stored when the event entered a
	// time-bounded state. The sweep compares it against the clock; there
	// is no per-event timer.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	CanceledAt *time.Time `json:"canceled_at,omitempty"`
}

// DeepCopy creates a complete independent copy of the Event.
func (e *Event) DeepCopy() *Event {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.UserID = copyStringPtr(e.UserID)
	cpy.ReservationID = copyStringPtr(e.ReservationID)
	cpy.Passcode = copyStringPtr(e.Passcode)
	cpy.CourierPinCode = copyStringPtr(e.CourierPinCode)
	if e.PenalizeCharge != nil {
		v := *e.PenalizeCharge
		cpy.PenalizeCharge = &v
	}
	if e.PenalizeReason != nil {
		v := *e.PenalizeReason
		cpy.PenalizeReason = &v
	}
	cpy.ExpiresAt = copyTimePtr(e.ExpiresAt)
	cpy.StartedAt = copyTimePtr(e.StartedAt)
	cpy.EndedAt = copyTimePtr(e.EndedAt)
	cpy.CanceledAt = copyTimePtr(e.CanceledAt)
	return &cpy
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// EventType classifies the business transaction.
type EventType string

// EventType constants.
const (
	TypeService  EventType = "service"
	TypeRental   EventType = "rental"
	TypeStorage  EventType = "storage"
	TypeDelivery EventType = "delivery"
	TypeVending  EventType = "vending"
)

// AllEventTypes returns all valid event type values.
func AllEventTypes() []EventType {
	return []EventType{TypeService, TypeRental, TypeStorage, TypeDelivery, TypeVending}
}

// Status is the lifecycle state of an event.
type Status string

// Status constants.
const (
	StatusReserved               Status = "reserved"
	StatusInProgress             Status = "in_progress"
	StatusAwaitingPayment        Status = "awaiting_payment_confirmation"
	StatusAwaitingServicePickup  Status = "awaiting_service_pickup"
	StatusAwaitingServiceDropoff Status = "awaiting_service_dropoff"
	StatusAwaitingUserPickup     Status = "awaiting_user_pickup"
	StatusTransactionInProgress  Status = "transaction_in_progress"
	StatusFinished               Status = "finished"
	StatusCanceled               Status = "canceled"
	StatusRefunded               Status = "refunded"
	StatusExpired                Status = "expired"
)

// AllStatuses returns all valid event status values.
func AllStatuses() []Status {
	return []Status{
		StatusReserved, StatusInProgress, StatusAwaitingPayment,
		StatusAwaitingServicePickup, StatusAwaitingServiceDropoff,
		StatusAwaitingUserPickup, StatusTransactionInProgress,
		StatusFinished, StatusCanceled, StatusRefunded, StatusExpired,
	}
}

// ActiveStatuses is the set of event states that keep a device occupied.
// A device with an event in one of these states is unavailable for new
// reservations. Expired events count: the device still holds the user's
// goods until an operator resolves it.
func ActiveStatuses() []Status {
	return []Status{
		StatusInProgress, StatusAwaitingPayment,
		StatusAwaitingServicePickup, StatusAwaitingServiceDropoff,
		StatusAwaitingUserPickup, StatusTransactionInProgress,
		StatusExpired,
	}
}

// IsActive reports whether the status occupies the device.
func (s Status) IsActive() bool {
	for _, a := range ActiveStatuses() {
		if s == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the lifecycle. Terminal
// events are immutable except for late refund adjustments on refunded
// and finished events.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusCanceled, StatusRefunded, StatusExpired:
		return true
	default:
		return false
	}
}

// timeBounded reports whether the status carries an expiry deadline.
func (s Status) timeBounded() bool {
	switch s {
	case StatusInProgress, StatusAwaitingPayment,
		StatusAwaitingServicePickup, StatusAwaitingServiceDropoff,
		StatusAwaitingUserPickup:
		return true
	default:
		return false
	}
}

// PenalizeReason records why an operator charged a penalty on an event.
type PenalizeReason string

// PenalizeReason constants.
const (
	PenalizeMissingItems PenalizeReason = "missing_items"
	PenalizeDamagedItems PenalizeReason = "damaged_items"
	PenalizeMisconduct   PenalizeReason = "misconduct"
	PenalizeOther        PenalizeReason = "other"
)

// AllPenalizeReasons returns all valid penalize reason values.
func AllPenalizeReasons() []PenalizeReason {
	return []PenalizeReason{PenalizeMissingItems, PenalizeDamagedItems, PenalizeMisconduct, PenalizeOther}
}
