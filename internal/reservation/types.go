package reservation

import (
	"time"

	"github.com/lockhaven/fleet-core/internal/device"
	"github.com/lockhaven/fleet-core/internal/schedule"
)

// Reservation is a claim on future device availability, one-off or
// recurring, not yet realised as an event.
type Reservation struct {
	ID             string  `json:"id"`
	OrgID          string  `json:"org_id"`
	TrackingNumber string  `json:"tracking_number,omitempty"`
	Mode           device.Mode `json:"mode"`

	// Recurrence. A one-off reservation leaves Recurring false and uses
	// StartDate+FromTime through EndDate+ToTime as one absolute interval.
	Recurring bool `json:"recurring"`
	Monday    bool `json:"monday"`
	Tuesday   bool `json:"tuesday"`
	Wednesday bool `json:"wednesday"`
	Thursday  bool `json:"thursday"`
	Friday    bool `json:"friday"`
	Saturday  bool `json:"saturday"`
	Sunday    bool `json:"sunday"`

	FromTime  string    `json:"from_time"` // 24h wall clock, HH:MM
	ToTime    string    `json:"to_time"`   // HH:MM
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// Started records that a non-recurring reservation has been
	// converted into its event.
	Started    bool       `json:"started"`
	CanceledAt *time.Time `json:"canceled_at,omitempty"`

	DeviceID   string  `json:"device_id"`
	LocationID *string `json:"location_id,omitempty"`
	SizeID     *string `json:"size_id,omitempty"`
	ProductID  *string `json:"product_id,omitempty"`
	UserID     *string `json:"user_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Canceled reports whether the reservation has been canceled.
func (r *Reservation) Canceled() bool {
	return r.CanceledAt != nil
}

// Days returns the weekday flags indexed by time.Weekday (Sunday = 0).
func (r *Reservation) Days() [7]bool {
	return [7]bool{
		r.Sunday, r.Monday, r.Tuesday, r.Wednesday,
		r.Thursday, r.Friday, r.Saturday,
	}
}

// SetDays sets the weekday flags from a time.Weekday-indexed array.
func (r *Reservation) SetDays(days [7]bool) {
	r.Sunday = days[time.Sunday]
	r.Monday = days[time.Monday]
	r.Tuesday = days[time.Tuesday]
	r.Wednesday = days[time.Wednesday]
	r.Thursday = days[time.Thursday]
	r.Friday = days[time.Friday]
	r.Saturday = days[time.Saturday]
}

// Window converts the reservation into the scheduling engine's window
// representation.
func (r *Reservation) Window() (schedule.Window, error) {
	if r.Recurring {
		return schedule.Window{
			Recurring: true,
			Days:      r.Days(),
			FromTime:  r.FromTime,
			ToTime:    r.ToTime,
			StartDate: r.StartDate,
			EndDate:   r.EndDate,
		}, nil
	}

	from, err := schedule.ParseClock(r.FromTime)
	if err != nil {
		return schedule.Window{}, err
	}
	to, err := schedule.ParseClock(r.ToTime)
	if err != nil {
		return schedule.Window{}, err
	}

	start := dayStart(r.StartDate).Add(from)
	end := dayStart(r.EndDate).Add(to)
	return schedule.OneOff(start, end), nil
}

// DeepCopy creates a complete independent copy of the Reservation.
func (r *Reservation) DeepCopy() *Reservation {
	if r == nil {
		return nil
	}
	cpy := *r
	cpy.LocationID = copyStringPtr(r.LocationID)
	cpy.SizeID = copyStringPtr(r.SizeID)
	cpy.ProductID = copyStringPtr(r.ProductID)
	cpy.UserID = copyStringPtr(r.UserID)
	if r.CanceledAt != nil {
		v := *r.CanceledAt
		cpy.CanceledAt = &v
	}
	return &cpy
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
