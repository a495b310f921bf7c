package schedule

import "time"

// TimeUnit is the unit for reservation setting durations.
type TimeUnit string

// TimeUnit constants.
const (
	UnitMinute TimeUnit = "minute"
	UnitHour   TimeUnit = "hour"
	UnitDay    TimeUnit = "day"
	UnitWeek   TimeUnit = "week"
)

// AllTimeUnits returns all valid time unit values.
func AllTimeUnits() []TimeUnit {
	return []TimeUnit{UnitMinute, UnitHour, UnitDay, UnitWeek}
}

// Duration converts n units to a time.Duration.
// Unknown units are treated as minutes.
func (u TimeUnit) Duration(n int) time.Duration {
	switch u {
	case UnitHour:
		return time.Duration(n) * time.Hour
	case UnitDay:
		return time.Duration(n) * 24 * time.Hour
	case UnitWeek:
		return time.Duration(n) * 7 * 24 * time.Hour
	default:
		return time.Duration(n) * time.Minute
	}
}

// Settings holds the per-organisation scheduling parameters.
// These correspond to the reservation_settings table.
type Settings struct {
	ID    string
	OrgID string

	MaxRentalTime     int
	MaxRentalTimeUnit TimeUnit

	MaxReservationTime     int
	MaxReservationTimeUnit TimeUnit

	TransactionBufferTime     int
	TransactionBufferTimeUnit TimeUnit

	LockerBufferTime     int
	LockerBufferTimeUnit TimeUnit

	// ExpireToMaintenance controls which status a device takes when an
	// event on it expires: maintenance when true, available otherwise.
	ExpireToMaintenance bool
}

// MaxRental returns the maximum per-occurrence duration.
func (s Settings) MaxRental() time.Duration {
	return s.MaxRentalTimeUnit.Duration(s.MaxRentalTime)
}

// MaxReservation returns the maximum total reservation span.
func (s Settings) MaxReservation() time.Duration {
	return s.MaxReservationTimeUnit.Duration(s.MaxReservationTime)
}

// BufferGap returns the mandatory idle gap between two occurrences on the
// same device: the transaction buffer plus the locker buffer.
func (s Settings) BufferGap() time.Duration {
	return s.TransactionBufferTimeUnit.Duration(s.TransactionBufferTime) +
		s.LockerBufferTimeUnit.Duration(s.LockerBufferTime)
}

// Interval is a half-open time interval [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the interval length.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether i and o share any instant.
// Back-to-back intervals (i.End == o.Start) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// ConflictsWith reports whether i and o violate the required idle gap.
// With gap = 0 this degenerates to plain overlap, so back-to-back
// occurrences conflict iff the gap is positive.
func (i Interval) ConflictsWith(o Interval, gap time.Duration) bool {
	return i.Start.Before(o.End.Add(gap)) && o.Start.Before(i.End.Add(gap))
}

// Window is a requested or existing claim on device time.
//
// A one-off window uses Start/End only. A recurring window uses the weekday
// set, the daily wall-clock interval FromTime/ToTime, and the validity range
// StartDate/EndDate; Start/End are ignored.
type Window struct {
	// One-off interval.
	Start time.Time
	End   time.Time

	// Recurrence pattern.
	Recurring bool
	Days      [7]bool // indexed by time.Weekday (Sunday = 0)
	FromTime  string  // 24h wall clock, HH:MM
	ToTime    string  // HH:MM; ToTime < FromTime wraps past midnight
	StartDate time.Time
	EndDate   time.Time
}

// OneOff builds a single-interval window.
func OneOff(start, end time.Time) Window {
	return Window{Start: start.UTC(), End: end.UTC()}
}

// HasDays reports whether any weekday is selected.
func (w Window) HasDays() bool {
	for _, d := range w.Days {
		if d {
			return true
		}
	}
	return false
}

// Bounds returns the validity interval of the window: the absolute range
// within which any of its occurrences can fall. For recurring windows the
// end is extended by a day to cover wall-clock intervals that wrap past
// midnight on the final matching day.
func (w Window) Bounds() Interval {
	if !w.Recurring {
		return Interval{Start: w.Start, End: w.End}
	}
	return Interval{
		Start: dayStart(w.StartDate),
		End:   dayStart(w.EndDate).Add(48 * time.Hour),
	}
}

// Existing pairs a persisted reservation's identity with its window,
// for conflict reporting.
type Existing struct {
	ReservationID string
	Window        Window
}

// dayStart truncates t to midnight UTC.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
