package schedule

import (
	"fmt"
	"regexp"
	"time"
)

// clockPattern matches 24-hour wall clock times, 00:00 through 23:59.
const clockPattern = `^(0[0-9]|1[0-9]|2[0-3]):[0-5][0-9]$`

var clockRegex = regexp.MustCompile(clockPattern)

// maxExpansionDays is a hard cap on recurrence expansion. Validity spans are
// already bounded by max_reservation_time, so this only guards against
// runaway loops from corrupt date ranges.
const maxExpansionDays = 2 * 366

// ParseClock parses an HH:MM wall-clock string into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	if !clockRegex.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Validate checks that a window is well-formed.
//
// One-off windows need End after Start. Recurring windows need at least one
// weekday, valid HH:MM clocks, a non-zero daily interval, and EndDate on or
// after StartDate.
func (w Window) Validate() error {
	if !w.Recurring {
		if w.Start.IsZero() || w.End.IsZero() {
			return fmt.Errorf("%w: missing start or end", ErrInvalidWindow)
		}
		if !w.End.After(w.Start) {
			return fmt.Errorf("%w: end not after start", ErrInvalidWindow)
		}
		return nil
	}

	if !w.HasDays() {
		return fmt.Errorf("%w: recurring window has no weekdays", ErrInvalidWindow)
	}
	from, err := ParseClock(w.FromTime)
	if err != nil {
		return err
	}
	to, err := ParseClock(w.ToTime)
	if err != nil {
		return err
	}
	if from == to {
		return fmt.Errorf("%w: zero-length daily interval", ErrInvalidWindow)
	}
	if w.StartDate.IsZero() || w.EndDate.IsZero() {
		return fmt.Errorf("%w: missing start or end date", ErrInvalidWindow)
	}
	if dayStart(w.EndDate).Before(dayStart(w.StartDate)) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidWindow)
	}
	return nil
}

// OccurrenceDuration returns the duration of a single occurrence.
// A wrapped daily interval (ToTime < FromTime) runs from FromTime through
// midnight into the next day.
func (w Window) OccurrenceDuration() (time.Duration, error) {
	if !w.Recurring {
		return w.End.Sub(w.Start), nil
	}

	from, err := ParseClock(w.FromTime)
	if err != nil {
		return 0, err
	}
	to, err := ParseClock(w.ToTime)
	if err != nil {
		return 0, err
	}

	if to > from {
		return to - from, nil
	}
	return 24*time.Hour - from + to, nil
}

// Span returns the total validity span of the window.
func (w Window) Span() time.Duration {
	if !w.Recurring {
		return w.End.Sub(w.Start)
	}
	return dayStart(w.EndDate).Add(24 * time.Hour).Sub(dayStart(w.StartDate))
}

// Occurrences expands the window into the absolute intervals that overlap
// bounds, in chronological order.
//
// Recurring windows are expanded day by day over the intersection of their
// validity range and bounds. A daily interval that wraps past midnight is
// split at the day boundary into two sub-intervals; the second belongs to
// the following calendar day. Expansion is deterministic: the same window
// and bounds always produce the same set.
func (w Window) Occurrences(bounds Interval) ([]Interval, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	if !w.Recurring {
		occ := Interval{Start: w.Start, End: w.End}
		if occ.Overlaps(bounds) {
			return []Interval{occ}, nil
		}
		return nil, nil
	}

	from, _ := ParseClock(w.FromTime) // validated above
	to, _ := ParseClock(w.ToTime)
	wraps := to <= from

	// Start a day early so a wrapped interval from the previous day can
	// still reach into bounds.
	day := dayStart(w.StartDate)
	if earliest := dayStart(bounds.Start).Add(-24 * time.Hour); day.Before(earliest) {
		day = earliest
	}
	last := dayStart(w.EndDate)
	if latest := dayStart(bounds.End); last.After(latest) {
		last = latest
	}

	var occurrences []Interval
	for i := 0; !day.After(last) && i < maxExpansionDays; i++ {
		if w.Days[day.Weekday()] {
			for _, occ := range dailyOccurrences(day, from, to, wraps) {
				if occ.Overlaps(bounds) {
					occurrences = append(occurrences, occ)
				}
			}
		}
		day = day.Add(24 * time.Hour)
	}

	return occurrences, nil
}

// dailyOccurrences builds the absolute sub-intervals contributed by one
// matching day. Wrapped intervals split at midnight.
func dailyOccurrences(day time.Time, from, to time.Duration, wraps bool) []Interval {
	if !wraps {
		return []Interval{{Start: day.Add(from), End: day.Add(to)}}
	}

	midnight := day.Add(24 * time.Hour)
	return []Interval{
		{Start: day.Add(from), End: midnight},
		{Start: midnight, End: midnight.Add(to)},
	}
}

// ValidateDuration rejects windows that exceed the organisation's duration
// limits. This is the cheap check and runs before any conflict expansion.
func ValidateDuration(w Window, s Settings) error {
	if err := w.Validate(); err != nil {
		return err
	}

	occ, err := w.OccurrenceDuration()
	if err != nil {
		return err
	}
	if max := s.MaxRental(); max > 0 && occ > max {
		return fmt.Errorf("%w: %s > %s", ErrRentalTooLong, occ, max)
	}

	if max := s.MaxReservation(); max > 0 && w.Span() > max {
		return fmt.Errorf("%w: %s > %s", ErrReservationTooLong, w.Span(), max)
	}

	return nil
}

// CheckConflict tests a candidate window against a device's existing
// reservations under the organisation's buffer settings.
//
// Returns nil when the candidate fits, or a *ConflictError naming the first
// existing reservation it collides with. The check is a pure function of its
// inputs; callers must re-run it inside the same exclusive scope used to
// persist the resulting reservation.
func CheckConflict(candidate Window, existing []Existing, s Settings) error {
	if err := candidate.Validate(); err != nil {
		return err
	}

	gap := s.BufferGap()

	// Pad the comparison region by the gap so occurrences just outside the
	// candidate's bounds still participate in buffer checks.
	candBounds := candidate.Bounds()
	region := Interval{
		Start: candBounds.Start.Add(-gap),
		End:   candBounds.End.Add(gap),
	}

	for _, ex := range existing {
		exBounds := ex.Window.Bounds()
		exRegion := Interval{
			Start: exBounds.Start.Add(-gap),
			End:   exBounds.End.Add(gap),
		}

		// Expand each side over the other's padded validity interval.
		candOccs, err := candidate.Occurrences(exRegion)
		if err != nil {
			return err
		}
		exOccs, err := ex.Window.Occurrences(region)
		if err != nil {
			// Persisted windows should always be valid; treat as conflict
			// rather than silently ignoring a malformed row.
			return fmt.Errorf("expanding existing reservation %s: %w", ex.ReservationID, err)
		}

		for _, c := range candOccs {
			for _, e := range exOccs {
				if c.ConflictsWith(e, gap) {
					return &ConflictError{
						ReservationID: ex.ReservationID,
						Candidate:     c,
						Existing:      e,
					}
				}
			}
		}
	}

	return nil
}
