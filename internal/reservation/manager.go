package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lockhaven/fleet-core/internal/clock"
	"github.com/lockhaven/fleet-core/internal/device"
	"github.com/lockhaven/fleet-core/internal/event"
	"github.com/lockhaven/fleet-core/internal/schedule"
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceRegistry is the slice of the device registry the manager needs.
type DeviceRegistry interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	FindAvailable(ctx context.Context, sel device.Selection, claim device.ClaimFunc) (*device.Device, error)
}

// EventCreator starts a transaction for a reservation occurrence. The
// manager calls it while holding the device's guard.
type EventCreator interface {
	CreateLocked(ctx context.Context, e *event.Event) (*event.Event, error)
}

// SettingsSource serves per-organisation scheduling settings.
type SettingsSource interface {
	Get(ctx context.Context, orgID string) (schedule.Settings, error)
}

// Manager owns the reservation lifecycle: creation with conflict
// checking, cancellation, and conversion of due occurrences into
// transaction events.
//
// Every read-check-write sequence runs inside the per-device guard, so
// the conflict snapshot a write is based on cannot go stale between the
// check and the insert.
type Manager struct {
	repo     Repository
	settings SettingsSource
	devices  DeviceRegistry
	events   EventCreator
	guard    *device.Guard
	clock    clock.Clock
	logger   Logger
}

// NewManager creates a reservation manager.
func NewManager(repo Repository, settings SettingsSource, devices DeviceRegistry, events EventCreator, guard *device.Guard, clk clock.Clock) *Manager {
	return &Manager{
		repo:     repo,
		settings: settings,
		devices:  devices,
		events:   events,
		guard:    guard,
		clock:    clk,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Create validates and persists a reservation.
//
// With DeviceID set, the named device is checked and claimed under its
// guard. With DeviceID empty, the registry walks available devices in
// selection order and the first one whose calendar accepts the window
// is claimed. Duration caps are checked before any conflict expansion.
func (m *Manager) Create(ctx context.Context, r *Reservation) (*Reservation, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reservation", ErrInvalidReservation)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = m.clock.Now().UTC()

	if err := ValidateReservation(r); err != nil {
		return nil, err
	}

	s, err := m.settings.Get(ctx, r.OrgID)
	if err != nil {
		return nil, err
	}

	w, err := r.Window()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReservation, err)
	}
	if err := schedule.ValidateDuration(w, s); err != nil {
		return nil, err
	}

	if r.DeviceID != "" {
		return m.createOnDevice(ctx, r, w, s)
	}
	return m.createOnAnyDevice(ctx, r, w, s)
}

func (m *Manager) createOnDevice(ctx context.Context, r *Reservation, w schedule.Window, s schedule.Settings) (*Reservation, error) {
	release := m.guard.Lock(r.DeviceID)
	defer release()

	d, err := m.devices.GetDevice(ctx, r.DeviceID)
	if err != nil {
		return nil, err
	}
	if d.Mode != r.Mode {
		return nil, fmt.Errorf("%w: device %s runs %s, reservation wants %s",
			ErrInvalidReservation, d.ID, d.Mode, r.Mode)
	}
	if d.Status == device.StatusMaintenance {
		return nil, fmt.Errorf("%w: device %s is in maintenance", ErrInvalidReservation, d.ID)
	}

	if err := m.checkConflicts(ctx, r.DeviceID, w, s); err != nil {
		return nil, err
	}
	if err := m.repo.Create(ctx, r); err != nil {
		return nil, err
	}

	m.logger.Info("reservation created",
		"reservation_id", r.ID, "device_id", r.DeviceID, "mode", r.Mode)
	return r, nil
}

func (m *Manager) createOnAnyDevice(ctx context.Context, r *Reservation, w schedule.Window, s schedule.Settings) (*Reservation, error) {
	sel := device.Selection{
		OrgID:      r.OrgID,
		Mode:       r.Mode,
		LocationID: derefString(r.LocationID),
		SizeID:     derefString(r.SizeID),
		ProductID:  derefString(r.ProductID),
	}

	d, err := m.devices.FindAvailable(ctx, sel,
		func(ctx context.Context, d *device.Device) error {
			if err := m.checkConflicts(ctx, d.ID, w, s); err != nil {
				return err
			}
			r.DeviceID = d.ID
			return m.repo.Create(ctx, r)
		})
	if err != nil {
		return nil, err
	}

	m.logger.Info("reservation created",
		"reservation_id", r.ID, "device_id", d.ID, "mode", r.Mode)
	return r, nil
}

// checkConflicts tests the candidate window against the device's live
// reservations. Callers must hold the device's guard.
func (m *Manager) checkConflicts(ctx context.Context, deviceID string, w schedule.Window, s schedule.Settings) error {
	active, err := m.repo.ListActiveByDevice(ctx, deviceID)
	if err != nil {
		return err
	}

	existing := make([]schedule.Existing, 0, len(active))
	for i := range active {
		ew, err := active[i].Window()
		if err != nil {
			return fmt.Errorf("reservation %s has an unreadable window: %w", active[i].ID, err)
		}
		existing = append(existing, schedule.Existing{
			ReservationID: active[i].ID,
			Window:        ew,
		})
	}

	return schedule.CheckConflict(w, existing, s)
}

// GetReservation retrieves a reservation by ID.
func (m *Manager) GetReservation(ctx context.Context, id string) (*Reservation, error) {
	return m.repo.GetByID(ctx, id)
}

// GetByTrackingNumber locates the live reservation carrying a courier
// tracking number.
func (m *Manager) GetByTrackingNumber(ctx context.Context, orgID, trackingNumber string) (*Reservation, error) {
	return m.repo.GetByTrackingNumber(ctx, orgID, trackingNumber)
}

// ListByUser returns a user's reservations, newest first.
func (m *Manager) ListByUser(ctx context.Context, userID string) ([]Reservation, error) {
	return m.repo.ListByUser(ctx, userID)
}

// Cancel marks a reservation canceled. Canceling an already-canceled
// reservation is a no-op returning the current state. Events already
// produced by the reservation are untouched; they finish through the
// event lifecycle.
func (m *Manager) Cancel(ctx context.Context, id string) (*Reservation, error) {
	r, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Canceled() {
		return r, nil
	}

	now := m.clock.Now().UTC()
	r.CanceledAt = &now
	if err := m.repo.Update(ctx, r); err != nil {
		return nil, err
	}

	m.logger.Info("reservation canceled", "reservation_id", r.ID, "device_id", r.DeviceID)
	return r, nil
}

// ActivateOccurrence converts one occurrence of the reservation into an
// in-progress event on the reserved device. occurrenceStart must equal
// the start of an expanded occurrence; anything else is ErrNotDue.
//
// The event's deadline is the occurrence end, capped by the
// organisation's maximum rental time. A non-recurring reservation is
// marked started and cannot activate again.
func (m *Manager) ActivateOccurrence(ctx context.Context, id string, occurrenceStart time.Time) (*event.Event, error) {
	r, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Canceled() {
		return nil, fmt.Errorf("%w: reservation %s", ErrCanceled, r.ID)
	}
	if !r.Recurring && r.Started {
		return nil, fmt.Errorf("%w: reservation %s", ErrAlreadyStarted, r.ID)
	}

	occ, err := m.matchOccurrence(r, occurrenceStart)
	if err != nil {
		return nil, err
	}

	release := m.guard.Lock(r.DeviceID)
	defer release()

	end := occ.End
	e := &event.Event{
		OrgID:         r.OrgID,
		DeviceID:      r.DeviceID,
		UserID:        copyStringPtr(r.UserID),
		ReservationID: &r.ID,
		EventType:     event.EventType(r.Mode),
		Status:        event.StatusInProgress,
		ExpiresAt:     &end,
	}

	created, err := m.events.CreateLocked(ctx, e)
	if err != nil {
		return nil, err
	}

	if !r.Recurring {
		r.Started = true
		if err := m.repo.Update(ctx, r); err != nil {
			// The event exists; a failed flag write must not orphan it.
			m.logger.Error("marking reservation started failed",
				"reservation_id", r.ID, "event_id", created.ID, "error", err)
			return created, fmt.Errorf("marking reservation started: %w", err)
		}
	}

	m.logger.Info("reservation occurrence activated",
		"reservation_id", r.ID, "event_id", created.ID,
		"occurrence_start", occurrenceStart.UTC().Format(time.RFC3339))
	return created, nil
}

// matchOccurrence expands the window around the requested start and
// returns the occurrence beginning exactly there.
func (m *Manager) matchOccurrence(r *Reservation, start time.Time) (schedule.Interval, error) {
	w, err := r.Window()
	if err != nil {
		return schedule.Interval{}, fmt.Errorf("%w: %v", ErrInvalidReservation, err)
	}

	bounds := schedule.Interval{
		Start: start.Add(-24 * time.Hour),
		End:   start.Add(24 * time.Hour),
	}
	occurrences, err := w.Occurrences(bounds)
	if err != nil {
		return schedule.Interval{}, err
	}

	for _, occ := range occurrences {
		if occ.Start.Equal(start) {
			return occ, nil
		}
	}
	return schedule.Interval{}, fmt.Errorf("%w: no occurrence starts at %s",
		ErrNotDue, start.UTC().Format(time.RFC3339))
}
