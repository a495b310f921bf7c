package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lockhaven/fleet-core/internal/clock"
	"github.com/lockhaven/fleet-core/internal/device"
)

// Logger defines the logging interface used by the Machine.
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

// DeviceRegistry is the slice of the device registry the machine needs.
// device.Registry satisfies it.
type DeviceRegistry interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	SetStatus(ctx context.Context, id string, status device.Status) error
	IncrementTransactionCount(ctx context.Context, id string) error
}

// Locker issues physical lock commands. hardware.Commander satisfies it.
type Locker interface {
	Unlock(ctx context.Context, d *device.Device) error
	Lock(ctx context.Context, d *device.Device) error
}

// Policy supplies the per-organisation scheduling policy the machine
// consults: how long an event may sit in a time-bounded state, and where
// an expired event leaves the device.
type Policy interface {
	// ActiveDeadline returns how long an event may remain in a
	// time-bounded state before expiring.
	ActiveDeadline(ctx context.Context, orgID string) (time.Duration, error)

	// ExpireToMaintenance reports whether expiry parks the device in
	// maintenance (true) or returns it to the pool (false).
	ExpireToMaintenance(ctx context.Context, orgID string) (bool, error)
}

// Notifier receives event lifecycle changes, e.g. for MQTT publication
// and time-series recording. Implementations must not block.
type Notifier interface {
	EventChanged(e *Event)
}

type noopNotifier struct{}

func (noopNotifier) EventChanged(*Event) {}

// Machine drives events through their lifecycle. Every transition runs
// inside the device's guard: the event row is persisted first, then the
// bound device status change is applied through the registry. A crash
// between the two writes is healed by the recovery sweep, which
// re-derives device status from the latest active event.
//
// Transitions are totally ordered per event by the guard; transitions on
// different devices proceed independently.
type Machine struct {
	repo     Repository
	devices  DeviceRegistry
	guard    *device.Guard
	locker   Locker
	policy   Policy
	clock    clock.Clock
	logger   Logger
	notifier Notifier
}

// NewMachine creates an event machine.
func NewMachine(repo Repository, devices DeviceRegistry, guard *device.Guard, locker Locker, policy Policy, clk clock.Clock) *Machine {
	return &Machine{
		repo:     repo,
		devices:  devices,
		guard:    guard,
		locker:   locker,
		policy:   policy,
		clock:    clk,
		logger:   noopLogger{},
		notifier: noopNotifier{},
	}
}

// SetLogger sets the logger for the machine.
func (m *Machine) SetLogger(logger Logger) {
	m.logger = logger
}

// SetNotifier sets the lifecycle change notifier.
func (m *Machine) SetNotifier(n Notifier) {
	m.notifier = n
}

// Create persists a new event. Events start in reserved, or in
// in_progress for walk-up transactions with no prior reservation; an
// in_progress creation applies the activation side effects immediately.
// The device must not already hold an active event.
func (m *Machine) Create(ctx context.Context, e *Event) (*Event, error) {
	if e == nil || e.DeviceID == "" || e.OrgID == "" {
		return nil, fmt.Errorf("%w: missing device or org", ErrInvalidEvent)
	}
	if e.Status == "" {
		e.Status = StatusReserved
	}
	if e.Status != StatusReserved && e.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: events start in reserved or in_progress, not %q", ErrInvalidEvent, e.Status)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = m.clock.Now().UTC()

	release := m.guard.Lock(e.DeviceID)
	defer release()

	return m.createLocked(ctx, e)
}

// CreateLocked is Create for callers already holding the device's guard,
// such as the reservation manager claiming a device inside FindAvailable.
func (m *Machine) CreateLocked(ctx context.Context, e *Event) (*Event, error) {
	if e == nil || e.DeviceID == "" || e.OrgID == "" {
		return nil, fmt.Errorf("%w: missing device or org", ErrInvalidEvent)
	}
	if e.Status == "" {
		e.Status = StatusReserved
	}
	if e.Status != StatusReserved && e.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: events start in reserved or in_progress, not %q", ErrInvalidEvent, e.Status)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = m.clock.Now().UTC()
	return m.createLocked(ctx, e)
}

func (m *Machine) createLocked(ctx context.Context, e *Event) (*Event, error) {
	if _, err := m.repo.GetActiveByDevice(ctx, e.DeviceID); err == nil {
		return nil, fmt.Errorf("%w: device %s", ErrDeviceOccupied, e.DeviceID)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	activateNow := e.Status == StatusInProgress
	if activateNow {
		now := m.clock.Now().UTC()
		e.StartedAt = &now
		if err := m.stampDeadline(ctx, e); err != nil {
			return nil, err
		}
	}

	if err := m.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	// The device is claimed on activation; an event still in reserved
	// holds its slot through the scheduling engine, not device status.
	if activateNow {
		if err := m.devices.SetStatus(ctx, e.DeviceID, device.StatusReserved); err != nil {
			m.logger.Error("device status update failed", "device_id", e.DeviceID, "error", err)
		}
		if e.EventType != TypeVending {
			m.actuate(ctx, e, actionUnlock)
		}
	}

	m.logger.Info("event created",
		"event_id", e.ID, "device_id", e.DeviceID,
		"event_type", e.EventType, "event_status", e.Status)
	m.notifier.EventChanged(e)
	return e, nil
}

// Activate moves a reserved event to in_progress: the device is marked
// reserved, the deadline is stamped, and the lock is opened for
// door-opening transaction types.
func (m *Machine) Activate(ctx context.Context, eventID string) (*Event, error) {
	release, e, err := m.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	// A reserved event holds its slot through the scheduling engine, not
	// device status, so occupancy must be re-checked here: another event
	// may have taken the device since this one was created.
	if active, err := m.repo.GetActiveByDevice(ctx, e.DeviceID); err == nil && active.ID != e.ID {
		return nil, fmt.Errorf("%w: device %s", ErrDeviceOccupied, e.DeviceID)
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return m.transitionLocked(ctx, e, TriggerActivate, func(ctx context.Context, e *Event) error {
		now := m.clock.Now().UTC()
		e.StartedAt = &now
		return m.stampDeadline(ctx, e)
	}, func(ctx context.Context, e *Event) {
		if err := m.devices.SetStatus(ctx, e.DeviceID, device.StatusReserved); err != nil {
			m.logger.Error("device status update failed", "device_id", e.DeviceID, "error", err)
		}
		if e.EventType != TypeVending {
			m.actuate(ctx, e, actionUnlock)
		}
	})
}

// RequirePayment moves an in_progress event to awaiting payment.
func (m *Machine) RequirePayment(ctx context.Context, eventID string) (*Event, error) {
	return m.transition(ctx, eventID, TriggerPaymentRequired, func(ctx context.Context, e *Event) error {
		return m.stampDeadline(ctx, e)
	}, nil)
}

// ConfirmPayment records a confirmed payment. Vending events finish on
// the spot (the slot dispenses); other types continue until the goods
// change hands.
func (m *Machine) ConfirmPayment(ctx context.Context, eventID string) (*Event, error) {
	return m.transition(ctx, eventID, TriggerPaymentConfirmed, func(ctx context.Context, e *Event) error {
		return m.stampDeadline(ctx, e)
	}, func(ctx context.Context, e *Event) {
		if e.EventType == TypeVending {
			m.actuate(ctx, e, actionUnlock)
		}
		if e.Status == StatusFinished {
			m.finishDevice(ctx, e)
		}
	})
}

// ServicePickup, ServiceDropoff, and UserPickup advance the courier
// hand-off flow for service and delivery events.
func (m *Machine) ServicePickup(ctx context.Context, eventID string) (*Event, error) {
	return m.handOff(ctx, eventID, TriggerServicePickup)
}

func (m *Machine) ServiceDropoff(ctx context.Context, eventID string) (*Event, error) {
	return m.handOff(ctx, eventID, TriggerServiceDropoff)
}

func (m *Machine) UserPickup(ctx context.Context, eventID string) (*Event, error) {
	return m.handOff(ctx, eventID, TriggerUserPickup)
}

func (m *Machine) handOff(ctx context.Context, eventID string, trigger Trigger) (*Event, error) {
	return m.transition(ctx, eventID, trigger, func(ctx context.Context, e *Event) error {
		return m.stampDeadline(ctx, e)
	}, func(ctx context.Context, e *Event) {
		m.actuate(ctx, e, actionUnlock)
	})
}

// Complete finishes an event: the device returns to available, its
// transaction counter advances, and the lock is secured. Completing an
// already finished event is a no-op success.
func (m *Machine) Complete(ctx context.Context, eventID string) (*Event, error) {
	release, e, err := m.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	if e.Status == StatusFinished {
		return e, nil
	}

	return m.transitionLocked(ctx, e, TriggerComplete, func(_ context.Context, e *Event) error {
		now := m.clock.Now().UTC()
		e.EndedAt = &now
		e.ExpiresAt = nil
		return nil
	}, func(ctx context.Context, e *Event) {
		m.finishDevice(ctx, e)
		m.actuate(ctx, e, actionLock)
	})
}

// Cancel cancels a reserved or in_progress event, releasing the device
// when the event had claimed it. Canceling an already canceled or
// finished event is a no-op success.
func (m *Machine) Cancel(ctx context.Context, eventID string) (*Event, error) {
	release, e, err := m.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	if e.Status == StatusCanceled || e.Status == StatusFinished {
		return e, nil
	}

	// A reserved event never claimed the device, so canceling one must
	// leave device status alone; an operator's maintenance parking is
	// not the event's to undo.
	claimed := e.Status != StatusReserved

	return m.transitionLocked(ctx, e, TriggerCancel, func(_ context.Context, e *Event) error {
		now := m.clock.Now().UTC()
		e.CanceledAt = &now
		e.ExpiresAt = nil
		return nil
	}, func(ctx context.Context, e *Event) {
		if !claimed {
			return
		}
		if err := m.devices.SetStatus(ctx, e.DeviceID, device.StatusAvailable); err != nil {
			m.logger.Error("device status update failed", "device_id", e.DeviceID, "error", err)
		}
	})
}

// Refund refunds part or all of the event's total. Amounts accumulate
// across calls and are capped at the total; a late adjustment on an
// already refunded event is legal.
func (m *Machine) Refund(ctx context.Context, eventID string, amount float64) (*Event, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: refund of %.2f", ErrInvalidAmount, amount)
	}

	release, e, err := m.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	return m.transitionLocked(ctx, e, TriggerRefund, func(_ context.Context, e *Event) error {
		e.RefundedAmount += amount
		if e.RefundedAmount > e.Total {
			e.RefundedAmount = e.Total
		}
		return nil
	}, nil)
}

// Expire moves an overdue event to expired. The deadline must have
// elapsed; the device parks in maintenance or returns to available per
// the organisation's policy.
func (m *Machine) Expire(ctx context.Context, eventID string) (*Event, error) {
	release, e, err := m.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	if e.ExpiresAt == nil || m.clock.Now().Before(*e.ExpiresAt) {
		return nil, fmt.Errorf("%w: event %s", ErrNotDue, eventID)
	}

	return m.transitionLocked(ctx, e, TriggerExpire, func(_ context.Context, e *Event) error {
		now := m.clock.Now().UTC()
		e.EndedAt = &now
		return nil
	}, func(ctx context.Context, e *Event) {
		target := device.StatusAvailable
		toMaintenance, err := m.policy.ExpireToMaintenance(ctx, e.OrgID)
		if err != nil {
			m.logger.Error("expiry policy lookup failed", "org_id", e.OrgID, "error", err)
			toMaintenance = true
		}
		if toMaintenance {
			target = device.StatusMaintenance
		}
		if err := m.devices.SetStatus(ctx, e.DeviceID, target); err != nil {
			m.logger.Error("device status update failed", "device_id", e.DeviceID, "error", err)
		}
	})
}

// Penalize records a penalty charge and reason on an event. It is not a
// lifecycle transition; operators apply it to finished or expired events.
func (m *Machine) Penalize(ctx context.Context, eventID string, charge float64, reason PenalizeReason) (*Event, error) {
	if charge <= 0 {
		return nil, fmt.Errorf("%w: penalty of %.2f", ErrInvalidAmount, charge)
	}

	release, e, err := m.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	e.PenalizeCharge = &charge
	e.PenalizeReason = &reason
	if err := m.repo.Update(ctx, e); err != nil {
		return nil, err
	}

	m.logger.Info("event penalized", "event_id", e.ID, "charge", charge, "reason", reason)
	return e, nil
}

// GetEvent retrieves an event by ID.
func (m *Machine) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	return m.repo.GetByID(ctx, eventID)
}

// load fetches the event and acquires its device's guard.
// The release func must be called on all exit paths.
func (m *Machine) load(ctx context.Context, eventID string) (func(), *Event, error) {
	e, err := m.repo.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}

	release := m.guard.Lock(e.DeviceID)

	// Re-read inside the guard; a concurrent transition may have moved
	// the event between the fetch and the lock.
	e, err = m.repo.GetByID(ctx, eventID)
	if err != nil {
		release()
		return nil, nil, err
	}
	return release, e, nil
}

// transition is the common path: load under guard, then transitionLocked.
func (m *Machine) transition(ctx context.Context, eventID string, trigger Trigger,
	mutate func(context.Context, *Event) error, sideEffects func(context.Context, *Event)) (*Event, error) {

	release, e, err := m.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	defer release()

	return m.transitionLocked(ctx, e, trigger, mutate, sideEffects)
}

// transitionLocked applies one trigger while the caller holds the
// device's guard. The event row is persisted before device side effects
// run; the event record is not mutated when the trigger is illegal.
func (m *Machine) transitionLocked(ctx context.Context, e *Event, trigger Trigger,
	mutate func(context.Context, *Event) error, sideEffects func(context.Context, *Event)) (*Event, error) {

	next, err := NextStatus(e, trigger)
	if err != nil {
		m.logger.Warn("transition rejected",
			"event_id", e.ID, "event_status", e.Status, "trigger", trigger)
		return nil, err
	}

	prev := e.Status
	e.Status = next

	if mutate != nil {
		if err := mutate(ctx, e); err != nil {
			e.Status = prev
			return nil, err
		}
	}

	if err := m.repo.Update(ctx, e); err != nil {
		e.Status = prev
		return nil, err
	}

	if sideEffects != nil {
		sideEffects(ctx, e)
	}

	m.logger.Info("event transition",
		"event_id", e.ID, "trigger", trigger, "from", prev, "to", e.Status)
	m.notifier.EventChanged(e)
	return e, nil
}

// stampDeadline sets ExpiresAt for the state the event just entered. A
// deadline already on the event, such as a reservation occurrence end,
// stands when it is earlier than the policy deadline.
func (m *Machine) stampDeadline(ctx context.Context, e *Event) error {
	d, err := m.policy.ActiveDeadline(ctx, e.OrgID)
	if err != nil {
		return fmt.Errorf("deadline policy lookup: %w", err)
	}
	deadline := m.clock.Now().UTC().Add(d)
	if e.ExpiresAt != nil && e.ExpiresAt.Before(deadline) {
		return nil
	}
	e.ExpiresAt = &deadline
	return nil
}

// finishDevice applies the side effects of reaching finished.
func (m *Machine) finishDevice(ctx context.Context, e *Event) {
	if err := m.devices.SetStatus(ctx, e.DeviceID, device.StatusAvailable); err != nil {
		m.logger.Error("device status update failed", "device_id", e.DeviceID, "error", err)
	}
	if err := m.devices.IncrementTransactionCount(ctx, e.DeviceID); err != nil {
		m.logger.Error("transaction count update failed", "device_id", e.DeviceID, "error", err)
	}
}

type lockAction string

const (
	actionUnlock lockAction = "unlock"
	actionLock   lockAction = "lock"
)

// actuate drives the physical lock for a transition. The Commander owns
// retries; when it gives up the event is fault-flagged and persisted so
// the failure is recorded rather than left ambiguous. The transition
// itself stands.
func (m *Machine) actuate(ctx context.Context, e *Event, action lockAction) {
	d, err := m.devices.GetDevice(ctx, e.DeviceID)
	if err != nil {
		m.logger.Error("device lookup for actuation failed", "device_id", e.DeviceID, "error", err)
		return
	}

	switch action {
	case actionUnlock:
		err = m.locker.Unlock(ctx, d)
	case actionLock:
		err = m.locker.Lock(ctx, d)
	}

	if err == nil {
		return
	}

	e.FaultFlagged = true
	if updateErr := m.repo.Update(ctx, e); updateErr != nil {
		m.logger.Error("fault flag persist failed", "event_id", e.ID, "error", updateErr)
	}
	m.logger.Error("hardware actuation failed",
		"event_id", e.ID, "device_id", e.DeviceID, "action", action, "error", err)
}
