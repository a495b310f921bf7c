package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lockhaven/fleet-core/internal/clock"
	"github.com/lockhaven/fleet-core/internal/device"
)

// mockRepo is an in-memory event Repository.
type mockRepo struct {
	mu     sync.Mutex
	events map[string]*Event
}

func newMockRepo() *mockRepo {
	return &mockRepo{events: make(map[string]*Event)}
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.events[id]; ok {
		return e.DeepCopy(), nil
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Create(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; ok {
		return ErrExists
	}
	m.events[e.ID] = e.DeepCopy()
	return nil
}

func (m *mockRepo) Update(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[e.ID]; !ok {
		return ErrNotFound
	}
	m.events[e.ID] = e.DeepCopy()
	return nil
}

func (m *mockRepo) GetActiveByDevice(_ context.Context, deviceID string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Event
	for _, e := range m.events {
		if e.DeviceID == deviceID && e.Status.IsActive() {
			if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
				latest = e
			}
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest.DeepCopy(), nil
}

func (m *mockRepo) ListActiveByDevice(ctx context.Context, deviceID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.DeviceID == deviceID && e.Status.IsActive() {
			out = append(out, *e.DeepCopy())
		}
	}
	return out, nil
}

func (m *mockRepo) ListDue(_ context.Context, now time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.Status.timeBounded() && e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
			out = append(out, *e.DeepCopy())
		}
	}
	return out, nil
}

func (m *mockRepo) ListByReservation(_ context.Context, reservationID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.ReservationID != nil && *e.ReservationID == reservationID {
			out = append(out, *e.DeepCopy())
		}
	}
	return out, nil
}

// mockDevices is an in-memory DeviceRegistry.
type mockDevices struct {
	mu       sync.Mutex
	statuses map[string]device.Status
	counts   map[string]int
}

func newMockDevices(ids ...string) *mockDevices {
	m := &mockDevices{
		statuses: make(map[string]device.Status),
		counts:   make(map[string]int),
	}
	for _, id := range ids {
		m.statuses[id] = device.StatusAvailable
	}
	return m
}

func (m *mockDevices) GetDevice(_ context.Context, id string) (*device.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[id]
	if !ok {
		return nil, device.ErrNotFound
	}
	return &device.Device{
		ID:           id,
		OrgID:        "org-1",
		Name:         "Locker " + id,
		HardwareType: device.HardwareVirtual,
		Mode:         device.ModeRental,
		Status:       status,
		LockStatus:   device.LockLocked,
	}, nil
}

func (m *mockDevices) SetStatus(_ context.Context, id string, status device.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[id]; !ok {
		return device.ErrNotFound
	}
	m.statuses[id] = status
	return nil
}

func (m *mockDevices) IncrementTransactionCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[id]++
	return nil
}

func (m *mockDevices) status(id string) device.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[id]
}

// mockLocker records lock commands and optionally fails.
type mockLocker struct {
	mu      sync.Mutex
	unlocks int
	locks   int
	fail    error
}

func (m *mockLocker) Unlock(_ context.Context, _ *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.unlocks++
	return nil
}

func (m *mockLocker) Lock(_ context.Context, _ *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.locks++
	return nil
}

// mockPolicy returns fixed policy values.
type mockPolicy struct {
	deadline    time.Duration
	maintenance bool
}

func (m *mockPolicy) ActiveDeadline(context.Context, string) (time.Duration, error) {
	return m.deadline, nil
}

func (m *mockPolicy) ExpireToMaintenance(context.Context, string) (bool, error) {
	return m.maintenance, nil
}

type fixture struct {
	repo    *mockRepo
	devices *mockDevices
	locker  *mockLocker
	policy  *mockPolicy
	clock   *clock.Mock
	machine *Machine
}

func newFixture(deviceIDs ...string) *fixture {
	f := &fixture{
		repo:    newMockRepo(),
		devices: newMockDevices(deviceIDs...),
		locker:  &mockLocker{},
		policy:  &mockPolicy{deadline: 4 * time.Hour, maintenance: true},
		clock:   clock.NewMock(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)),
	}
	f.machine = NewMachine(f.repo, f.devices, device.NewGuard(), f.locker, f.policy, f.clock)
	return f
}

func (f *fixture) reservedEvent(t *testing.T, deviceID string) *Event {
	t.Helper()
	e, err := f.machine.Create(context.Background(), &Event{
		OrgID:     "org-1",
		DeviceID:  deviceID,
		EventType: TypeRental,
		Total:     20,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return e
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		trigger Trigger
		want    Status
		wantErr bool
	}{
		{"activate from reserved", StatusReserved, TriggerActivate, StatusInProgress, false},
		{"payment required", StatusInProgress, TriggerPaymentRequired, StatusAwaitingPayment, false},
		{"complete from in_progress", StatusInProgress, TriggerComplete, StatusFinished, false},
		{"complete from user pickup", StatusAwaitingUserPickup, TriggerComplete, StatusFinished, false},
		{"cancel from reserved", StatusReserved, TriggerCancel, StatusCanceled, false},
		{"refund from finished", StatusFinished, TriggerRefund, StatusRefunded, false},
		{"late refund adjustment", StatusRefunded, TriggerRefund, StatusRefunded, false},
		{"expire from awaiting pickup", StatusAwaitingUserPickup, TriggerExpire, StatusExpired, false},
		{"activate from finished", StatusFinished, TriggerActivate, "", true},
		{"cancel from transaction", StatusTransactionInProgress, TriggerCancel, "", true},
		{"refund from in_progress", StatusInProgress, TriggerRefund, "", true},
		{"expire from reserved", StatusReserved, TriggerExpire, "", true},
		{"complete from canceled", StatusCanceled, TriggerComplete, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Event{ID: "ev-1", Status: tt.from, EventType: TypeRental}
			got, err := NextStatus(e, tt.trigger)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
				var ite *InvalidTransitionError
				if !errors.As(err, &ite) {
					t.Error("expected InvalidTransitionError detail")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestPaymentConfirmedDependsOnType(t *testing.T) {
	rental := &Event{Status: StatusAwaitingPayment, EventType: TypeRental}
	got, err := NextStatus(rental, TriggerPaymentConfirmed)
	if err != nil || got != StatusTransactionInProgress {
		t.Errorf("rental: expected transaction_in_progress, got %s (%v)", got, err)
	}

	vending := &Event{Status: StatusAwaitingPayment, EventType: TypeVending}
	got, err = NextStatus(vending, TriggerPaymentConfirmed)
	if err != nil || got != StatusFinished {
		t.Errorf("vending: expected finished, got %s (%v)", got, err)
	}
}

func TestRentalLifecycle(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")
	if e.Status != StatusReserved {
		t.Fatalf("expected reserved, got %s", e.Status)
	}
	// A reserved event does not claim the device yet.
	if f.devices.status("dev-1") != device.StatusAvailable {
		t.Errorf("expected device available before activation")
	}

	e, err := f.machine.Activate(ctx, e.ID)
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if e.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", e.Status)
	}
	if e.StartedAt == nil || e.ExpiresAt == nil {
		t.Error("expected started_at and expires_at stamped")
	}
	if f.devices.status("dev-1") != device.StatusReserved {
		t.Errorf("expected device reserved, got %s", f.devices.status("dev-1"))
	}
	if f.locker.unlocks != 1 {
		t.Errorf("expected 1 unlock, got %d", f.locker.unlocks)
	}

	if _, err := f.machine.RequirePayment(ctx, e.ID); err != nil {
		t.Fatalf("RequirePayment failed: %v", err)
	}
	e, err = f.machine.ConfirmPayment(ctx, e.ID)
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if e.Status != StatusTransactionInProgress {
		t.Errorf("expected transaction_in_progress, got %s", e.Status)
	}

	e, err = f.machine.Complete(ctx, e.ID)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if e.Status != StatusFinished {
		t.Errorf("expected finished, got %s", e.Status)
	}
	if e.EndedAt == nil {
		t.Error("expected ended_at stamped")
	}
	if f.devices.status("dev-1") != device.StatusAvailable {
		t.Errorf("expected device available, got %s", f.devices.status("dev-1"))
	}
	if f.devices.counts["dev-1"] != 1 {
		t.Errorf("expected transaction count 1, got %d", f.devices.counts["dev-1"])
	}
	if f.locker.locks != 1 {
		t.Errorf("expected 1 lock command, got %d", f.locker.locks)
	}
}

func TestVendingFinishesOnPayment(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	e, err := f.machine.Create(ctx, &Event{
		OrgID:     "org-1",
		DeviceID:  "dev-1",
		EventType: TypeVending,
		Status:    StatusInProgress,
		Total:     3,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// Vending does not open the slot on activation.
	if f.locker.unlocks != 0 {
		t.Errorf("expected no unlock at creation, got %d", f.locker.unlocks)
	}

	if _, err := f.machine.RequirePayment(ctx, e.ID); err != nil {
		t.Fatalf("RequirePayment failed: %v", err)
	}
	e, err = f.machine.ConfirmPayment(ctx, e.ID)
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if e.Status != StatusFinished {
		t.Errorf("expected finished, got %s", e.Status)
	}
	// Payment confirmation dispenses.
	if f.locker.unlocks != 1 {
		t.Errorf("expected dispense unlock, got %d", f.locker.unlocks)
	}
	if f.devices.status("dev-1") != device.StatusAvailable {
		t.Errorf("expected device available, got %s", f.devices.status("dev-1"))
	}
}

func TestCancelIdempotent(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")

	first, err := f.machine.Cancel(ctx, e.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if first.Status != StatusCanceled || first.CanceledAt == nil {
		t.Errorf("expected canceled with timestamp, got %s", first.Status)
	}

	// Duplicate cancel is a no-op success.
	second, err := f.machine.Cancel(ctx, e.ID)
	if err != nil {
		t.Fatalf("duplicate Cancel failed: %v", err)
	}
	if second.Status != StatusCanceled {
		t.Errorf("expected canceled, got %s", second.Status)
	}
}

func TestCancelReservedLeavesDeviceStatus(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")

	// Operator pulls the device while the reservation is pending. The
	// reservation never claimed the device, so canceling it must not
	// overwrite that parking.
	if err := f.devices.SetStatus(ctx, "dev-1", device.StatusMaintenance); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	if _, err := f.machine.Cancel(ctx, e.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got := f.devices.status("dev-1"); got != device.StatusMaintenance {
		t.Errorf("canceling a reserved event moved the device to %s", got)
	}
}

func TestCancelInProgressReleasesDevice(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")
	if _, err := f.machine.Activate(ctx, e.ID); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if got := f.devices.status("dev-1"); got != device.StatusReserved {
		t.Fatalf("expected device claimed, got %s", got)
	}

	if _, err := f.machine.Cancel(ctx, e.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got := f.devices.status("dev-1"); got != device.StatusAvailable {
		t.Errorf("expected device released, got %s", got)
	}
}

func TestCancelFromTransactionRejected(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")
	f.machine.Activate(ctx, e.ID)        //nolint:errcheck // exercised above
	f.machine.RequirePayment(ctx, e.ID)  //nolint:errcheck
	f.machine.ConfirmPayment(ctx, e.ID)  //nolint:errcheck

	_, err := f.machine.Cancel(ctx, e.ID)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	// The record is untouched by the failed transition.
	got, _ := f.machine.GetEvent(ctx, e.ID)
	if got.Status != StatusTransactionInProgress {
		t.Errorf("expected record unchanged, got %s", got.Status)
	}
}

func TestRefundAccumulatesAndCaps(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")
	f.machine.Activate(ctx, e.ID) //nolint:errcheck
	f.machine.Complete(ctx, e.ID) //nolint:errcheck

	got, err := f.machine.Refund(ctx, e.ID, 7)
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if got.Status != StatusRefunded || got.RefundedAmount != 7 {
		t.Errorf("expected refunded 7, got %s %.2f", got.Status, got.RefundedAmount)
	}

	// Late adjustment accumulates but never exceeds the total of 20.
	got, err = f.machine.Refund(ctx, e.ID, 15)
	if err != nil {
		t.Fatalf("second Refund failed: %v", err)
	}
	if got.RefundedAmount != 20 {
		t.Errorf("expected cap at 20, got %.2f", got.RefundedAmount)
	}

	if _, err := f.machine.Refund(ctx, e.ID, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestExpire(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")
	f.machine.Activate(ctx, e.ID) //nolint:errcheck

	// Deadline is 4h out; not due yet.
	if _, err := f.machine.Expire(ctx, e.ID); !errors.Is(err, ErrNotDue) {
		t.Errorf("expected ErrNotDue, got %v", err)
	}

	f.clock.Advance(4*time.Hour + time.Minute)

	got, err := f.machine.Expire(ctx, e.ID)
	if err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if got.Status != StatusExpired {
		t.Errorf("expected expired, got %s", got.Status)
	}
	// Org policy parks expired devices in maintenance.
	if f.devices.status("dev-1") != device.StatusMaintenance {
		t.Errorf("expected maintenance, got %s", f.devices.status("dev-1"))
	}
}

func TestExpireToAvailable(t *testing.T) {
	f := newFixture("dev-1")
	f.policy.maintenance = false
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")
	f.machine.Activate(ctx, e.ID) //nolint:errcheck
	f.clock.Advance(5 * time.Hour)

	if _, err := f.machine.Expire(ctx, e.ID); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if f.devices.status("dev-1") != device.StatusAvailable {
		t.Errorf("expected available, got %s", f.devices.status("dev-1"))
	}
}

func TestHardwareFaultFlagsEvent(t *testing.T) {
	f := newFixture("dev-1")
	f.locker.fail = errors.New("bridge offline")
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")
	got, err := f.machine.Activate(ctx, e.ID)
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	// The transition stands; the fault is recorded.
	if got.Status != StatusInProgress {
		t.Errorf("expected in_progress, got %s", got.Status)
	}
	if !got.FaultFlagged {
		t.Error("expected fault flag set")
	}

	persisted, _ := f.machine.GetEvent(ctx, e.ID)
	if !persisted.FaultFlagged {
		t.Error("expected fault flag persisted")
	}
}

func TestDeviceMutualExclusion(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	// Randomized concurrent walk-up activations: exactly one may win.
	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.machine.Create(ctx, &Event{
				OrgID:     "org-1",
				DeviceID:  "dev-1",
				EventType: TypeStorage,
				Status:    StatusInProgress,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		if err == nil {
			won++
		} else if !errors.Is(err, ErrDeviceOccupied) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("expected exactly 1 winner, got %d", won)
	}

	active, err := f.repo.GetActiveByDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("expected one active event: %v", err)
	}
	if !active.Status.IsActive() {
		t.Errorf("winner not active: %s", active.Status)
	}
}

func TestActivateRechecksOccupancy(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	// Two future reservations on the same device are legal; holding the
	// device at the same time is not.
	first := f.reservedEvent(t, "dev-1")
	second := f.reservedEvent(t, "dev-1")

	if _, err := f.machine.Activate(ctx, first.ID); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	_, err := f.machine.Activate(ctx, second.ID)
	if !errors.Is(err, ErrDeviceOccupied) {
		t.Fatalf("expected ErrDeviceOccupied, got %v", err)
	}

	active, err := f.repo.ListActiveByDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("ListActiveByDevice failed: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected 1 active event on dev-1, got %d", len(active))
	}

	got, _ := f.machine.GetEvent(ctx, second.ID)
	if got.Status != StatusReserved {
		t.Errorf("rejected activation mutated the event to %s", got.Status)
	}

	// Once the first event finishes, the second can take the device.
	if _, err := f.machine.Complete(ctx, first.ID); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if _, err := f.machine.Activate(ctx, second.ID); err != nil {
		t.Fatalf("Activate after release failed: %v", err)
	}
}

func TestPenalize(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")
	f.machine.Activate(ctx, e.ID) //nolint:errcheck
	f.machine.Complete(ctx, e.ID) //nolint:errcheck

	got, err := f.machine.Penalize(ctx, e.ID, 5, PenalizeDamagedItems)
	if err != nil {
		t.Fatalf("Penalize failed: %v", err)
	}
	if got.PenalizeCharge == nil || *got.PenalizeCharge != 5 {
		t.Error("expected penalty charge recorded")
	}
	if got.PenalizeReason == nil || *got.PenalizeReason != PenalizeDamagedItems {
		t.Error("expected penalty reason recorded")
	}

	if _, err := f.machine.Penalize(ctx, e.ID, -1, PenalizeMissingItems); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestSweeperExpiresDueEvents(t *testing.T) {
	f := newFixture("dev-1", "dev-2")
	ctx := context.Background()

	a := f.reservedEvent(t, "dev-1")
	f.machine.Activate(ctx, a.ID) //nolint:errcheck

	b, _ := f.machine.Create(ctx, &Event{
		OrgID: "org-1", DeviceID: "dev-2", EventType: TypeStorage, Status: StatusInProgress,
	})

	f.clock.Advance(5 * time.Hour)

	s := NewSweeper(f.machine, time.Minute)
	if got := s.expireDue(ctx); got != 2 {
		t.Errorf("expected 2 expired, got %d", got)
	}

	for _, id := range []string{a.ID, b.ID} {
		e, _ := f.machine.GetEvent(ctx, id)
		if e.Status != StatusExpired {
			t.Errorf("event %s: expected expired, got %s", id, e.Status)
		}
	}

	// A second pass finds nothing.
	if got := s.expireDue(ctx); got != 0 {
		t.Errorf("expected idempotent sweep, got %d", got)
	}
}

func TestReconcilerHealsCrashedTransition(t *testing.T) {
	f := newFixture("dev-1", "dev-2", "dev-3")
	ctx := context.Background()

	// dev-1: event finished but device stuck in reserved (crash between
	// the two writes).
	a := f.reservedEvent(t, "dev-1")
	f.machine.Activate(ctx, a.ID) //nolint:errcheck
	f.machine.Complete(ctx, a.ID) //nolint:errcheck
	f.devices.statuses["dev-1"] = device.StatusReserved

	// dev-2: active event but device shows available.
	b := f.reservedEvent(t, "dev-2")
	f.machine.Activate(ctx, b.ID) //nolint:errcheck
	f.devices.statuses["dev-2"] = device.StatusAvailable

	list := func(context.Context) ([]device.Device, error) {
		var out []device.Device
		for id, status := range f.devices.statuses {
			out = append(out, device.Device{ID: id, OrgID: "org-1", Status: status})
		}
		return out, nil
	}

	r := NewReconciler(f.repo, f.devices, device.NewGuard(), f.policy, list)
	if err := r.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if got := f.devices.status("dev-1"); got != device.StatusAvailable {
		t.Errorf("dev-1: expected available, got %s", got)
	}
	if got := f.devices.status("dev-2"); got != device.StatusReserved {
		t.Errorf("dev-2: expected reserved, got %s", got)
	}
	if got := f.devices.status("dev-3"); got != device.StatusAvailable {
		t.Errorf("dev-3: expected untouched available, got %s", got)
	}
}

func TestReconcilerExpiredEventPolicy(t *testing.T) {
	f := newFixture("dev-1")
	ctx := context.Background()

	e := f.reservedEvent(t, "dev-1")
	f.machine.Activate(ctx, e.ID) //nolint:errcheck
	f.clock.Advance(5 * time.Hour)
	f.machine.Expire(ctx, e.ID) //nolint:errcheck

	// Pretend the maintenance write was lost.
	f.devices.statuses["dev-1"] = device.StatusAvailable

	list := func(context.Context) ([]device.Device, error) {
		return []device.Device{{ID: "dev-1", OrgID: "org-1", Status: device.StatusAvailable}}, nil
	}
	r := NewReconciler(f.repo, f.devices, device.NewGuard(), f.policy, list)
	if err := r.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if got := f.devices.status("dev-1"); got != device.StatusMaintenance {
		t.Errorf("expected maintenance per policy, got %s", got)
	}
}
