package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockhaven/fleet-core/internal/clock"
	"github.com/lockhaven/fleet-core/internal/device"
	"github.com/lockhaven/fleet-core/internal/event"
	"github.com/lockhaven/fleet-core/internal/schedule"
)

// mockRepo is an in-memory Repository for manager tests.
type mockRepo struct {
	mu           sync.Mutex
	reservations map[string]*Reservation
	createErr    error
	updateErr    error
}

func newMockRepo() *mockRepo {
	return &mockRepo{reservations: make(map[string]*Reservation)}
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return r.DeepCopy(), nil
}

func (m *mockRepo) GetByTrackingNumber(_ context.Context, orgID, trackingNumber string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reservations {
		if r.OrgID == orgID && r.TrackingNumber == trackingNumber && !r.Canceled() {
			return r.DeepCopy(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Create(_ context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.reservations[r.ID]; ok {
		return ErrExists
	}
	m.reservations[r.ID] = r.DeepCopy()
	return nil
}

func (m *mockRepo) Update(_ context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.reservations[r.ID]; !ok {
		return ErrNotFound
	}
	m.reservations[r.ID] = r.DeepCopy()
	return nil
}

func (m *mockRepo) ListActiveByDevice(_ context.Context, deviceID string) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, r := range m.reservations {
		if r.DeviceID == deviceID && !r.Canceled() {
			out = append(out, *r.DeepCopy())
		}
	}
	return out, nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID string) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, r := range m.reservations {
		if r.UserID != nil && *r.UserID == userID {
			out = append(out, *r.DeepCopy())
		}
	}
	return out, nil
}

// mockDevices serves a fixed fleet in selection order.
type mockDevices struct {
	devices []*device.Device
	guard   *device.Guard

	mu       sync.Mutex
	searches []device.Selection
}

func (m *mockDevices) GetDevice(_ context.Context, id string) (*device.Device, error) {
	for _, d := range m.devices {
		if d.ID == id {
			return d.DeepCopy(), nil
		}
	}
	return nil, device.ErrNotFound
}

func (m *mockDevices) FindAvailable(ctx context.Context, sel device.Selection, claim device.ClaimFunc) (*device.Device, error) {
	m.mu.Lock()
	m.searches = append(m.searches, sel)
	m.mu.Unlock()

	for _, d := range m.devices {
		if d.OrgID != sel.OrgID || d.Mode != sel.Mode {
			continue
		}
		if sel.LocationID != "" && (d.LocationID == nil || *d.LocationID != sel.LocationID) {
			continue
		}
		if sel.SizeID != "" && (d.SizeID == nil || *d.SizeID != sel.SizeID) {
			continue
		}
		if sel.ProductID != "" && (d.ProductID == nil || *d.ProductID != sel.ProductID) {
			continue
		}
		if d.Status != device.StatusAvailable {
			continue
		}
		release := m.guard.Lock(d.ID)
		err := claim(ctx, d.DeepCopy())
		release()
		if err != nil {
			continue
		}
		return d.DeepCopy(), nil
	}
	return nil, device.ErrNoAvailability
}

// mockEvents records started transactions.
type mockEvents struct {
	mu      sync.Mutex
	created []*event.Event
	err     error
}

func (m *mockEvents) CreateLocked(_ context.Context, e *event.Event) (*event.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cpy := e.DeepCopy()
	if cpy.ID == "" {
		cpy.ID = fmt.Sprintf("evt-%d", len(m.created)+1)
	}
	m.created = append(m.created, cpy)
	return cpy.DeepCopy(), nil
}

type fixedSettings struct {
	s     schedule.Settings
	err   error
	calls int
}

func (f *fixedSettings) Get(context.Context, string) (schedule.Settings, error) {
	f.calls++
	if f.err != nil {
		return schedule.Settings{}, f.err
	}
	return f.s, nil
}

type fixture struct {
	manager *Manager
	repo    *mockRepo
	devices *mockDevices
	events  *mockEvents
	clock   *clock.Mock
}

func newFixture(t *testing.T, fleet ...*device.Device) *fixture {
	t.Helper()

	if len(fleet) == 0 {
		fleet = []*device.Device{testFleetDevice("dev-1", 1)}
	}

	guard := device.NewGuard()
	repo := newMockRepo()
	devices := &mockDevices{devices: fleet, guard: guard}
	events := &mockEvents{}
	settings := &fixedSettings{s: schedule.Settings{
		MaxRentalTime: 8, MaxRentalTimeUnit: schedule.UnitHour,
		MaxReservationTime: 12, MaxReservationTimeUnit: schedule.UnitWeek,
		TransactionBufferTime: 30, TransactionBufferTimeUnit: schedule.UnitMinute,
	}}
	clk := clock.NewMock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)) // Monday

	return &fixture{
		manager: NewManager(repo, settings, devices, events, guard, clk),
		repo:    repo,
		devices: devices,
		events:  events,
		clock:   clk,
	}
}

func testFleetDevice(id string, locker int) *device.Device {
	return &device.Device{
		ID:           id,
		OrgID:        "org-1",
		Name:         "Locker " + id,
		LockerNumber: locker,
		HardwareType: device.HardwareVirtual,
		Mode:         device.ModeRental,
		Status:       device.StatusAvailable,
		LockStatus:   device.LockLocked,
		CreatedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func weekdayPattern(id, deviceID string) *Reservation {
	return &Reservation{
		ID:        id,
		OrgID:     "org-1",
		Mode:      device.ModeRental,
		Recurring: true,
		Monday:    true, Tuesday: true, Wednesday: true, Thursday: true, Friday: true,
		FromTime:  "09:00",
		ToTime:    "10:00",
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		DeviceID:  deviceID,
	}
}

func oneOff(id, deviceID, from, to string, day time.Time) *Reservation {
	return &Reservation{
		ID:        id,
		OrgID:     "org-1",
		Mode:      device.ModeRental,
		FromTime:  from,
		ToTime:    to,
		StartDate: day,
		EndDate:   day,
		DeviceID:  deviceID,
	}
}

func TestManagerCreate_ExplicitDevice(t *testing.T) {
	f := newFixture(t)

	r, err := f.manager.Create(context.Background(), weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)
	assert.Equal(t, "dev-1", r.DeviceID)
	assert.False(t, r.CreatedAt.IsZero())

	stored, err := f.repo.GetByID(context.Background(), "res-a")
	require.NoError(t, err)
	assert.True(t, stored.Recurring)
}

// A weekday 09:00-10:00 pattern blocks a Wednesday 09:45-10:30 slot, but a
// Wednesday 10:31-11:00 slot clears the 30-minute buffer behind it.
func TestManagerCreate_RecurringConflictScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wednesday := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err := f.manager.Create(ctx, weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)

	_, err = f.manager.Create(ctx, oneOff("res-b", "dev-1", "09:45", "10:30", wednesday))
	require.Error(t, err)
	assert.ErrorIs(t, err, schedule.ErrConflict)

	var conflict *schedule.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "res-a", conflict.ReservationID)

	_, err = f.manager.Create(ctx, oneOff("res-c", "dev-1", "10:31", "11:00", wednesday))
	assert.NoError(t, err)
}

func TestManagerCreate_AutoAssignSkipsConflicted(t *testing.T) {
	f := newFixture(t, testFleetDevice("dev-1", 1), testFleetDevice("dev-2", 2))
	ctx := context.Background()
	wednesday := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err := f.manager.Create(ctx, weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)

	// No device named: dev-1 conflicts, so the window lands on dev-2.
	r, err := f.manager.Create(ctx, oneOff("res-b", "", "09:45", "10:30", wednesday))
	require.NoError(t, err)
	assert.Equal(t, "dev-2", r.DeviceID)
}

func TestManagerCreate_AutoAssignHonorsSizeAndProduct(t *testing.T) {
	large, bikes := "size-l", "prod-bikes"
	d1 := testFleetDevice("dev-1", 1)
	d2 := testFleetDevice("dev-2", 2)
	d2.SizeID = &large
	d2.ProductID = &bikes

	f := newFixture(t, d1, d2)
	ctx := context.Background()
	wednesday := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	r := oneOff("res-a", "", "09:00", "10:00", wednesday)
	r.SizeID = &large
	r.ProductID = &bikes

	created, err := f.manager.Create(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "dev-2", created.DeviceID)

	// The constraints must reach the registry search, not be filtered
	// after the fact.
	require.Len(t, f.devices.searches, 1)
	assert.Equal(t, large, f.devices.searches[0].SizeID)
	assert.Equal(t, bikes, f.devices.searches[0].ProductID)

	// An unsatisfiable size yields no device at all.
	small := "size-s"
	r2 := oneOff("res-b", "", "11:00", "12:00", wednesday)
	r2.SizeID = &small
	_, err = f.manager.Create(ctx, r2)
	assert.ErrorIs(t, err, device.ErrNoAvailability)
}

func TestManagerCreate_AutoAssignWithoutLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wednesday := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	// No location on the reservation means any location qualifies.
	r, err := f.manager.Create(ctx, oneOff("res-a", "", "09:00", "10:00", wednesday))
	require.NoError(t, err)
	assert.Equal(t, "dev-1", r.DeviceID)

	require.Len(t, f.devices.searches, 1)
	assert.Empty(t, f.devices.searches[0].LocationID)
}

func TestManagerCreate_NoAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wednesday := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err := f.manager.Create(ctx, weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)

	_, err = f.manager.Create(ctx, oneOff("res-b", "", "09:45", "10:30", wednesday))
	assert.ErrorIs(t, err, device.ErrNoAvailability)
}

func TestManagerCreate_DurationCapBeforeConflicts(t *testing.T) {
	f := newFixture(t)

	long := oneOff("res-long", "dev-1", "08:00", "20:00", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	_, err := f.manager.Create(context.Background(), long)
	assert.ErrorIs(t, err, schedule.ErrRentalTooLong)
}

func TestManagerCreate_WrongMode(t *testing.T) {
	f := newFixture(t)

	r := weekdayPattern("res-a", "dev-1")
	r.Mode = device.ModeStorage
	_, err := f.manager.Create(context.Background(), r)
	assert.ErrorIs(t, err, ErrInvalidReservation)
}

func TestManagerCreate_InvalidWindow(t *testing.T) {
	f := newFixture(t)

	r := weekdayPattern("res-a", "dev-1")
	r.FromTime = "25:00"
	_, err := f.manager.Create(context.Background(), r)
	assert.ErrorIs(t, err, ErrInvalidReservation)
}

func TestManagerCancel_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)

	first, err := f.manager.Cancel(ctx, "res-a")
	require.NoError(t, err)
	require.NotNil(t, first.CanceledAt)

	f.clock.Advance(time.Hour)
	second, err := f.manager.Cancel(ctx, "res-a")
	require.NoError(t, err)
	assert.True(t, first.CanceledAt.Equal(*second.CanceledAt), "cancel must not re-stamp")
}

func TestManagerCancel_FreesTheWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wednesday := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err := f.manager.Create(ctx, weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)
	_, err = f.manager.Cancel(ctx, "res-a")
	require.NoError(t, err)

	_, err = f.manager.Create(ctx, oneOff("res-b", "dev-1", "09:45", "10:30", wednesday))
	assert.NoError(t, err)
}

func TestActivateOccurrence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)

	start := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) // Wednesday occurrence
	e, err := f.manager.ActivateOccurrence(ctx, "res-a", start)
	require.NoError(t, err)

	assert.Equal(t, "dev-1", e.DeviceID)
	assert.Equal(t, event.TypeRental, e.EventType)
	assert.Equal(t, event.StatusInProgress, e.Status)
	require.NotNil(t, e.ReservationID)
	assert.Equal(t, "res-a", *e.ReservationID)
	require.NotNil(t, e.ExpiresAt)
	assert.True(t, e.ExpiresAt.Equal(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)),
		"deadline is the occurrence end")
}

func TestActivateOccurrence_WrongStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)

	// Saturday is not in the pattern.
	_, err = f.manager.ActivateOccurrence(ctx, "res-a", time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNotDue)

	// Right day, wrong minute.
	_, err = f.manager.ActivateOccurrence(ctx, "res-a", time.Date(2026, 3, 4, 9, 1, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNotDue)
}

func TestActivateOccurrence_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)
	_, err = f.manager.Cancel(ctx, "res-a")
	require.NoError(t, err)

	_, err = f.manager.ActivateOccurrence(ctx, "res-a", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Empty(t, f.events.created)
}

func TestActivateOccurrence_OneOffActivatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	wednesday := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err := f.manager.Create(ctx, oneOff("res-b", "dev-1", "14:00", "15:00", wednesday))
	require.NoError(t, err)

	start := time.Date(2026, 3, 4, 14, 0, 0, 0, time.UTC)
	_, err = f.manager.ActivateOccurrence(ctx, "res-b", start)
	require.NoError(t, err)

	_, err = f.manager.ActivateOccurrence(ctx, "res-b", start)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.Len(t, f.events.created, 1)
}

func TestActivateOccurrence_RecurringActivatesRepeatedly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)

	_, err = f.manager.ActivateOccurrence(ctx, "res-a", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = f.manager.ActivateOccurrence(ctx, "res-a", time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, f.events.created, 2)
}

func TestActivateOccurrence_EventFailurePropagates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, weekdayPattern("res-a", "dev-1"))
	require.NoError(t, err)

	f.events.err = event.ErrDeviceOccupied
	_, err = f.manager.ActivateOccurrence(ctx, "res-a", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, event.ErrDeviceOccupied)
}

func TestGetByTrackingNumber(t *testing.T) {
	f := newFixture(t, func() *device.Device {
		d := testFleetDevice("dev-1", 1)
		d.Mode = device.ModeDelivery
		return d
	}())
	ctx := context.Background()

	r := oneOff("res-d", "dev-1", "08:00", "12:00", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	r.Mode = device.ModeDelivery
	r.TrackingNumber = "TRK-42"
	_, err := f.manager.Create(ctx, r)
	require.NoError(t, err)

	found, err := f.manager.GetByTrackingNumber(ctx, "org-1", "TRK-42")
	require.NoError(t, err)
	assert.Equal(t, "res-d", found.ID)

	_, err = f.manager.GetByTrackingNumber(ctx, "org-1", "TRK-99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeliveryNeedsTrackingNumber(t *testing.T) {
	f := newFixture(t)

	r := oneOff("res-d", "dev-1", "08:00", "12:00", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	r.Mode = device.ModeDelivery
	_, err := f.manager.Create(context.Background(), r)
	assert.ErrorIs(t, err, ErrInvalidReservation)
}

type countingSettingsRepo struct {
	settings *schedule.Settings
	calls    int
}

func (c *countingSettingsRepo) GetByOrg(context.Context, string) (*schedule.Settings, error) {
	c.calls++
	if c.settings == nil {
		return nil, ErrNoSettings
	}
	cpy := *c.settings
	return &cpy, nil
}

func (c *countingSettingsRepo) Upsert(_ context.Context, _ string, s schedule.Settings) error {
	c.settings = &s
	return nil
}

func TestSettingsProviderCaching(t *testing.T) {
	repo := &countingSettingsRepo{settings: &schedule.Settings{
		MaxRentalTime: 4, MaxRentalTimeUnit: schedule.UnitHour,
	}}
	p := NewSettingsProvider(repo, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s, err := p.Get(ctx, "org-1")
		require.NoError(t, err)
		assert.Equal(t, 4*time.Hour, s.MaxRental())
	}
	assert.Equal(t, 1, repo.calls, "repeated reads hit the cache")

	p.Invalidate("org-1")
	_, err := p.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls, "invalidation forces a reload")
}

func TestSettingsProviderUpdateInvalidates(t *testing.T) {
	repo := &countingSettingsRepo{settings: &schedule.Settings{
		MaxRentalTime: 4, MaxRentalTimeUnit: schedule.UnitHour,
		ExpireToMaintenance: false,
	}}
	p := NewSettingsProvider(repo, time.Minute)
	ctx := context.Background()

	toMaint, err := p.ExpireToMaintenance(ctx, "org-1")
	require.NoError(t, err)
	assert.False(t, toMaint)

	updated := *repo.settings
	updated.ExpireToMaintenance = true
	require.NoError(t, p.Update(ctx, "org-1", updated))

	toMaint, err = p.ExpireToMaintenance(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, toMaint, "update must not serve the stale entry")
}

func TestSettingsProviderNoSettings(t *testing.T) {
	p := NewSettingsProvider(&countingSettingsRepo{}, time.Minute)

	_, err := p.ActiveDeadline(context.Background(), "org-x")
	assert.ErrorIs(t, err, ErrNoSettings)
}

func TestManagerCreate_SettingsFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("settings store down")
	f.manager.settings = &fixedSettings{err: boom}

	_, err := f.manager.Create(context.Background(), weekdayPattern("res-a", "dev-1"))
	assert.ErrorIs(t, err, boom)
}
