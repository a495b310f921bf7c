package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// StatusRecorder receives device status changes for historical recording.
// Implementations must not block; recording failures never fail the
// transition that triggered them.
type StatusRecorder interface {
	RecordDeviceStatus(deviceID, orgID string, status Status, at time.Time)
	RecordLockStatus(deviceID, orgID string, status LockStatus, at time.Time)
}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups,
// plus the per-device guard that serialises availability checks against
// the writes that depend on them.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe. SetStatus is the only method that
// changes a device's business status; higher layers must not write the
// status column directly.
type Registry struct {
	repo     Repository
	guard    *Guard
	cache    map[string]*Device // Cached devices by ID
	cacheMu  sync.RWMutex       // Protects cache
	logger   Logger
	recorder StatusRecorder
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching and
// the per-device guard.
func NewRegistry(repo Repository, guard *Guard) *Registry {
	return &Registry{
		repo:   repo,
		guard:  guard,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetStatusRecorder sets the historical status recorder.
func (r *Registry) SetStatusRecorder(rec StatusRecorder) {
	r.recorder = rec
}

// Guard exposes the per-device guard so higher layers can run their own
// read-then-write sequences inside the same exclusive scope.
func (r *Registry) Guard() *Guard {
	return r.guard
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// DeviceCount returns the number of cached devices.
func (r *Registry) DeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// GetDevice retrieves a device by ID.
// Returns ErrNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[id] = d.DeepCopy()
	r.cacheMu.Unlock()

	return d, nil
}

// ListDevices retrieves all devices for an organisation.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context, orgID string) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Filter from cache if populated
	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.OrgID == orgID {
				// Deep copy to prevent external mutation of cache
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.List(ctx, orgID)
}

// GetDevicesByLocation retrieves all devices at a specific location.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByLocation(ctx context.Context, locationID string) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) > 0 {
		var devices []Device
		for _, d := range r.cache {
			if d.LocationID != nil && *d.LocationID == locationID {
				devices = append(devices, *d.DeepCopy())
			}
		}
		return devices, nil
	}

	return r.repo.ListByLocation(ctx, locationID)
}

// GetDevicesByStatus retrieves all devices with a specific business status.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByStatus(ctx context.Context, status Status) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var devices []Device
	for _, d := range r.cache {
		if d.Status == status {
			devices = append(devices, *d.DeepCopy())
		}
	}
	return devices, nil
}

// GetDeviceByCustomIdentifier retrieves a device by its installer-assigned
// identifier within an organisation.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDeviceByCustomIdentifier(ctx context.Context, orgID, identifier string) (*Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, d := range r.cache {
		if d.OrgID == orgID && d.CustomIdentifier != nil && *d.CustomIdentifier == identifier {
			return d.DeepCopy(), nil
		}
	}
	return nil, ErrNotFound
}

// CreateDevice creates a new device.
// It validates the device, generates an ID if needed, and persists it.
// New devices start available with an unknown lock status unless set.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) error {
	// Generate ID if not provided
	if d.ID == "" {
		d.ID = GenerateID()
	}
	if d.Status == "" {
		d.Status = StatusAvailable
	}
	if d.LockStatus == "" {
		d.LockStatus = LockUnknown
	}

	if err := ValidateDevice(d); err != nil {
		return err
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", d.ID, "name", d.Name, "hardware_type", d.HardwareType)
	return nil
}

// UpdateDevice updates an existing device's configuration.
// Status changes submitted through UpdateDevice are ignored; SetStatus is
// the only path that moves a device between business statuses.
func (r *Registry) UpdateDevice(ctx context.Context, d *Device) error {
	existing, err := r.GetDevice(ctx, d.ID)
	if err != nil {
		return err
	}

	// Preserve the status columns owned by SetStatus / ObserveLockStatus.
	d.Status = existing.Status
	d.LockStatus = existing.LockStatus
	d.TransactionCount = existing.TransactionCount

	if err := ValidateDevice(d); err != nil {
		return err
	}

	if err := r.repo.Update(ctx, d); err != nil {
		return err
	}

	r.cacheMu.Lock()
	r.cache[d.ID] = d.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", d.ID, "name", d.Name)
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetStatus moves a device to a new business status. It is the single
// legal mutator of device status; event transitions and the recovery
// sweep call it rather than writing the column themselves.
//
// Callers that derived the new status from a read of device or event
// state must hold the device's guard across the read and this call.
func (r *Registry) SetStatus(ctx context.Context, id string, status Status) error {
	if err := ValidateStatus(status); err != nil {
		return err
	}

	if err := r.repo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	now := time.Now().UTC()
	var orgID string

	// Update cache using deep copy to prevent race conditions
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.Status = status
		updated.UpdatedAt = now
		r.cache[id] = updated
		orgID = updated.OrgID
	}
	r.cacheMu.Unlock()

	if r.recorder != nil {
		r.recorder.RecordDeviceStatus(id, orgID, status, now)
	}

	r.logger.Debug("device status updated", "id", id, "status", status)
	return nil
}

// ObserveLockStatus records a lock status reported by hardware. It is
// idempotent: observing the status the device already has is a no-op, so
// bridges can re-report freely. Observations never touch the business
// status and never block on scheduling state.
func (r *Registry) ObserveLockStatus(ctx context.Context, id string, status LockStatus) error {
	if err := ValidateLockStatus(status); err != nil {
		return err
	}

	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	unchanged := ok && cached.LockStatus == status
	r.cacheMu.RUnlock()

	if unchanged {
		return nil
	}

	if err := r.repo.UpdateLockStatus(ctx, id, status); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Hardware can report for devices removed from the fleet.
			r.logger.Warn("lock status for unknown device", "id", id, "status", status)
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	var orgID string

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.LockStatus = status
		updated.UpdatedAt = now
		r.cache[id] = updated
		orgID = updated.OrgID
	}
	r.cacheMu.Unlock()

	if r.recorder != nil {
		r.recorder.RecordLockStatus(id, orgID, status, now)
	}

	r.logger.Debug("lock status observed", "id", id, "status", status)
	return nil
}

// IncrementTransactionCount bumps the device's finished-transaction
// counter. Called once per event that reaches the finished status.
func (r *Registry) IncrementTransactionCount(ctx context.Context, id string) error {
	if err := r.repo.IncrementTransactionCount(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.TransactionCount++
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	return nil
}

// AssignLocation moves a device to another location.
func (r *Registry) AssignLocation(ctx context.Context, id string, locationID *string) error {
	if err := r.repo.AssignLocation(ctx, id, locationID); err != nil {
		return err
	}

	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.LocationID = copyStringPtr(locationID)
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Info("device location assigned", "id", id)
	return nil
}

// ClaimFunc runs inside a candidate device's guard during FindAvailable.
// It checks scheduling state and, if the device suits, performs the claim
// (creating the event, moving the status). Returning an error skips the
// candidate without failing the search.
type ClaimFunc func(ctx context.Context, d *Device) error

// Selection constrains the candidate pool for FindAvailable. OrgID and
// Mode are required; the remaining fields are skipped when empty, so an
// empty LocationID means any location.
type Selection struct {
	OrgID      string
	Mode       Mode
	LocationID string
	SizeID     string
	ProductID  string
}

// FindAvailable walks candidate devices in deterministic order (lowest
// locker number first, then earliest creation time) and invokes claim on
// each available one inside its guard. The first device whose claim
// succeeds is returned; if every candidate is busy or rejected, the
// search fails with ErrNoAvailability.
//
// Holding the guard across the status check and the claim is what makes
// concurrent searches for the same window pick different devices.
func (r *Registry) FindAvailable(ctx context.Context, sel Selection, claim ClaimFunc) (*Device, error) {
	candidates, err := r.repo.ListForSelection(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("listing candidate devices: %w", err)
	}

	for i := range candidates {
		id := candidates[i].ID

		release := r.guard.Lock(id)

		// Re-read inside the guard: a concurrent claim may have taken
		// the device between the listing and the lock.
		d, err := r.GetDevice(ctx, id)
		if err != nil {
			release()
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}

		if d.Status != StatusAvailable {
			release()
			continue
		}

		err = claim(ctx, d)
		release()

		if err != nil {
			r.logger.Debug("candidate device rejected", "id", id, "reason", err)
			continue
		}
		return d, nil
	}

	return nil, ErrNoAvailability
}
