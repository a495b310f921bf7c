package event

import (
	"context"
	"errors"

	"github.com/lockhaven/fleet-core/internal/device"
)

// Reconciler re-derives device status from event state. A crash between
// persisting an event transition and applying its device status change
// can leave a device stranded; event rows are the source of truth, so
// recovery walks every device and recomputes what its status should be.
type Reconciler struct {
	repo    Repository
	devices DeviceRegistry
	guard   *device.Guard
	policy  Policy
	logger  Logger

	// list enumerates the fleet; device.Registry.ListDevices per org is
	// too narrow, so the registry's full listing is injected.
	list func(ctx context.Context) ([]device.Device, error)
}

// NewReconciler creates a reconciler. list must enumerate every device.
func NewReconciler(repo Repository, devices DeviceRegistry, guard *device.Guard, policy Policy,
	list func(ctx context.Context) ([]device.Device, error)) *Reconciler {
	return &Reconciler{
		repo:    repo,
		devices: devices,
		guard:   guard,
		policy:  policy,
		logger:  noopLogger{},
		list:    list,
	}
}

// SetLogger sets the logger for the reconciler.
func (r *Reconciler) SetLogger(logger Logger) {
	r.logger = logger
}

// Reconcile recomputes every device's status from its latest active
// event. Devices in maintenance are left alone: that status is an
// operator or expiry decision, not derivable from events.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	devices, err := r.list(ctx)
	if err != nil {
		return err
	}

	fixed := 0
	for i := range devices {
		changed, err := r.reconcileDevice(ctx, &devices[i])
		if err != nil {
			r.logger.Error("device reconciliation failed", "device_id", devices[i].ID, "error", err)
			continue
		}
		if changed {
			fixed++
		}
	}

	if fixed > 0 {
		r.logger.Info("device status reconciled", "fixed", fixed)
	}
	return nil
}

func (r *Reconciler) reconcileDevice(ctx context.Context, d *device.Device) (bool, error) {
	release := r.guard.Lock(d.ID)
	defer release()

	if d.Status == device.StatusMaintenance {
		return false, nil
	}

	want := device.StatusAvailable
	active, err := r.repo.GetActiveByDevice(ctx, d.ID)
	switch {
	case err == nil:
		if active.Status == StatusExpired {
			toMaintenance, perr := r.policy.ExpireToMaintenance(ctx, active.OrgID)
			if perr != nil {
				return false, perr
			}
			if toMaintenance {
				want = device.StatusMaintenance
			}
		} else {
			want = device.StatusReserved
		}
	case errors.Is(err, ErrNotFound):
		// No active event: the device belongs in the pool.
	default:
		return false, err
	}

	if d.Status == want {
		return false, nil
	}

	if err := r.devices.SetStatus(ctx, d.ID, want); err != nil {
		return false, err
	}
	r.logger.Warn("device status corrected",
		"device_id", d.ID, "from", d.Status, "to", want)
	return true, nil
}
