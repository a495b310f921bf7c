// Package device provides the Device Registry for Fleet Core.
//
// The Device Registry is the authoritative catalogue of every physical
// unit in the fleet: lockers, delivery compartments, vending slots,
// device towers. It owns device identity, business status, the observed
// lock status, and the per-device guard that all scheduling writes run
// inside.
//
// # Key Types
//
//   - Device: one physical unit with its hardware addressing and status
//   - HardwareType: locking vendor (linka, spintly, ojmar, gantner, ...)
//   - Mode: operational profile (storage, rental, delivery, vending, service)
//   - Status: scheduling state (available, reserved, maintenance, expired)
//   - LockStatus: physical state last reported by hardware
//   - Guard: per-device mutual exclusion for read-then-write sequences
//
// # Status Ownership
//
// Status and LockStatus answer different questions and move independently.
// Status says whether the scheduler may hand the device out; it changes
// only through Registry.SetStatus, driven by event transitions and the
// recovery sweep. LockStatus says what the lock hardware last reported;
// it changes only through Registry.ObserveLockStatus, which is idempotent
// and never consults scheduling state. A device can be reserved while its
// door stands open, and available while offline.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo, device.NewGuard())
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Deterministic selection: lowest locker number wins, claim runs
//	// inside the device's guard.
//	sel := device.Selection{OrgID: orgID, Mode: device.ModeRental, LocationID: locID}
//	d, err := registry.FindAvailable(ctx, sel,
//	    func(ctx context.Context, d *device.Device) error {
//	        return claimForReservation(ctx, d)
//	    })
//
// # Thread Safety
//
// The Registry is safe for concurrent use. Cached devices are deep-copied
// on every read and write, and the Guard serialises claim sequences per
// device without blocking unrelated devices.
package device
