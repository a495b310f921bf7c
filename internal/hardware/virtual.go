package hardware

import (
	"context"
	"sync"

	"github.com/lockhaven/fleet-core/internal/device"
)

// VirtualAdapter is a software lock for the virtual hardware type. It
// backs development fleets and tests: no physical hardware, commands
// mutate an in-memory lock state.
//
// FailNext makes the next commands fail, which lets tests exercise the
// Commander's retry path and the fault flag on events.
type VirtualAdapter struct {
	mu    sync.Mutex
	state map[string]device.LockStatus

	failNext int
	failErr  error
}

// NewVirtualAdapter creates a virtual adapter with no known devices.
// Unknown devices poll as locked.
func NewVirtualAdapter() *VirtualAdapter {
	return &VirtualAdapter{state: make(map[string]device.LockStatus)}
}

// Unlock opens the virtual lock.
func (v *VirtualAdapter) Unlock(ctx context.Context, d *device.Device) error {
	if err := v.checkFail(ctx); err != nil {
		return err
	}
	v.mu.Lock()
	v.state[d.ID] = device.LockOpen
	v.mu.Unlock()
	return nil
}

// Lock secures the virtual lock.
func (v *VirtualAdapter) Lock(ctx context.Context, d *device.Device) error {
	if err := v.checkFail(ctx); err != nil {
		return err
	}
	v.mu.Lock()
	v.state[d.ID] = device.LockLocked
	v.mu.Unlock()
	return nil
}

// PollStatus reports the virtual lock state.
func (v *VirtualAdapter) PollStatus(ctx context.Context, d *device.Device) (device.LockStatus, error) {
	if err := v.checkFail(ctx); err != nil {
		return device.LockUnknown, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if s, ok := v.state[d.ID]; ok {
		return s, nil
	}
	return device.LockLocked, nil
}

// FailNext makes the next n commands return err.
func (v *VirtualAdapter) FailNext(n int, err error) {
	v.mu.Lock()
	v.failNext = n
	v.failErr = err
	v.mu.Unlock()
}

func (v *VirtualAdapter) checkFail(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failNext > 0 {
		v.failNext--
		return v.failErr
	}
	return nil
}
