package hardware

import (
	"context"

	"github.com/lockhaven/fleet-core/internal/device"
)

// Adapter is the vendor boundary: one implementation per hardware type
// drives the physical locks for that vendor. The scheduling core calls
// adapters only through the Commander, never directly.
//
// Implementations must honour ctx cancellation and deadlines, must not
// retry internally (the Commander owns retry policy), and must be safe
// for concurrent use across devices.
type Adapter interface {
	// Unlock opens the device's lock.
	Unlock(ctx context.Context, d *device.Device) error

	// Lock secures the device's lock. Vendors whose locks self-secure
	// mechanically should return nil without issuing a command.
	Lock(ctx context.Context, d *device.Device) error

	// PollStatus queries the current physical lock state.
	PollStatus(ctx context.Context, d *device.Device) (device.LockStatus, error)
}

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
