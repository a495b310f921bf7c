package hardware

import (
	"context"
	"fmt"
	"time"

	"github.com/lockhaven/fleet-core/internal/device"
)

// Commander is the single entry point the scheduling core uses to drive
// hardware. It resolves the adapter for the device's hardware type and
// applies the retry policy: a bounded number of attempts with doubling
// backoff and a per-attempt timeout.
//
// Commands are idempotent at the lock level (unlocking an open lock is a
// no-op for every supported vendor), so retrying after an ambiguous
// failure is safe.
type Commander struct {
	dispatch *Dispatcher
	attempts int
	backoff  time.Duration
	timeout  time.Duration
	logger   Logger
}

// NewCommander creates a commander over the given dispatcher.
// attempts is the total number of tries (minimum 1), backoff the delay
// before the second try (doubled each retry), timeout the per-attempt
// deadline.
func NewCommander(dispatch *Dispatcher, attempts int, backoff, timeout time.Duration) *Commander {
	if attempts < 1 {
		attempts = 1
	}
	return &Commander{
		dispatch: dispatch,
		attempts: attempts,
		backoff:  backoff,
		timeout:  timeout,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the commander.
func (c *Commander) SetLogger(logger Logger) {
	c.logger = logger
}

// Unlock opens the device's lock, retrying on failure.
func (c *Commander) Unlock(ctx context.Context, d *device.Device) error {
	return c.execute(ctx, d, "unlock", func(ctx context.Context, a Adapter) error {
		return a.Unlock(ctx, d)
	})
}

// Lock secures the device's lock, retrying on failure.
func (c *Commander) Lock(ctx context.Context, d *device.Device) error {
	return c.execute(ctx, d, "lock", func(ctx context.Context, a Adapter) error {
		return a.Lock(ctx, d)
	})
}

// PollStatus queries the current physical lock state, retrying on failure.
func (c *Commander) PollStatus(ctx context.Context, d *device.Device) (device.LockStatus, error) {
	var status device.LockStatus
	err := c.execute(ctx, d, "poll", func(ctx context.Context, a Adapter) error {
		var err error
		status, err = a.PollStatus(ctx, d)
		return err
	})
	if err != nil {
		return device.LockUnknown, err
	}
	return status, nil
}

// execute runs op against the device's adapter with retry and backoff.
// The last attempt's error is wrapped in ErrCommandFailed so callers can
// flag the event for attention without inspecting vendor detail.
func (c *Commander) execute(ctx context.Context, d *device.Device, name string, op func(context.Context, Adapter) error) error {
	adapter, err := c.dispatch.For(d.HardwareType)
	if err != nil {
		return err
	}

	delay := c.backoff
	var lastErr error

	for attempt := 1; attempt <= c.attempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if c.timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		}
		lastErr = op(attemptCtx, adapter)
		if cancel != nil {
			cancel()
		}

		if lastErr == nil {
			return nil
		}

		c.logger.Warn("hardware command failed",
			"device_id", d.ID,
			"hardware_type", d.HardwareType,
			"command", name,
			"attempt", attempt,
			"error", lastErr,
		)

		if attempt == c.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %w", ErrCommandFailed, name, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("%w: %s after %d attempts: %w", ErrCommandFailed, name, c.attempts, lastErr)
}
