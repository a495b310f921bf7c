package hardware

import "errors"

// Domain-specific errors for hardware operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnsupportedHardware is returned when no adapter is registered
	// for a device's hardware type.
	ErrUnsupportedHardware = errors.New("hardware: unsupported hardware type")

	// ErrCommandFailed is returned when a lock command fails after all
	// retry attempts are exhausted.
	ErrCommandFailed = errors.New("hardware: command failed")

	// ErrBridgeTimeout is returned when a bridge does not acknowledge a
	// command within the configured timeout.
	ErrBridgeTimeout = errors.New("hardware: bridge acknowledgement timed out")

	// ErrBridgeRejected is returned when a bridge acknowledges a command
	// with an error status.
	ErrBridgeRejected = errors.New("hardware: bridge rejected command")

	// ErrUnknownStatus is returned when a bridge reports a lock status
	// outside the known set.
	ErrUnknownStatus = errors.New("hardware: unknown lock status")
)
