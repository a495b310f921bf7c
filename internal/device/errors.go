package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNoAvailability) {
//	    // expected outcome: surface "no availability" to the user
//	}
var (
	// ErrNotFound is returned when a device ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrExists is returned when creating a device with an ID that already exists.
	ErrExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when device validation fails.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidHardwareType is returned when a hardware type is not recognised.
	ErrInvalidHardwareType = errors.New("device: invalid hardware type")

	// ErrInvalidMode is returned when a mode value is not recognised.
	ErrInvalidMode = errors.New("device: invalid mode")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("device: invalid status")

	// ErrInvalidLockStatus is returned when a lock status is not recognised.
	ErrInvalidLockStatus = errors.New("device: invalid lock status")

	// ErrInvalidPayload is returned when vendor payload validation fails.
	ErrInvalidPayload = errors.New("device: invalid vendor payload")

	// ErrInvalidName is returned when a device name is empty or too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrNoAvailability is returned by FindAvailable when no device
	// satisfies the request. This is an expected outcome requiring
	// user-facing "no availability" messaging, not a system fault.
	ErrNoAvailability = errors.New("device: no availability")

	// ErrLocationNotFound is returned when a referenced location does not exist.
	ErrLocationNotFound = errors.New("device: location not found")
)
