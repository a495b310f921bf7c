package location

import "errors"

var (
	// ErrNotFound is returned when a location ID does not exist.
	ErrNotFound = errors.New("location: not found")

	// ErrInvalidLocation is returned when a location fails validation.
	ErrInvalidLocation = errors.New("location: invalid location")

	// ErrHasDevices is returned when deleting a location that still has
	// devices assigned.
	ErrHasDevices = errors.New("location: has devices: reassign devices first")
)
