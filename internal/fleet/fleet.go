// Package fleet assembles the service layer into one programmatic
// surface. Operator tooling and embedders reach the device registry,
// the event machine, the reservation manager, the product tracker, and
// the location catalogue through a single Core value rather than wiring
// each service themselves.
package fleet

import (
	"errors"

	"github.com/lockhaven/fleet-core/internal/device"
	"github.com/lockhaven/fleet-core/internal/event"
	"github.com/lockhaven/fleet-core/internal/location"
	"github.com/lockhaven/fleet-core/internal/reservation"
	"github.com/lockhaven/fleet-core/internal/tracking"
)

// ErrIncomplete is returned by New when a required service is missing.
var ErrIncomplete = errors.New("fleet: core wiring incomplete")

// Core is the assembled service layer. All services share the same
// per-device guard and settings cache; callers interact with them
// directly.
type Core struct {
	Devices      *device.Registry
	Events       *event.Machine
	Reservations *reservation.Manager
	Tracking     *tracking.Tracker
	Locations    location.Repository
}

// New validates that every service is present and returns the assembled
// Core. A partially wired core would fail at first use on a nil service,
// far from the construction mistake; failing here keeps the error at
// the call site.
func New(devices *device.Registry, events *event.Machine, reservations *reservation.Manager, tracker *tracking.Tracker, locations location.Repository) (*Core, error) {
	c := &Core{
		Devices:      devices,
		Events:       events,
		Reservations: reservations,
		Tracking:     tracker,
		Locations:    locations,
	}
	if devices == nil || events == nil || reservations == nil || tracker == nil || locations == nil {
		return nil, ErrIncomplete
	}
	return c, nil
}
