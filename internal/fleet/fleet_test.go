package fleet

import (
	"errors"
	"testing"

	"github.com/lockhaven/fleet-core/internal/device"
	"github.com/lockhaven/fleet-core/internal/event"
	"github.com/lockhaven/fleet-core/internal/location"
	"github.com/lockhaven/fleet-core/internal/reservation"
	"github.com/lockhaven/fleet-core/internal/tracking"
)

func TestNewAssemblesCore(t *testing.T) {
	registry := device.NewRegistry(nil, device.NewGuard())
	locations := location.NewSQLiteRepository(nil)

	core, err := New(registry, &event.Machine{}, &reservation.Manager{}, &tracking.Tracker{}, locations)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if core.Devices != registry || core.Locations != location.Repository(locations) ||
		core.Reservations == nil || core.Tracking == nil || core.Events == nil {
		t.Error("core does not expose the services it was assembled from")
	}
}

func TestNewRejectsMissingServices(t *testing.T) {
	if _, err := New(nil, nil, nil, nil, nil); !errors.Is(err, ErrIncomplete) {
		t.Errorf("expected ErrIncomplete, got %v", err)
	}

	// One missing service is enough to fail assembly.
	registry := device.NewRegistry(nil, device.NewGuard())
	if _, err := New(registry, &event.Machine{}, &reservation.Manager{}, &tracking.Tracker{}, nil); !errors.Is(err, ErrIncomplete) {
		t.Errorf("expected ErrIncomplete without locations, got %v", err)
	}
}
