package hardware

import (
	"fmt"
	"sync"

	"github.com/lockhaven/fleet-core/internal/device"
)

// Dispatcher routes commands to the adapter registered for each hardware
// type. Registration happens once during startup wiring; lookups after
// that are read-only and safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	adapters map[device.HardwareType]Adapter
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{adapters: make(map[device.HardwareType]Adapter)}
}

// Register binds an adapter to a hardware type, replacing any previous
// binding for that type.
func (d *Dispatcher) Register(h device.HardwareType, a Adapter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adapters[h] = a
}

// For returns the adapter for a hardware type.
// Returns ErrUnsupportedHardware if none is registered.
func (d *Dispatcher) For(h device.HardwareType) (Adapter, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	a, ok := d.adapters[h]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHardware, h)
	}
	return a, nil
}

// Supported returns the hardware types with a registered adapter.
func (d *Dispatcher) Supported() []device.HardwareType {
	d.mu.RLock()
	defer d.mu.RUnlock()

	types := make([]device.HardwareType, 0, len(d.adapters))
	for h := range d.adapters {
		types = append(types, h)
	}
	return types
}
