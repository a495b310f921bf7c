package device

import "sync"

// Guard provides per-device mutual exclusion. Every code path that reads
// device state and then writes a dependent change (availability checks,
// event transitions, reservation activation) must run inside the guard for
// that device, so interleaved operations cannot both observe the device as
// available and both claim it.
//
// Locks are keyed by device ID and created on first use. A lock is never
// removed; the fleet size is bounded by physical hardware, so the map stays
// small for the life of the process.
type Guard struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given device and returns the release
// function. Callers must invoke release exactly once, typically via defer.
func (g *Guard) Lock(deviceID string) (release func()) {
	g.mu.Lock()
	m, ok := g.locks[deviceID]
	if !ok {
		m = &sync.Mutex{}
		g.locks[deviceID] = m
	}
	g.mu.Unlock()

	m.Lock()
	return m.Unlock
}
