// Package clock provides an injectable time source.
//
// All scheduling, expiry, and recurrence logic takes a Clock rather than
// calling time.Now directly, so tests can drive time deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source used by all time-dependent components.
type Clock interface {
	// Now returns the current time in UTC.
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Mock is a controllable clock for tests.
//
// Thread Safety: all methods are safe for concurrent use.
type Mock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewMock creates a Mock frozen at the given time.
func NewMock(now time.Time) *Mock {
	return &Mock{now: now.UTC()}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set moves the mock to the given time.
func (m *Mock) Set(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now.UTC()
}

// Advance moves the mock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
