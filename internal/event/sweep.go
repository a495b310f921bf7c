package event

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Sweeper periodically expires overdue events and reconciles device
// status after a crash. Expiry is detected by comparing the stored
// deadline against the injected clock; there is no timer per event.
type Sweeper struct {
	machine  *Machine
	interval time.Duration
	logger   Logger

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewSweeper creates a sweeper over the given machine.
func NewSweeper(machine *Machine, interval time.Duration) *Sweeper {
	return &Sweeper{
		machine:  machine,
		interval: interval,
		logger:   noopLogger{},
		done:     make(chan struct{}),
	}
}

// SetLogger sets the logger for the sweeper.
func (s *Sweeper) SetLogger(logger Logger) {
	s.logger = logger
}

// Start launches the background sweep loop. One reconciliation pass runs
// immediately so a crashed process heals on boot, before new traffic
// observes stale device statuses.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for the in-flight pass.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

// runOnce performs a single sweep pass.
func (s *Sweeper) runOnce(ctx context.Context) {
	expired := s.expireDue(ctx)
	if expired > 0 {
		s.logger.Info("expiry sweep", "expired", expired)
	}
}

// expireDue expires every event whose deadline has elapsed.
// Each expiry runs under its own device guard; one failure does not
// abort the pass.
func (s *Sweeper) expireDue(ctx context.Context) int {
	now := s.machine.clock.Now()
	due, err := s.machine.repo.ListDue(ctx, now)
	if err != nil {
		s.logger.Error("listing due events failed", "error", err)
		return 0
	}

	expired := 0
	for i := range due {
		if _, err := s.machine.Expire(ctx, due[i].ID); err != nil {
			// ErrNotDue means a concurrent transition beat the sweep.
			if !errors.Is(err, ErrNotDue) && !errors.Is(err, ErrInvalidTransition) {
				s.logger.Error("expiring event failed", "event_id", due[i].ID, "error", err)
			}
			continue
		}
		expired++
	}
	return expired
}
