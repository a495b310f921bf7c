package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lockhaven/fleet-core/internal/device"
	"github.com/lockhaven/fleet-core/internal/infrastructure/mqtt"
)

// LockObserver is the slice of the device registry the status observer
// feeds.
type LockObserver interface {
	ObserveLockStatus(ctx context.Context, id string, status device.LockStatus) error
}

// statusReport is the wire format bridges publish on their lockstatus
// topics.
type statusReport struct {
	Status string `json:"status"`
}

// StatusObserver feeds unsolicited lock-status reports from hardware
// bridges into the device registry. Reports are observations, never
// commands: a malformed or unknown report is logged and dropped, and the
// registry's idempotent ObserveLockStatus absorbs duplicates.
type StatusObserver struct {
	bus      Bus
	registry LockObserver
	qos      byte
	logger   Logger
}

// NewStatusObserver creates an observer feeding the registry.
func NewStatusObserver(bus Bus, registry LockObserver, qos byte) *StatusObserver {
	return &StatusObserver{
		bus:      bus,
		registry: registry,
		qos:      qos,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the observer.
func (o *StatusObserver) SetLogger(logger Logger) {
	if logger != nil {
		o.logger = logger
	}
}

// Start subscribes to all bridge lockstatus topics.
func (o *StatusObserver) Start(ctx context.Context) error {
	topic := mqtt.Topics{}.AllLockStatuses()
	err := o.bus.Subscribe(topic, o.qos, func(topic string, payload []byte) error {
		o.handle(ctx, topic, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to lock statuses: %w", err)
	}
	return nil
}

// Stop removes the lockstatus subscription.
func (o *StatusObserver) Stop() {
	if err := o.bus.Unsubscribe(mqtt.Topics{}.AllLockStatuses()); err != nil {
		o.logger.Warn("lockstatus unsubscribe failed", "error", err)
	}
}

func (o *StatusObserver) handle(ctx context.Context, topic string, payload []byte) {
	// fleetcore/lockstatus/{vendor}/{device_id}
	parts := strings.Split(topic, "/")
	if len(parts) != 4 {
		o.logger.Warn("malformed lockstatus topic", "topic", topic)
		return
	}
	deviceID := parts[3]

	var report statusReport
	if err := json.Unmarshal(payload, &report); err != nil {
		o.logger.Warn("malformed lockstatus payload", "topic", topic, "error", err)
		return
	}

	status := device.LockStatus(report.Status)
	if err := device.ValidateLockStatus(status); err != nil {
		o.logger.Warn("unknown lock status reported",
			"device_id", deviceID, "status", report.Status)
		return
	}

	if err := o.registry.ObserveLockStatus(ctx, deviceID, status); err != nil {
		o.logger.Error("lock status observation failed",
			"device_id", deviceID, "status", status, "error", err)
	}
}
