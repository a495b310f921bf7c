// Package history fans device and event changes out to observers: the
// InfluxDB status history and the MQTT bus.
//
// Recording is strictly fire-and-forget. A transition that cannot be
// recorded still happened; the recorder logs the miss and moves on, it
// never pushes an error back into the lifecycle that produced the
// change.
package history

import (
	"encoding/json"
	"time"

	"github.com/lockhaven/fleet-core/internal/device"
	"github.com/lockhaven/fleet-core/internal/event"
	"github.com/lockhaven/fleet-core/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Writer is the slice of the InfluxDB client the recorder uses.
type Writer interface {
	WriteDeviceStatus(deviceID, orgID, status string, at time.Time)
	WriteLockStatus(deviceID, orgID, lockStatus string, at time.Time)
	WriteEventTransition(eventID, deviceID, orgID, eventType, status string, total, refunded float64, at time.Time)
}

// Publisher is the slice of the MQTT client the recorder uses.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Recorder implements the device registry's StatusRecorder and the
// event machine's Notifier. Either sink may be nil; a recorder with no
// sinks is a valid no-op.
type Recorder struct {
	writer    Writer
	publisher Publisher
	topics    mqtt.Topics
	logger    Logger
}

// NewRecorder creates a recorder writing to the given sinks.
func NewRecorder(writer Writer, publisher Publisher) *Recorder {
	return &Recorder{
		writer:    writer,
		publisher: publisher,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// RecordDeviceStatus records a device business-status change.
func (r *Recorder) RecordDeviceStatus(deviceID, orgID string, status device.Status, at time.Time) {
	if r.writer != nil {
		r.writer.WriteDeviceStatus(deviceID, orgID, string(status), at)
	}
	if r.publisher != nil {
		r.publish(r.topics.CoreDeviceStatus(deviceID), deviceStatusMessage{
			DeviceID: deviceID,
			OrgID:    orgID,
			Status:   string(status),
			At:       at.UTC().Format(time.RFC3339),
		})
	}
}

// RecordLockStatus records a physical lock observation.
func (r *Recorder) RecordLockStatus(deviceID, orgID string, status device.LockStatus, at time.Time) {
	if r.writer != nil {
		r.writer.WriteLockStatus(deviceID, orgID, string(status), at)
	}
	// Lock observations arrive over MQTT in the first place; echoing
	// them back onto the bus would just duplicate bridge traffic.
}

// EventChanged records an event lifecycle transition.
func (r *Recorder) EventChanged(e *event.Event) {
	if e == nil {
		return
	}

	at := time.Now().UTC()
	if r.writer != nil {
		r.writer.WriteEventTransition(e.ID, e.DeviceID, e.OrgID,
			string(e.EventType), string(e.Status),
			e.Total, e.RefundedAmount, at)
	}
	if r.publisher != nil {
		r.publish(r.topics.CoreEvent(string(e.Status)), eventMessage{
			EventID:      e.ID,
			DeviceID:     e.DeviceID,
			OrgID:        e.OrgID,
			EventType:    string(e.EventType),
			Status:       string(e.Status),
			FaultFlagged: e.FaultFlagged,
			At:           at.Format(time.RFC3339),
		})
	}
}

type deviceStatusMessage struct {
	DeviceID string `json:"device_id"`
	OrgID    string `json:"org_id"`
	Status   string `json:"status"`
	At       string `json:"at"`
}

type eventMessage struct {
	EventID      string `json:"event_id"`
	DeviceID     string `json:"device_id"`
	OrgID        string `json:"org_id"`
	EventType    string `json:"event_type"`
	Status       string `json:"status"`
	FaultFlagged bool   `json:"fault_flagged,omitempty"`
	At           string `json:"at"`
}

func (r *Recorder) publish(topic string, msg any) {
	payload, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("history message marshal failed", "topic", topic, "error", err)
		return
	}
	if err := r.publisher.Publish(topic, payload, 0, false); err != nil {
		r.logger.Warn("history publish failed", "topic", topic, "error", err)
	}
}
