package hardware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lockhaven/fleet-core/internal/device"
	"github.com/lockhaven/fleet-core/internal/infrastructure/mqtt"
)

// Bus is the slice of the MQTT client the bridge adapter needs.
type Bus interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// command is the wire format published to a bridge.
type command struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	DeviceID  string `json:"device_id"`
	IssuedAt  string `json:"issued_at"`
}

// ack is the wire format a bridge replies with.
type ack struct {
	RequestID  string `json:"request_id"`
	Status     string `json:"status"` // "ok" or "error"
	Error      string `json:"error,omitempty"`
	LockStatus string `json:"lock_status,omitempty"`
}

// BridgeAdapter drives a vendor's locks through its MQTT hardware bridge.
// One BridgeAdapter per vendor: commands go out on the vendor's command
// topic and the adapter waits for the bridge's acknowledgement before
// returning. Commands to the same device are already serialised by the
// device guard upstream, so concurrent acks on one device topic do not
// occur in practice.
type BridgeAdapter struct {
	bus    Bus
	vendor string
	qos    byte
	logger Logger
}

// NewBridgeAdapter creates an adapter publishing on the given vendor's
// topics. vendor must match the bridge's hardware type string (the
// device.HardwareType value).
func NewBridgeAdapter(bus Bus, vendor string, qos byte) *BridgeAdapter {
	return &BridgeAdapter{
		bus:    bus,
		vendor: vendor,
		qos:    qos,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the adapter.
func (b *BridgeAdapter) SetLogger(logger Logger) {
	b.logger = logger
}

// Unlock sends an unlock command and waits for the bridge to acknowledge.
func (b *BridgeAdapter) Unlock(ctx context.Context, d *device.Device) error {
	_, err := b.roundTrip(ctx, d, "unlock")
	return err
}

// Lock sends a lock command and waits for the bridge to acknowledge.
func (b *BridgeAdapter) Lock(ctx context.Context, d *device.Device) error {
	_, err := b.roundTrip(ctx, d, "lock")
	return err
}

// PollStatus asks the bridge for the current physical lock state.
func (b *BridgeAdapter) PollStatus(ctx context.Context, d *device.Device) (device.LockStatus, error) {
	reply, err := b.roundTrip(ctx, d, "query")
	if err != nil {
		return device.LockUnknown, err
	}

	status := device.LockStatus(reply.LockStatus)
	if err := device.ValidateLockStatus(status); err != nil {
		return device.LockUnknown, fmt.Errorf("%w: %q", ErrUnknownStatus, reply.LockStatus)
	}
	return status, nil
}

// roundTrip publishes a command and blocks until the matching ack arrives
// or ctx expires. The per-attempt timeout is owned by the Commander's ctx.
func (b *BridgeAdapter) roundTrip(ctx context.Context, d *device.Device, action string) (*ack, error) {
	topics := mqtt.Topics{}
	ackTopic := topics.BridgeAck(b.vendor, d.ID)
	cmdTopic := topics.BridgeCommand(b.vendor, d.ID)

	cmd := command{
		RequestID: uuid.NewString(),
		Action:    action,
		DeviceID:  d.ID,
		IssuedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("marshalling command: %w", err)
	}

	replies := make(chan *ack, 1)
	err = b.bus.Subscribe(ackTopic, b.qos, func(_ string, payload []byte) error {
		var a ack
		if err := json.Unmarshal(payload, &a); err != nil {
			return fmt.Errorf("unmarshalling ack: %w", err)
		}
		if a.RequestID != cmd.RequestID {
			// Stale ack from an earlier attempt.
			return nil
		}
		select {
		case replies <- &a:
		default:
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing for ack: %w", err)
	}
	defer func() {
		if err := b.bus.Unsubscribe(ackTopic); err != nil {
			b.logger.Debug("ack unsubscribe failed", "topic", ackTopic, "error", err)
		}
	}()

	if err := b.bus.Publish(cmdTopic, payload, b.qos, false); err != nil {
		return nil, fmt.Errorf("publishing command: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s %s: %w", ErrBridgeTimeout, action, d.ID, ctx.Err())
	case reply := <-replies:
		if reply.Status != "ok" {
			return nil, fmt.Errorf("%w: %s", ErrBridgeRejected, reply.Error)
		}
		return reply, nil
	}
}
