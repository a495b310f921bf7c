package hardware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/lockhaven/fleet-core/internal/device"
	"github.com/lockhaven/fleet-core/internal/infrastructure/mqtt"
)

func virtualDevice(id string) *device.Device {
	return &device.Device{
		ID:           id,
		OrgID:        "org-1",
		Name:         "Locker " + id,
		HardwareType: device.HardwareVirtual,
		Mode:         device.ModeStorage,
		Status:       device.StatusAvailable,
		LockStatus:   device.LockLocked,
	}
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher()
	adapter := NewVirtualAdapter()
	d.Register(device.HardwareVirtual, adapter)

	got, err := d.For(device.HardwareVirtual)
	if err != nil {
		t.Fatalf("For failed: %v", err)
	}
	if got != adapter {
		t.Error("expected registered adapter")
	}

	_, err = d.For(device.HardwareOjmar)
	if !errors.Is(err, ErrUnsupportedHardware) {
		t.Errorf("expected ErrUnsupportedHardware, got %v", err)
	}
}

func TestVirtualAdapter(t *testing.T) {
	v := NewVirtualAdapter()
	d := virtualDevice("dev-1")
	ctx := context.Background()

	// Unknown device polls as locked.
	status, err := v.PollStatus(ctx, d)
	if err != nil {
		t.Fatalf("PollStatus failed: %v", err)
	}
	if status != device.LockLocked {
		t.Errorf("expected locked, got %s", status)
	}

	if err := v.Unlock(ctx, d); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	status, _ = v.PollStatus(ctx, d)
	if status != device.LockOpen {
		t.Errorf("expected open after unlock, got %s", status)
	}

	if err := v.Lock(ctx, d); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	status, _ = v.PollStatus(ctx, d)
	if status != device.LockLocked {
		t.Errorf("expected locked after lock, got %s", status)
	}
}

func TestCommanderRetriesThenSucceeds(t *testing.T) {
	v := NewVirtualAdapter()
	dispatch := NewDispatcher()
	dispatch.Register(device.HardwareVirtual, v)

	cmd := NewCommander(dispatch, 3, time.Millisecond, 0)
	d := virtualDevice("dev-1")

	// First two attempts fail, third succeeds.
	v.FailNext(2, errors.New("ble connection dropped"))

	if err := cmd.Unlock(context.Background(), d); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}

	status, _ := v.PollStatus(context.Background(), d)
	if status != device.LockOpen {
		t.Errorf("expected open, got %s", status)
	}
}

func TestCommanderExhaustsAttempts(t *testing.T) {
	v := NewVirtualAdapter()
	dispatch := NewDispatcher()
	dispatch.Register(device.HardwareVirtual, v)

	cmd := NewCommander(dispatch, 2, time.Millisecond, 0)
	d := virtualDevice("dev-1")

	vendorErr := errors.New("lock jammed")
	v.FailNext(5, vendorErr)

	err := cmd.Unlock(context.Background(), d)
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed, got %v", err)
	}
	if !errors.Is(err, vendorErr) {
		t.Errorf("expected vendor error preserved, got %v", err)
	}
}

func TestCommanderUnsupportedHardware(t *testing.T) {
	cmd := NewCommander(NewDispatcher(), 1, 0, 0)
	d := virtualDevice("dev-1")
	d.HardwareType = device.HardwareGantner

	err := cmd.Unlock(context.Background(), d)
	if !errors.Is(err, ErrUnsupportedHardware) {
		t.Errorf("expected ErrUnsupportedHardware, got %v", err)
	}
}

func TestCommanderContextCancelled(t *testing.T) {
	v := NewVirtualAdapter()
	dispatch := NewDispatcher()
	dispatch.Register(device.HardwareVirtual, v)

	cmd := NewCommander(dispatch, 3, time.Hour, 0)
	d := virtualDevice("dev-1")
	v.FailNext(5, errors.New("offline"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	// Cancellation during backoff must abort rather than sleep an hour.
	err := cmd.Unlock(ctx, d)
	if !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled preserved, got %v", err)
	}
}

// fakeBus is an in-process Bus that routes published commands to a
// scripted bridge response.
type fakeBus struct {
	handlers map[string]mqtt.MessageHandler
	respond  func(cmdTopic string, payload []byte) (ackTopic string, ackPayload []byte, deliver bool)
}

func newFakeBus(respond func(string, []byte) (string, []byte, bool)) *fakeBus {
	return &fakeBus{
		handlers: make(map[string]mqtt.MessageHandler),
		respond:  respond,
	}
}

func (f *fakeBus) Publish(topic string, payload []byte, _ byte, _ bool) error {
	ackTopic, ackPayload, deliver := f.respond(topic, payload)
	if !deliver {
		return nil
	}
	if h, ok := f.handlers[ackTopic]; ok {
		go h(ackTopic, ackPayload) //nolint:errcheck // async delivery like paho
	}
	return nil
}

func (f *fakeBus) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.handlers[topic] = handler
	return nil
}

func (f *fakeBus) Unsubscribe(topic string) error {
	delete(f.handlers, topic)
	return nil
}

func bridgeOK(lockStatus string) func(string, []byte) (string, []byte, bool) {
	return func(cmdTopic string, payload []byte) (string, []byte, bool) {
		var cmd command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return "", nil, false
		}
		reply, _ := json.Marshal(ack{
			RequestID:  cmd.RequestID,
			Status:     "ok",
			LockStatus: lockStatus,
		})
		return mqtt.Topics{}.BridgeAck("ojmar", cmd.DeviceID), reply, true
	}
}

func TestBridgeAdapterUnlock(t *testing.T) {
	bus := newFakeBus(bridgeOK(""))
	b := NewBridgeAdapter(bus, "ojmar", 1)

	d := virtualDevice("dev-1")
	d.HardwareType = device.HardwareOjmar

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := b.Unlock(ctx, d); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if len(bus.handlers) != 0 {
		t.Error("expected ack subscription cleaned up")
	}
}

func TestBridgeAdapterPollStatus(t *testing.T) {
	bus := newFakeBus(bridgeOK("open"))
	b := NewBridgeAdapter(bus, "ojmar", 1)

	d := virtualDevice("dev-1")
	d.HardwareType = device.HardwareOjmar

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	status, err := b.PollStatus(ctx, d)
	if err != nil {
		t.Fatalf("PollStatus failed: %v", err)
	}
	if status != device.LockOpen {
		t.Errorf("expected open, got %s", status)
	}
}

func TestBridgeAdapterRejection(t *testing.T) {
	bus := newFakeBus(func(_ string, payload []byte) (string, []byte, bool) {
		var cmd command
		json.Unmarshal(payload, &cmd) //nolint:errcheck // test payload is valid
		reply, _ := json.Marshal(ack{
			RequestID: cmd.RequestID,
			Status:    "error",
			Error:     "locker udn not known",
		})
		return mqtt.Topics{}.BridgeAck("ojmar", cmd.DeviceID), reply, true
	})
	b := NewBridgeAdapter(bus, "ojmar", 1)

	d := virtualDevice("dev-1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := b.Unlock(ctx, d)
	if !errors.Is(err, ErrBridgeRejected) {
		t.Errorf("expected ErrBridgeRejected, got %v", err)
	}
}

func TestBridgeAdapterTimeout(t *testing.T) {
	// Bridge never answers.
	bus := newFakeBus(func(string, []byte) (string, []byte, bool) {
		return "", nil, false
	})
	b := NewBridgeAdapter(bus, "ojmar", 1)

	d := virtualDevice("dev-1")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.Unlock(ctx, d)
	if !errors.Is(err, ErrBridgeTimeout) {
		t.Errorf("expected ErrBridgeTimeout, got %v", err)
	}
}

func TestBridgeAdapterUnknownStatus(t *testing.T) {
	bus := newFakeBus(bridgeOK("ajar"))
	b := NewBridgeAdapter(bus, "ojmar", 1)

	d := virtualDevice("dev-1")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := b.PollStatus(ctx, d)
	if !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus, got %v", err)
	}
}
