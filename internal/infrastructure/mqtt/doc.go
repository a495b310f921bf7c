// Package mqtt provides MQTT client connectivity for Fleet Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Fleet Core uses MQTT as the message bus between the core and the vendor
// hardware bridges that talk to the physical locks. The broker decouples
// the scheduling core from vendor-specific lock protocols.
//
//	Fleet Core ↔ MQTT Broker ↔ Hardware Bridges (ojmar, kerong, ...)
//
// Commands flow out on fleetcore/command/{vendor}/{device_id}; bridges
// acknowledge on fleetcore/ack/... and report observed lock state on
// fleetcore/lockstatus/..., which the core treats as ground truth for the
// physical lock without ever deriving business status from it.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllLockStatuses(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleLockReport(topic, payload)
//	    })
//
//	topic := mqtt.Topics{}.BridgeCommand("ojmar", deviceID)
//	client.Publish(topic, []byte(`{"action":"unlock"}`), 1, false)
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
package mqtt
