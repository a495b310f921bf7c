package mqtt

import "fmt"

// Topic prefixes for the Fleet Core MQTT bus.
//
// Bridge topics use the flat scheme: fleetcore/{category}/{vendor}/{device_id}
// where vendor is the hardware type string (ojmar, kerong, virtual, ...).
const (
	// TopicPrefixBridge is the base for all hardware bridge topics.
	TopicPrefixBridge = "fleetcore"

	// TopicPrefixCore is the base for topics published by the core itself.
	TopicPrefixCore = "fleetcore/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "fleetcore/system"
)

// Topics provides builders for Fleet Core MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	cmd := topics.BridgeCommand("ojmar", "dev-locker-12")
//	// Returns: "fleetcore/command/ojmar/dev-locker-12"
type Topics struct{}

// BridgeCommand returns the topic for lock commands to a hardware bridge.
//
// Example: fleetcore/command/ojmar/dev-locker-12
func (Topics) BridgeCommand(vendor, deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixBridge, vendor, deviceID)
}

// BridgeAck returns the topic for command acknowledgements from a bridge.
//
// Example: fleetcore/ack/ojmar/dev-locker-12
func (Topics) BridgeAck(vendor, deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefixBridge, vendor, deviceID)
}

// BridgeLockStatus returns the topic a bridge reports lock status on.
//
// Example: fleetcore/lockstatus/kerong/dev-locker-12
func (Topics) BridgeLockStatus(vendor, deviceID string) string {
	return fmt.Sprintf("%s/lockstatus/%s/%s", TopicPrefixBridge, vendor, deviceID)
}

// BridgeHealth returns the topic for bridge health status.
//
// Example: fleetcore/health/kerong
func (Topics) BridgeHealth(vendor string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, vendor)
}

// CoreDeviceStatus returns the canonical device status topic. This is the
// business status published by the core after an event transition, not the
// raw hardware report.
//
// Example: fleetcore/core/device/dev-locker-12/status
func (Topics) CoreDeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/status", TopicPrefixCore, deviceID)
}

// CoreEvent returns the topic for event lifecycle notifications.
//
// Example: fleetcore/core/event/finished
func (Topics) CoreEvent(status string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, status)
}

// SystemStatus returns the service status topic used for LWT.
//
// Example: fleetcore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllLockStatuses returns a pattern matching lock status reports from
// every bridge.
//
// Pattern: fleetcore/lockstatus/+/+
func (Topics) AllLockStatuses() string {
	return fmt.Sprintf("%s/lockstatus/+/+", TopicPrefixBridge)
}

// AllBridgeAcks returns a pattern matching all command acknowledgements.
//
// Pattern: fleetcore/ack/+/+
func (Topics) AllBridgeAcks() string {
	return fmt.Sprintf("%s/ack/+/+", TopicPrefixBridge)
}

// AllBridgeHealth returns a pattern matching all bridge health updates.
//
// Pattern: fleetcore/health/+
func (Topics) AllBridgeHealth() string {
	return fmt.Sprintf("%s/health/+", TopicPrefixBridge)
}

// AllTopics returns a pattern matching all Fleet Core topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: fleetcore/#
func (Topics) AllTopics() string {
	return "fleetcore/#"
}
