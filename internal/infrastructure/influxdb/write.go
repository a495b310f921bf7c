package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceStatus records a device business-status change.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Status history answers "how long was locker 12 out of service" without
// touching the operational database.
func (c *Client) WriteDeviceStatus(deviceID, orgID, status string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"device_id": deviceID,
			"org_id":    orgID,
		},
		map[string]interface{}{
			"status": status,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteLockStatus records a physical lock observation reported by a
// hardware bridge.
func (c *Client) WriteLockStatus(deviceID, orgID, lockStatus string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"lock_status",
		map[string]string{
			"device_id": deviceID,
			"org_id":    orgID,
		},
		map[string]interface{}{
			"lock_status": lockStatus,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WriteEventTransition records an event lifecycle change: the state the
// event reached, its type, and the money involved so far.
func (c *Client) WriteEventTransition(eventID, deviceID, orgID, eventType, status string, total, refunded float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"event_transitions",
		map[string]string{
			"device_id":  deviceID,
			"org_id":     orgID,
			"event_type": eventType,
			"status":     status,
		},
		map[string]interface{}{
			"event_id":        eventID,
			"total":           total,
			"refunded_amount": refunded,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}
