// Package influxdb provides InfluxDB connectivity for Fleet Core.
//
// It wraps the official influxdb-client-go v2 library with Fleet Core
// patterns for connection management, point writing, and health
// monitoring.
//
// # Purpose
//
// This package handles time-series history for:
//   - Device business-status changes (available, reserved, maintenance)
//   - Physical lock observations reported by hardware bridges
//   - Event lifecycle transitions
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "lockhaven",
//	    Bucket: "fleet",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteDeviceStatus("locker-12", "org-1", "maintenance", time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a
// callback. Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size,
// flush_interval). History writes never sit on the scheduling path.
package influxdb
