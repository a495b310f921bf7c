package influxdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/lockhaven/fleet-core/internal/infrastructure/config"
	"github.com/lockhaven/fleet-core/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for the local dev InfluxDB.
// These values match docker-compose.yml.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "fleetcore-dev-token",
		Org:           "lockhaven",
		Bucket:        "fleet",
		BatchSize:     100,
		FlushInterval: 1, // 1 second for faster test feedback
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

func TestConnectDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); err != influxdb.ErrDisabled {
		t.Errorf("Connect() with disabled config = %v, want ErrDisabled", err)
	}
}

func TestConnectBadURL(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:1" // nothing listens here

	if _, err := influxdb.Connect(cfg); err == nil {
		t.Error("Connect() to dead endpoint should fail")
	}
}

func TestConnect(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestWriteAndFlush(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	now := time.Now()
	client.WriteDeviceStatus("locker-test-01", "org-test", "maintenance", now)
	client.WriteLockStatus("locker-test-01", "org-test", "locked", now)
	client.WriteEventTransition("evt-test-01", "locker-test-01", "org-test",
		"rental", "finished", 12.50, 0, now)

	// Batched writes surface errors through the callback; flush and give
	// the error channel a moment.
	errs := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	client.Flush()

	select {
	case err := <-errs:
		t.Errorf("async write error: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWriteAfterClose(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	client.Close()

	// Writes after close are silent no-ops.
	client.WriteDeviceStatus("locker-test-01", "org-test", "available", time.Now())
	client.Flush()

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
