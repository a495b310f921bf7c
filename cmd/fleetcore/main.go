// Fleet Core - locker fleet lifecycle engine
//
// This is the main entry point for the Fleet Core daemon. Fleet Core
// owns the Device/Event/Reservation lifecycle for a fleet of physical
// storage and rental devices:
//   - Device registry with deterministic availability selection
//   - Reservation scheduling with recurrence and buffer conflict checks
//   - Event state machine driving lock hardware over MQTT bridges
//   - Expiry sweep and crash-recovery status reconciliation
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lockhaven/fleet-core/migrations"

	"github.com/lockhaven/fleet-core/internal/clock"
	"github.com/lockhaven/fleet-core/internal/device"
	"github.com/lockhaven/fleet-core/internal/event"
	"github.com/lockhaven/fleet-core/internal/fleet"
	"github.com/lockhaven/fleet-core/internal/hardware"
	"github.com/lockhaven/fleet-core/internal/history"
	"github.com/lockhaven/fleet-core/internal/infrastructure/config"
	"github.com/lockhaven/fleet-core/internal/infrastructure/database"
	"github.com/lockhaven/fleet-core/internal/infrastructure/influxdb"
	"github.com/lockhaven/fleet-core/internal/infrastructure/logging"
	"github.com/lockhaven/fleet-core/internal/infrastructure/mqtt"
	"github.com/lockhaven/fleet-core/internal/location"
	"github.com/lockhaven/fleet-core/internal/reservation"
	"github.com/lockhaven/fleet-core/internal/tracking"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// settingsCacheTTL bounds how stale a cached ReservationSettings read
// can be when an update bypasses explicit invalidation.
const settingsCacheTTL = 5 * time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Fleet Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry and the per-device guard every writer shares
	guard := device.NewGuard()
	deviceRepo := device.NewSQLiteRepository(db.DB)
	registry := device.NewRegistry(deviceRepo, guard)
	registry.SetLogger(log)

	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", registry.DeviceCount())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional status history)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Status history fan-out: device/event changes go to InfluxDB and
	// the MQTT bus
	var historyWriter history.Writer
	if influxClient != nil {
		historyWriter = influxClient
	}
	recorder := history.NewRecorder(historyWriter, mqttClient)
	recorder.SetLogger(log)
	registry.SetStatusRecorder(recorder)

	// Hardware: one MQTT bridge adapter per vendor, virtual adapter for
	// test devices, retries handled by the commander
	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated 0-2 in config
	dispatcher := hardware.NewDispatcher()
	for _, vendor := range device.AllHardwareTypes() {
		if vendor == device.HardwareVirtual {
			continue
		}
		bridge := hardware.NewBridgeAdapter(mqttClient, string(vendor), qos)
		bridge.SetLogger(log)
		dispatcher.Register(vendor, bridge)
	}
	dispatcher.Register(device.HardwareVirtual, hardware.NewVirtualAdapter())

	commander := hardware.NewCommander(dispatcher,
		cfg.Hardware.RetryAttempts,
		time.Duration(cfg.Hardware.RetryBackoff)*time.Millisecond,
		time.Duration(cfg.Hardware.CommandTimeout)*time.Second,
	)
	commander.SetLogger(log)

	// Unsolicited lock-status reports from bridges feed the registry
	observer := hardware.NewStatusObserver(mqttClient, registry, qos)
	observer.SetLogger(log)
	if startErr := observer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting lock status observer: %w", startErr)
	}
	defer func() {
		log.Info("stopping lock status observer")
		observer.Stop()
	}()

	// Per-organisation scheduling settings, cached with explicit
	// invalidation on update
	settingsRepo := reservation.NewSQLiteSettingsRepository(db.DB)
	settings := reservation.NewSettingsProvider(settingsRepo, settingsCacheTTL)

	// Event state machine
	clk := clock.System{}
	eventRepo := event.NewSQLiteRepository(db.DB)
	machine := event.NewMachine(eventRepo, registry, guard, commander, settings, clk)
	machine.SetLogger(log)
	machine.SetNotifier(recorder)

	// Heal any device whose status diverged from its active event
	// before accepting new work
	reconciler := event.NewReconciler(eventRepo, registry, guard, settings,
		func(ctx context.Context) ([]device.Device, error) {
			return deviceRepo.ListAll(ctx)
		})
	reconciler.SetLogger(log)
	if reconcileErr := reconciler.Reconcile(ctx); reconcileErr != nil {
		return fmt.Errorf("reconciling device status: %w", reconcileErr)
	}
	log.Info("device status reconciled")

	// Periodic expiry sweep
	sweeper := event.NewSweeper(machine, time.Duration(cfg.Sweep.Interval)*time.Second)
	sweeper.SetLogger(log)
	sweeper.Start(ctx)
	defer func() {
		log.Info("stopping expiry sweep")
		sweeper.Stop()
	}()

	// Reservation manager and product tracker share the registry, the
	// guard, and the settings cache
	reservationRepo := reservation.NewSQLiteRepository(db.DB)
	reservations := reservation.NewManager(reservationRepo, settings, registry, machine, guard, clk)
	reservations.SetLogger(log)

	trackingRepo := tracking.NewSQLiteRepository(db.DB)
	tracker := tracking.NewTracker(trackingRepo, registry, clk)
	tracker.SetLogger(log)

	locations := location.NewSQLiteRepository(db.DB)

	// Assemble the programmatic surface operator tooling consumes
	core, err := fleet.New(registry, machine, reservations, tracker, locations)
	if err != nil {
		return fmt.Errorf("assembling service layer: %w", err)
	}
	log.Info("service layer assembled", "device_count", core.Devices.DeviceCount())

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Expiry sweep
	// 2. Lock status observer
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Fleet Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses FLEETCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLEETCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
