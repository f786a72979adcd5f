// SonicLink Core - network audio fleet service
//
// This is the main entry point for the SonicLink Core daemon. It polls a
// fleet of LinkPlay-class network audio devices over their HTTP API,
// tracks multiroom group topology, and exposes the fleet over a REST API,
// a WebSocket stream, and MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/soniclink/soniclink-core/migrations"

	"github.com/soniclink/soniclink-core/internal/api"
	"github.com/soniclink/soniclink-core/internal/control"
	"github.com/soniclink/soniclink-core/internal/fleet"
	"github.com/soniclink/soniclink-core/internal/infrastructure/config"
	"github.com/soniclink/soniclink-core/internal/infrastructure/database"
	"github.com/soniclink/soniclink-core/internal/infrastructure/influxdb"
	"github.com/soniclink/soniclink-core/internal/infrastructure/logging"
	"github.com/soniclink/soniclink-core/internal/infrastructure/mqtt"
	"github.com/soniclink/soniclink-core/internal/mqttbridge"
	"github.com/soniclink/soniclink-core/internal/multiroom"
	"github.com/soniclink/soniclink-core/internal/poller"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SonicLink Core",
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

	// Open database and bring the schema up to date
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

	// Device directory: configured devices are folded into the
	// persistent directory on every start.
	repo := fleet.NewSQLiteRepository(db.DB)
	if err := seedDevices(ctx, repo, cfg.Devices); err != nil {
		return fmt.Errorf("seeding device directory: %w", err)
	}
	devices, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading device directory: %w", err)
	}
	log.Info("device directory loaded", "devices", len(devices))

	// Fleet registry and group media resolver
	registry := fleet.NewRegistry()
	resolver := multiroom.NewResolver(registry)

	// Connect to InfluxDB (optional playback history)
	var history poller.HistoryWriter
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			influxClient.Close()
		}()
		influxClient.SetErrorCallback(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		history = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Poll manager: one coordinator goroutine per device
	manager := poller.NewManager(poller.ManagerOptions{
		Registry: registry,
		Resolver: resolver,
		Intervals: poller.Intervals{
			Fast:           cfg.Polling.GetFastInterval(),
			Normal:         cfg.Polling.GetNormalInterval(),
			RequestTimeout: cfg.Polling.GetRequestTimeout(),
			DeviceInfoTTL:  cfg.Polling.GetDeviceInfoTTL(),
		},
		Logger:  log,
		Metrics: poller.NewMetrics(prometheus.DefaultRegisterer),
		History: history,
	})
	defer func() {
		log.Info("stopping device pollers")
		manager.StopAll()
	}()

	for _, device := range devices {
		manager.Add(ctx, device.Host)
	}
	log.Info("device pollers started", "devices", len(devices))

	dispatcher := control.NewDispatcher(manager, log)

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		bridge := mqttbridge.New(mqttbridge.Deps{
			Client:     mqttClient,
			Registry:   registry,
			Dispatcher: dispatcher,
			Logger:     log,
			QoS:        byte(cfg.MQTT.QoS),
		})
		if bridgeErr := bridge.Start(ctx); bridgeErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", bridgeErr)
		}
		defer bridge.Close()
	} else {
		log.Info("MQTT disabled")
	}

	// HTTP API and WebSocket server
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Registry:   registry,
		Repo:       repo,
		Manager:    manager,
		Dispatcher: dispatcher,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	// Deferred Close() calls run in reverse order:
	// API server, MQTT bridge, MQTT, pollers, InfluxDB, database.

	log.Info("SonicLink Core stopped")
	return nil
}

// seedDevices folds the configured devices into the persistent directory.
func seedDevices(ctx context.Context, repo fleet.Repository, devices []config.DeviceConfig) error {
	for _, d := range devices {
		device := &fleet.Device{Name: d.Name, Host: d.Host, MAC: d.MAC}
		if err := repo.UpsertByHost(ctx, device); err != nil {
			return fmt.Errorf("upserting %s: %w", d.Host, err)
		}
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SONICLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SONICLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
