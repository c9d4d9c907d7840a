// IRIS Core - Home Automation Coordination Server
//
// This is the main entry point for IRIS Core. IRIS coordinates a small
// fleet of MQTT-speaking home-automation devices (garage controller,
// house monitor) behind a single state store, alert evaluator, and HTTP/
// WebSocket surface.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/iris-core/migrations"

	"github.com/nerrad567/iris-core/internal/alerts"
	"github.com/nerrad567/iris-core/internal/api"
	"github.com/nerrad567/iris-core/internal/bus"
	"github.com/nerrad567/iris-core/internal/codec"
	"github.com/nerrad567/iris-core/internal/command"
	"github.com/nerrad567/iris-core/internal/fanout"
	"github.com/nerrad567/iris-core/internal/infrastructure/config"
	"github.com/nerrad567/iris-core/internal/infrastructure/database"
	"github.com/nerrad567/iris-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/iris-core/internal/infrastructure/logging"
	"github.com/nerrad567/iris-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/iris-core/internal/ota"
	"github.com/nerrad567/iris-core/internal/persistence"
	"github.com/nerrad567/iris-core/internal/state"
	"github.com/nerrad567/iris-core/internal/supervisor"
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

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting IRIS Core", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

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

	repo := persistence.NewSQLiteRepository(db.DB)

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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "org", cfg.InfluxDB.Org, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

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
	mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
	mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port), "client_id", cfg.MQTT.Broker.ClientID)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	registry := codec.NewRegistry()
	store := state.New()
	busAdapter := bus.New(mqttClient, registry, store, cfg.MQTT, log).WithRepository(repo)
	writer := persistence.NewWriter(repo, influxClient, cfg.Persistence, log)
	evaluator := alerts.New(cfg.Alerts)
	orchestrator := ota.New(cfg.OTA, busAdapter, registry, store, log)
	dispatcher := command.New(busAdapter, registry, store, log)

	source := supervisor.NewStateSource(store, evaluator, repo, log)
	fanoutHub := fanout.NewHub(cfg.Fanout, cfg.WebSocket, source, log)

	apiServer, err := api.New(api.Deps{
		Config:       cfg.API,
		WebSocket:    cfg.WebSocket,
		Store:        store,
		Repo:         repo,
		Bus:          busAdapter,
		Evaluator:    evaluator,
		Dispatcher:   dispatcher,
		Orchestrator: orchestrator,
		Fanout:       fanoutHub,
		Logger:       log,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("building API server: %w", err)
	}

	sup := supervisor.New(supervisor.Deps{
		Store:                store,
		Writer:               writer,
		Repo:                 repo,
		Bus:                  busAdapter,
		Evaluator:            evaluator,
		Orchestrator:         orchestrator,
		Fanout:               fanoutHub,
		API:                  apiServer,
		AlertsCheckInterval:  secondsToDuration(cfg.Alerts.TickInterval),
		OfflineSweepInterval: secondsToDuration(cfg.Persistence.OfflineTimeout) / 3,
		OfflineTimeout:       secondsToDuration(cfg.Persistence.OfflineTimeout),
		Log:                  log,
	})

	log.Info("initialisation complete, starting supervisor")
	if err := sup.Run(ctx); err != nil {
		return fmt.Errorf("supervisor exited with error: %w", err)
	}

	log.Info("IRIS Core stopped")
	return nil
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// getConfigPath returns the configuration file path.
// Uses IRIS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("IRIS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy before
// the supervisor starts wiring the rest of the system together.
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
