// RF Control Core
//
// This is the main entry point for the RF control service. It owns the
// device registry, checks that a requester owns a device before any action,
// and publishes RF commands to the transmitter bridge over MQTT.
//
// Usage:
//
//	rfcontrol                        run the service
//	rfcontrol -issue-token <user-id> print a signed access token and exit
//	rfcontrol -migrate-down          roll back the latest schema migration
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "github.com/nerrad567/rfcontrol-core/migrations"

	"github.com/nerrad567/rfcontrol-core/internal/api"
	"github.com/nerrad567/rfcontrol-core/internal/audit"
	"github.com/nerrad567/rfcontrol-core/internal/auth"
	"github.com/nerrad567/rfcontrol-core/internal/control"
	"github.com/nerrad567/rfcontrol-core/internal/device"
	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/config"
	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/database"
	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/logging"
	"github.com/nerrad567/rfcontrol-core/internal/infrastructure/mqtt"
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
	issueFor := flag.String("issue-token", "", "print an access token for `user-id` and exit")
	down := flag.Bool("migrate-down", false, "roll back the latest schema migration and exit")
	flag.Parse()

	if *issueFor != "" || *down {
		var err error
		if *down {
			err = migrateDown(context.Background(), os.Stdout, getConfigPath())
		} else {
			err = issueToken(os.Stdout, getConfigPath(), *issueFor)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting RF control core",
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

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Database
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, err := db.SchemaStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading schema status: %w", err)
	}
	log.Info("database migrations complete", "schema_version", schema.Current)

	dbStats := collectors.NewDBStatsCollector(db.DB, "rfcontrol")
	if regErr := prometheus.Register(dbStats); regErr != nil {
		log.Warn("database stats collector not registered", "error", regErr)
	} else {
		defer prometheus.Unregister(dbStats)
	}

	// Device registry
	types := device.DefaultTypeRegistry()
	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB, types), types)
	registry.SetLogger(log.With("component", "device"))
	log.Info("device registry initialised", "types", len(types.IDs()))

	// MQTT
	topics := mqtt.Topics{Prefix: cfg.Control.TopicPrefix}
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttLog := log.With("component", "mqtt")
	mqttClient.SetLogger(mqttLog)
	mqttClient.SetOnConnect(func() {
		mqttLog.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		mqttLog.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
		"command_topic", topics.AllCommands(string(device.VariantRF)),
	)

	checks := map[string]api.HealthChecker{
		"database": db,
		"mqtt":     mqttClient,
	}

	// InfluxDB (optional)
	var recorder control.CommandRecorder
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		recorder = influxClient
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Control dispatcher
	dispatcher, err := control.NewDispatcher(control.Options{
		Owners:         registry,
		Profiles:       registry,
		Publisher:      &mqttPublisher{client: mqttClient, qos: byte(cfg.MQTT.QoS)},
		Topics:         topics,
		Recorder:       recorder,
		Registerer:     prometheus.DefaultRegisterer,
		PublishTimeout: cfg.GetPublishTimeout(),
		Logger:         log.With("component", "control"),
	})
	if err != nil {
		return fmt.Errorf("creating control dispatcher: %w", err)
	}

	// HTTP API
	server, err := api.New(api.Deps{
		Config:     cfg.API,
		Security:   cfg.Security,
		Logger:     log.With("component", "api"),
		Registry:   registry,
		Dispatcher: dispatcher,
		AuditRepo:  audit.NewSQLiteRepository(db.DB),
		Checks:     checks,
		Schema:     db,
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

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API, InfluxDB (if enabled), MQTT, database.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses RFCONTROL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RFCONTROL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every infrastructure connection in startup order.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range []string{"database", "mqtt", "influxdb"} {
		c, ok := checks[name]
		if !ok {
			continue
		}
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// migrateDown rolls back the most recent schema migration and writes the
// version it removed to w. The service must not be running.
func migrateDown(ctx context.Context, w io.Writer, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // best effort on exit

	version, err := db.Rollback(ctx)
	if err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	if version == "" {
		_, err = fmt.Fprintln(w, "no migrations applied")
		return err
	}
	_, err = fmt.Fprintf(w, "rolled back %s\n", version)
	return err
}

// issueToken writes a signed access token for userID to w. It stands in
// for the external session layer during setup and testing.
func issueToken(w io.Writer, configPath, userID string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ttl := time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
	token, err := auth.GenerateAccessToken(userID, cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	_, err = fmt.Fprintln(w, token)
	return err
}

// commandPublisher is the part of *mqtt.Client the dispatcher needs.
type commandPublisher interface {
	PublishContext(ctx context.Context, topic string, payload []byte, qos byte, retained bool) error
}

// mqttPublisher adapts the infrastructure MQTT client to control.Publisher.
// Commands are never retained: a transmitter that reconnects must not
// replay an old on/off.
type mqttPublisher struct {
	client commandPublisher
	qos    byte
}

// Publish implements control.Publisher.
func (p *mqttPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.client.PublishContext(ctx, topic, payload, p.qos, false)
}
