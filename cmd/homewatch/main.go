// Homewatch - terminal client engine for a remote home automation hub.
//
// This binary runs the connection and state synchronisation engine
// headless: it maintains the hub session, keeps the entity store and
// view in sync and drives the optional MQTT state mirror and InfluxDB
// state history sinks. Terminal front ends embed the session package
// directly; running the binary standalone is useful for the mirror and
// telemetry roles and for verifying hub connectivity.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ferndale/homewatch/internal/favorites"
	"github.com/ferndale/homewatch/internal/hub"
	"github.com/ferndale/homewatch/internal/infrastructure/config"
	"github.com/ferndale/homewatch/internal/infrastructure/database"
	"github.com/ferndale/homewatch/internal/infrastructure/logging"
	"github.com/ferndale/homewatch/internal/session"
	"github.com/ferndale/homewatch/internal/statestream"
	"github.com/ferndale/homewatch/internal/telemetry"
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
	log.Info("starting homewatch",
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

	// Open the favorites database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if initErr := db.Init(ctx); initErr != nil {
		return fmt.Errorf("initialising database schema: %w", initErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Connect the MQTT state mirror (optional)
	var mirror *statestream.Mirror
	if cfg.Statestream.Enabled {
		mirror, err = statestream.Connect(cfg.Statestream)
		if err != nil {
			return fmt.Errorf("connecting state mirror: %w", err)
		}
		log.Info("state mirror connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Statestream.Broker.Host, cfg.Statestream.Broker.Port),
			"client_id", cfg.Statestream.Broker.ClientID,
		)
	} else {
		log.Info("state mirror disabled")
	}

	// Connect the InfluxDB state history recorder (optional)
	var recorder *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		recorder, err = telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting telemetry: %w", err)
		}
		log.Info("telemetry connected",
			"url", cfg.Telemetry.URL,
			"org", cfg.Telemetry.Org,
			"bucket", cfg.Telemetry.Bucket,
		)
	} else {
		log.Info("telemetry disabled")
	}

	sess, err := session.New(session.Deps{
		Config:    cfg,
		Logger:    log,
		Favorites: favorites.NewSQLiteRepository(db.DB),
		Meta:      session.NewSQLiteMetaRepository(db.DB),
		Mirror:    mirror,
		Recorder:  recorder,
	})
	if err != nil {
		return fmt.Errorf("building session: %w", err)
	}

	sess.SubscribeStatus(func(state hub.ConnectionState) {
		log.Info("connection status changed", "state", state)
		if state == hub.StateConnected {
			log.Info("hub session established",
				"hub_version", sess.HubVersion(),
				"entities", len(sess.Entities()),
			)
		}
	})

	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer func() {
		log.Info("shutting down session")
		if closeErr := sess.Close(); closeErr != nil {
			log.Error("error closing session", "error", closeErr)
		}
	}()

	log.Info("homewatch running", "hub", cfg.Hub.WebSocketURL())

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMEWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMEWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
