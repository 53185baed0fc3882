// Boss Hunter - unattended boss-spawn watcher
//
// This is the main entry point for the Boss Hunter service. It watches a
// game client's screen with template matching, hops channels until the
// boss indicator appears, and then stops so an operator can take over.
//
// Control is local: the HTTP API on 127.0.0.1, optionally MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/bosshunter/internal/api"
	"github.com/nerrad567/bosshunter/internal/desktop"
	"github.com/nerrad567/bosshunter/internal/hunter"
	"github.com/nerrad567/bosshunter/internal/infrastructure/config"
	"github.com/nerrad567/bosshunter/internal/infrastructure/database"
	"github.com/nerrad567/bosshunter/internal/infrastructure/influxdb"
	"github.com/nerrad567/bosshunter/internal/infrastructure/logging"
	"github.com/nerrad567/bosshunter/internal/infrastructure/mqtt"
	"github.com/nerrad567/bosshunter/internal/vision"
	"github.com/nerrad567/bosshunter/migrations"
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

// openDesktop builds the frame source and actuator. Tests swap it for
// fakes so run can start without a display.
var openDesktop = func(cfg config.DesktopConfig) (hunter.FrameSource, hunter.Actuator, error) {
	screen, err := desktop.NewScreen(cfg.Display)
	if err != nil {
		return nil, nil, err
	}
	return screen, desktop.NewInput(cfg.ClickSettle), nil
}

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Boss Hunter",
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
	defer log.Close() //nolint:errcheck // nothing useful to do on shutdown
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Run history
	db, err := database.Open(cfg.Database)
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	runRepo := hunter.NewSQLiteRepository(db.DB)
	checks := map[string]api.HealthChecker{"database": db}

	// Event sinks. The hub is created here because the controller
	// publishes to it before the API server exists.
	hub := api.NewHub(cfg.WebSocket, log.With("component", "websocket"))
	hubCtx, stopHub := context.WithCancel(context.WithoutCancel(ctx))
	defer stopHub()
	go hub.Run(hubCtx)

	sinks := hunter.MultiSink{
		hunter.NewLogSink(log.With("component", "hunter")),
		hunter.NewHubSink(hub),
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		topics := mqttClient.Topics()
		mqttSink := hunter.NewMQTTSink(mqttClient, topics.Event(), topics.State(), log.With("component", "mqtt"))
		defer mqttSink.Close()
		sinks = append(sinks, mqttSink)
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		sinks = append(sinks, hunter.NewMetricsSink(influxClient))
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// Screen and input
	frames, actuator, err := openDesktop(cfg.Desktop)
	if err != nil {
		return fmt.Errorf("opening desktop: %w", err)
	}
	log.Info("desktop ready", "display", cfg.Desktop.Display)

	// Templates. Missing files are tolerated here; Start refuses to run
	// until every label is bound.
	catalog := vision.NewCatalog()
	loaded, err := catalog.LoadDir(cfg.Templates.Dir, cfg.Templates.Files)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	log.Info("templates loaded", "dir", cfg.Templates.Dir, "bound", len(loaded))
	if missing := catalog.Missing(vision.Labels()); len(missing) > 0 {
		log.Warn("templates missing, runs cannot start until they are provided", "missing", missing)
	}

	controller, err := hunter.NewController(cfg.Hunter, hunter.Deps{
		Frames:    frames,
		Matcher:   vision.NewMatcher(),
		Templates: catalog,
		Actuator:  actuator,
		Sink:      sinks,
		Repo:      runRepo,
		Logger:    log.With("component", "hunter"),
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}
	defer func() {
		controller.Stop()
		if done := controller.Done(); done != nil {
			<-done
		}
	}()

	// Remote control over MQTT
	if mqttClient != nil {
		topics := mqttClient.Topics()
		handler := mqtt.ControlHandler(ctx, controller, topics, log.With("component", "mqtt"))
		if subErr := mqttClient.Subscribe(topics.AllControl(), byte(cfg.MQTT.QoS), handler); subErr != nil {
			return fmt.Errorf("subscribing to control topics: %w", subErr)
		}
		log.Info("MQTT control enabled", "topic", topics.AllControl())
	}

	// HTTP API
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log.With("component", "api"),
		Hunter:      controller,
		Templates:   catalog,
		Runs:        runRepo,
		Checks:      checks,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
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

	if cfg.Hunter.AutoStart {
		id, startErr := controller.Start(ctx)
		switch {
		case startErr == nil:
			log.Info("auto-start run launched", "run_id", id)
		case errors.Is(startErr, hunter.ErrTemplateUnbound):
			log.Warn("auto-start skipped", "error", startErr)
		default:
			return fmt.Errorf("auto-start: %w", startErr)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API server, controller,
	// InfluxDB, MQTT, hub, database, logger.

	log.Info("Boss Hunter stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses BOSSHUNTER_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("BOSSHUNTER_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies every registered infrastructure connection.
// It returns the first failure.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for _, name := range []string{"database", "mqtt", "influxdb"} {
		check, ok := checks[name]
		if !ok {
			continue
		}
		if err := check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
