package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/otg-controller/internal/api"
	"github.com/nerrad567/otg-controller/internal/audit"
	"github.com/nerrad567/otg-controller/internal/automation"
	"github.com/nerrad567/otg-controller/internal/device"
	"github.com/nerrad567/otg-controller/internal/imouse"
	"github.com/nerrad567/otg-controller/internal/infrastructure/config"
	"github.com/nerrad567/otg-controller/internal/infrastructure/database"
	"github.com/nerrad567/otg-controller/internal/infrastructure/influxdb"
	"github.com/nerrad567/otg-controller/internal/infrastructure/logging"
	"github.com/nerrad567/otg-controller/internal/infrastructure/mqtt"
	"github.com/nerrad567/otg-controller/internal/telemetry"
	"github.com/nerrad567/otg-controller/internal/vision"
	"github.com/nerrad567/otg-controller/migrations"
)

// historyTimeout bounds the write of one cycle result to the history table.
const historyTimeout = 5 * time.Second

// newLogger builds the configured logger. Tests swap it to capture output.
var newLogger = logging.New

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the controller",
		Long: `Run the controller: the automation engine, the HTTP/WebSocket API and,
when enabled, the MQTT and InfluxDB integrations.

The automation engine always starts idle; start it through the API or
the MQTT command topic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts)
		},
	}
}

// run is the controller lifecycle, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Global flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts *rootOptions) error { //nolint:gocognit,gocyclo // linear startup sequence
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting OTG controller",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, configPath, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Reinitialise logger with config settings
	log = newLogger(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "path", cfg.Database.Path)

	devices, autoReg, err := loadRegistries(ctx, db, cfg, log)
	if err != nil {
		return err
	}

	auditLog := audit.NewSQLiteRepository(db.DB)

	// Actuation bridge and classifier
	bridge := imouse.New(cfg.IMouse)
	bridge.SetLogger(log.Component("imouse"))

	classifier := vision.New(cfg.Vision)
	if !classifier.Configured() {
		log.Warn("vision API key not set; every cycle will fail at classification")
	}

	engine := automation.NewEngine(automation.EngineDeps{
		Store:      autoReg,
		Devices:    devices,
		Actuator:   bridge,
		Classifier: classifier,
		Humanization: automation.Humanization{
			JitterMin:       cfg.Humanization.DelayJitterMin,
			JitterMax:       cfg.Humanization.DelayJitterMax,
			SkipProbability: cfg.Humanization.SkipProbability,
		},
		Logger: log.Component("engine"),
	})
	engine.OnCycleComplete(func(res automation.CycleResult) {
		hctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		defer cancel()
		if recErr := autoReg.RecordCycle(hctx, res); recErr != nil {
			log.Warn("recording cycle history failed", "cycle_id", res.ID, "error", recErr)
		}
	})

	// MQTT (optional)
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
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT connected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if mqttClient != nil || influxClient != nil {
		if err := startTelemetry(ctx, cfg, engine, autoReg, auditLog, mqttClient, influxClient, log); err != nil {
			return err
		}
	}

	// Closes before the telemetry sinks; the loop publishes its final
	// status on the way out.
	defer func() {
		log.Info("stopping automation engine")
		engine.Close()
	}()

	// HTTP API
	apiDeps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log.Component("api"),
		Engine:     engine,
		Automation: autoReg,
		Devices:    devices,
		Discovery:  bridge,
		Screens:    bridge,
		Audit:      auditLog,
		DB:         db.DB,
		Version:    version,
	}
	if mqttClient != nil {
		apiDeps.MQTT = mqttClient
	}
	if influxClient != nil {
		apiDeps.Metrics = influxClient
	}
	server, err := api.New(apiDeps)
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

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	// Deferred Close() calls run in reverse order: API, engine, InfluxDB,
	// MQTT, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// openDatabase opens SQLite and applies pending migrations.
func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// loadRegistries builds and warms the device and automation registries.
func loadRegistries(ctx context.Context, db *database.DB, cfg *config.Config, log *logging.Logger) (*device.Registry, *automation.Registry, error) {
	devices := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	devices.SetLogger(log.Component("devices"))
	if err := devices.RefreshCache(ctx); err != nil {
		return nil, nil, fmt.Errorf("loading device registry: %w", err)
	}

	autoReg := automation.NewRegistry(automation.NewSQLiteRepository(db.DB), automationDefaults(cfg.AutomationDefaults))
	autoReg.SetLogger(log.Component("automation"))
	if err := autoReg.RefreshCache(ctx); err != nil {
		return nil, nil, fmt.Errorf("loading automation config: %w", err)
	}

	log.Info("registries loaded",
		"devices", devices.GetDeviceCount(),
		"triggers", autoReg.GetTriggerCount(),
	)
	return devices, autoReg, nil
}

// automationDefaults seeds the record written on first run.
func automationDefaults(d config.AutomationDefaultsConfig) automation.Config {
	cfg := automation.DefaultConfig()
	if d.Name != "" {
		cfg.Name = d.Name
	}
	if p := device.Platform(d.Platform); p.Valid() {
		cfg.Platform = p
	}
	if d.PostIntervalSeconds > 0 {
		cfg.PostIntervalSeconds = d.PostIntervalSeconds
	}
	if d.ScrollDelaySeconds > 0 {
		cfg.ScrollDelaySeconds = d.ScrollDelaySeconds
	}
	return cfg
}

// startTelemetry wires engine events to whichever of MQTT and InfluxDB is
// connected.
func startTelemetry(ctx context.Context, cfg *config.Config, engine *automation.Engine, autoReg *automation.Registry,
	auditLog *audit.SQLiteRepository, mqttClient *mqtt.Client, influxClient *influxdb.Client, log *logging.Logger) error {
	deps := telemetry.Deps{
		Engine:  engine,
		Configs: autoReg,
		Audit:   auditLog,
		Topics:  mqtt.NewTopics(cfg.MQTT.TopicPrefix),
		QoS:     byte(cfg.MQTT.QoS), //nolint:gosec // QoS validated to 0-2
		Logger:  log.Component("telemetry"),
	}
	// Typed nils must not reach the interfaces.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.Metrics = influxClient
	}

	if err := telemetry.New(deps).Start(ctx); err != nil {
		return fmt.Errorf("starting telemetry bridge: %w", err)
	}
	log.Info("telemetry bridge started", "mqtt", mqttClient != nil, "influxdb", influxClient != nil)
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
