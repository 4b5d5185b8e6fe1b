package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nerrad567/robotlan-core/internal/api"
	"github.com/nerrad567/robotlan-core/internal/audit"
	"github.com/nerrad567/robotlan-core/internal/bridge"
	"github.com/nerrad567/robotlan-core/internal/discovery"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/config"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/logging"
	"github.com/nerrad567/robotlan-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/robotlan-core/internal/registry"
	"github.com/nerrad567/robotlan-core/internal/session"
	"github.com/nerrad567/robotlan-core/internal/telemetry"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// telemetryBuffer is the coordinator subscription size for telemetry sinks.
const telemetryBuffer = 256

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the robot connection service",
		Long: `Connect to every configured robot and serve their state.

The configuration path is taken from --config, then ROBOTLAN_CONFIG,
then configs/config.yaml. Secrets can be supplied through the environment
or the --env-file file (ROBOTLAN_ROBOT_<ID>_PASSWORD, ROBOTLAN_INFLUXDB_TOKEN).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), getConfigPath(configPath))
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file")
	return cmd
}

// getConfigPath returns the configuration file path.
// flag wins over ROBOTLAN_CONFIG, which wins over the default.
func getConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("ROBOTLAN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// runServe is the service, separated from the command for testability.
// It returns nil on a clean shutdown once ctx is cancelled.
func runServe(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting robotlan",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	store, err := registry.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		log.Info("closing store")
		if closeErr := store.Close(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()
	log.Info("store opened", "backend", cfg.Store.Backend)

	// The activity log lives beside the SQLite store. The Redis backend
	// runs without one.
	var activity audit.Repository
	if sqlStore, ok := store.(*registry.SQLiteStore); ok {
		activity = audit.NewSQLiteRepository(sqlStore.DB())
	}

	disc := discovery.New(discovery.FromConfig(cfg.Discovery), discovery.WithLogger(log))

	sessOpts := []session.Option{session.WithTimings(session.TimingsFromConfig(cfg.Session))}
	if cfg.Session.EventBuffer > 0 {
		sessOpts = append(sessOpts, session.WithEventBuffer(cfg.Session.EventBuffer))
	}
	coord := registry.NewCoordinator(store, disc,
		registry.WithLogger(log),
		registry.WithDialer(session.MQTTDialerFromConfig(cfg.Session, log)),
		registry.WithSessionOptions(sessOpts...),
	)
	defer func() {
		log.Info("closing robot sessions")
		coord.Close()
	}()
	if err := coord.AddFromConfig(cfg.Robots); err != nil {
		return fmt.Errorf("registering robots: %w", err)
	}

	metrics := telemetry.NewMetrics()
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(metrics)

	handlers := []telemetry.Handler{metrics}
	checks := map[string]api.HealthChecker{"store": store}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
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
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		handlers = append(handlers, telemetry.NewInfluxSink(influxClient))
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.MQTT.Enabled {
		mqttClient, b, mqttErr := startBridge(ctx, cfg.MQTT, coord, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer func() {
			if stopErr := b.Stop(); stopErr != nil {
				log.Warn("error stopping MQTT bridge", "error", stopErr)
			}
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		handlers = append(handlers, b)
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT bridge disabled")
	}

	events, unsubscribe := coord.Subscribe(telemetryBuffer)
	defer unsubscribe()
	go telemetry.Run(ctx, events, handlers...)

	srv, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Coordinator: coord,
		Gatherer:    promRegistry,
		Metrics:     metrics,
		Activity:    activity,
		Checks:      checks,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	coord.Start(ctx)
	log.Info("initialisation complete, waiting for shutdown signal",
		"robots", len(cfg.Robots),
		"api", srv.Addr(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// startBridge connects to the host broker and starts the MQTT bridge.
func startBridge(ctx context.Context, cfg config.MQTTConfig, coord *registry.Coordinator, log *logging.Logger) (*mqtt.Client, *bridge.Bridge, error) {
	topics := mqtt.Topics{Prefix: cfg.TopicPrefix}

	client, err := mqtt.Connect(ctx, cfg,
		mqtt.WithStatusTopic(topics.BridgeStatus()),
		mqtt.WithLogger(log),
		mqtt.WithOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	b := bridge.New(client, bridge.Sessions(coord),
		bridge.WithTopicPrefix(cfg.TopicPrefix),
		bridge.WithQoS(byte(cfg.QoS)),
		bridge.WithLogger(log),
	)
	if err := b.Start(); err != nil {
		client.Close() //nolint:errcheck // Best-effort cleanup after failed start
		return nil, nil, fmt.Errorf("starting MQTT bridge: %w", err)
	}
	log.Info("MQTT bridge started", "prefix", b.Topics().Prefix)
	return client, b, nil
}
