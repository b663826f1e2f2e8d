// Huebridge - smart-bulb emulation bridge for a home-automation controller.
//
// This is the main entry point. It connects to the MQTT broker, dials the
// controller adapter, builds the device registry and keeps it refreshed,
// publishes bridge health, and serves the diagnostic API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/gray-logic-huebridge/migrations"

	"github.com/nerrad567/gray-logic-huebridge/internal/api"
	"github.com/nerrad567/gray-logic-huebridge/internal/bridge"
	"github.com/nerrad567/gray-logic-huebridge/internal/controller"
	"github.com/nerrad567/gray-logic-huebridge/internal/device"
	"github.com/nerrad567/gray-logic-huebridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-huebridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-huebridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-huebridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-huebridge/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,funlen // startup wiring
	log := logging.Default()
	log.Info("starting huebridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"bridge_id", cfg.Bridge.ID,
		"store", cfg.Store.Backend,
	)

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	topics := mqtt.Topics{Prefix: cfg.Controller.TopicPrefix}
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

	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
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
	}

	registry := device.NewRegistry()
	registry.SetLogger(log)

	opts := bridge.Options{
		BridgeID:          cfg.Bridge.ID,
		Dialer:            newDialer(cfg, mqttClient, log),
		Store:             store,
		Registry:          registry,
		ConnectAttempts:   cfg.Bridge.ConnectAttempts,
		ConnectRetryDelay: cfg.GetConnectRetryDelay(),
		SceneFallback:     cfg.Bridge.SceneFallback,
		Logger:            log,
	}
	if influxClient != nil {
		opts.OnRefresh = func(s bridge.RefreshStatus) {
			influxClient.WriteRefresh(cfg.Bridge.ID, s.Devices, s.Took, s.Err)
		}
	}
	b, err := bridge.New(opts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	defer func() {
		log.Info("closing bridge")
		if closeErr := b.Close(); closeErr != nil {
			log.Error("error closing bridge", "error", closeErr)
		}
	}()
	if influxClient != nil {
		b.AddStateListener(stateRecorder(registry, influxClient))
	}

	health := bridge.NewHealthReporter(bridge.HealthReporterConfig{
		BridgeID:  cfg.Bridge.ID,
		Version:   version,
		Topic:     topics.Health(cfg.Bridge.ID),
		Interval:  cfg.GetHealthInterval(),
		Publisher: mqttClient,
		Source:    b,
		Logger:    log,
	})
	if pubErr := health.PublishStarting(); pubErr != nil {
		log.Warn("failed to publish starting health", "error", pubErr)
	}
	health.Start(ctx)
	defer health.Stop()

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Bridge:  b,
			Health:  health,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		b.AddStateListener(srv.Hub().BroadcastState)
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)
	} else {
		log.Info("API server disabled")
	}

	supervisor := bridge.NewSupervisor(b, cfg.GetSuperviseInterval(), log)
	supervisor.Start(ctx)
	defer supervisor.Stop()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: supervisor, API, health, bridge,
	// InfluxDB, MQTT, store.
	return nil
}

// getConfigPath returns HUEBRIDGE_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("HUEBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openStore opens the identity store selected by store.backend. The returned
// func releases whatever the store holds open.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger) (device.IdentityStore, func(), error) {
	if cfg.Store.Backend != config.StoreBackendSQLite {
		log.Info("identity store ready", "backend", config.StoreBackendFile, "path", cfg.Store.Path)
		return device.NewFileIdentityStore(cfg.Store.Path), func() {}, nil
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	closeDB := func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}
	if err := db.Migrate(ctx); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("identity store ready", "backend", config.StoreBackendSQLite, "path", cfg.Database.Path)
	return device.NewSQLiteIdentityStore(db), closeDB, nil
}

// newDialer returns a bridge.Dialer that discovers the controller tree over
// the shared MQTT connection.
func newDialer(cfg *config.Config, transport controller.Transport, log *logging.Logger) bridge.Dialer {
	opts := controller.MQTTOptions{
		Protocol:       cfg.Controller.Protocol,
		Topics:         mqtt.Topics{Prefix: cfg.Controller.TopicPrefix},
		DiscoveryWait:  cfg.GetDiscoveryWait(),
		CommandTimeout: cfg.GetCommandTimeout(),
		QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // validated 0-2
		Logger:         log,
	}
	return func(ctx context.Context) (controller.Client, error) {
		client, err := controller.Dial(ctx, transport, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// stateWriter is the telemetry sink for projected device state.
type stateWriter interface {
	WriteDeviceState(s influxdb.DeviceState)
}

// stateRecorder writes each state change with the slot it occupies.
func stateRecorder(registry *device.Registry, w stateWriter) func(device.StateChange) {
	return func(c device.StateChange) {
		index, ok := registry.IndexOf(c.ID)
		if !ok {
			return
		}
		w.WriteDeviceState(influxdb.DeviceState{
			Index:      index,
			ID:         c.ID,
			Name:       c.Name,
			On:         c.On,
			Brightness: c.Brightness,
			Source:     c.Source,
		})
	}
}
