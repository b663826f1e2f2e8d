package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends understood by StoreConfig.Backend.
const (
	StoreBackendFile   = "file"
	StoreBackendSQLite = "sqlite"
)

// Config is the root configuration structure for the spoken device bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge     BridgeConfig     `yaml:"bridge"`
	Controller ControllerConfig `yaml:"controller"`
	Store      StoreConfig      `yaml:"store"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// BridgeConfig contains orchestrator settings.
type BridgeConfig struct {
	// ID identifies this bridge instance in health messages.
	ID string `yaml:"id"`

	// ConnectAttempts bounds controller connection attempts per cycle.
	// Default: 10
	ConnectAttempts int `yaml:"connect_attempts"`

	// ConnectRetryDelay is the pause between connection attempts (seconds).
	ConnectRetryDelay int `yaml:"connect_retry_delay"`

	// SuperviseInterval is how often the supervisor checks that the
	// connect/refresh worker is still alive (seconds).
	SuperviseInterval int `yaml:"supervise_interval"`

	// HealthInterval is how often bridge health is published (seconds).
	HealthInterval int `yaml:"health_interval"`

	// SceneFallback retries a node command on the node's responder scene
	// when the controller reports the node as not directly addressable.
	SceneFallback bool `yaml:"scene_fallback"`
}

// ControllerConfig describes how the automation controller is reached.
// The controller publishes its entity tree and status events over MQTT.
type ControllerConfig struct {
	// Protocol is the controller protocol segment used in topics (e.g. "isy").
	Protocol string `yaml:"protocol"`

	// TopicPrefix is the root of all controller topics.
	TopicPrefix string `yaml:"topic_prefix"`

	// DiscoveryWait is how long retained entity descriptors are collected
	// after subscribing (seconds).
	DiscoveryWait int `yaml:"discovery_wait"`

	// CommandTimeout is how long to wait for a command acknowledgement (seconds).
	CommandTimeout int `yaml:"command_timeout"`
}

// StoreConfig selects where the identity map is persisted.
type StoreConfig struct {
	// Backend is "file" (JSON, atomic rename) or "sqlite".
	Backend string `yaml:"backend"`

	// Path is the JSON file path for the file backend.
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains the diagnostic HTTP API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HUEBRIDGE_SECTION_KEY
// For example: HUEBRIDGE_STORE_PATH, HUEBRIDGE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:                "huebridge-01",
			ConnectAttempts:   10,
			ConnectRetryDelay: 3,
			SuperviseInterval: 10,
			HealthInterval:    30,
			SceneFallback:     true,
		},
		Controller: ControllerConfig{
			Protocol:       "isy",
			TopicPrefix:    "graylogic",
			DiscoveryWait:  2,
			CommandTimeout: 5,
		},
		Store: StoreConfig{
			Backend: StoreBackendFile,
			Path:    "./data/devices.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/huebridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "huebridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HUEBRIDGE_STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("HUEBRIDGE_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HUEBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("HUEBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HUEBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("HUEBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HUEBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("HUEBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("HUEBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
// Every problem found is reported in a single error.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.ConnectAttempts < 1 {
		errs = append(errs, "bridge.connect_attempts must be at least 1")
	}
	if c.Bridge.SuperviseInterval < 1 {
		errs = append(errs, "bridge.supervise_interval must be at least 1")
	}

	if c.Controller.Protocol == "" {
		errs = append(errs, "controller.protocol is required")
	}
	if c.Controller.TopicPrefix == "" {
		errs = append(errs, "controller.topic_prefix is required")
	}
	if c.Controller.CommandTimeout < 1 {
		errs = append(errs, "controller.command_timeout must be at least 1")
	}

	switch c.Store.Backend {
	case StoreBackendFile:
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the file backend")
		}
	case StoreBackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.backend must be %q or %q", StoreBackendFile, StoreBackendSQLite))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetConnectRetryDelay returns the controller connect retry delay.
func (c *Config) GetConnectRetryDelay() time.Duration {
	return time.Duration(c.Bridge.ConnectRetryDelay) * time.Second
}

// GetSuperviseInterval returns the worker supervision interval.
func (c *Config) GetSuperviseInterval() time.Duration {
	return time.Duration(c.Bridge.SuperviseInterval) * time.Second
}

// GetHealthInterval returns the health publishing interval.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// GetDiscoveryWait returns how long entity descriptors are collected.
func (c *Config) GetDiscoveryWait() time.Duration {
	return time.Duration(c.Controller.DiscoveryWait) * time.Second
}

// GetCommandTimeout returns the controller command acknowledgement timeout.
func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Controller.CommandTimeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
