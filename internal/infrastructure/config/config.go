package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for homewatch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Hub         HubConfig         `yaml:"hub"`
	View        ViewConfig        `yaml:"view"`
	Favorites   []string          `yaml:"favorites"`
	Database    DatabaseConfig    `yaml:"database"`
	Statestream StatestreamConfig `yaml:"statestream"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// HubConfig contains the Home Assistant connection settings.
type HubConfig struct {
	// URL is the base hub URL. Both http(s):// and ws(s):// forms are
	// accepted; WebSocketURL() derives the actual socket endpoint.
	URL string `yaml:"url"`

	// Token is the long-lived access token used for authentication.
	Token string `yaml:"token"`

	// RequestTimeout is the per-request response timeout in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// PingInterval is the keepalive ping interval in seconds. Zero disables pings.
	PingInterval int `yaml:"ping_interval"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains reconnection backoff settings.
type ReconnectConfig struct {
	// InitialDelay is the first backoff delay in seconds.
	InitialDelay int `yaml:"initial_delay"`

	// MaxDelay caps the backoff delay in seconds.
	MaxDelay int `yaml:"max_delay"`

	// Jitter is the random fraction (0..1) applied to each delay.
	Jitter float64 `yaml:"jitter"`
}

// ViewConfig contains the initial view settings applied at startup.
type ViewConfig struct {
	// Filter is the initial filter mode: "all", "favorites" or a domain name.
	Filter string `yaml:"filter"`

	// Group is the initial group mode: "none", "type", "room", "state"
	// or "favorites_first".
	Group string `yaml:"group"`

	// Domains is the allow-list of entity domains the session tracks.
	Domains []string `yaml:"domains"`
}

// DatabaseConfig contains SQLite database settings for favorites persistence.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// StatestreamConfig contains the optional MQTT state mirror settings.
type StatestreamConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
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

// TelemetryConfig contains the optional InfluxDB state history settings.
type TelemetryConfig struct {
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

// WebSocketURL derives the hub WebSocket endpoint from the configured URL.
//
// http:// and https:// schemes are rewritten to ws:// and wss://, and the
// /api/websocket path is appended if not already present.
func (h HubConfig) WebSocketURL() string {
	u := h.URL
	switch {
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	}
	if !strings.HasSuffix(u, "/api/websocket") {
		u = strings.TrimRight(u, "/") + "/api/websocket"
	}
	return u
}

// RequestTimeoutDuration returns the per-request timeout as a time.Duration.
func (h HubConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(h.RequestTimeout) * time.Second
}

// PingIntervalDuration returns the keepalive interval as a time.Duration.
func (h HubConfig) PingIntervalDuration() time.Duration {
	return time.Duration(h.PingInterval) * time.Second
}

// InitialDelayDuration returns the initial backoff delay as a time.Duration.
func (r ReconnectConfig) InitialDelayDuration() time.Duration {
	return time.Duration(r.InitialDelay) * time.Second
}

// MaxDelayDuration returns the backoff cap as a time.Duration.
func (r ReconnectConfig) MaxDelayDuration() time.Duration {
	return time.Duration(r.MaxDelay) * time.Second
}

// Load reads, parses and validates the configuration file.
//
// Values are resolved in three layers, later layers winning:
//  1. Built-in defaults
//  2. The YAML file at path
//  3. Environment variable overrides (HOMEWATCH_SECTION_KEY)
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Hub: HubConfig{
			URL:            "http://homeassistant.local:8123",
			RequestTimeout: 30,
			PingInterval:   30,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				Jitter:       0.25,
			},
		},
		View: ViewConfig{
			Filter:  "all",
			Group:   "favorites_first",
			Domains: []string{"light", "climate", "switch", "fan", "cover", "media_player"},
		},
		Database: DatabaseConfig{
			Path:        "./data/homewatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Statestream: StatestreamConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homewatch",
			},
			QoS: 1,
		},
		Telemetry: TelemetryConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HOMEWATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Hub
	if v := os.Getenv("HOMEWATCH_HUB_URL"); v != "" {
		cfg.Hub.URL = v
	}
	if v := os.Getenv("HOMEWATCH_HUB_TOKEN"); v != "" {
		cfg.Hub.Token = v
	}

	// Database
	if v := os.Getenv("HOMEWATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Statestream
	if v := os.Getenv("HOMEWATCH_MQTT_HOST"); v != "" {
		cfg.Statestream.Broker.Host = v
	}
	if v := os.Getenv("HOMEWATCH_MQTT_USERNAME"); v != "" {
		cfg.Statestream.Auth.Username = v
	}
	if v := os.Getenv("HOMEWATCH_MQTT_PASSWORD"); v != "" {
		cfg.Statestream.Auth.Password = v
	}

	// Telemetry
	if v := os.Getenv("HOMEWATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Hub.URL == "" {
		errs = append(errs, "hub.url is required")
	}
	if c.Hub.Token == "" {
		errs = append(errs, "hub.token is required (set HOMEWATCH_HUB_TOKEN)")
	}
	if c.Hub.RequestTimeout <= 0 {
		errs = append(errs, "hub.request_timeout must be positive")
	}
	if c.Hub.Reconnect.InitialDelay <= 0 {
		errs = append(errs, "hub.reconnect.initial_delay must be positive")
	}
	if c.Hub.Reconnect.MaxDelay < c.Hub.Reconnect.InitialDelay {
		errs = append(errs, "hub.reconnect.max_delay must be >= initial_delay")
	}
	if c.Hub.Reconnect.Jitter < 0 || c.Hub.Reconnect.Jitter >= 1 {
		errs = append(errs, "hub.reconnect.jitter must be in [0, 1)")
	}
	if len(c.View.Domains) == 0 {
		errs = append(errs, "view.domains must not be empty")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Statestream.Enabled {
		if c.Statestream.Broker.Host == "" {
			errs = append(errs, "statestream.broker.host is required when enabled")
		}
		if c.Statestream.QoS < 0 || c.Statestream.QoS > 2 {
			errs = append(errs, "statestream.qos must be 0, 1 or 2")
		}
	}
	if c.Telemetry.Enabled {
		if c.Telemetry.URL == "" {
			errs = append(errs, "telemetry.url is required when enabled")
		}
		if c.Telemetry.Org == "" || c.Telemetry.Bucket == "" {
			errs = append(errs, "telemetry.org and telemetry.bucket are required when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
