package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for IRIS Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site        SiteConfig        `yaml:"site"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Persistence PersistenceConfig `yaml:"persistence"`
	OTA         OTAConfig         `yaml:"ota"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Fanout      FanoutConfig      `yaml:"fanout"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates, retained for parity with
// the device fleet's own location-aware firmware; unused by Core itself.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
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
// InitialDelay (seconds) is the retry interval for the initial connection;
// MaxDelay (seconds) caps the reconnect backoff. MaxAttempts is not read by
// the MQTT client.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings for the Query Surface.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings for the
// browser-based clients that talk to the Query Surface directly.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains Client Fan-Out streaming channel settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
	QueueSize      int    `yaml:"queue_size"`
	CoalesceWindow int    `yaml:"coalesce_window_ms"`
}

// InfluxDBConfig contains InfluxDB connection settings for the optional
// numeric-reading dual-write path.
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// PersistenceConfig contains Persistence Writer batching and retention
// settings.
type PersistenceConfig struct {
	BatchSize      int `yaml:"batch_size"`
	BatchInterval  int `yaml:"batch_interval_ms"`
	QueueSize      int `yaml:"queue_size"`
	RetentionDays  int `yaml:"retention_days"`
	OfflineTimeout int `yaml:"offline_timeout"`
}

// OTAConfig contains OTA Orchestrator manifest-building settings.
type OTAConfig struct {
	SourceRoot   string   `yaml:"source_root"`
	RawBaseURL   string   `yaml:"raw_base_url"`
	ProxyBaseURL string   `yaml:"proxy_base_url"`
	DefaultRef   string   `yaml:"default_ref"`
	DenyList     []string `yaml:"deny_list"`
	Schedule     string   `yaml:"schedule"`
}

// AlertsConfig contains Alert Evaluator threshold settings.
type AlertsConfig struct {
	TickInterval         int     `yaml:"tick_interval"`
	FreezerTempCriticalF float64 `yaml:"freezer_temp_critical_f"`
	FreezerDoorAjarS     int     `yaml:"freezer_door_ajar_s"`
	SilentDeviceS        int     `yaml:"silent_device_s"`
	WeatherStallS        int     `yaml:"weather_stall_s"`
}

// FanoutConfig contains Client Fan-Out hub settings.
type FanoutConfig struct {
	QueueSize      int `yaml:"queue_size"`
	CoalesceWindow int `yaml:"coalesce_window_ms"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: IRIS_SECTION_KEY
// For example: IRIS_DATABASE_PATH, IRIS_API_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "IRIS",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/iris.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "iris-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     30,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  2,
				Write: 5,
				Idle:  60,
			},
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type"},
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
			QueueSize:      64,
			CoalesceWindow: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Persistence: PersistenceConfig{
			BatchSize:      128,
			BatchInterval:  250,
			QueueSize:      4096,
			RetentionDays:  0,
			OfflineTimeout: 90,
		},
		OTA: OTAConfig{
			SourceRoot: "./devices",
			DefaultRef: "main",
			DenyList:   []string{".git", "*.bak", "*.swp", "__pycache__"},
		},
		Alerts: AlertsConfig{
			TickInterval:         5,
			FreezerTempCriticalF: 10.0,
			FreezerDoorAjarS:     300,
			SilentDeviceS:        90,
			WeatherStallS:        120,
		},
		Fanout: FanoutConfig{
			QueueSize:      64,
			CoalesceWindow: 100,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IRIS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("IRIS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("IRIS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IRIS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IRIS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("IRIS_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("IRIS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// OTA
	if v := os.Getenv("IRIS_OTA_SOURCE_ROOT"); v != "" {
		cfg.OTA.SourceRoot = v
	}
	if v := os.Getenv("IRIS_OTA_RAW_BASE_URL"); v != "" {
		cfg.OTA.RawBaseURL = v
	}
	if v := os.Getenv("IRIS_OTA_PROXY_BASE_URL"); v != "" {
		cfg.OTA.ProxyBaseURL = v
	}
}

// Validate checks the configuration for internal consistency.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Site validation
	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// OTA validation - the orchestrator refuses to build a manifest without
	// somewhere to enumerate files from or a way to make them fetchable.
	if c.OTA.SourceRoot == "" {
		errs = append(errs, "ota.source_root is required")
	}
	if c.OTA.RawBaseURL == "" && c.OTA.ProxyBaseURL == "" {
		errs = append(errs, "ota.raw_base_url or ota.proxy_base_url is required")
	}

	// Persistence validation
	if c.Persistence.OfflineTimeout <= 0 {
		errs = append(errs, "persistence.offline_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read deadline as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write deadline as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// OfflineTimeout returns the health-sweeper offline threshold as a Duration.
func (c *Config) OfflineTimeout() time.Duration {
	return time.Duration(c.Persistence.OfflineTimeout) * time.Second
}
