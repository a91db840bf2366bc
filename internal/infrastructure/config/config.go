package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Gateway transports.
const (
	TransportTCP        = "tcp"
	TransportWebsockets = "websockets"
)

// Config is the root configuration structure for an eGeoffrey module.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	House    HouseConfig    `yaml:"house"`
	Module   ModuleConfig   `yaml:"module"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Bus      BusConfig      `yaml:"bus"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HouseConfig identifies the house the module belongs to.
type HouseConfig struct {
	ID       string `yaml:"id"`
	Passcode string `yaml:"passcode"`
}

// ModuleConfig identifies the module on the bus.
type ModuleConfig struct {
	Scope string `yaml:"scope"`
	Name  string `yaml:"name"`
}

// GatewayConfig contains the MQTT gateway connection settings.
type GatewayConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Transport string `yaml:"transport"` // tcp or websockets
	SSL       bool   `yaml:"ssl"`
	CACert    string `yaml:"ca_cert"`
	CertFile  string `yaml:"certfile"`
	KeyFile   string `yaml:"keyfile"`
	QoS       int    `yaml:"qos"`

	// PersistentClient asks the broker to keep the session across
	// reconnections instead of starting clean.
	PersistentClient bool `yaml:"persistent_client"`

	// ConnectTimeout bounds the initial connection, in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig contains reconnection backoff settings, in seconds.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// BusConfig contains message bus client settings.
type BusConfig struct {
	OfflineQueue OfflineQueueConfig `yaml:"offline_queue"`
	Sessions     SessionsConfig     `yaml:"sessions"`

	// Verbose logs every message sent and received.
	Verbose bool `yaml:"verbose"`
}

// OfflineQueueConfig controls publishes issued while disconnected.
type OfflineQueueConfig struct {
	// MaxSize caps the queue. 0 means unbounded.
	MaxSize int `yaml:"max_size"`

	// Persistent keeps the queue in the SQLite database so it survives restarts.
	Persistent bool `yaml:"persistent"`
}

// SessionsConfig bounds the request/reply session store.
type SessionsConfig struct {
	MaxEntries int `yaml:"max_entries"`
	TTL        int `yaml:"ttl"` // seconds, 0 disables expiry
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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
	StatsInterval int    `yaml:"stats_interval"`
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
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables use the EGEOFFREY_ prefix, for example
// EGEOFFREY_ID, EGEOFFREY_GATEWAY_HOSTNAME or EGEOFFREY_DEBUG.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with the defaults of a stock eGeoffrey install.
func defaultConfig() *Config {
	return &Config{
		House: HouseConfig{
			ID: "default_house",
		},
		Module: ModuleConfig{
			Scope: "system",
			Name:  "monitor",
		},
		Gateway: GatewayConfig{
			Host:           "egeoffrey-gateway",
			Port:           443,
			Transport:      TransportWebsockets,
			ConnectTimeout: 10,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Bus: BusConfig{
			Sessions: SessionsConfig{
				MaxEntries: 10000,
				TTL:        3600,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/egeoffrey.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
			StatsInterval: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	// House
	if v := os.Getenv("EGEOFFREY_ID"); v != "" {
		cfg.House.ID = v
	}
	if v := os.Getenv("EGEOFFREY_PASSCODE"); v != "" {
		cfg.House.Passcode = v
	}

	// Gateway
	if v := os.Getenv("EGEOFFREY_GATEWAY_HOSTNAME"); v != "" {
		cfg.Gateway.Host = v
	}
	if v := os.Getenv("EGEOFFREY_GATEWAY_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EGEOFFREY_GATEWAY_PORT: %w", err)
		}
		cfg.Gateway.Port = port
	}
	if v := os.Getenv("EGEOFFREY_GATEWAY_TRANSPORT"); v != "" {
		cfg.Gateway.Transport = v
	}
	if v := os.Getenv("EGEOFFREY_GATEWAY_SSL"); v != "" {
		ssl, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("EGEOFFREY_GATEWAY_SSL: %w", err)
		}
		cfg.Gateway.SSL = ssl
	}
	if v := os.Getenv("EGEOFFREY_GATEWAY_CA_CERT"); v != "" {
		cfg.Gateway.CACert = v
	}
	if v := os.Getenv("EGEOFFREY_GATEWAY_CERTFILE"); v != "" {
		cfg.Gateway.CertFile = v
	}
	if v := os.Getenv("EGEOFFREY_GATEWAY_KEYFILE"); v != "" {
		cfg.Gateway.KeyFile = v
	}

	// Debugging
	if v := os.Getenv("EGEOFFREY_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("EGEOFFREY_DEBUG: %w", err)
		}
		if debug {
			cfg.Logging.Level = "debug"
		}
	}
	if v := os.Getenv("EGEOFFREY_VERBOSE"); v != "" {
		verbose, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("EGEOFFREY_VERBOSE: %w", err)
		}
		cfg.Bus.Verbose = verbose
	}

	// InfluxDB
	if v := os.Getenv("EGEOFFREY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Identity validation. These values become topic segments.
	if c.House.ID == "" {
		errs = append(errs, "house.id is required")
	} else if !isSegment(c.House.ID) {
		errs = append(errs, "house.id must not contain '/', '+', '#' or '*'")
	}
	if c.Module.Scope == "" || c.Module.Name == "" {
		errs = append(errs, "module.scope and module.name are required")
	} else if !isSegment(c.Module.Scope) || !isSegment(c.Module.Name) {
		errs = append(errs, "module.scope and module.name must not contain '/', '+', '#' or '*'")
	}

	// Gateway validation
	if c.Gateway.Host == "" {
		errs = append(errs, "gateway.host is required")
	}
	if c.Gateway.Port < 1 || c.Gateway.Port > 65535 {
		errs = append(errs, "gateway.port must be between 1 and 65535")
	}
	if c.Gateway.Transport != TransportTCP && c.Gateway.Transport != TransportWebsockets {
		errs = append(errs, "gateway.transport must be tcp or websockets")
	}
	if c.Gateway.QoS < 0 || c.Gateway.QoS > 2 {
		errs = append(errs, "gateway.qos must be 0, 1, or 2")
	}
	if (c.Gateway.CertFile == "") != (c.Gateway.KeyFile == "") {
		errs = append(errs, "gateway.certfile and gateway.keyfile must be set together")
	}
	if c.Gateway.ConnectTimeout < 1 {
		errs = append(errs, "gateway.connect_timeout must be positive")
	}
	if c.Gateway.Reconnect.InitialDelay < 1 || c.Gateway.Reconnect.MaxDelay < c.Gateway.Reconnect.InitialDelay {
		errs = append(errs, "gateway.reconnect delays must be positive with max_delay >= initial_delay")
	}

	// Bus validation
	if c.Bus.OfflineQueue.MaxSize < 0 {
		errs = append(errs, "bus.offline_queue.max_size must not be negative")
	}
	if c.Bus.OfflineQueue.Persistent && c.Database.Path == "" {
		errs = append(errs, "database.path is required for a persistent offline queue")
	}
	if c.Bus.Sessions.MaxEntries < 0 || c.Bus.Sessions.TTL < 0 {
		errs = append(errs, "bus.sessions limits must not be negative")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when enabled")
		}
		if c.InfluxDB.StatsInterval < 1 {
			errs = append(errs, "influxdb.stats_interval must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// isSegment reports whether s can be used as a single topic segment.
func isSegment(s string) bool {
	return !strings.ContainsAny(s, "/+#*")
}

// GetConnectTimeout returns the gateway connect timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Gateway.ConnectTimeout) * time.Second
}

// GetReconnectInitialDelay returns the first reconnection delay as a Duration.
func (c *Config) GetReconnectInitialDelay() time.Duration {
	return time.Duration(c.Gateway.Reconnect.InitialDelay) * time.Second
}

// GetReconnectMaxDelay returns the reconnection backoff cap as a Duration.
func (c *Config) GetReconnectMaxDelay() time.Duration {
	return time.Duration(c.Gateway.Reconnect.MaxDelay) * time.Second
}

// GetSessionTTL returns the session expiry as a Duration (0 disables it).
func (c *Config) GetSessionTTL() time.Duration {
	return time.Duration(c.Bus.Sessions.TTL) * time.Second
}

// GetStatsInterval returns how often bus statistics are written to InfluxDB.
func (c *Config) GetStatsInterval() time.Duration {
	return time.Duration(c.InfluxDB.StatsInterval) * time.Second
}
