package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for robotlan.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Robots    []RobotConfig   `yaml:"robots"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Session   SessionConfig   `yaml:"session"`
	Store     StoreConfig     `yaml:"store"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RobotConfig describes one registered robot.
type RobotConfig struct {
	ID       string `yaml:"id"`
	Password string `yaml:"password"`
	Family   string `yaml:"family"`
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Enabled  *bool  `yaml:"enabled"`
}

// IsEnabled reports whether the robot should be connected at startup.
// Robots are enabled unless explicitly disabled.
func (r RobotConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// DiscoveryConfig contains UDP discovery settings.
type DiscoveryConfig struct {
	Port             int `yaml:"port"`
	ProbeIntervalMS  int `yaml:"probe_interval_ms"`
	SweepDurationMS  int `yaml:"sweep_duration_ms"`
	ReceiveTimeoutMS int `yaml:"receive_timeout_ms"`
	FindTimeoutMS    int `yaml:"find_timeout_ms"`
}

// SessionConfig contains robot session timings.
type SessionConfig struct {
	Port                    int `yaml:"port"`
	ConnectTimeoutMS        int `yaml:"connect_timeout_ms"`
	KeepAliveS              int `yaml:"keepalive_s"`
	SettleMS                int `yaml:"settle_ms"`
	TypeValidationTimeoutMS int `yaml:"type_validation_timeout_ms"`
	TypeValidationPollMS    int `yaml:"type_validation_poll_ms"`
	DebounceMS              int `yaml:"debounce_ms"`
	TransientDebounceMS     int `yaml:"transient_debounce_ms"`
	TransientWindowMS       int `yaml:"transient_window_ms"`
	ReconnectDelayMS        int `yaml:"reconnect_delay_ms"`
	DisconnectRetryDelayMS  int `yaml:"disconnect_retry_delay_ms"`
	InstallGraceMinutes     int `yaml:"install_grace_minutes"`
	EventBuffer             int `yaml:"event_buffer"`
}

// StoreConfig selects where last-known addresses and favorites are kept.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
//
// The same structure drives both the host-side bridge broker and the
// per-robot session connections built by the session package.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	KeepAlive   int                 `yaml:"keepalive"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	TLS                bool   `yaml:"tls"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	ClientID           string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// Disabled turns off paho's own reconnect loop for callers that manage
// reconnection themselves.
type MQTTReconnectConfig struct {
	Disabled     bool `yaml:"disabled"`
	InitialDelay int  `yaml:"initial_delay"`
	MaxDelay     int  `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
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

// Store backends.
const (
	StoreBackendSQLite = "sqlite"
	StoreBackendRedis  = "redis"
)

// Load reads configuration from a YAML file and applies environment overrides.
//
// Environment variables take precedence over file values.
// For example: ROBOTLAN_DATABASE_PATH, ROBOTLAN_API_PORT,
// ROBOTLAN_ROBOT_<ID>_PASSWORD.
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
		Discovery: DiscoveryConfig{
			Port:             5678,
			ProbeIntervalMS:  1000,
			SweepDurationMS:  4000,
			ReceiveTimeoutMS: 5000,
			FindTimeoutMS:    5000,
		},
		Session: SessionConfig{
			Port:                    8883,
			ConnectTimeoutMS:        10000,
			KeepAliveS:              5,
			SettleMS:                1000,
			TypeValidationTimeoutMS: 5000,
			TypeValidationPollMS:    100,
			DebounceMS:              500,
			TransientDebounceMS:     10000,
			TransientWindowMS:       1000,
			ReconnectDelayMS:        30000,
			DisconnectRetryDelayMS:  1000,
			InstallGraceMinutes:     10,
			EventBuffer:             64,
		},
		Store: StoreConfig{
			Backend: StoreBackendSQLite,
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/robotlan.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "robotlan",
			},
			QoS:         1,
			KeepAlive:   60,
			TopicPrefix: "robotlan",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
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
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ROBOTLAN_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("ROBOTLAN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("ROBOTLAN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ROBOTLAN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ROBOTLAN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("ROBOTLAN_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ROBOTLAN_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("ROBOTLAN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Redis
	if v := os.Getenv("ROBOTLAN_REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("ROBOTLAN_REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}

	// Logging
	if v := os.Getenv("ROBOTLAN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Robot secrets, keyed by upper-cased robot id.
	for i := range cfg.Robots {
		key := "ROBOTLAN_ROBOT_" + strings.ToUpper(cfg.Robots[i].ID) + "_PASSWORD"
		if v := os.Getenv(key); v != "" {
			cfg.Robots[i].Password = v
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Robots
	seen := make(map[string]bool, len(c.Robots))
	for i, r := range c.Robots {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("robots[%d].id is required", i))
			continue
		}
		if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("robots[%d].id %q is duplicated", i, r.ID))
		}
		seen[r.ID] = true
		if r.Password == "" {
			errs = append(errs, fmt.Sprintf("robots[%d].password is required (set ROBOTLAN_ROBOT_%s_PASSWORD)", i, strings.ToUpper(r.ID)))
		}
		switch r.Family {
		case "vacuum", "mop", "combo":
		default:
			errs = append(errs, fmt.Sprintf("robots[%d].family must be vacuum, mop, or combo", i))
		}
	}

	// Discovery
	if c.Discovery.Port < 1 || c.Discovery.Port > 65535 {
		errs = append(errs, "discovery.port must be between 1 and 65535")
	}
	if c.Discovery.ProbeIntervalMS <= 0 || c.Discovery.SweepDurationMS <= 0 ||
		c.Discovery.ReceiveTimeoutMS <= 0 || c.Discovery.FindTimeoutMS <= 0 {
		errs = append(errs, "discovery timings must be positive")
	}

	// Session
	s := c.Session
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, "session.port must be between 1 and 65535")
	}
	if s.ConnectTimeoutMS <= 0 || s.KeepAliveS <= 0 || s.SettleMS <= 0 ||
		s.TypeValidationTimeoutMS <= 0 || s.TypeValidationPollMS <= 0 ||
		s.DebounceMS <= 0 || s.TransientDebounceMS <= 0 || s.TransientWindowMS <= 0 ||
		s.ReconnectDelayMS <= 0 || s.DisconnectRetryDelayMS <= 0 {
		errs = append(errs, "session timings must be positive")
	}
	if s.EventBuffer < 0 {
		errs = append(errs, "session.event_buffer must not be negative")
	}

	// Store
	switch c.Store.Backend {
	case StoreBackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite store")
		}
	case StoreBackendRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, "store.redis.addr is required for the redis store")
		}
	default:
		errs = append(errs, "store.backend must be sqlite or redis")
	}

	// MQTT
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// ProbeInterval returns the delay between discovery probes.
func (d DiscoveryConfig) ProbeInterval() time.Duration { return ms(d.ProbeIntervalMS) }

// SweepDuration returns how long probes keep being sent.
func (d DiscoveryConfig) SweepDuration() time.Duration { return ms(d.SweepDurationMS) }

// ReceiveTimeout returns how long a sweep listens for replies.
func (d DiscoveryConfig) ReceiveTimeout() time.Duration { return ms(d.ReceiveTimeoutMS) }

// FindTimeout returns the bound on a targeted find.
func (d DiscoveryConfig) FindTimeout() time.Duration { return ms(d.FindTimeoutMS) }

// ConnectTimeout returns the transport connect timeout.
func (s SessionConfig) ConnectTimeout() time.Duration { return ms(s.ConnectTimeoutMS) }

// KeepAlive returns the transport keepalive interval.
func (s SessionConfig) KeepAlive() time.Duration { return time.Duration(s.KeepAliveS) * time.Second }

// SettleDelay returns the first-report settle window.
func (s SessionConfig) SettleDelay() time.Duration { return ms(s.SettleMS) }

// TypeValidationTimeout returns how long to wait for the family fields.
func (s SessionConfig) TypeValidationTimeout() time.Duration { return ms(s.TypeValidationTimeoutMS) }

// TypeValidationPoll returns the type validation polling interval.
func (s SessionConfig) TypeValidationPoll() time.Duration { return ms(s.TypeValidationPollMS) }

// Debounce returns the normal status debounce window.
func (s SessionConfig) Debounce() time.Duration { return ms(s.DebounceMS) }

// TransientDebounce returns the extended window used after dock-to-charge.
func (s SessionConfig) TransientDebounce() time.Duration { return ms(s.TransientDebounceMS) }

// TransientWindow returns how close to a dock-to-charge transition a run
// report must be to count as transient.
func (s SessionConfig) TransientWindow() time.Duration { return ms(s.TransientWindowMS) }

// ReconnectDelay returns the delay after a failed connection.
func (s SessionConfig) ReconnectDelay() time.Duration { return ms(s.ReconnectDelayMS) }

// DisconnectRetryDelay returns the delay after a dropped connection.
func (s SessionConfig) DisconnectRetryDelay() time.Duration { return ms(s.DisconnectRetryDelayMS) }

// InstallGrace returns how long after a near-complete download a failure
// is attributed to the update being installed.
func (s SessionConfig) InstallGrace() time.Duration {
	return time.Duration(s.InstallGraceMinutes) * time.Minute
}

// TTL returns the Redis key expiry, zero meaning none.
func (r RedisConfig) TTL() time.Duration { return time.Duration(r.TTLHours) * time.Hour }
