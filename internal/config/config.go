package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	LIFX            LIFXConfig        `yaml:"lifx"`
	Store           StoreConfig       `yaml:"store"`
	Database        DatabaseConfig    `yaml:"database"`
	Log             LogConfig         `yaml:"log"`
	Healthcheck     HealthcheckConfig `yaml:"healthcheck"`
	EventBus        EventBusConfig    `yaml:"eventbus"`
	MQTT            MQTTConfig        `yaml:"mqtt"`
	ShutdownTimeout Duration          `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// LIFXConfig contains LAN discovery and control settings
type LIFXConfig struct {
	BroadcastHost string   `yaml:"broadcast_host"` // Empty = lifxlan default broadcast address
	ScanTimeout   Duration `yaml:"scan_timeout"`   // How long a discovery sweep listens for replies
	DialTimeout   Duration `yaml:"dial_timeout"`   // Per-device request timeout
	FetchWorkers  int      `yaml:"fetch_workers"`  // Concurrent per-device fetches during a scan
	RateLimitRPS  float64  `yaml:"rate_limit_rps"` // Requests per second sent to bulbs
	RescanEvery   Duration `yaml:"rescan_every"`   // Background rescan period, 0 = only on demand
}

// StoreConfig contains the group document location
type StoreConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path              string   `yaml:"path"`
	RetentionPeriod   Duration `yaml:"retention_period"`   // How long history entries are kept
	RetentionInterval Duration `yaml:"retention_interval"` // How often old entries are purged
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
	File    string `yaml:"file"` // Log destination while the terminal UI owns the screen
}

// GetLevel returns the configured log level
func (c *LogConfig) GetLevel() string {
	return c.Level
}

// HealthcheckConfig contains health check server settings
type HealthcheckConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// GetHost returns the bind host with default
func (c *HealthcheckConfig) GetHost() string {
	if c.Host == "" {
		return "127.0.0.1"
	}
	return c.Host
}

// GetPort returns the bind port with default
func (c *HealthcheckConfig) GetPort() int {
	if c.Port <= 0 {
		return 9090
	}
	return c.Port
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 2)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 2
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// MQTTConfig contains the optional MQTT event publisher settings
type MQTTConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Broker         string   `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID       string   `yaml:"client_id"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	TopicPrefix    string   `yaml:"topic_prefix"`
	QoS            int      `yaml:"qos"`
	ConnectTimeout Duration `yaml:"connect_timeout"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// GetShutdownTimeout returns the shutdown timeout
func (c *Config) GetShutdownTimeout() time.Duration {
	return c.ShutdownTimeout.Duration()
}

// Load reads and parses the configuration file.
// A missing file is not an error: defaults are returned instead.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Run on defaults
	case err != nil:
		return nil, err
	default:
		// Expand environment variables
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, err
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(filepath.Dir(cfg.Store.Path), "ambience.sqlite")
	}

	if cfg.Database.RetentionPeriod == 0 {
		cfg.Database.RetentionPeriod = Duration(30 * 24 * time.Hour)
	}
	if cfg.Database.RetentionInterval == 0 {
		cfg.Database.RetentionInterval = Duration(time.Hour)
	}

	// LIFX defaults
	if cfg.LIFX.ScanTimeout == 0 {
		cfg.LIFX.ScanTimeout = Duration(3 * time.Second)
	}
	if cfg.LIFX.DialTimeout == 0 {
		cfg.LIFX.DialTimeout = Duration(2 * time.Second)
	}
	if cfg.LIFX.FetchWorkers <= 0 {
		cfg.LIFX.FetchWorkers = 8
	}
	if cfg.LIFX.RateLimitRPS == 0 {
		cfg.LIFX.RateLimitRPS = 20.0 // LIFX recommends no more than 20 messages per second per bulb
	}

	// MQTT defaults
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "ambience"
	}
	if cfg.MQTT.ConnectTimeout == 0 {
		cfg.MQTT.ConnectTimeout = Duration(10 * time.Second)
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

// DefaultStorePath returns the per-user location of the group document
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "ambience", "ambience.json")
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}

// ExpandEnvString expands a single string with environment variables
func ExpandEnvString(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return expandEnvVars(s)
	}
	return s
}
