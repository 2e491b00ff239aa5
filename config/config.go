package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ncerrors "github.com/c360/nodecomm/errors"
)

// Config represents the complete framework configuration
type Config struct {
	Executor  ExecutorConfig  `yaml:"executor"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ExecutorConfig controls node scheduling
type ExecutorConfig struct {
	// Workers is the number of pool workers for the concurrent executor
	Workers int `yaml:"workers"`
	// QueueSize bounds the concurrent executor's dispatch queue
	QueueSize int `yaml:"queue_size"`
	// ShutdownTimeout bounds how long Stop waits for in-flight updates
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TransportConfig controls network and serial transports
type TransportConfig struct {
	// UDP bind address for servers and subscribers, e.g. "127.0.0.1:9000"
	UDPBindAddr string `yaml:"udp_bind_addr"`
	// NATS server URL, e.g. "nats://127.0.0.1:4222"
	NATSURL string `yaml:"nats_url"`
	// WebSocket listen address for the update hub
	WSListenAddr string `yaml:"ws_listen_addr"`
	// SerialFrameCapacity is the fixed frame size for serial links in bytes
	SerialFrameCapacity int `yaml:"serial_frame_capacity"`
	// ReadPollInterval is how often non-blocking receives are polled
	ReadPollInterval time.Duration `yaml:"read_poll_interval"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
	// Format is "json" or "text"
	Format string `yaml:"format"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			Workers:         4,
			QueueSize:       256,
			ShutdownTimeout: 5 * time.Second,
		},
		Transport: TransportConfig{
			SerialFrameCapacity: 64,
			ReadPollInterval:    100 * time.Microsecond,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Executor.Workers < 0 {
		return ncerrors.WrapInvalid(
			fmt.Errorf("workers must be >= 0, got %d", c.Executor.Workers),
			"Config", "Validate", "executor check")
	}
	if c.Executor.QueueSize < 0 {
		return ncerrors.WrapInvalid(
			fmt.Errorf("queue_size must be >= 0, got %d", c.Executor.QueueSize),
			"Config", "Validate", "executor check")
	}
	if c.Executor.ShutdownTimeout < 0 {
		return ncerrors.WrapInvalid(
			fmt.Errorf("shutdown_timeout must be >= 0, got %s", c.Executor.ShutdownTimeout),
			"Config", "Validate", "executor check")
	}
	if c.Transport.SerialFrameCapacity < 0 {
		return ncerrors.WrapInvalid(
			fmt.Errorf("serial_frame_capacity must be >= 0, got %d", c.Transport.SerialFrameCapacity),
			"Config", "Validate", "transport check")
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return ncerrors.WrapInvalid(
			fmt.Errorf("unknown log level %q", c.Logging.Level),
			"Config", "Validate", "logging check")
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return ncerrors.WrapInvalid(
			fmt.Errorf("unknown log format %q", c.Logging.Format),
			"Config", "Validate", "logging check")
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return ncerrors.WrapInvalid(
			ncerrors.ErrMissingConfig,
			"Config", "Validate", "metrics addr check")
	}
	return nil
}

// Load reads a YAML configuration file and merges it over defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ncerrors.WrapFatal(err, "Config", "Load", "read file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, ncerrors.WrapInvalid(err, "Config", "Load", "parse yaml")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
