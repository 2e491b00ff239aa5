package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ncerrors "github.com/c360/nodecomm/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Executor.Workers)
	assert.Equal(t, 5*time.Second, cfg.Executor.ShutdownTimeout)
	assert.Equal(t, 64, cfg.Transport.SerialFrameCapacity)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
executor:
  workers: 8
  shutdown_timeout: 2s
transport:
  udp_bind_addr: "127.0.0.1:9000"
  nats_url: "nats://127.0.0.1:4222"
metrics:
  enabled: true
  addr: ":9191"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Executor.Workers)
	assert.Equal(t, 2*time.Second, cfg.Executor.ShutdownTimeout)
	assert.Equal(t, "127.0.0.1:9000", cfg.Transport.UDPBindAddr)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Transport.NATSURL)
	// Untouched fields keep defaults.
	assert.Equal(t, 256, cfg.Executor.QueueSize)
	assert.Equal(t, 64, cfg.Transport.SerialFrameCapacity)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9191", cfg.Metrics.Addr)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
	assert.True(t, ncerrors.IsFatal(err))
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("executor: [not a map"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, ncerrors.IsInvalid(err))
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Executor.Workers = -1 }},
		{"negative queue", func(c *Config) { c.Executor.QueueSize = -1 }},
		{"negative timeout", func(c *Config) { c.Executor.ShutdownTimeout = -time.Second }},
		{"negative frame capacity", func(c *Config) { c.Transport.SerialFrameCapacity = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"metrics without addr", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, ncerrors.IsInvalid(err))
		})
	}
}
