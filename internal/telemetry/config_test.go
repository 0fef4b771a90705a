package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	enabled := func(mutate func(*Config)) *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		mutate(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"disabled defaults", NewDefaultConfig(), ""},
		{"disabled ignores bad values", &Config{Endpoint: "", Sampling: SamplingConfig{Rate: 5}}, ""},
		{"enabled defaults", enabled(func(*Config) {}), ""},
		{"no endpoint", enabled(func(c *Config) { c.Endpoint = "" }), "endpoint is required"},
		{"no service name", enabled(func(c *Config) { c.ServiceName = "" }), "service_name"},
		{"bad protocol", enabled(func(c *Config) { c.Protocol = "udp" }), "protocol"},
		{"insecure remote", enabled(func(c *Config) { c.Endpoint = "otel.example.com:4317" }), "insecure export"},
		{"tls remote", enabled(func(c *Config) {
			c.Endpoint = "otel.example.com:4317"
			c.Insecure = false
		}), ""},
		{"sampling rate", enabled(func(c *Config) { c.Sampling.Rate = 1.5 }), "sampling.rate"},
		{"export interval", enabled(func(c *Config) { c.Metrics.ExportInterval = 0 }), "export_interval"},
		{"export interval unused", enabled(func(c *Config) {
			c.Metrics.Enabled = false
			c.Metrics.ExportInterval = 0
		}), ""},
		{"shutdown timeout", enabled(func(c *Config) { c.ShutdownTimeout = 0 }), "shutdown_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateReportsAll(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.ServiceName = ""
	cfg.Protocol = "udp"
	cfg.ShutdownTimeout = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"service_name", "protocol", "shutdown_timeout"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestIsLocalEndpoint(t *testing.T) {
	tests := map[string]bool{
		"localhost:4317":        true,
		"127.0.0.1:4317":        true,
		"127.0.0.9":             true,
		"[::1]:4317":            true,
		"::1":                   true,
		"http://localhost:4318": true,
		"collector:4317":        false,
		"10.0.0.5:4317":         false,
		"https://otel.example":  false,
	}
	for endpoint, want := range tests {
		t.Run(endpoint, func(t *testing.T) {
			cfg := &Config{Endpoint: endpoint}
			assert.Equal(t, want, cfg.isLocalEndpoint())
		})
	}
}

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "docmanager", cfg.ServiceName)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ExportInterval)
}
