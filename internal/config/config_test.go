package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "chromem", cfg.Store.Provider)
	assert.Equal(t, "lenient", cfg.Store.EnumerationPolicy)
	assert.Equal(t, "sqlite", cfg.Settings.Backend)
	assert.Equal(t, "docmanager.notifications", cfg.Notify.SubjectPrefix)
	assert.Empty(t, cfg.Notify.URL)
	assert.True(t, cfg.Hooks.FastReply)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.False(t, cfg.Auth.JWTSecret.IsSet())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown_timeout"},
		{"rate", func(c *Config) { c.Server.DestructiveRate = 0 }, "destructive_rate"},
		{"burst", func(c *Config) { c.Server.DestructiveBurst = 0 }, "destructive_burst"},
		{"settings backend", func(c *Config) { c.Settings.Backend = "redis" }, "settings.backend"},
		{"store provider", func(c *Config) { c.Store.Provider = "pinecone" }, "store:"},
		{"enumeration policy", func(c *Config) { c.Store.EnumerationPolicy = "eager" }, "store:"},
		{"hooks", func(c *Config) { c.Hooks.HostName = " " }, "hooks:"},
		{"logging", func(c *Config) { c.Logging.Format = "xml" }, "logging:"},
		{"telemetry", func(c *Config) {
			c.Telemetry.Enabled = true
			c.Telemetry.Endpoint = ""
		}, "telemetry:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Settings.Backend = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "settings.backend")
}

func TestConfig_Redacted(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = Secret("hunter2")
	cfg.Store.Qdrant.APIKey = "qdrant-key"
	cfg.Store.Embeddings.APIKey = "sk-live"

	raw, err := json.Marshal(cfg.Redacted())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "hunter2")
	assert.NotContains(t, string(raw), "qdrant-key")
	assert.NotContains(t, string(raw), "sk-live")
	assert.Contains(t, string(raw), "[REDACTED]")

	assert.Equal(t, "qdrant-key", cfg.Store.Qdrant.APIKey, "original is untouched")
	assert.Empty(t, Default().Redacted().Store.Qdrant.APIKey)
}
