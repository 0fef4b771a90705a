// Package config loads docmanager configuration from defaults, an
// optional YAML file and DOCMANAGER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/docmanager/internal/hooks"
	"github.com/fyrsmithlabs/docmanager/internal/logging"
	"github.com/fyrsmithlabs/docmanager/internal/notify"
	"github.com/fyrsmithlabs/docmanager/internal/pointstore"
	"github.com/fyrsmithlabs/docmanager/internal/telemetry"
)

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig      `koanf:"server"`
	Store     pointstore.Config `koanf:"store"`
	Auth      AuthConfig        `koanf:"auth"`
	Settings  SettingsConfig    `koanf:"settings"`
	Notify    notify.Config     `koanf:"notify"`
	Hooks     hooks.Config      `koanf:"hooks"`
	Logging   logging.Config    `koanf:"logging"`
	Telemetry telemetry.Config  `koanf:"telemetry"`
}

// ServerConfig configures the admin HTTP API.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// DestructiveRate is remove/clear requests per second per user.
	DestructiveRate  float64 `koanf:"destructive_rate"`
	DestructiveBurst int     `koanf:"destructive_burst"`
}

// AuthConfig holds the HMAC key used to verify admin tokens.
type AuthConfig struct {
	JWTSecret Secret `koanf:"jwt_secret"`
}

// SettingsConfig selects where plugin settings persist.
type SettingsConfig struct {
	// Backend is "sqlite" (default) or "memory".
	Backend string `koanf:"backend"`
	// DataDir holds settings.db. Empty means ~/.docmanager/data.
	DataDir string `koanf:"data_dir"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "localhost",
			Port:             9090,
			ShutdownTimeout:  Duration(10 * time.Second),
			DestructiveRate:  1,
			DestructiveBurst: 5,
		},
		Store: pointstore.Config{
			Provider:          "chromem",
			EnumerationPolicy: "lenient",
		},
		Settings: SettingsConfig{Backend: "sqlite"},
		Notify:    notify.Config{SubjectPrefix: notify.DefaultSubjectPrefix},
		Hooks:     *hooks.DefaultConfig(),
		Logging:   *logging.NewDefaultConfig(),
		Telemetry: *telemetry.NewDefaultConfig(),
	}
}

// Validate checks every section and joins the failures.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if c.Server.DestructiveRate <= 0 {
		errs = append(errs, fmt.Errorf("server.destructive_rate must be positive, got %v", c.Server.DestructiveRate))
	}
	if c.Server.DestructiveBurst < 1 {
		errs = append(errs, fmt.Errorf("server.destructive_burst must be >= 1, got %d", c.Server.DestructiveBurst))
	}
	switch c.Settings.Backend {
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("settings.backend must be 'sqlite' or 'memory', got %q", c.Settings.Backend))
	}
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := c.Hooks.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("hooks: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to print. Secret fields marshal redacted
// on their own; plain string credentials of the store are masked here.
func (c *Config) Redacted() *Config {
	out := *c
	out.Store.Embeddings.APIKey = mask(c.Store.Embeddings.APIKey)
	out.Store.Qdrant.APIKey = mask(c.Store.Qdrant.APIKey)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}
