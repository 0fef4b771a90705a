package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Export protocols.
const (
	protocolGRPC = "grpc"
	protocolHTTP = "http/protobuf"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
	// Protocol is "grpc" (default) or "http/protobuf".
	Protocol       string         `koanf:"protocol"`
	Insecure       bool           `koanf:"insecure"`
	ServiceName    string         `koanf:"service_name"`
	ServiceVersion string         `koanf:"service_version"`
	Sampling       SamplingConfig `koanf:"sampling"`
	Metrics        MetricsConfig  `koanf:"metrics"`
	// ShutdownTimeout bounds the final flush.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SamplingConfig controls trace sampling.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"`
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Enabled        bool          `koanf:"enabled"`
	ExportInterval time.Duration `koanf:"export_interval"`
}

// NewDefaultConfig returns telemetry defaults. Export is off until an
// endpoint is configured and enabled.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Protocol:       protocolGRPC,
		Insecure:       true,
		ServiceName:    "docmanager",
		ServiceVersion: "dev",
		Sampling:       SamplingConfig{Rate: 1.0},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: 15 * time.Second,
		},
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate reports every problem in an enabled config. A disabled config
// is never checked.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	fail := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Endpoint == "" {
		fail("endpoint is required when telemetry is enabled")
	} else if c.Insecure && !c.isLocalEndpoint() {
		fail("insecure export is only allowed to local endpoints, got %q", c.Endpoint)
	}
	if c.ServiceName == "" {
		fail("service_name is required when telemetry is enabled")
	}
	if c.Protocol != "" && c.Protocol != protocolGRPC && c.Protocol != protocolHTTP {
		fail("protocol must be %q or %q, got %q", protocolGRPC, protocolHTTP, c.Protocol)
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		fail("sampling.rate must be between 0 and 1, got %g", c.Sampling.Rate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval <= 0 {
		fail("metrics.export_interval must be positive when metrics are enabled")
	}
	if c.ShutdownTimeout <= 0 {
		fail("shutdown_timeout must be positive")
	}
	return errors.Join(errs...)
}

// isLocalEndpoint reports whether the endpoint host is loopback.
func (c *Config) isLocalEndpoint() bool {
	host := stripScheme(c.Endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// stripScheme removes http:// or https://; the exporters want host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
