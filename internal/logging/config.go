package logging

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config is the logging section of the process configuration.
type Config struct {
	Level  zapcore.Level `koanf:"level"`
	Format string        `koanf:"format"`
	Output OutputConfig  `koanf:"output"`

	Sampling SamplingConfig `koanf:"sampling"`

	// Caller adds the file:line of the call site. CallerSkip skips extra
	// frames for code that wraps the logger.
	Caller     bool `koanf:"caller"`
	CallerSkip int  `koanf:"caller_skip"`
	// StacktraceLevel is the lowest level that carries a stacktrace.
	StacktraceLevel zapcore.Level `koanf:"stacktrace_level"`

	// Fields are attached to every entry.
	Fields    map[string]string `koanf:"fields"`
	Redaction RedactionConfig   `koanf:"redaction"`
}

// OutputConfig selects the sinks.
type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	// Stderr sends the stdout sink to stderr instead, for processes
	// whose stdout is a protocol stream.
	Stderr bool `koanf:"stderr"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig keeps the first Initial entries of each message per
// Tick, then every Thereafter-th. Errors are never sampled.
type SamplingConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Tick       time.Duration `koanf:"tick"`
	Initial    int           `koanf:"initial"`
	Thereafter int           `koanf:"thereafter"`
}

// RedactionConfig lists field keys and value patterns to mask.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// maxPatternLen bounds redaction regexps.
const maxPatternLen = 200

// NewDefaultConfig returns the configuration used when none is given.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Caller:          true,
		CallerSkip:      0,
		StacktraceLevel: zapcore.ErrorLevel,
		Fields:          map[string]string{"service": "docmanager"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "jwt_secret",
				"authorization", "bearer", "credential", "api_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
	}
}

// Validate reports every problem in c.
func (c *Config) Validate() error {
	var errs []error
	switch c.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("format must be 'json' or 'console', got %q", c.Format))
	}
	if !c.Output.Stdout && !c.Output.OTEL {
		errs = append(errs, errors.New("at least one output must be enabled (stdout or otel)"))
	}
	if s := c.Sampling; s.Enabled {
		if s.Tick <= 0 {
			errs = append(errs, errors.New("sampling tick must be > 0 when sampling enabled"))
		}
		if s.Initial < 1 {
			errs = append(errs, fmt.Errorf("sampling initial must be >= 1, got %d", s.Initial))
		}
	}
	if c.Caller && c.CallerSkip < 0 {
		errs = append(errs, fmt.Errorf("caller skip must be >= 0, got %d", c.CallerSkip))
	}
	if c.Redaction.Enabled {
		for _, p := range c.Redaction.Patterns {
			if len(p) > maxPatternLen {
				errs = append(errs, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p))
			} else if _, err := regexp.Compile(p); err != nil {
				errs = append(errs, fmt.Errorf("invalid redaction pattern %q: %w", p, err))
			}
		}
	}
	for k, v := range c.Fields {
		if k == "" {
			errs = append(errs, errors.New("field key cannot be empty"))
		} else if v == "" {
			errs = append(errs, fmt.Errorf("field %q has empty value", k))
		}
	}
	return errors.Join(errs...)
}
