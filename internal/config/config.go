// Package config loads losrays settings from LOSRAYS_* environment variables.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/caarlos0/env/v10"

	"github.com/signalsfoundry/losrays/core"
	"github.com/signalsfoundry/losrays/internal/logging"
	"github.com/signalsfoundry/losrays/internal/observability"
)

// Prefix is prepended to every environment variable name.
const Prefix = "LOSRAYS_"

// Config holds the complete CLI configuration.
type Config struct {
	Logging LoggingConfig `envPrefix:"LOG_"`
	Tracing TracingConfig `envPrefix:"TRACING_"`
	Rays    RayConfig     `envPrefix:"RAYS_"`
	Store   StoreConfig   `envPrefix:"STORE_"`

	// MetricsAddr serves /metrics when non-empty, e.g. ":9090".
	MetricsAddr string `env:"METRICS_ADDR"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// TracingConfig contains OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool    `env:"ENABLED" envDefault:"false"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"losrays"`
	Exporter    string  `env:"EXPORTER" envDefault:"stdout"`
	Endpoint    string  `env:"OTLP_ENDPOINT"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

// RayConfig contains ray preparation defaults.
type RayConfig struct {
	ZRef     float64 `env:"ZREF" envDefault:"15000"`
	StepSize float64 `env:"STEP_SIZE" envDefault:"100"`
}

// StoreConfig contains query-point dataset defaults.
type StoreConfig struct {
	EPSG       int   `env:"EPSG" envDefault:"4326"`
	ChunkShape []int `env:"CHUNK_SHAPE" envSeparator:","`
}

// Load parses configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses configuration from the given variables, or from the
// process environment when environ is nil.
func LoadFrom(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{Prefix: Prefix, Environment: environ}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if !slices.Contains(logging.Levels, c.Logging.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logging.Level, strings.Join(logging.Levels, ", "))
	}
	if !slices.Contains(logging.Formats, c.Logging.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logging.Format, strings.Join(logging.Formats, ", "))
	}

	switch c.Tracing.Exporter {
	case "stdout", "otlp", "otlpgrpc":
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: stdout, otlp", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio must be within [0, 1], got %g", c.Tracing.SampleRatio)
	}

	if c.Rays.ZRef <= 0 {
		return fmt.Errorf("zref must be positive, got %g", c.Rays.ZRef)
	}
	if c.Rays.StepSize <= 0 {
		return fmt.Errorf("step size must be positive, got %g", c.Rays.StepSize)
	}

	if _, err := core.ResolveReferenceSystem(c.Store.EPSG); err != nil {
		return err
	}
	for _, d := range c.Store.ChunkShape {
		if d < 1 {
			return fmt.Errorf("chunk extents must be positive, got %v", c.Store.ChunkShape)
		}
	}
	return nil
}

// TracingOptions converts the tracing section for observability.InitTracing.
func (c *Config) TracingOptions() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}
