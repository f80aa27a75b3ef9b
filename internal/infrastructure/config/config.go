package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvStallTimeout names the variable that sets the stall watchdog timeout.
const EnvStallTimeout = "FANMATCH_STALL_TIMEOUT"

// Report formats understood by the report package.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig
	Report   ReportConfig
	Metrics  MetricsConfig
	Logging  LogConfig
}

// PipelineConfig holds queue sizing and stall detection settings.
type PipelineConfig struct {
	QueueCapacity  int           `envconfig:"FANMATCH_QUEUE_CAPACITY" default:"64"`
	OutputCapacity int           `envconfig:"FANMATCH_OUTPUT_CAPACITY" default:"0"`
	StallTimeout   time.Duration `envconfig:"FANMATCH_STALL_TIMEOUT" default:"1m"`
}

// ReportConfig holds report rendering configuration.
type ReportConfig struct {
	Format string `envconfig:"FANMATCH_REPORT_FORMAT" default:"text"`
}

// MetricsConfig holds the metrics listener configuration. An empty Addr
// disables the listener.
type MetricsConfig struct {
	Addr              string        `envconfig:"FANMATCH_METRICS_ADDR" default:""`
	RequestsPerSecond int           `envconfig:"FANMATCH_METRICS_RPS" default:"20"`
	Burst             int           `envconfig:"FANMATCH_METRICS_BURST" default:"40"`
	AllowOrigins      []string      `envconfig:"FANMATCH_METRICS_ALLOW_ORIGINS" default:"*"`
	StreamInterval    time.Duration `envconfig:"FANMATCH_PROGRESS_INTERVAL" default:"1s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration Load yields with no environment set.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			QueueCapacity:  64,
			OutputCapacity: 0,
			StallTimeout:   time.Minute,
		},
		Report: ReportConfig{
			Format: FormatText,
		},
		Metrics: MetricsConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			AllowOrigins:      []string{"*"},
			StreamInterval:    time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Validate checks values that envconfig cannot express as types.
func (c *Config) Validate() error {
	if c.Pipeline.QueueCapacity < 1 {
		return fmt.Errorf("queue capacity must be at least 1, got %d", c.Pipeline.QueueCapacity)
	}
	if c.Pipeline.OutputCapacity < 0 {
		return fmt.Errorf("output capacity must not be negative, got %d", c.Pipeline.OutputCapacity)
	}
	if c.Pipeline.StallTimeout < 0 {
		return fmt.Errorf("stall timeout must not be negative, got %s", c.Pipeline.StallTimeout)
	}
	if c.Metrics.RequestsPerSecond < 0 || c.Metrics.Burst < 0 {
		return fmt.Errorf("metrics rate limit must not be negative")
	}
	if c.Metrics.StreamInterval <= 0 {
		return fmt.Errorf("progress interval must be positive, got %s", c.Metrics.StreamInterval)
	}
	switch c.Report.Format {
	case FormatText, FormatJSON, FormatYAML, FormatTOML:
	default:
		return fmt.Errorf("unknown report format %q", c.Report.Format)
	}
	return nil
}
