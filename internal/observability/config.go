// Package observability holds the structured logger, metrics and tracing
// used across the harness.
package observability

// Config groups the logging, metrics and tracing settings.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// LoggingConfig selects log level (debug, info, warn, error) and format
// (json, text).
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultConfig logs JSON at info, serves metrics on the main router and
// leaves tracing off.
func DefaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Enabled: true},
		Tracing: TracingConfig{
			Exporter:       "otlp",
			OTLPEndpoint:   "localhost:4318",
			SampleRate:     1.0,
			ServiceName:    "finbench",
			ServiceVersion: "2.0.0",
		},
	}
}
