// Package config loads the harness configuration from defaults, an optional
// YAML file and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"finbench/internal/domain/benchmark"
	fberrors "finbench/internal/errors"
	"finbench/internal/observability"
)

// Config is the complete harness configuration.
type Config struct {
	Server        ServerConfig         `mapstructure:"server" yaml:"server"`
	Corpus        CorpusConfig         `mapstructure:"corpus" yaml:"corpus"`
	Cache         CacheConfig          `mapstructure:"cache" yaml:"cache"`
	Generator     GeneratorConfig      `mapstructure:"generator" yaml:"generator"`
	Candidate     CandidateConfig      `mapstructure:"candidate" yaml:"candidate"`
	Scoring       ScoringConfig        `mapstructure:"scoring" yaml:"scoring"`
	Observability observability.Config `mapstructure:"observability" yaml:"observability"`
}

// ServerConfig configures the protocol executor.
type ServerConfig struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	CardURL        string        `mapstructure:"card_url" yaml:"card_url"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PublicURL returns the URL advertised in the agent card.
func (s ServerConfig) PublicURL() string {
	if s.CardURL != "" {
		return s.CardURL
	}
	return fmt.Sprintf("http://%s/", s.Addr())
}

// CorpusConfig locates the filing dataset.
type CorpusConfig struct {
	DataPath        string `mapstructure:"data_path" yaml:"data_path"`
	Years           []int  `mapstructure:"years" yaml:"years"`
	DocCacheSize    int    `mapstructure:"doc_cache_size" yaml:"doc_cache_size"`
	MinSectionChars int    `mapstructure:"min_section_chars" yaml:"min_section_chars"`
}

// CacheConfig locates the reference answer cache.
type CacheConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// GeneratorConfig configures the reference answer generator.
type GeneratorConfig struct {
	Provider    string                        `mapstructure:"provider" yaml:"provider"`
	Model       string                        `mapstructure:"model" yaml:"model"`
	BaseURL     string                        `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string                        `mapstructure:"api_key" yaml:"api_key"`
	Temperature float64                       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int                           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout     time.Duration                 `mapstructure:"timeout" yaml:"timeout"`
	Headers     map[string]string             `mapstructure:"headers" yaml:"headers,omitempty"`
	Retry       fberrors.RetryConfig          `mapstructure:"retry" yaml:"retry"`
	Breaker     fberrors.CircuitBreakerConfig `mapstructure:"breaker" yaml:"breaker"`
}

// CandidateConfig configures exchanges with the evaluated agent.
type CandidateConfig struct {
	Role             string        `mapstructure:"role" yaml:"role"`
	Timeout          time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxResponseBytes int64         `mapstructure:"max_response_bytes" yaml:"max_response_bytes"`
}

// ScoringConfig holds the composite weights.
type ScoringConfig struct {
	Weights benchmark.Weights `mapstructure:"weights" yaml:"weights"`
}

// Default returns the built-in configuration.
func Default() Config {
	retry := fberrors.DefaultRetryConfig()
	return Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           9009,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Minute,
			RequestTimeout: 30 * time.Minute,
			AllowedOrigins: []string{"*"},
		},
		Corpus: CorpusConfig{
			DataPath:        "data",
			Years:           []int{2015, 2016, 2017, 2018, 2019, 2020},
			DocCacheSize:    64,
			MinSectionChars: 100,
		},
		Cache: CacheConfig{Path: "data/ground_truth_cache.json"},
		Generator: GeneratorConfig{
			Provider:    "openrouter",
			Model:       "deepseek/deepseek-v3.2",
			Temperature: 0.1,
			MaxTokens:   2048,
			Timeout:     5 * time.Minute,
			Retry:       retry,
			Breaker:     fberrors.DefaultCircuitBreakerConfig(),
		},
		Candidate: CandidateConfig{
			Role:             "analyst",
			Timeout:          180 * time.Second,
			MaxResponseBytes: 4 << 20,
		},
		Scoring:       ScoringConfig{Weights: benchmark.DefaultWeights()},
		Observability: observability.DefaultConfig(),
	}
}

// Validate rejects configurations the harness cannot run with.
func (c Config) Validate() error {
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	if strings.TrimSpace(c.Corpus.DataPath) == "" {
		return fmt.Errorf("corpus.data_path is required")
	}
	if len(c.Corpus.Years) == 0 {
		return fmt.Errorf("corpus.years must list at least one year")
	}
	for _, year := range c.Corpus.Years {
		if year < 1993 || year > 2100 {
			return fmt.Errorf("corpus.years: %d is not a plausible fiscal year", year)
		}
	}
	if strings.TrimSpace(c.Cache.Path) == "" {
		return fmt.Errorf("cache.path is required")
	}
	switch strings.ToLower(c.Generator.Provider) {
	case "openrouter", "openai", "anthropic":
	default:
		return fmt.Errorf("generator.provider %q is not supported", c.Generator.Provider)
	}
	if strings.TrimSpace(c.Generator.Model) == "" {
		return fmt.Errorf("generator.model is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if strings.TrimSpace(c.Candidate.Role) == "" {
		return fmt.Errorf("candidate.role is required")
	}
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	c.Generator.APIKey = observability.SanitizeAPIKey(c.Generator.APIKey)
	return c
}
