// Package llm provides the completion clients used to produce reference
// answers. Every provider sits behind the Completer contract so the
// reference generator never depends on a specific SDK.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finbench/internal/logging"
)

// Provider names accepted by New.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout           = 120 * time.Second
	defaultMaxTokens         = 2048
)

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON object response where supported.
	JSON bool
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is the text produced by the model.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

// Completer produces a completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
	Model() string
}

// Config selects and configures a provider.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	Headers  map[string]string
}

// New builds the Completer for cfg.Provider.
func New(cfg Config, logger logging.Logger) (Completer, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenRouter:
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultOpenRouterBaseURL
		}
		return NewOpenAIClient(cfg, logger)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

func maxTokensOrDefault(n int) int {
	if n <= 0 {
		return defaultMaxTokens
	}
	return n
}
