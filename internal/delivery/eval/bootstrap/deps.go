package bootstrap

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"finbench/evaluation/orchestrator"
	"finbench/evaluation/reference"
	"finbench/internal/candidate"
	"finbench/internal/config"
	"finbench/internal/corpus"
	fberrors "finbench/internal/errors"
	"finbench/internal/llm"
	"finbench/internal/logging"
	"finbench/internal/observability"
)

// Container holds the wired evaluation dependencies shared by the server
// and the CLI.
type Container struct {
	Config       config.Config
	Corpus       *corpus.FileCorpus
	Store        *reference.Store
	Generator    *reference.LLMGenerator
	Candidate    *candidate.Client
	Orchestrator *orchestrator.Orchestrator
	Metrics      *observability.MetricsCollector
	Tracer       *observability.TracerProvider
	Logger       logging.Logger
}

// BuildOption customizes Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	completer llm.Completer
	rand      *rand.Rand
}

// WithCompleter replaces the provider-backed generator client.
func WithCompleter(c llm.Completer) BuildOption {
	return func(o *buildOptions) { o.completer = c }
}

// WithSeed makes random document selection reproducible.
func WithSeed(seed int64) BuildOption {
	return func(o *buildOptions) { o.rand = rand.New(rand.NewSource(seed)) }
}

// Build wires every evaluation dependency from cfg in dependency order.
func Build(cfg config.Config, opts ...BuildOption) (*Container, error) {
	options := buildOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Phase 1: observability
	logging.SetBase(observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: os.Stderr,
	}))
	logger := logging.NewComponentLogger("Bootstrap")

	metrics, err := observability.NewMetricsCollector(cfg.Observability.Metrics)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	tracer, err := observability.NewTracerProvider(cfg.Observability.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	// Phase 2: corpus and reference cache
	docs, err := corpus.NewFileCorpus(cfg.Corpus.DataPath,
		corpus.WithDocCacheSize(cfg.Corpus.DocCacheSize),
		corpus.WithMinSectionChars(cfg.Corpus.MinSectionChars),
		corpus.WithLogger(logging.NewComponentLogger("Corpus")),
	)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}

	completer := options.completer
	if completer == nil {
		completer, err = llm.New(llm.Config{
			Provider: cfg.Generator.Provider,
			Model:    cfg.Generator.Model,
			BaseURL:  cfg.Generator.BaseURL,
			APIKey:   cfg.Generator.APIKey,
			Timeout:  cfg.Generator.Timeout,
			Headers:  cfg.Generator.Headers,
		}, logging.NewComponentLogger("LLM"))
		if err != nil {
			return nil, fmt.Errorf("init generator client: %w", err)
		}
		breaker := fberrors.NewCircuitBreaker("reference-generator", cfg.Generator.Breaker)
		completer = llm.WithCircuitBreaker(completer, breaker, logging.NewComponentLogger("LLM"))
	}

	store, err := reference.Open(cfg.Cache.Path,
		reference.WithLogger(logging.NewComponentLogger("ReferenceCache")),
		reference.WithMetrics(metrics),
		reference.WithModel(completer.Model()),
		reference.WithGenerationTimeout(cfg.Generator.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("open reference cache: %w", err)
	}

	generator := reference.NewLLMGenerator(completer,
		reference.WithTemperature(cfg.Generator.Temperature),
		reference.WithMaxTokens(cfg.Generator.MaxTokens),
		reference.WithGeneratorLogger(logging.NewComponentLogger("ReferenceGenerator")),
	)

	// Phase 3: candidate client and orchestrator
	client := candidate.NewClient(
		candidate.WithTimeout(cfg.Candidate.Timeout),
		candidate.WithMaxResponseBytes(cfg.Candidate.MaxResponseBytes),
		candidate.WithLogger(logging.NewComponentLogger("CandidateClient")),
		candidate.WithMetrics(metrics),
	)

	orchOpts := []orchestrator.Option{
		orchestrator.WithWeights(cfg.Scoring.Weights),
		orchestrator.WithRole(cfg.Candidate.Role),
		orchestrator.WithYears(cfg.Corpus.Years),
		orchestrator.WithRetryConfig(cfg.Generator.Retry),
		orchestrator.WithLogger(logging.NewComponentLogger("Orchestrator")),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithTracer(tracer),
	}
	if options.rand != nil {
		orchOpts = append(orchOpts, orchestrator.WithRand(options.rand))
	}
	orch := orchestrator.New(docs, store, generator, client, orchOpts...)

	logger.Info("evaluation ready (corpus=%s, cache=%s, model=%s, key=%s)",
		docs.Root(), store.Path(), completer.Model(), observability.SanitizeAPIKey(cfg.Generator.APIKey))

	return &Container{
		Config:       cfg,
		Corpus:       docs,
		Store:        store,
		Generator:    generator,
		Candidate:    client,
		Orchestrator: orch,
		Metrics:      metrics,
		Tracer:       tracer,
		Logger:       logger,
	}, nil
}

// Close flushes telemetry.
func (c *Container) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Tracer.Shutdown(ctx); err != nil {
		c.Logger.Warn("tracer shutdown: %v", err)
	}
	if err := c.Metrics.Shutdown(ctx); err != nil {
		c.Logger.Warn("metrics shutdown: %v", err)
	}
}
