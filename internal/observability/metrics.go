package observability

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages all metrics for the benchmark harness.
type MetricsCollector struct {
	registry *prom.Registry
	provider *sdkmetric.MeterProvider

	evaluations        metric.Int64Counter
	evaluationDuration metric.Float64Histogram
	taskScore          metric.Float64Histogram

	cacheLookups metric.Int64Counter

	generations       metric.Int64Counter
	generationLatency metric.Float64Histogram

	exchanges       metric.Int64Counter
	exchangeLatency metric.Float64Histogram

	prometheusServer *http.Server
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled" yaml:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port" yaml:"prometheus_port"`
}

// NewMetricsCollector creates a new metrics collector. A disabled collector
// accepts every Record call and drops it.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	registry := prom.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("finbench")

	m := &MetricsCollector{registry: registry, provider: provider}

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	histogram := func(name, desc, unit string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return h
	}

	m.evaluations = counter("finbench.evaluations", "Evaluation runs by terminal status")
	m.evaluationDuration = histogram("finbench.evaluation.duration", "Wall time of one evaluation run", "s")
	m.taskScore = histogram("finbench.task.score", "Per-task candidate score (0-100)", "1")
	m.cacheLookups = counter("finbench.cache.lookups", "Reference cache lookups by result")
	m.generations = counter("finbench.reference.generations", "Reference answer generations by task and status")
	m.generationLatency = histogram("finbench.reference.generation.latency", "Reference answer generation latency", "s")
	m.exchanges = counter("finbench.candidate.exchanges", "Candidate exchanges by task and status")
	m.exchangeLatency = histogram("finbench.candidate.exchange.latency", "Candidate exchange latency", "s")

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to create instruments: %w", err)
	}

	if config.PrometheusPort > 0 {
		if err := m.StartPrometheusServer(config.PrometheusPort); err != nil {
			return nil, fmt.Errorf("failed to start prometheus server: %w", err)
		}
	}

	return m, nil
}

// Handler serves the Prometheus exposition for this collector.
func (m *MetricsCollector) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartPrometheusServer starts a dedicated Prometheus metrics server
func (m *MetricsCollector) StartPrometheusServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	m.prometheusServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("Prometheus metrics server listening on :%d", port)
		if err := m.prometheusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Prometheus server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics collector
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	if m.prometheusServer != nil {
		errs = append(errs, m.prometheusServer.Shutdown(ctx))
	}
	if m.provider != nil {
		errs = append(errs, m.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// RecordEvaluation records one finished run.
func (m *MetricsCollector) RecordEvaluation(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.evaluations == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.evaluations.Add(ctx, 1, attrs)
	m.evaluationDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTaskScore records the score a candidate obtained on one task.
func (m *MetricsCollector) RecordTaskScore(ctx context.Context, task string, score float64) {
	if m == nil || m.taskScore == nil {
		return
	}
	m.taskScore.Record(ctx, score, metric.WithAttributes(attribute.String("task", task)))
}

// RecordCacheLookup records a reference cache lookup; result is hit, miss or error.
func (m *MetricsCollector) RecordCacheLookup(ctx context.Context, task, result string) {
	if m == nil || m.cacheLookups == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("result", result),
	))
}

// RecordGeneration records one reference answer generation attempt.
func (m *MetricsCollector) RecordGeneration(ctx context.Context, task, status string, latency time.Duration) {
	if m == nil || m.generations == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("status", status),
	)
	m.generations.Add(ctx, 1, attrs)
	m.generationLatency.Record(ctx, latency.Seconds(), attrs)
}

// RecordCandidateExchange records one request/response cycle with the candidate.
func (m *MetricsCollector) RecordCandidateExchange(ctx context.Context, task, status string, latency time.Duration) {
	if m == nil || m.exchanges == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("status", status),
	)
	m.exchanges.Add(ctx, 1, attrs)
	m.exchangeLatency.Record(ctx, latency.Seconds(), attrs)
}
