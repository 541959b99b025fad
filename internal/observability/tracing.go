package observability

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	id "finbench/internal/utils/id"
)

const tracerName = "finbench"

// Span names.
const (
	SpanEvaluation        = "finbench.evaluation"
	SpanPhase             = "finbench.evaluation.phase"
	SpanCorpusFetch       = "finbench.corpus.fetch"
	SpanReferenceGenerate = "finbench.reference.generate"
	SpanCandidateExchange = "finbench.candidate.exchange"
	SpanHTTPServer        = "finbench.http.request"
)

// Span attribute keys.
const (
	AttrRunID     = "finbench.run_id"
	AttrTask      = "finbench.task"
	AttrPhase     = "finbench.phase"
	AttrYear      = "finbench.document.year"
	AttrCompanyID = "finbench.document.company_id"
	AttrScore     = "finbench.score"
)

// TracingConfig selects the span exporter. Exporter is otlp (HTTP) or
// zipkin; SampleRate is a 0..1 ratio.
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	Exporter       string  `mapstructure:"exporter" yaml:"exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	ZipkinEndpoint string  `mapstructure:"zipkin_endpoint" yaml:"zipkin_endpoint"`
	SampleRate     float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string  `mapstructure:"service_version" yaml:"service_version"`
}

// TracerProvider starts spans tagged with the run and task on the context.
// The nil value and NoopTracerProvider discard spans.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NoopTracerProvider discards every span.
func NoopTracerProvider() *TracerProvider {
	return &TracerProvider{tracer: noop.NewTracerProvider().Tracer(tracerName)}
}

// NewTracerProvider builds an exporting provider, or a noop one when
// tracing is disabled.
func NewTracerProvider(config TracingConfig) (*TracerProvider, error) {
	if !config.Enabled {
		return NoopTracerProvider(), nil
	}
	exporter, err := newSpanExporter(config)
	if err != nil {
		return nil, err
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = tracerName
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(config.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	ratio := config.SampleRate
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(provider)
	return &TracerProvider{provider: provider, tracer: provider.Tracer(tracerName)}, nil
}

func newSpanExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(config.Exporter) {
	case "", "otlp":
		endpoint := config.OTLPEndpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		exporter, err := otlptracehttp.New(context.Background(), otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		return exporter, nil
	case "zipkin":
		endpoint := config.ZipkinEndpoint
		if endpoint == "" {
			endpoint = "http://localhost:9411/api/v2/spans"
		}
		exporter, err := zipkin.New(endpoint)
		if err != nil {
			return nil, fmt.Errorf("zipkin exporter: %w", err)
		}
		return exporter, nil
	}
	return nil, fmt.Errorf("unsupported trace exporter %q", config.Exporter)
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// StartSpan starts name as a child of the span on ctx.
func (tp *TracerProvider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tp == nil || tp.tracer == nil {
		return noop.NewTracerProvider().Tracer(tracerName).Start(ctx, name)
	}
	ids := id.IDsFromContext(ctx)
	if ids.RunID != "" {
		attrs = append(attrs, attribute.String(AttrRunID, ids.RunID))
	}
	if ids.TaskID != "" {
		attrs = append(attrs, attribute.String(AttrTask, ids.TaskID))
	}
	return tp.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// DocumentAttrs identifies the filing a span works on.
func DocumentAttrs(year int, companyID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrYear, year),
		attribute.String(AttrCompanyID, companyID),
	}
}
