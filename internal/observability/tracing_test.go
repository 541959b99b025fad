package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDisabledTracingIsNoop(t *testing.T) {
	tp, err := NewTracerProvider(TracingConfig{Enabled: false})
	require.NoError(t, err)

	ctx, span := tp.StartSpan(context.Background(), SpanEvaluation)
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	EndSpan(span, errors.New("ignored"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNilTracerProviderIsSafe(t *testing.T) {
	var tp *TracerProvider
	_, span := tp.StartSpan(context.Background(), SpanPhase)
	EndSpan(span, nil)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestUnsupportedExporterFails(t *testing.T) {
	_, err := NewTracerProvider(TracingConfig{Enabled: true, Exporter: "jaeger"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported trace exporter")
}

func TestDocumentAttrs(t *testing.T) {
	attrs := DocumentAttrs(2019, "320193")
	assert.Equal(t, []attribute.KeyValue{
		attribute.Int(AttrYear, 2019),
		attribute.String(AttrCompanyID, "320193"),
	}, attrs)
}
