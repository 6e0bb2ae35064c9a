package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)

	// Update the package-level tracer
	tracer = otel.Tracer(scopeName)

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		tracer = otel.Tracer(scopeName)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func attrString(attrs []attribute.KeyValue, key string) string {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.AsString()
		}
	}
	return ""
}

func TestStartDispatchSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("creates span with correct name and attributes", func(t *testing.T) {
		exporter.Reset()

		_, span := StartDispatchSpan(context.Background(), "tts", "TTS_Event", "GENERATE_TTS", "evt-1")
		require.NotNil(t, span)
		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "eventhive.dispatch", s.Name)
		assert.Equal(t, trace.SpanKindConsumer, s.SpanKind)
		assert.Equal(t, "tts", attrString(s.Attributes, "actor"))
		assert.Equal(t, "TTS_Event", attrString(s.Attributes, "event.kind"))
		assert.Equal(t, "GENERATE_TTS", attrString(s.Attributes, "event.command"))
		assert.Equal(t, "evt-1", attrString(s.Attributes, "event.id"))
	})

	t.Run("returns context with span", func(t *testing.T) {
		exporter.Reset()

		ctx, span := StartDispatchSpan(context.Background(), "a", "k", "c", "id")
		defer span.End()

		assert.Equal(t, span, trace.SpanFromContext(ctx))
	})
}

func TestEndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	t.Run("records error status", func(t *testing.T) {
		exporter.Reset()

		_, span := StartDispatchSpan(context.Background(), "a", "k", "c", "id")
		EndSpanWithError(span, errors.New("handler failed"))

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, "handler failed", spans[0].Status.Description)
		require.NotEmpty(t, spans[0].Events)
	})

	t.Run("records ok status", func(t *testing.T) {
		exporter.Reset()

		_, span := StartDispatchSpan(context.Background(), "a", "k", "c", "id")
		EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	t.Run("nil span is safe", func(t *testing.T) {
		assert.NotPanics(t, func() { EndSpanWithError(nil, errors.New("x")) })
	})
}

func TestSpanManager_AddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()
	ctx, span := sm.StartDispatchSpan(context.Background(), "a", "k", "c", "id")
	sm.AddSpanEvent(ctx, "event.produced", attribute.String("kind", "TTS_Event"))
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "event.produced", spans[0].Events[0].Name)
}
