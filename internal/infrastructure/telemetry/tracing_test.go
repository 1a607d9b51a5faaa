package telemetry_test

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

	"github.com/dandroos/node-invoicer/internal/infrastructure/telemetry"
)

// setupTestTracer installs a TracerProvider with an in-memory span recorder
// as the global provider for the duration of the test.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	return sr
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[a.Key] = a.Value
	}
	return m
}

func TestStartSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "invoice.issue",
		telemetry.WithAttribute(telemetry.SpanAttrLocale, "en"),
		telemetry.WithAttribute(telemetry.SpanAttrItems, 2),
		telemetry.WithSpanKind(trace.SpanKindClient),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "invoice.issue", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, telemetry.TracerName, spans[0].InstrumentationScope().Name)

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "en", attrs[telemetry.SpanAttrLocale].AsString())
	assert.Equal(t, int64(2), attrs[telemetry.SpanAttrItems].AsInt64())
}

func TestStartServiceSpan_Nested(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, parent := telemetry.StartServiceSpan(context.Background(), "pipeline", "issue")
	_, child := telemetry.StartServiceSpan(ctx, "pipeline", "render")
	child.End()
	parent.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "pipeline.render", spans[0].Name())
	assert.Equal(t, "pipeline.issue", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceNumber, "00000003",
		telemetry.SpanAttrAttempt, int64(2),
		"ignored-odd-key",
	)
	telemetry.SetAttributes(span, 42, "non-string key is skipped")
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, "00000003", attrs[telemetry.SpanAttrInvoiceNumber].AsString())
	assert.Equal(t, int64(2), attrs[telemetry.SpanAttrAttempt].AsInt64())
	assert.Len(t, attrs, 2)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.RecordError(span, errors.New("ledger unavailable"))
	telemetry.RecordError(span, nil)
	span.End()

	got := sr.Ended()[0]
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "ledger unavailable", got.Status().Description)
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "exception", got.Events()[0].Name)
}

func TestSetOKAndAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.AddEvent(span, "number_taken", telemetry.SpanAttrInvoiceNumber, "00000007")
	telemetry.SetOK(span)
	span.End()

	got := sr.Ended()[0]
	assert.Equal(t, codes.Ok, got.Status().Code)
	require.Len(t, got.Events(), 1)
	assert.Equal(t, "number_taken", got.Events()[0].Name)
	assert.Equal(t, "00000007", attrMap(got.Events()[0].Attributes)[telemetry.SpanAttrInvoiceNumber].AsString())
}

func TestHelpers_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() {
		telemetry.SetAttributes(nil, "k", "v")
		telemetry.RecordError(nil, errors.New("x"))
		telemetry.SetOK(nil)
		telemetry.AddEvent(nil, "e")
	})
}
