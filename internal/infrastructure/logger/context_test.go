package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func contextWithSpan() context.Context {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03},
		SpanID:     trace.SpanID{0x0a, 0x0b},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestWithContext(t *testing.T) {
	logger := zap.NewExample()
	ctx := WithContext(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestFromContext_Fallbacks(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")
	assert.NotNil(t, FromContext(ctx))
}

func TestWithRunIDAndInvoiceNumber(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, l := WithRunID(context.Background(), zap.New(core), "run-1")
	ctx, l = WithInvoiceNumber(ctx, l, "00000007")

	assert.Equal(t, "run-1", GetRunID(ctx))
	assert.Equal(t, "00000007", GetInvoiceNumber(ctx))
	assert.Same(t, l, FromContext(ctx))

	l.Info("stored")
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, "00000007", fields["invoice_number"])
}

func TestGetters_Empty(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRunID(ctx))
	assert.Empty(t, GetInvoiceNumber(ctx))
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
}

func TestTraceIDs(t *testing.T) {
	ctx := contextWithSpan()
	assert.Equal(t, "01020300000000000000000000000000", GetTraceID(ctx))
	assert.Equal(t, "0a0b000000000000", GetSpanID(ctx))
}

func TestContextLogger_AddsTraceFields(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := WithContext(contextWithSpan(), zap.New(core))

	L(ctx).Info("uploaded", zap.String("bucket", "invoices"))

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.Equal(t, "01020300000000000000000000000000", fields["trace_id"])
	assert.Equal(t, "0a0b000000000000", fields["span_id"])
	assert.Equal(t, "invoices", fields["bucket"])
}

func TestContextLogger_NoSpan(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	WithLogger(context.Background(), zap.New(core)).With(zap.String("stage", "render")).Warn("slow")

	logs := recorded.All()
	require.Len(t, logs, 1)
	fields := logs[0].ContextMap()
	assert.NotContains(t, fields, "trace_id")
	assert.Equal(t, "render", fields["stage"])
}

func TestContextLogger_Levels(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	cl := WithLogger(context.Background(), zap.New(core))

	cl.Debug("d")
	cl.Info("i")
	cl.Warn("w")
	cl.Error("e")
	cl.Zap().Info("z")

	assert.Equal(t, 5, recorded.Len())
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := &ContextLogger{ctx: context.Background()}
	assert.NotPanics(t, func() {
		cl.Info("nothing")
		cl.With(zap.String("k", "v")).Error("nothing")
	})
}
