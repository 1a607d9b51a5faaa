package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/dandroos/node-invoicer/internal/infrastructure/telemetry"
)

// setupTestMeter returns a meter backed by a manual reader
func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)

	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	cfg := telemetry.MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    60 * time.Second,
		ServiceName:       "test-service",
	}

	mp, err := telemetry.NewMeterProvider(ctx, cfg, logger)
	require.NoError(t, err)

	assert.False(t, mp.Enabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewInvoiceMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewInvoiceMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, m)
}

func TestInvoiceMetrics_Record(t *testing.T) {
	mp, reader := setupTestMeter(t)
	ctx := context.Background()

	m, err := telemetry.NewInvoiceMetrics(mp.Meter("test"))
	require.NoError(t, err)

	m.RecordIssued(ctx, "en", 120*time.Millisecond)
	m.RecordIssued(ctx, "en", 80*time.Millisecond)
	m.RecordFailed(ctx, "Recorded", 10*time.Millisecond)
	m.RecordStep(ctx, "upload", telemetry.OutcomeSucceeded)
	m.RecordStep(ctx, "email_recipient", telemetry.OutcomeFailed)
	m.RecordStep(ctx, "email_recipient", telemetry.OutcomeFailed)
	m.RecordAllocationRetry(ctx)
	m.RecordOrphanedRecord(ctx)

	got := collect(t, reader)

	assert.Equal(t, int64(2), sumFor(t, got["invoicer_invoices_issued_total"], telemetry.AttrLocale.String("en")))
	assert.Equal(t, int64(1), sumFor(t, got["invoicer_invoices_failed_total"], telemetry.AttrStage.String("Recorded")))
	assert.Equal(t, int64(1), sumFor(t, got["invoicer_distribution_steps_total"],
		telemetry.AttrStep.String("upload"), telemetry.AttrOutcome.String(telemetry.OutcomeSucceeded)))
	assert.Equal(t, int64(2), sumFor(t, got["invoicer_distribution_steps_total"],
		telemetry.AttrStep.String("email_recipient"), telemetry.AttrOutcome.String(telemetry.OutcomeFailed)))
	assert.Equal(t, int64(1), sumFor(t, got["invoicer_allocation_retries_total"]))
	assert.Equal(t, int64(1), sumFor(t, got["invoicer_orphaned_records_total"]))

	hist, ok := got["invoicer_issue_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(3), count)
}

func TestInvoiceMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.InvoiceMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordIssued(ctx, "es", time.Second)
		m.RecordFailed(ctx, "Rendered", time.Second)
		m.RecordStep(ctx, "cleanup", telemetry.OutcomeSkipped)
		m.RecordAllocationRetry(ctx)
		m.RecordOrphanedRecord(ctx)
	})
}
