package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ledgerRow is a minimal stand-in for the ledger table
type ledgerRow struct {
	ID     uint   `gorm:"primaryKey"`
	Number string `gorm:"size:8;uniqueIndex"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ledgerRow{}))
	return db
}

func setupTracerWithRecorder(t *testing.T) (*trace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, sr
}

func findAttr(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL, "query variables carry recipient data")
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := setupTestDB(t)
	plugin := NewDBTracingPlugin(DefaultDBTracingConfig(), nil)

	require.NoError(t, plugin.RegisterOtelGorm(db))
	assert.Nil(t, db.Callback().Create().Get("otel_timing:before_create"))
}

func TestDBTracingPlugin_Enabled(t *testing.T) {
	db := setupTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"

	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).RegisterOtelGorm(db))
	assert.NotNil(t, db.Callback().Create().Get("otel_timing:before_create"))
	assert.NotNil(t, db.Callback().Query().Get("otel_timing:after_query"))

	err := NewDBTracingPlugin(cfg, zap.NewNop()).RegisterOtelGorm(db)
	assert.Error(t, err, "registering the plugin twice fails")
}

func TestDBTracingCallback_AnnotatesSpan(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, NewDBTracingCallback(time.Hour).RegisterCallbacks(db))

	tp, sr := setupTracerWithRecorder(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "append")

	require.NoError(t, db.WithContext(ctx).Create(&ledgerRow{Number: "00000001"}).Error)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)

	rows, ok := findAttr(spans[0].Attributes(), "db.rows_affected")
	require.True(t, ok)
	assert.Equal(t, int64(1), rows.AsInt64())

	table, ok := findAttr(spans[0].Attributes(), "db.sql.table")
	require.True(t, ok)
	assert.Equal(t, "ledger_rows", table.AsString())

	_, slow := findAttr(spans[0].Attributes(), "db.slow_query")
	assert.False(t, slow)
}

func TestDBTracingCallback_RecordsError(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, NewDBTracingCallback(time.Hour).RegisterCallbacks(db))
	require.NoError(t, db.Create(&ledgerRow{Number: "00000001"}).Error)

	tp, sr := setupTracerWithRecorder(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "append")

	err := db.WithContext(ctx).Create(&ledgerRow{Number: "00000001"}).Error
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	span.End()

	got := sr.Ended()[0]
	assert.Equal(t, codes.Error, got.Status().Code)
}

func TestDBTracingCallback_NotFoundIsNotAnError(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, NewDBTracingCallback(time.Hour).RegisterCallbacks(db))

	tp, sr := setupTracerWithRecorder(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "find")

	var row ledgerRow
	err := db.WithContext(ctx).Where("number = ?", "99999999").First(&row).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	span.End()

	assert.NotEqual(t, codes.Error, sr.Ended()[0].Status().Code)
}

func TestDBTracingCallback_SlowQuery(t *testing.T) {
	db := setupTestDB(t)
	callback := NewDBTracingCallback(time.Nanosecond)

	tp, sr := setupTracerWithRecorder(t)
	ctx, span := tp.Tracer("test").Start(context.Background(), "slow")

	ctx = WithQueryStartTime(ctx)
	time.Sleep(2 * time.Millisecond)

	tx := db.WithContext(ctx)
	var rows []ledgerRow
	tx = tx.Find(&rows)
	callback.AfterCallback(tx)
	span.End()

	got := sr.Ended()[0]
	slow, ok := findAttr(got.Attributes(), "db.slow_query")
	require.True(t, ok)
	assert.True(t, slow.AsBool())

	var names []string
	for _, e := range got.Events() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "slow_query_warning")
}

func TestDBTracingCallback_NonRecordingSpan(t *testing.T) {
	db := setupTestDB(t)
	callback := NewDBTracingCallback(time.Nanosecond)

	tx := db.WithContext(context.Background())
	assert.NotPanics(t, func() { callback.AfterCallback(tx) })
}
