package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	lp, err := NewLoggerProvider(ctx, LogsConfig{
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "test-service",
	}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, lp.Enabled())
	assert.False(t, lp.Core(zapcore.DebugLevel).Enabled(zapcore.ErrorLevel))
	assert.NoError(t, lp.Shutdown(ctx))
	assert.NoError(t, lp.Shutdown(ctx), "shutdown is repeatable when disabled")
}

func TestLoggerProvider_NilReceiver(t *testing.T) {
	var lp *LoggerProvider
	assert.False(t, lp.Enabled())
	assert.False(t, lp.Core(zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
	assert.NoError(t, lp.Shutdown(context.Background()))
}

func TestLoggerProvider_Core(t *testing.T) {
	ctx := context.Background()

	// the exporter connects lazily, so no collector is required
	lp, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:19999",
		ServiceName:       "test-service",
		Insecure:          true,
	}, zap.NewNop())
	require.NoError(t, err)
	defer func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_ = lp.Shutdown(cctx)
	}()
	require.True(t, lp.Enabled())

	t.Run("debug level is not wrapped", func(t *testing.T) {
		core := lp.Core(zapcore.DebugLevel)
		_, wrapped := core.(*minLevelCore)
		assert.False(t, wrapped)
		assert.True(t, core.Enabled(zapcore.DebugLevel))
	})

	t.Run("higher level is filtered", func(t *testing.T) {
		core := lp.Core(zapcore.WarnLevel)
		_, wrapped := core.(*minLevelCore)
		require.True(t, wrapped)

		assert.False(t, core.Enabled(zapcore.InfoLevel))
		assert.True(t, core.Enabled(zapcore.WarnLevel))
		assert.True(t, core.Enabled(zapcore.ErrorLevel))
	})
}

func TestMinLevelCore(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(&minLevelCore{Core: inner, min: zapcore.WarnLevel})

	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept too")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestMinLevelCore_With(t *testing.T) {
	inner, logs := observer.New(zapcore.DebugLevel)
	core := &minLevelCore{Core: inner, min: zapcore.InfoLevel}

	child := core.With([]zapcore.Field{zap.String("run_id", "r-1")})
	filtered, ok := child.(*minLevelCore)
	require.True(t, ok)
	assert.Equal(t, zapcore.InfoLevel, filtered.min)

	logger := zap.New(child)
	logger.Debug("dropped")
	logger.Info("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "r-1", logs.All()[0].ContextMap()["run_id"])
}
