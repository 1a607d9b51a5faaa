package telemetry

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dandroos/node-invoicer/internal/infrastructure/config"
)

// Telemetry bundles the trace, metric and log providers of one process
type Telemetry struct {
	Traces  *TracerProvider
	Metrics *MeterProvider
	Logs    *LoggerProvider
	cfg     config.TelemetryConfig
}

// Setup initializes every provider from the application settings. With
// telemetry disabled all providers are no-ops.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := ConfigFrom(cfg)

	traces, err := NewTracerProvider(ctx, base, logger)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMeterProvider(ctx, MetricsConfig{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, logger)
	if err != nil {
		_ = traces.Shutdown(ctx)
		return nil, err
	}

	logs, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           cfg.Enabled && cfg.LogExport,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, logger)
	if err != nil {
		_ = metrics.Shutdown(ctx)
		_ = traces.Shutdown(ctx)
		return nil, err
	}

	return &Telemetry{Traces: traces, Metrics: metrics, Logs: logs, cfg: cfg}, nil
}

// LogCore returns the zap core exporting logs at level and above, or a nop
// core when log export is off
func (t *Telemetry) LogCore(level zapcore.Level) zapcore.Core {
	return t.Logs.Core(level)
}

// DBTracing returns the ledger query tracing plugin for driver
func (t *Telemetry) DBTracing(driver string, logger *zap.Logger) *DBTracingPlugin {
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = t.cfg.Enabled && t.cfg.DBTraceEnabled
	if driver != "postgres" {
		cfg.DBSystem = driver
	}
	return NewDBTracingPlugin(cfg, logger)
}

// Shutdown flushes and stops every provider
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.Logs.Shutdown(ctx),
		t.Metrics.Shutdown(ctx),
		t.Traces.Shutdown(ctx),
	)
}
