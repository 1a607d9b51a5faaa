package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appinvoicing "github.com/dandroos/node-invoicer/internal/application/invoicing"
	domain "github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/cache"
	"github.com/dandroos/node-invoicer/internal/infrastructure/config"
	"github.com/dandroos/node-invoicer/internal/infrastructure/logger"
	"github.com/dandroos/node-invoicer/internal/infrastructure/mail"
	"github.com/dandroos/node-invoicer/internal/infrastructure/migration"
	"github.com/dandroos/node-invoicer/internal/infrastructure/persistence"
	"github.com/dandroos/node-invoicer/internal/infrastructure/printing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/storage"
	"github.com/dandroos/node-invoicer/internal/infrastructure/telemetry"
)

const shutdownTimeout = 5 * time.Second

// application owns every resource opened for one command
type application struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Telemetry
	closers   []func() error
}

// bootstrap loads the configuration and starts logging and telemetry
func bootstrap(ctx context.Context, configPath string) (*application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		_ = logger.Sync(log)
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	otelCore := tel.LogCore(logger.ParseLevel(cfg.Log.Level))
	log = log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, otelCore)
	}))

	return &application{cfg: cfg, logger: log, telemetry: tel}, nil
}

func (a *application) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition
func (a *application) close() {
	for _, fn := range slices.Backward(a.closers) {
		if err := fn(); err != nil {
			a.logger.Warn("Failed to release resource", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("Failed to shut down telemetry", zap.Error(err))
	}
	_ = logger.Sync(a.logger)
}

// ledger opens the configured ledger backend
func (a *application) ledger(ctx context.Context) (domain.Ledger, error) {
	if a.cfg.Ledger.Driver == persistence.DriverMemory {
		a.logger.Warn("Using the in-memory ledger; issued numbers are lost on exit")
		return persistence.NewMemoryLedger(), nil
	}

	db, err := persistence.NewDatabase(&a.cfg.Ledger, &a.cfg.Database, persistence.DatabaseOptions{
		Logger:   a.logger.Named("gorm"),
		LogLevel: logger.MapGormLogLevel(a.cfg.Log.Level),
	})
	if err != nil {
		return nil, err
	}
	a.onClose(db.Close)

	if err := a.telemetry.DBTracing(db.Driver, a.logger).RegisterOtelGorm(db.DB); err != nil {
		return nil, fmt.Errorf("failed to register ledger tracing: %w", err)
	}

	if a.cfg.Ledger.AutoMigrate {
		if db.Driver == persistence.DriverPostgres {
			if err := a.migrateUp(); err != nil {
				return nil, err
			}
		} else if err := db.AutoMigrate(ctx); err != nil {
			return nil, err
		}
	}

	a.logger.Info("Ledger connected", zap.String("driver", db.Driver))
	return persistence.NewGormLedgerRepository(db.DB), nil
}

func (a *application) migrator() (*migration.Migrator, error) {
	if a.cfg.Ledger.Driver != persistence.DriverPostgres {
		return nil, fmt.Errorf("versioned migrations need the postgres ledger driver, got %q", a.cfg.Ledger.Driver)
	}
	return migration.Open(a.cfg.Database.DSN(), a.logger)
}

func (a *application) migrateUp() error {
	m, err := a.migrator()
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}

func (a *application) renderer() (printing.DocumentRenderer, error) {
	switch a.cfg.Render.Engine {
	case "", "gofpdf":
		return printing.NewPDFRenderer(&printing.PDFConfig{
			MarginMM: a.cfg.Render.MarginMM,
			Logger:   a.logger.Named("pdf"),
		}), nil
	case "chromedp":
		return printing.NewChromedpRenderer(&printing.ChromedpConfig{
			DefaultTimeout: a.cfg.Render.Timeout,
			RemoteURL:      a.cfg.Render.ChromeURL,
			NoSandbox:      a.cfg.Render.NoSandbox,
			MarginMM:       a.cfg.Render.MarginMM,
			Logger:         a.logger.Named("chromedp"),
		})
	default:
		return nil, fmt.Errorf("unknown render engine %q", a.cfg.Render.Engine)
	}
}

// pipeline wires every collaborator of an issuance run
func (a *application) pipeline(ctx context.Context) (*appinvoicing.Pipeline, error) {
	ledger, err := a.ledger(ctx)
	if err != nil {
		return nil, err
	}

	lock, closeLock, err := cache.NewIssuanceLock(a.cfg.Lock, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, err
	}
	a.onClose(closeLock)

	renderer, err := a.renderer()
	if err != nil {
		return nil, err
	}
	a.onClose(renderer.Close)

	artifacts, err := printing.NewFileSystemStorage(&printing.FileSystemStorageConfig{
		BasePath: a.cfg.Output.Dir,
		Logger:   a.logger.Named("artifacts"),
	})
	if err != nil {
		return nil, err
	}

	remote, err := storage.NewArtifactStorage(ctx, &a.cfg.Storage, a.logger.Named("storage"))
	if err != nil {
		return nil, err
	}

	var mailer domain.Mailer
	if a.cfg.Mail.Enabled {
		smtp, err := mail.NewSMTPMailer(&a.cfg.Mail, a.logger.Named("mail"))
		if err != nil {
			return nil, err
		}
		mailer = smtp
	}

	metrics, err := telemetry.NewInvoiceMetrics(a.telemetry.Metrics.Meter(telemetry.TracerName))
	if err != nil {
		return nil, err
	}

	settings, err := appinvoicing.NewSettings(a.cfg)
	if err != nil {
		return nil, err
	}

	return appinvoicing.NewPipeline(appinvoicing.Dependencies{
		Ledger:    ledger,
		Renderer:  renderer,
		Artifacts: artifacts,
		Storage:   remote,
		Mailer:    mailer,
		Lock:      lock,
		Metrics:   metrics,
		Logger:    a.logger,
	}, settings)
}
