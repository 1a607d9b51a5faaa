package persistence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dandroos/node-invoicer/internal/infrastructure/config"
	"github.com/dandroos/node-invoicer/internal/infrastructure/logger"
	"github.com/dandroos/node-invoicer/internal/infrastructure/persistence/models"
)

// Supported ledger drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Database holds the ledger database connection
type Database struct {
	DB     *gorm.DB
	Driver string
}

// DatabaseOptions tunes how the connection is opened
type DatabaseOptions struct {
	Logger   *zap.Logger
	LogLevel gormlogger.LogLevel
}

// NewDatabase opens the ledger database selected by ledgerCfg.Driver.
// The memory driver has no database; use NewMemoryLedger instead.
func NewDatabase(ledgerCfg *config.LedgerConfig, dbCfg *config.DatabaseConfig, opts DatabaseOptions) (*Database, error) {
	var dialector gorm.Dialector
	switch ledgerCfg.Driver {
	case DriverPostgres:
		dialector = postgres.Open(dbCfg.DSN())
	case DriverSQLite:
		dialector = sqlite.Open(ledgerCfg.SQLitePath)
	default:
		return nil, fmt.Errorf("ledger driver %q has no database", ledgerCfg.Driver)
	}

	db, err := Open(dialector, opts)
	if err != nil {
		return nil, err
	}
	db.Driver = ledgerCfg.Driver

	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if ledgerCfg.Driver == DriverPostgres {
		sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(dbCfg.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(dbCfg.ConnMaxIdleTime) * time.Minute)
	} else {
		// sqlite serializes writers; a single connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Open opens a gorm connection on an existing dialector. Unique-key
// violations are translated to gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, opts DatabaseOptions) (*Database, error) {
	var gl gormlogger.Interface = gormlogger.Discard
	if opts.Logger != nil {
		gl = logger.NewGormLogger(opts.Logger, opts.LogLevel)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gl,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Database{DB: db}, nil
}

// AutoMigrate creates or updates the ledger table from its model. Postgres
// deployments use the versioned migrations instead.
func (d *Database) AutoMigrate(ctx context.Context) error {
	if err := d.DB.WithContext(ctx).AutoMigrate(&models.LedgerRecordModel{}); err != nil {
		return fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
