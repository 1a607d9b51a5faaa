//go:build integration

package migration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
	"github.com/dandroos/node-invoicer/internal/infrastructure/persistence"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("invoicer_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestMigrator_PostgresLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	dsn := startPostgres(t)
	log := zaptest.NewLogger(t)

	m, err := Open(dsn, log)
	require.NoError(t, err)
	defer m.Close()

	version, _, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	require.NoError(t, m.Up())
	require.NoError(t, m.Up(), "second run is a no-op")

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	db, err := persistence.Open(gormpostgres.Open(dsn), persistence.DatabaseOptions{Logger: log})
	require.NoError(t, err)
	defer db.Close()

	repo := persistence.NewGormLedgerRepository(db.DB)
	ctx := context.Background()
	rec := invoicing.LedgerRecord{
		RunID:     "run-1",
		Date:      "15/01/2024",
		Number:    "00000001",
		Recipient: "Acme",
		ItemsJSON: "[]",
		Total:     "0.00",
	}
	require.NoError(t, repo.AppendRecord(ctx, rec))
	require.NoError(t, repo.AppendRecord(ctx, rec))

	rec.Recipient = "Globex"
	err = repo.AppendRecord(ctx, rec)
	assert.True(t, errors.Is(err, invoicing.ErrNumberTaken), "got %v", err)

	numbers, err := repo.ListNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"00000001"}, numbers)

	require.NoError(t, m.Down())
	assert.False(t, db.DB.Migrator().HasTable("invoice_ledger"))
}
