package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
)

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(ledgerRecord("00000001", "Acme"))

	require.NoError(t, l.AppendRecord(ctx, ledgerRecord("00000002", "Acme")))
	require.NoError(t, l.AppendRecord(ctx, ledgerRecord("00000002", "Acme")), "identical append is a no-op")

	err := l.AppendRecord(ctx, ledgerRecord("00000002", "Globex"))
	assert.ErrorIs(t, err, invoicing.ErrNumberTaken)

	err = l.AppendRecord(ctx, runRecord("run-2", "00000002", "Acme"))
	assert.ErrorIs(t, err, invoicing.ErrNumberTaken, "same content from another run")

	noRun := runRecord("", "00000003", "Acme")
	require.NoError(t, l.AppendRecord(ctx, noRun))
	assert.ErrorIs(t, l.AppendRecord(ctx, noRun), invoicing.ErrNumberTaken)

	numbers, err := l.ListNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"00000001", "00000002", "00000003"}, numbers)
	assert.Len(t, l.Records(), 3)
}

func TestMemoryLedger_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := NewMemoryLedger()

	_, err := l.ListNumbers(ctx)
	assert.ErrorIs(t, err, invoicing.ErrLedgerFailed)
	assert.ErrorIs(t, err, context.Canceled)

	err = l.AppendRecord(ctx, ledgerRecord("00000001", "Acme"))
	assert.ErrorIs(t, err, invoicing.ErrLedgerFailed)
	assert.Empty(t, l.Records())
}
