package persistence

import (
	"context"
	"sync"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
)

// MemoryLedger is an in-process invoicing.Ledger with the same uniqueness
// rules as the database ledger. Used by the memory driver and in tests.
type MemoryLedger struct {
	mu      sync.Mutex
	records []invoicing.LedgerRecord
	index   map[string]int
}

// NewMemoryLedger creates a ledger seeded with records
func NewMemoryLedger(records ...invoicing.LedgerRecord) *MemoryLedger {
	l := &MemoryLedger{index: make(map[string]int)}
	for _, rec := range records {
		l.index[rec.Number] = len(l.records)
		l.records = append(l.records, rec)
	}
	return l
}

// ListNumbers returns every recorded number in insertion order
func (l *MemoryLedger) ListNumbers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, invoicing.NewLedgerError("list numbers", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	numbers := make([]string, len(l.records))
	for i, rec := range l.records {
		numbers[i] = rec.Number
	}
	return numbers, nil
}

// AppendRecord stores rec unless its number is already recorded
func (l *MemoryLedger) AppendRecord(ctx context.Context, rec invoicing.LedgerRecord) error {
	if err := ctx.Err(); err != nil {
		return invoicing.NewLedgerError("append "+rec.Number, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.index[rec.Number]; ok {
		if rec.RunID != "" && l.records[i] == rec {
			return nil
		}
		return invoicing.NewNumberTakenError(rec.Number, nil)
	}
	l.index[rec.Number] = len(l.records)
	l.records = append(l.records, rec)
	return nil
}

// Records returns a copy of the stored records
func (l *MemoryLedger) Records() []invoicing.LedgerRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]invoicing.LedgerRecord(nil), l.records...)
}

var _ invoicing.Ledger = (*MemoryLedger)(nil)
