package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// LedgerRecord is the row appended to the ledger for each issued invoice.
// Records are never updated or deleted. RunID names the issuance run that
// appended the record.
type LedgerRecord struct {
	RunID     string
	Date      string // DD/MM/YYYY
	Number    string
	Recipient string
	Address   string
	TaxID     string
	Email     string
	ItemsJSON string
	Total     string
}

// NewLedgerRecord builds the ledger row for inv issued by run runID
func NewLedgerRecord(inv Invoice, runID string) (LedgerRecord, error) {
	if runID == "" {
		return LedgerRecord{}, errors.New("ledger record needs a run id")
	}
	items, err := json.Marshal(inv.Items())
	if err != nil {
		return LedgerRecord{}, fmt.Errorf("failed to encode line items: %w", err)
	}
	return LedgerRecord{
		RunID:     runID,
		Date:      FormatDate(inv.Date()),
		Number:    inv.Number(),
		Recipient: inv.RecipientName(),
		Address:   inv.RecipientAddress(),
		TaxID:     inv.RecipientTaxID(),
		Email:     inv.RecipientEmail(),
		ItemsJSON: string(items),
		Total:     inv.Total().StringFixed(2),
	}, nil
}

// ParseRecordDate parses the DD/MM/YYYY date of a record
func ParseRecordDate(s string) (time.Time, error) {
	return time.Parse("02/01/2006", s)
}

// Ledger is the persisted record of issued invoices
type Ledger interface {
	// ListNumbers returns the number of every record
	ListNumbers(ctx context.Context) ([]string, error)
	// AppendRecord stores rec. If the number is already recorded, the call
	// is a no-op when the stored record came from the same run with the same
	// content (a retried append) and fails with ErrNumberTaken otherwise.
	AppendRecord(ctx context.Context, rec LedgerRecord) error
}

// ArtifactStorage receives a copy of every rendered document
type ArtifactStorage interface {
	// Upload stores the content under filename, overwriting any previous
	// object with that name.
	Upload(ctx context.Context, filename string, content io.Reader) error
}

// Mailer delivers a rendered document by e-mail
type Mailer interface {
	Send(ctx context.Context, to, subject, attachmentPath, body string) error
}

// ReleaseFunc releases a held issuance lock
type ReleaseFunc func(ctx context.Context) error

// IssuanceLock serializes the read-allocate-append section across runs
type IssuanceLock interface {
	// Acquire takes the lock named key for at most ttl. It fails with
	// ErrLockNotAcquired if another holder keeps it past ctx's deadline.
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, error)
}
