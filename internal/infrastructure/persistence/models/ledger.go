package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
)

// LedgerRecordModel is the GORM model for the invoice_ledger table.
// Rows are append-only and number is unique.
type LedgerRecordModel struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	RunID     string          `gorm:"column:run_id;type:varchar(36);not null"`
	Number    string          `gorm:"type:varchar(8);not null;uniqueIndex:idx_invoice_ledger_number"`
	IssuedOn  string          `gorm:"column:issued_on;type:varchar(10);not null"`
	Recipient string          `gorm:"type:varchar(255);not null"`
	Address   string          `gorm:"type:text;not null;default:''"`
	TaxID     string          `gorm:"column:tax_id;type:varchar(64);not null;default:''"`
	Email     string          `gorm:"type:varchar(255);not null;default:''"`
	Items     string          `gorm:"type:text;not null"`
	Total     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for LedgerRecordModel
func (LedgerRecordModel) TableName() string {
	return "invoice_ledger"
}

// LedgerRecordModelFromDomain converts a domain ledger record to its model
func LedgerRecordModelFromDomain(rec invoicing.LedgerRecord) (*LedgerRecordModel, error) {
	total, err := decimal.NewFromString(rec.Total)
	if err != nil {
		return nil, fmt.Errorf("invalid total %q: %w", rec.Total, err)
	}
	return &LedgerRecordModel{
		RunID:     rec.RunID,
		Number:    rec.Number,
		IssuedOn:  rec.Date,
		Recipient: rec.Recipient,
		Address:   rec.Address,
		TaxID:     rec.TaxID,
		Email:     rec.Email,
		Items:     rec.ItemsJSON,
		Total:     total,
	}, nil
}

// ToDomain converts the model to a domain ledger record
func (m *LedgerRecordModel) ToDomain() invoicing.LedgerRecord {
	return invoicing.LedgerRecord{
		RunID:     m.RunID,
		Date:      m.IssuedOn,
		Number:    m.Number,
		Recipient: m.Recipient,
		Address:   m.Address,
		TaxID:     m.TaxID,
		Email:     m.Email,
		ItemsJSON: m.Items,
		Total:     m.Total.StringFixed(2),
	}
}

// SameAppend reports whether other was stored by the same run with the
// same invoice data, ignoring the surrogate key and timestamps. Records
// without a run id never match.
func (m *LedgerRecordModel) SameAppend(other *LedgerRecordModel) bool {
	return m.RunID != "" &&
		m.RunID == other.RunID &&
		m.Number == other.Number &&
		m.IssuedOn == other.IssuedOn &&
		m.Recipient == other.Recipient &&
		m.Address == other.Address &&
		m.TaxID == other.TaxID &&
		m.Email == other.Email &&
		m.Items == other.Items &&
		m.Total.Equal(other.Total)
}
