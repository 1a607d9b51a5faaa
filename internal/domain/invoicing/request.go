package invoicing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RequestParams holds the fields used to build an InvoiceRequest
type RequestParams struct {
	Date             time.Time
	RecipientName    string
	RecipientAddress string
	RecipientTaxID   string
	RecipientEmail   string
	Items            []LineItem
	Total            decimal.Decimal
}

// InvoiceRequest is the immutable input of one issuance run. Total equals
// the sum of the item amounts; the constructor checks it once and nothing
// downstream re-verifies it.
type InvoiceRequest struct {
	date             time.Time
	recipientName    string
	recipientAddress string
	recipientTaxID   string
	recipientEmail   string
	items            []LineItem
	total            decimal.Decimal
}

// NewInvoiceRequest validates p and returns the request
func NewInvoiceRequest(p RequestParams) (InvoiceRequest, error) {
	if p.Date.IsZero() {
		return InvoiceRequest{}, domainErrorf(CodeInvalidInvoice, "issue date is required")
	}
	if p.Total.IsNegative() {
		return InvoiceRequest{}, domainErrorf(CodeTotalMismatch, "total %s is negative", p.Total.StringFixed(2))
	}
	sum := SumAmounts(p.Items)
	if !sum.Equal(p.Total) {
		return InvoiceRequest{}, domainErrorf(CodeTotalMismatch, "total %s does not equal the sum of the items %s", p.Total.String(), sum.String())
	}

	items := make([]LineItem, len(p.Items))
	copy(items, p.Items)

	return InvoiceRequest{
		date:             p.Date,
		recipientName:    strings.TrimSpace(p.RecipientName),
		recipientAddress: strings.TrimSpace(p.RecipientAddress),
		recipientTaxID:   strings.TrimSpace(p.RecipientTaxID),
		recipientEmail:   strings.TrimSpace(p.RecipientEmail),
		items:            items,
		total:            p.Total,
	}, nil
}

// Date returns the issue date
func (r InvoiceRequest) Date() time.Time { return r.date }

// RecipientName returns the recipient's name
func (r InvoiceRequest) RecipientName() string { return r.recipientName }

// RecipientAddress returns the comma-delimited recipient address
func (r InvoiceRequest) RecipientAddress() string { return r.recipientAddress }

// RecipientTaxID returns the recipient's tax identifier
func (r InvoiceRequest) RecipientTaxID() string { return r.recipientTaxID }

// RecipientEmail returns the recipient's e-mail address
func (r InvoiceRequest) RecipientEmail() string { return r.recipientEmail }

// Total returns the invoice total
func (r InvoiceRequest) Total() decimal.Decimal { return r.total }

// Items returns a copy of the line items
func (r InvoiceRequest) Items() []LineItem {
	items := make([]LineItem, len(r.items))
	copy(items, r.items)
	return items
}

// ItemCount returns the number of line items
func (r InvoiceRequest) ItemCount() int {
	return len(r.items)
}
