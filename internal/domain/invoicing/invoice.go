package invoicing

import "strings"

// Invoice is an InvoiceRequest with its allocated number and artifact
// filename. Both are fixed at construction and have no setters.
type Invoice struct {
	InvoiceRequest
	number   string
	filename string
}

// NewInvoice derives an Invoice from a validated request
func NewInvoice(req InvoiceRequest, number, filename string) (Invoice, error) {
	if !IsValidNumber(number) {
		return Invoice{}, domainErrorf(CodeInvalidInvoice, "invoice number %q is not %d digits", number, NumberWidth)
	}
	if strings.TrimSpace(filename) == "" {
		return Invoice{}, domainErrorf(CodeInvalidInvoice, "filename is required")
	}
	return Invoice{
		InvoiceRequest: req,
		number:         number,
		filename:       filename,
	}, nil
}

// Number returns the zero-padded invoice number
func (inv Invoice) Number() string { return inv.number }

// Filename returns the artifact filename
func (inv Invoice) Filename() string { return inv.filename }

// AddressLines returns the recipient address split into display lines
func (inv Invoice) AddressLines() []string {
	return SplitAddress(inv.recipientAddress)
}
