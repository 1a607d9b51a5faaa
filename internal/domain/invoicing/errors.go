package invoicing

import (
	"errors"
	"fmt"

	"github.com/dandroos/node-invoicer/internal/domain/shared"
)

// Error codes of the invoicing context
const (
	CodeInvalidLedgerRecord  = "INVALID_LEDGER_RECORD"
	CodeNumberSpaceExhausted = "NUMBER_SPACE_EXHAUSTED"
	CodeInvalidFilename      = "INVALID_FILENAME"
	CodeUnsupportedLocale    = "UNSUPPORTED_LOCALE"
	CodeInvalidLineItem      = "INVALID_LINE_ITEM"
	CodeTotalMismatch        = "TOTAL_MISMATCH"
	CodeInvalidInvoice       = "INVALID_INVOICE"
	CodeLedgerFailed         = "LEDGER_FAILED"
	CodeNumberTaken          = "NUMBER_TAKEN"
	CodeStorageFailed        = "STORAGE_FAILED"
	CodeDeliveryFailed       = "DELIVERY_FAILED"
	CodeLockNotAcquired      = "LOCK_NOT_ACQUIRED"
)

// Sentinel errors. Match them with errors.Is; the comparison is by code,
// so errors carrying a more specific message still match.
var (
	ErrInvalidLedgerRecord  = shared.NewDomainError(CodeInvalidLedgerRecord, "ledger contains a malformed invoice number")
	ErrNumberSpaceExhausted = shared.NewDomainError(CodeNumberSpaceExhausted, "invoice number space exhausted")
	ErrInvalidFilename      = shared.NewDomainError(CodeInvalidFilename, "recipient cannot be used in a filename")
	ErrUnsupportedLocale    = shared.NewDomainError(CodeUnsupportedLocale, "unsupported locale")
	ErrInvalidLineItem      = shared.NewDomainError(CodeInvalidLineItem, "invalid line item")
	ErrTotalMismatch        = shared.NewDomainError(CodeTotalMismatch, "total does not equal the sum of the line items")
	ErrInvalidInvoice       = shared.NewDomainError(CodeInvalidInvoice, "invalid invoice")
	ErrLedgerFailed         = shared.NewDomainError(CodeLedgerFailed, "ledger operation failed")
	ErrNumberTaken          = shared.NewDomainError(CodeNumberTaken, "invoice number already recorded")
	ErrStorageFailed        = shared.NewDomainError(CodeStorageFailed, "storage operation failed")
	ErrDeliveryFailed       = shared.NewDomainError(CodeDeliveryFailed, "delivery failed")
	ErrLockNotAcquired      = shared.NewDomainError(CodeLockNotAcquired, "issuance lock is held by another run")
)

func domainErrorf(code, format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(code, fmt.Sprintf(format, args...))
}

// CollaboratorError is returned by adapters of the Ledger, ArtifactStorage
// and Mailer ports. It carries the failed operation and the underlying cause.
type CollaboratorError struct {
	Code  string
	Op    string
	Cause error
}

// Error implements the error interface
func (e *CollaboratorError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.Op)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Cause)
}

// Unwrap returns the underlying cause
func (e *CollaboratorError) Unwrap() error {
	return e.Cause
}

// Is matches a shared.DomainError with the same code
func (e *CollaboratorError) Is(target error) bool {
	var de *shared.DomainError
	if errors.As(target, &de) {
		return de.Code == e.Code
	}
	return false
}

// NewLedgerError wraps a ledger failure
func NewLedgerError(op string, cause error) *CollaboratorError {
	return &CollaboratorError{Code: CodeLedgerFailed, Op: op, Cause: cause}
}

// NewNumberTakenError reports that number already exists in the ledger
func NewNumberTakenError(number string, cause error) *CollaboratorError {
	return &CollaboratorError{Code: CodeNumberTaken, Op: "append " + number, Cause: cause}
}

// NewStorageError wraps an artifact storage failure
func NewStorageError(op string, cause error) *CollaboratorError {
	return &CollaboratorError{Code: CodeStorageFailed, Op: op, Cause: cause}
}

// NewDeliveryError wraps an e-mail delivery failure
func NewDeliveryError(op string, cause error) *CollaboratorError {
	return &CollaboratorError{Code: CodeDeliveryFailed, Op: op, Cause: cause}
}
