package invoicing

import (
	"fmt"
	"strconv"
)

const (
	// NumberWidth is the number of digits of an invoice number
	NumberWidth = 8
	// MaxNumber is the largest number that fits in NumberWidth digits
	MaxNumber int64 = 99999999
)

// NumberAllocator computes the next invoice number from a snapshot of the
// numbers already in the ledger.
//
// Allocation is a read followed by a separate append, which is not atomic.
// Callers issuing concurrently must hold an IssuanceLock across the read and
// the append, and the ledger must reject a duplicate number with
// ErrNumberTaken so a lost race is detected and the allocation retried.
type NumberAllocator struct{}

// NewNumberAllocator creates a NumberAllocator
func NewNumberAllocator() NumberAllocator {
	return NumberAllocator{}
}

// Allocate returns startNumber when existing is empty, otherwise the largest
// existing number plus one. Both are zero-padded to NumberWidth digits.
// Malformed entries fail with ErrInvalidLedgerRecord and are never skipped.
func (NumberAllocator) Allocate(existing []string, startNumber int64) (string, error) {
	if startNumber < 0 || startNumber > MaxNumber {
		return "", domainErrorf(CodeNumberSpaceExhausted, "start number %d is outside [0, %d]", startNumber, MaxNumber)
	}
	if len(existing) == 0 {
		return FormatNumber(startNumber), nil
	}

	var highest int64 = -1
	for i, entry := range existing {
		n, err := ParseNumber(entry)
		if err != nil {
			return "", domainErrorf(CodeInvalidLedgerRecord, "ledger entry %d (%q) is not a valid invoice number: %v", i, entry, err)
		}
		if n > highest {
			highest = n
		}
	}

	if highest >= MaxNumber {
		return "", domainErrorf(CodeNumberSpaceExhausted, "next invoice number after %d does not fit in %d digits", highest, NumberWidth)
	}
	return FormatNumber(highest + 1), nil
}

// FormatNumber zero-pads n to NumberWidth digits
func FormatNumber(n int64) string {
	return fmt.Sprintf("%0*d", NumberWidth, n)
}

// ParseNumber parses a ledger number. Only ASCII digits are accepted: no
// sign, no whitespace, no empty string.
func ParseNumber(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("unexpected character %q", r)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// all digits, so the only failure is overflow
		return 0, fmt.Errorf("value out of range")
	}
	return n, nil
}

// IsValidNumber reports whether s is a NumberWidth-digit invoice number
func IsValidNumber(s string) bool {
	if len(s) != NumberWidth {
		return false
	}
	_, err := ParseNumber(s)
	return err == nil
}
