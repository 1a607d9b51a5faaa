package invoicing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumberAllocator_Allocate(t *testing.T) {
	alloc := NewNumberAllocator()

	tests := []struct {
		name        string
		existing    []string
		start       int64
		expected    string
		expectError error
	}{
		{
			name:     "empty ledger uses start number",
			existing: nil,
			start:    1,
			expected: "00000001",
		},
		{
			name:     "empty ledger with custom start",
			existing: []string{},
			start:    2024001,
			expected: "02024001",
		},
		{
			name:     "start number zero",
			existing: nil,
			start:    0,
			expected: "00000000",
		},
		{
			name:     "next after highest",
			existing: []string{"00000001", "00000002"},
			start:    1,
			expected: "00000003",
		},
		{
			name:     "unordered ledger",
			existing: []string{"00000007", "00000002", "00000005"},
			start:    1,
			expected: "00000008",
		},
		{
			name:     "start number ignored when ledger has records",
			existing: []string{"00000010"},
			start:    500,
			expected: "00000011",
		},
		{
			name:     "unpadded entries are accepted",
			existing: []string{"9", "10"},
			start:    1,
			expected: "00000011",
		},
		{
			name:        "non numeric entry",
			existing:    []string{"00000001", "N/A"},
			start:       1,
			expectError: ErrInvalidLedgerRecord,
		},
		{
			name:        "empty entry",
			existing:    []string{""},
			start:       1,
			expectError: ErrInvalidLedgerRecord,
		},
		{
			name:        "signed entry",
			existing:    []string{"-00000001"},
			start:       1,
			expectError: ErrInvalidLedgerRecord,
		},
		{
			name:        "entry with whitespace",
			existing:    []string{" 00000001"},
			start:       1,
			expectError: ErrInvalidLedgerRecord,
		},
		{
			name:        "highest number already used",
			existing:    []string{"99999999"},
			start:       1,
			expectError: ErrNumberSpaceExhausted,
		},
		{
			name:        "negative start number",
			existing:    nil,
			start:       -1,
			expectError: ErrNumberSpaceExhausted,
		},
		{
			name:        "start number too large",
			existing:    nil,
			start:       100000000,
			expectError: ErrNumberSpaceExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := alloc.Allocate(tt.existing, tt.start)
			if tt.expectError != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.expectError), "got %v", err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Len(t, got, NumberWidth)
		})
	}
}

func TestNumberAllocator_Allocate_NamesOffendingEntry(t *testing.T) {
	_, err := NewNumberAllocator().Allocate([]string{"00000001", "N/A"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"N/A"`)
	assert.Contains(t, err.Error(), "entry 1")
}

func TestNumberAllocator_Allocate_IsMaxPlusOne(t *testing.T) {
	alloc := NewNumberAllocator()
	for n := int64(1); n <= 50; n++ {
		existing := make([]string, 0, n)
		for i := int64(1); i <= n; i++ {
			existing = append(existing, FormatNumber(i))
		}
		got, err := alloc.Allocate(existing, 1)
		require.NoError(t, err)
		assert.Equal(t, FormatNumber(n+1), got)
	}
}

func TestParseNumber(t *testing.T) {
	n, err := ParseNumber("00000042")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	for _, bad := range []string{"", "+1", "1.0", "1e3", "abc", "00 01", "٣"} {
		_, err := ParseNumber(bad)
		assert.Error(t, err, bad)
	}

	_, err = ParseNumber("99999999999999999999999")
	assert.Error(t, err)
}

func TestIsValidNumber(t *testing.T) {
	assert.True(t, IsValidNumber("00000001"))
	assert.False(t, IsValidNumber("1"))
	assert.False(t, IsValidNumber("0000000A"))
	assert.False(t, IsValidNumber("000000001"))
}
