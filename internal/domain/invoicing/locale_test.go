package invoicing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandroos/node-invoicer/internal/domain/shared"
)

func TestParseLocale(t *testing.T) {
	l, err := ParseLocale("EN")
	require.NoError(t, err)
	assert.Equal(t, LocaleEN, l)

	l, err = ParseLocale(" es ")
	require.NoError(t, err)
	assert.Equal(t, LocaleES, l)

	_, err = ParseLocale("fr")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedLocale))
	assert.Equal(t, CodeUnsupportedLocale, shared.CodeOf(err))
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		locale   Locale
		amount   string
		expected string
	}{
		{LocaleEN, "150", "£150.00"},
		{LocaleEN, "0", "£0.00"},
		{LocaleEN, "1234.5", "£1234.50"},
		{LocaleES, "150", "150.00€"},
		{LocaleES, "0", "0.00€"},
		{LocaleES, "0.5", "0.50€"},
	}
	for _, tt := range tests {
		t.Run(string(tt.locale)+" "+tt.amount, func(t *testing.T) {
			got, err := FormatAmount(tt.locale, decimal.RequireFromString(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := FormatAmount(Locale("de"), decimal.Zero)
	assert.True(t, errors.Is(err, ErrUnsupportedLocale))
}

func TestNewRenderConfig(t *testing.T) {
	cfg, err := NewRenderConfig(LocaleES, Style{FontSizeOffset: 2}, Labels{Invoice: "Fra."})
	require.NoError(t, err)
	assert.Equal(t, "Fra.", cfg.Labels.Invoice)
	assert.Equal(t, "Fecha", cfg.Labels.Date)
	assert.Equal(t, "Helvetica-Bold", cfg.Style.FontBold)
	assert.Equal(t, "Helvetica", cfg.Style.FontNormal)
	assert.Equal(t, 2.0, cfg.Style.FontSizeOffset)

	_, err = NewRenderConfig(Locale("it"), Style{}, Labels{})
	assert.True(t, errors.Is(err, ErrUnsupportedLocale))
}

func TestCollaboratorError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNumberTakenError("00000003", cause)

	assert.True(t, errors.Is(err, ErrNumberTaken))
	assert.False(t, errors.Is(err, ErrLedgerFailed))
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "NUMBER_TAKEN")

	assert.True(t, errors.Is(NewLedgerError("list", cause), ErrLedgerFailed))
	assert.True(t, errors.Is(NewStorageError("upload", cause), ErrStorageFailed))
	assert.True(t, errors.Is(NewDeliveryError("send", cause), ErrDeliveryFailed))
}
