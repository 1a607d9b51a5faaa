package invoicing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Locale selects the document template and currency format
type Locale string

const (
	LocaleEN Locale = "en" // English, pounds sterling
	LocaleES Locale = "es" // Spanish, euros
)

// DefaultLocale is used when no locale is configured
const DefaultLocale = LocaleEN

// ParseLocale validates a configured language code
func ParseLocale(s string) (Locale, error) {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", domainErrorf(CodeUnsupportedLocale, "unsupported locale %q, expected %q or %q", s, LocaleEN, LocaleES)
	}
	return l, nil
}

// IsValid reports whether the locale has a template
func (l Locale) IsValid() bool {
	return l == LocaleEN || l == LocaleES
}

// String returns the language code
func (l Locale) String() string {
	return string(l)
}

// FormatAmount renders amount with exactly two decimals: "£150.00" for en,
// "150.00€" for es.
func FormatAmount(l Locale, amount decimal.Decimal) (string, error) {
	fixed := amount.StringFixed(2)
	switch l {
	case LocaleEN:
		return "£" + fixed, nil
	case LocaleES:
		return fixed + "€", nil
	default:
		return "", domainErrorf(CodeUnsupportedLocale, "unsupported locale %q", string(l))
	}
}

// FormatDate renders a date as DD/MM/YYYY
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
