package invoicing

import (
	"fmt"
	"strings"
	"time"
)

// FilenameComposer derives the artifact name from the invoice word of the
// configured labels, the recipient, the number and the issue date.
type FilenameComposer struct {
	labels map[Locale]Labels
}

// NewFilenameComposer creates a composer. Locales without an entry in
// labels use the built-in captions.
func NewFilenameComposer(labels map[Locale]Labels) *FilenameComposer {
	m := make(map[Locale]Labels, len(labels))
	for l, lb := range labels {
		m[l] = lb.WithDefaults(l)
	}
	return &FilenameComposer{labels: m}
}

// Compose returns "<InvoiceWord> - <recipient> - <number> - <DD-MM-YYYY>.pdf".
// The result depends only on its arguments.
func (c *FilenameComposer) Compose(locale Locale, recipient, number string, date time.Time) (string, error) {
	if !locale.IsValid() {
		return "", domainErrorf(CodeUnsupportedLocale, "unsupported locale %q", string(locale))
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", domainErrorf(CodeInvalidFilename, "recipient is empty")
	}
	if strings.ContainsAny(recipient, "/\\\x00") {
		return "", domainErrorf(CodeInvalidFilename, "recipient %q contains a path separator or NUL", recipient)
	}

	word := c.invoiceWord(locale)
	return fmt.Sprintf("%s - %s - %s - %s.pdf", word, recipient, number, date.Format("02-01-2006")), nil
}

func (c *FilenameComposer) invoiceWord(locale Locale) string {
	if c != nil {
		if lb, ok := c.labels[locale]; ok {
			return lb.Invoice
		}
	}
	return DefaultLabels(locale).Invoice
}
