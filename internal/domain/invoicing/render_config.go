package invoicing

// Labels are the localized captions printed on the document
type Labels struct {
	Invoice       string
	Date          string
	InvoiceNumber string
	SendTo        string
	Description   string
	Total         string
	GrandTotal    string
	NameOfBank    string
	AccountName   string
	AccountNumber string
}

var defaultLabels = map[Locale]Labels{
	LocaleEN: {
		Invoice:       "Invoice",
		Date:          "Date",
		InvoiceNumber: "Invoice Number",
		SendTo:        "Send To",
		Description:   "Description",
		Total:         "Total",
		GrandTotal:    "Grand Total",
		NameOfBank:    "Name of Bank",
		AccountName:   "Account Name",
		AccountNumber: "Account Number",
	},
	LocaleES: {
		Invoice:       "Factura",
		Date:          "Fecha",
		InvoiceNumber: "Número de Factura",
		SendTo:        "Enviar a",
		Description:   "Descripción",
		Total:         "Total",
		GrandTotal:    "Total",
		NameOfBank:    "Nombre del Banco",
		AccountName:   "Titular de la Cuenta",
		AccountNumber: "Número de Cuenta",
	},
}

// DefaultLabels returns the built-in captions for l. Unknown locales get the
// English captions.
func DefaultLabels(l Locale) Labels {
	if labels, ok := defaultLabels[l]; ok {
		return labels
	}
	return defaultLabels[LocaleEN]
}

// WithDefaults fills every empty caption from the built-in set for l
func (lb Labels) WithDefaults(l Locale) Labels {
	d := DefaultLabels(l)
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&lb.Invoice, d.Invoice)
	fill(&lb.Date, d.Date)
	fill(&lb.InvoiceNumber, d.InvoiceNumber)
	fill(&lb.SendTo, d.SendTo)
	fill(&lb.Description, d.Description)
	fill(&lb.Total, d.Total)
	fill(&lb.GrandTotal, d.GrandTotal)
	fill(&lb.NameOfBank, d.NameOfBank)
	fill(&lb.AccountName, d.AccountName)
	fill(&lb.AccountNumber, d.AccountNumber)
	return lb
}

// Style controls fonts and sizes of the rendered document
type Style struct {
	// FontSizeOffset is added to every base font size
	FontSizeOffset float64
	FontBold       string
	FontNormal     string
}

// DefaultStyle returns Helvetica with no size offset
func DefaultStyle() Style {
	return Style{
		FontBold:   "Helvetica-Bold",
		FontNormal: "Helvetica",
	}
}

// BusinessProfile identifies the issuer. It is printed in the header and
// the banking footer and used as the sender of e-mails.
type BusinessProfile struct {
	Name            string
	Address1        string
	Address2        string
	Town            string
	Postcode        string
	TaxID           string
	Email           string
	AccountantEmail string
	BankName        string
	AccountName     string
	AccountNumber   string
}

// RenderConfig is passed explicitly to the renderer and filename composer
type RenderConfig struct {
	Locale Locale
	Style  Style
	Labels Labels
}

// NewRenderConfig validates the locale and completes missing captions
func NewRenderConfig(locale Locale, style Style, labels Labels) (RenderConfig, error) {
	if !locale.IsValid() {
		return RenderConfig{}, domainErrorf(CodeUnsupportedLocale, "unsupported locale %q", string(locale))
	}
	def := DefaultStyle()
	if style.FontBold == "" {
		style.FontBold = def.FontBold
	}
	if style.FontNormal == "" {
		style.FontNormal = def.FontNormal
	}
	return RenderConfig{
		Locale: locale,
		Style:  style,
		Labels: labels.WithDefaults(locale),
	}, nil
}
