package printing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
)

func testProfile() invoicing.BusinessProfile {
	return invoicing.BusinessProfile{
		Name:          "Jane Doe",
		Address1:      "1 Main Street",
		Address2:      "Flat 2",
		Town:          "Bristol",
		Postcode:      "BS1 1AA",
		TaxID:         "GB123456789",
		Email:         "jane@example.test",
		BankName:      "Example Bank",
		AccountName:   "Jane Doe",
		AccountNumber: "12345678",
	}
}

func testInvoice(t *testing.T, items ...invoicing.LineItem) invoicing.Invoice {
	t.Helper()
	req, err := invoicing.NewInvoiceRequest(invoicing.RequestParams{
		Date:             time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC),
		RecipientName:    "Acme",
		RecipientAddress: "Calle X 1, Piso 2, 08001 Barcelona",
		RecipientTaxID:   "B12345678",
		RecipientEmail:   "billing@acme.test",
		Items:            items,
		Total:            invoicing.SumAmounts(items),
	})
	require.NoError(t, err)
	inv, err := invoicing.NewInvoice(req, "00000003", "Invoice - Acme - 00000003 - 15-01-2024.pdf")
	require.NoError(t, err)
	return inv
}

func testItem(t *testing.T, desc, amount string) invoicing.LineItem {
	t.Helper()
	li, err := invoicing.NewLineItem(desc, decimal.RequireFromString(amount))
	require.NoError(t, err)
	return li
}

func testRenderConfig(t *testing.T, locale invoicing.Locale) invoicing.RenderConfig {
	t.Helper()
	cfg, err := invoicing.NewRenderConfig(locale, invoicing.DefaultStyle(), invoicing.Labels{})
	require.NoError(t, err)
	return cfg
}

func TestBuildLayout_SingleItemEnglish(t *testing.T) {
	inv := testInvoice(t, testItem(t, "Consulting", "150.00"))

	layout, err := BuildLayout(inv, testRenderConfig(t, invoicing.LocaleEN), testProfile())
	require.NoError(t, err)

	items := layout.ByRole(RoleItem)
	require.Len(t, items, 1)
	assert.Equal(t, BlockRow, items[0].Kind)
	assert.Equal(t, "Consulting", items[0].Text)
	assert.Equal(t, "£150.00", items[0].Right)

	total := layout.ByRole(RoleGrandTotal)
	require.Len(t, total, 1)
	assert.Equal(t, "Grand Total: £150.00", total[0].Text)
	assert.Equal(t, AlignRight, total[0].Align)
	assert.True(t, total[0].Bold)
	assert.Equal(t, 18.0, total[0].Size)
}

func TestBuildLayout_ElementOrder(t *testing.T) {
	inv := testInvoice(t, testItem(t, "Consulting", "150.00"))
	layout, err := BuildLayout(inv, testRenderConfig(t, invoicing.LocaleEN), testProfile())
	require.NoError(t, err)

	expected := []string{
		"Jane Doe", "1 Main Street", "Flat 2", "Bristol BS1 1AA", "GB123456789",
		"Invoice",
		"Date", "15/01/2024",
		"Invoice Number", "00000003",
		"Send To", "Acme (B12345678)", "Calle X 1", "Piso 2", "08001 Barcelona",
		"Description", "Total",
		"Consulting", "£150.00",
		"Grand Total: £150.00",
		"Name of Bank", "Example Bank",
		"Account Name", "Jane Doe",
		"Account Number", "12345678",
	}
	assert.Equal(t, expected, layout.Texts())

	var rules int
	for _, b := range layout.Blocks {
		if b.Kind == BlockRule {
			rules++
		}
	}
	assert.Equal(t, 2, rules)

	title := layout.ByRole(RoleTitle)
	require.Len(t, title, 1)
	assert.Equal(t, 40.0, title[0].Size)
	assert.Equal(t, "Helvetica-Bold", title[0].Font)

	issuer := layout.ByRole(RoleIssuer)
	require.Len(t, issuer, 5)
	assert.Equal(t, 16.0, issuer[0].Size)
	assert.Equal(t, 12.0, issuer[1].Size)
	assert.Equal(t, 10.0, issuer[4].Size)
}

func TestBuildLayout_ZeroItems(t *testing.T) {
	t.Run("english", func(t *testing.T) {
		layout, err := BuildLayout(testInvoice(t), testRenderConfig(t, invoicing.LocaleEN), testProfile())
		require.NoError(t, err)
		assert.Empty(t, layout.ByRole(RoleItem))
		require.Len(t, layout.ByRole(RoleGrandTotal), 1)
		assert.Equal(t, "Grand Total: £0.00", layout.ByRole(RoleGrandTotal)[0].Text)
		assert.Len(t, layout.ByRole(RoleColumnHeader), 1)
		assert.Len(t, layout.ByRole(RoleBankingFooter), 6)
	})

	t.Run("spanish", func(t *testing.T) {
		layout, err := BuildLayout(testInvoice(t), testRenderConfig(t, invoicing.LocaleES), testProfile())
		require.NoError(t, err)
		require.Len(t, layout.ByRole(RoleGrandTotal), 1)
		assert.Equal(t, "Total: 0.00€", layout.ByRole(RoleGrandTotal)[0].Text)
	})
}

func TestBuildLayout_SpanishCurrencySuffix(t *testing.T) {
	inv := testInvoice(t, testItem(t, "Consultoría", "150"), testItem(t, "Viaje", "20.5"))
	layout, err := BuildLayout(inv, testRenderConfig(t, invoicing.LocaleES), testProfile())
	require.NoError(t, err)

	items := layout.ByRole(RoleItem)
	require.Len(t, items, 2)
	assert.Equal(t, "150.00€", items[0].Right)
	assert.Equal(t, "20.50€", items[1].Right)
	assert.Equal(t, "Factura", layout.ByRole(RoleTitle)[0].Text)
}

func TestBuildLayout_FontSizeOffset(t *testing.T) {
	cfg, err := invoicing.NewRenderConfig(invoicing.LocaleEN, invoicing.Style{FontSizeOffset: -2, FontBold: "Times-Bold", FontNormal: "Times-Roman"}, invoicing.Labels{})
	require.NoError(t, err)

	layout, err := BuildLayout(testInvoice(t), cfg, testProfile())
	require.NoError(t, err)

	assert.Equal(t, 38.0, layout.ByRole(RoleTitle)[0].Size)
	assert.Equal(t, "Times-Bold", layout.ByRole(RoleTitle)[0].Font)
	assert.Equal(t, 14.0, layout.ByRole(RoleIssuer)[0].Size)
	assert.Equal(t, "Times-Roman", layout.ByRole(RoleIssuer)[0].Font)
}

func TestBuildLayout_Rejects(t *testing.T) {
	inv := testInvoice(t)

	_, err := BuildLayout(inv, invoicing.RenderConfig{Locale: "fr", Style: invoicing.DefaultStyle()}, testProfile())
	assert.ErrorIs(t, err, ErrRenderFailed)

	_, err = BuildLayout(inv, invoicing.RenderConfig{Locale: invoicing.LocaleEN}, testProfile())
	assert.ErrorIs(t, err, ErrRenderFailed)

	cfg := testRenderConfig(t, invoicing.LocaleEN)
	cfg.Style.FontSizeOffset = -10
	_, err = BuildLayout(inv, cfg, testProfile())
	assert.ErrorIs(t, err, ErrRenderFailed)
}

func TestBuildLayout_Deterministic(t *testing.T) {
	inv := testInvoice(t, testItem(t, "Consulting", "150.00"))
	cfg := testRenderConfig(t, invoicing.LocaleEN)

	a, err := BuildLayout(inv, cfg, testProfile())
	require.NoError(t, err)
	b, err := BuildLayout(inv, cfg, testProfile())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "Invoice - Acme - 00000003 - 15-01-2024", a.Title)
}
