package printing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
)

// Base font sizes in points, before the style offset is applied
const (
	sizeIssuerName = 16
	sizeBody       = 12
	sizeIssuerTax  = 10
	sizeTitle      = 40
	sizeGrandTotal = 18
)

// BlockKind identifies how a layout block is drawn
type BlockKind int

const (
	// BlockText is a single line of text
	BlockText BlockKind = iota
	// BlockRow is a left and a right text sharing one line
	BlockRow
	// BlockRule is a horizontal line across the text area
	BlockRule
	// BlockSpace is vertical space of Lines text lines
	BlockSpace
)

// Align is the horizontal alignment of a text block
type Align string

const (
	AlignLeft  Align = "L"
	AlignRight Align = "R"
)

// Roles tag blocks so backends and tests can find them
const (
	RoleIssuer        = "issuer"
	RoleTitle         = "title"
	RoleDate          = "date"
	RoleNumber        = "number"
	RoleRecipient     = "recipient"
	RoleColumnHeader  = "column_header"
	RoleItem          = "item"
	RoleGrandTotal    = "grand_total"
	RoleBankingFooter = "banking"
)

// Block is one element of a layout
type Block struct {
	Kind  BlockKind
	Role  string
	Text  string
	Right string // right-hand text of a BlockRow
	Font  string
	Bold  bool
	Size  float64
	Align Align
	Lines float64 // height of a BlockSpace in lines
}

// Layout is the deterministic, backend-independent description of an
// invoice document. Blocks are drawn top to bottom in order.
type Layout struct {
	Title   string
	Author  string
	Created time.Time
	Blocks  []Block
}

// ByRole returns the blocks tagged with role, in order
func (l *Layout) ByRole(role string) []Block {
	var out []Block
	for _, b := range l.Blocks {
		if b.Role == role {
			out = append(out, b)
		}
	}
	return out
}

// Texts returns every printed string in order. Row blocks contribute their
// left and right text.
func (l *Layout) Texts() []string {
	var out []string
	for _, b := range l.Blocks {
		switch b.Kind {
		case BlockText:
			out = append(out, b.Text)
		case BlockRow:
			out = append(out, b.Text, b.Right)
		}
	}
	return out
}

type layoutBuilder struct {
	style  invoicing.Style
	blocks []Block
	size   float64
}

func (b *layoutBuilder) fontSize(base float64) float64 {
	return base + b.style.FontSizeOffset
}

func (b *layoutBuilder) text(role, text string, base float64, bold bool, align Align) {
	font := b.style.FontNormal
	if bold {
		font = b.style.FontBold
	}
	b.size = b.fontSize(base)
	b.blocks = append(b.blocks, Block{
		Kind:  BlockText,
		Role:  role,
		Text:  text,
		Font:  font,
		Bold:  bold,
		Size:  b.size,
		Align: align,
	})
}

func (b *layoutBuilder) row(role, left, right string, base float64, bold bool) {
	font := b.style.FontNormal
	if bold {
		font = b.style.FontBold
	}
	b.size = b.fontSize(base)
	b.blocks = append(b.blocks, Block{
		Kind:  BlockRow,
		Role:  role,
		Text:  left,
		Right: right,
		Font:  font,
		Bold:  bold,
		Size:  b.size,
	})
}

func (b *layoutBuilder) rule() {
	b.blocks = append(b.blocks, Block{Kind: BlockRule, Size: b.size})
}

func (b *layoutBuilder) space(lines float64) {
	b.blocks = append(b.blocks, Block{Kind: BlockSpace, Size: b.size, Lines: lines})
}

// BuildLayout assembles the invoice document: issuer header, title, date,
// number, recipient, itemized body, grand total and banking footer.
func BuildLayout(inv invoicing.Invoice, cfg invoicing.RenderConfig, profile invoicing.BusinessProfile) (*Layout, error) {
	if !cfg.Locale.IsValid() {
		return nil, NewRenderError(ErrCodeInvalidLayout, fmt.Sprintf("unsupported locale %q", cfg.Locale), invoicing.ErrUnsupportedLocale)
	}
	if cfg.Style.FontBold == "" || cfg.Style.FontNormal == "" {
		return nil, NewRenderError(ErrCodeInvalidLayout, "style fonts are not set", nil)
	}
	if base := float64(sizeIssuerTax) + cfg.Style.FontSizeOffset; base <= 0 {
		return nil, NewRenderError(ErrCodeInvalidLayout, fmt.Sprintf("font size offset %.1f leaves no printable size", cfg.Style.FontSizeOffset), nil)
	}

	labels := cfg.Labels.WithDefaults(cfg.Locale)
	money := func(v decimal.Decimal) string {
		// locale was checked above
		s, _ := invoicing.FormatAmount(cfg.Locale, v)
		return s
	}

	b := &layoutBuilder{style: cfg.Style}

	b.text(RoleIssuer, profile.Name, sizeIssuerName, false, AlignLeft)
	b.text(RoleIssuer, profile.Address1, sizeBody, false, AlignLeft)
	b.text(RoleIssuer, profile.Address2, sizeBody, false, AlignLeft)
	b.text(RoleIssuer, strings.TrimSpace(profile.Town+" "+profile.Postcode), sizeBody, false, AlignLeft)
	b.text(RoleIssuer, profile.TaxID, sizeIssuerTax, false, AlignLeft)
	b.size = b.fontSize(sizeBody)
	b.space(1)

	b.text(RoleTitle, labels.Invoice, sizeTitle, true, AlignLeft)

	b.text(RoleDate, labels.Date, sizeBody, true, AlignLeft)
	b.text(RoleDate, invoicing.FormatDate(inv.Date()), sizeBody, false, AlignLeft)
	b.space(1)

	b.text(RoleNumber, labels.InvoiceNumber, sizeBody, true, AlignLeft)
	b.text(RoleNumber, inv.Number(), sizeBody, false, AlignLeft)
	b.space(1)

	b.text(RoleRecipient, labels.SendTo, sizeBody, true, AlignLeft)
	b.text(RoleRecipient, fmt.Sprintf("%s (%s)", inv.RecipientName(), inv.RecipientTaxID()), sizeBody, false, AlignLeft)
	for _, line := range inv.AddressLines() {
		b.text(RoleRecipient, line, sizeBody, false, AlignLeft)
	}
	b.space(1)

	b.row(RoleColumnHeader, labels.Description, labels.Total, sizeBody, true)
	b.rule()
	b.space(1)

	for _, item := range inv.Items() {
		b.row(RoleItem, item.Description(), money(item.Amount()), sizeBody, false)
	}

	b.space(1)
	b.rule()
	b.space(1)

	b.text(RoleGrandTotal, fmt.Sprintf("%s: %s", labels.GrandTotal, money(inv.Total())), sizeGrandTotal, true, AlignRight)
	b.space(4)

	b.text(RoleBankingFooter, labels.NameOfBank, sizeBody, true, AlignLeft)
	b.text(RoleBankingFooter, profile.BankName, sizeBody, false, AlignLeft)
	b.space(1)
	b.text(RoleBankingFooter, labels.AccountName, sizeBody, true, AlignLeft)
	b.text(RoleBankingFooter, profile.AccountName, sizeBody, false, AlignLeft)
	b.space(1)
	b.text(RoleBankingFooter, labels.AccountNumber, sizeBody, true, AlignLeft)
	b.text(RoleBankingFooter, profile.AccountNumber, sizeBody, false, AlignLeft)

	return &Layout{
		Title:   strings.TrimSuffix(inv.Filename(), ".pdf"),
		Author:  profile.Name,
		Created: inv.Date(),
		Blocks:  b.blocks,
	}, nil
}
