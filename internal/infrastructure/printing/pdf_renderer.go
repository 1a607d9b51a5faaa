package printing

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
)

const (
	defaultPageSize = "A4"
	defaultMarginMM = 20.0
	lineSpacing     = 1.15
	ruleWidthMM     = 0.2
	rowGapMM        = 4.0
	pointsPerInch   = 72.0
	mmPerInch       = 25.4
)

// coreFamilies are the standard PDF fonts that need no embedding
var coreFamilies = map[string]string{
	"helvetica": "Helvetica",
	"arial":     "Arial",
	"times":     "Times",
	"courier":   "Courier",
}

// PDFConfig contains configuration for the gofpdf renderer
type PDFConfig struct {
	// PageSize is a gofpdf page size name, A4 by default
	PageSize string
	// MarginMM is applied to the left, top, right and bottom edges
	MarginMM float64
	// Logger for debug output
	Logger *zap.Logger
}

// PDFRenderer draws a Layout with gofpdf using the core PDF fonts. Text is
// converted to Windows-1252, the encoding of the core fonts, so "£" and "€"
// print correctly. Text outside Windows-1252 fails the render with
// ErrCodeUnsupportedText. Pages break automatically.
type PDFRenderer struct {
	config *PDFConfig
	logger *zap.Logger
}

// NewPDFRenderer creates a gofpdf based renderer
func NewPDFRenderer(config *PDFConfig) *PDFRenderer {
	if config == nil {
		config = &PDFConfig{}
	}
	if config.PageSize == "" {
		config.PageSize = defaultPageSize
	}
	if config.MarginMM <= 0 {
		config.MarginMM = defaultMarginMM
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFRenderer{config: config, logger: logger}
}

// Render builds the layout for inv and draws it
func (r *PDFRenderer) Render(ctx context.Context, inv invoicing.Invoice, cfg invoicing.RenderConfig, profile invoicing.BusinessProfile) ([]byte, error) {
	layout, err := BuildLayout(inv, cfg, profile)
	if err != nil {
		return nil, err
	}
	return r.RenderLayout(ctx, layout)
}

// RenderLayout draws layout and returns the complete PDF
func (r *PDFRenderer) RenderLayout(ctx context.Context, layout *Layout) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeRenderTimeout, "PDF rendering was cancelled", err)
	}
	if layout == nil {
		return nil, NewRenderError(ErrCodeInvalidLayout, "layout is nil", nil)
	}

	startTime := time.Now()
	enc := charmap.Windows1252.NewEncoder()

	margin := r.config.MarginMM
	pdf := gofpdf.New("P", "mm", r.config.PageSize, "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(layout.Title, true)
	pdf.SetAuthor(layout.Author, true)
	pdf.SetCreator("invoicer", true)
	if !layout.Created.IsZero() {
		pdf.SetCreationDate(layout.Created)
	}
	pdf.SetLineWidth(ruleWidthMM)
	pdf.AddPage()

	pageWidth, pageHeight := pdf.GetPageSize()
	area := pageWidth - 2*margin

	for i, block := range layout.Blocks {
		if block.Kind == BlockText || block.Kind == BlockRow {
			family, style, err := fontSpec(block.Font)
			if err != nil {
				return nil, err
			}
			pdf.SetFont(family, style, block.Size)
		}
		lineHeight := lineHeightMM(block.Size)

		switch block.Kind {
		case BlockText:
			text, err := encodeText(enc, i, block.Text)
			if err != nil {
				return nil, err
			}
			pdf.MultiCell(0, lineHeight, text, "", string(block.Align), false)
		case BlockRow:
			text, err := encodeText(enc, i, block.Text)
			if err != nil {
				return nil, err
			}
			right, err := encodeText(enc, i, block.Right)
			if err != nil {
				return nil, err
			}
			lines, textWidth, rightWidth := splitRow(pdf, text, right, area)
			height := float64(len(lines)) * lineHeight
			if pdf.GetY()+height > pageHeight-margin && height <= pageHeight-2*margin {
				pdf.AddPage()
			}
			top := pdf.GetY()
			pdf.SetXY(margin+area-rightWidth, top)
			pdf.CellFormat(rightWidth, lineHeight, right, "", 0, "R", false, 0, "")
			pdf.SetXY(margin, top)
			for _, line := range lines {
				pdf.CellFormat(textWidth, lineHeight, string(line), "", 2, "L", false, 0, "")
			}
		case BlockRule:
			y := pdf.GetY()
			pdf.Line(margin, y, pageWidth-margin, y)
		case BlockSpace:
			pdf.Ln(lineHeight * block.Lines)
		default:
			return nil, NewRenderError(ErrCodeInvalidLayout, fmt.Sprintf("block %d has unknown kind %d", i, block.Kind), nil)
		}

		if pdf.Err() {
			return nil, NewRenderError(ErrCodeRenderFailed, fmt.Sprintf("drawing block %d failed", i), pdf.Error())
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "failed to write PDF", err)
	}
	if buf.Len() == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	r.logger.Debug("PDF rendered",
		zap.Int("bytes", buf.Len()),
		zap.Int("pages", pdf.PageCount()),
		zap.Duration("duration", time.Since(startTime)))

	return buf.Bytes(), nil
}

// Close releases resources held by the renderer
func (r *PDFRenderer) Close() error {
	return nil
}

// encodeText converts s to Windows-1252 for the core fonts
func encodeText(enc *encoding.Encoder, block int, s string) (string, error) {
	out, err := enc.String(s)
	if err != nil {
		return "", NewRenderError(ErrCodeUnsupportedText,
			fmt.Sprintf("block %d has text the core fonts cannot print", block), err)
	}
	return out, nil
}

// splitRow wraps the left text of a row so it never reaches the right text.
// The right text keeps its full width and sits on the first line.
func splitRow(pdf *gofpdf.Fpdf, text, right string, area float64) (lines [][]byte, textWidth, rightWidth float64) {
	rightWidth = pdf.GetStringWidth(right) + 2*pdf.GetCellMargin()
	textWidth = max(area-rightWidth-rowGapMM, area/3)
	lines = pdf.SplitLines([]byte(text), textWidth)
	if len(lines) == 0 {
		lines = [][]byte{nil}
	}
	return lines, textWidth, rightWidth
}

// fontSpec maps a PostScript style font name such as "Helvetica-Bold" or
// "Times-Roman" onto a gofpdf core family and style.
func fontSpec(name string) (family, style string, err error) {
	base, variant, _ := strings.Cut(strings.TrimSpace(name), "-")
	family, ok := coreFamilies[strings.ToLower(base)]
	if !ok {
		return "", "", NewRenderError(ErrCodeUnsupportedFont, fmt.Sprintf("font %q is not a core PDF font", name), nil)
	}
	variant = strings.ToLower(variant)
	if strings.Contains(variant, "bold") {
		style += "B"
	}
	if strings.Contains(variant, "oblique") || strings.Contains(variant, "italic") {
		style += "I"
	}
	return family, style, nil
}

// lineHeightMM returns the line height in millimeters for a font size in points
func lineHeightMM(sizePt float64) float64 {
	return sizePt / pointsPerInch * mmPerInch * lineSpacing
}

// Ensure PDFRenderer implements DocumentRenderer
var _ DocumentRenderer = (*PDFRenderer)(nil)
