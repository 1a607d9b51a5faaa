package printing

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/dandroos/node-invoicer/internal/domain/invoicing"
)

//go:embed templates/*.html
var templateFS embed.FS

var invoiceTemplate = template.Must(template.ParseFS(templateFS, "templates/invoice.html"))

const (
	defaultChromeTimeout = 30 * time.Second
	a4WidthMM            = 210.0
	a4HeightMM           = 297.0
)

// ChromedpConfig contains configuration for the chromedp renderer
type ChromedpConfig struct {
	// DefaultTimeout for rendering operations
	DefaultTimeout time.Duration
	// RemoteURL is the URL of a remote Chrome/Chromium instance (optional)
	// If empty, chromedp will launch a new browser instance
	RemoteURL string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// MarginMM is the page margin on every edge
	MarginMM float64
	// Logger for debug output
	Logger *zap.Logger
}

// ChromedpRenderer renders the invoice layout as HTML and prints it to PDF
// with headless Chrome
type ChromedpRenderer struct {
	config      *ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates a new chromedp-based PDF renderer
func NewChromedpRenderer(config *ChromedpConfig) (*ChromedpRenderer, error) {
	if config == nil {
		config = &ChromedpConfig{}
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}
	if config.MarginMM <= 0 {
		config.MarginMM = defaultMarginMM
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	renderer := &ChromedpRenderer{
		config: config,
		logger: logger,
	}
	renderer.initAllocator()

	return renderer, nil
}

// initAllocator initializes the Chrome allocator
func (r *ChromedpRenderer) initAllocator() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	if r.config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.config.RemoteURL)
	} else {
		r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
}

// Render builds the layout for inv, converts it to HTML and prints it
func (r *ChromedpRenderer) Render(ctx context.Context, inv invoicing.Invoice, cfg invoicing.RenderConfig, profile invoicing.BusinessProfile) ([]byte, error) {
	layout, err := BuildLayout(inv, cfg, profile)
	if err != nil {
		return nil, err
	}
	html, err := LayoutHTML(layout, cfg.Locale)
	if err != nil {
		return nil, err
	}
	return r.printHTML(ctx, html)
}

func (r *ChromedpRenderer) printHTML(ctx context.Context, html string) ([]byte, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.config.DefaultTimeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// chromedp contexts derive from the allocator; stop the tab when the
	// caller's deadline expires
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	margin := mmToInches(r.config.MarginMM)
	var pdfData []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(mmToInches(a4WidthMM)).
				WithPaperHeight(mmToInches(a4HeightMM)).
				WithMarginTop(margin).
				WithMarginRight(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("PDF rendering timed out after %v", r.config.DefaultTimeout), err)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, NewRenderError(ErrCodeRenderTimeout, "PDF rendering was cancelled", err)
		}
		r.logger.Error("chromedp rendering failed", zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}

	if len(pdfData) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	r.logger.Debug("PDF rendered with chromedp",
		zap.Int("bytes", len(pdfData)),
		zap.Duration("duration", time.Since(startTime)))

	return pdfData, nil
}

// Close releases resources held by the renderer
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

type htmlBlock struct {
	Kind  string
	Text  string
	Right string
	Align string
	Style template.CSS
}

type htmlDocument struct {
	Lang   string
	Title  string
	Author string
	Blocks []htmlBlock
}

// LayoutHTML renders layout as a standalone HTML page
func LayoutHTML(layout *Layout, locale invoicing.Locale) (string, error) {
	if layout == nil {
		return "", NewRenderError(ErrCodeInvalidLayout, "layout is nil", nil)
	}

	doc := htmlDocument{
		Lang:   locale.String(),
		Title:  layout.Title,
		Author: layout.Author,
		Blocks: make([]htmlBlock, 0, len(layout.Blocks)),
	}
	for i, b := range layout.Blocks {
		hb := htmlBlock{Text: b.Text, Right: b.Right, Align: string(b.Align)}
		switch b.Kind {
		case BlockText, BlockRow:
			family, style, err := fontSpec(b.Font)
			if err != nil {
				return "", err
			}
			hb.Kind = "text"
			if b.Kind == BlockRow {
				hb.Kind = "row"
			}
			hb.Style = fontCSS(family, style, b.Size)
		case BlockRule:
			hb.Kind = "rule"
		case BlockSpace:
			hb.Kind = "space"
			hb.Style = template.CSS(fmt.Sprintf("height:%.2fmm", lineHeightMM(b.Size)*b.Lines))
		default:
			return "", NewRenderError(ErrCodeInvalidLayout, fmt.Sprintf("block %d has unknown kind %d", i, b.Kind), nil)
		}
		doc.Blocks = append(doc.Blocks, hb)
	}

	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, doc); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute invoice template", err)
	}
	return buf.String(), nil
}

// fontCSS builds the inline style for a core font. family is one of the
// fixed core family names, so the result is safe to mark as CSS.
func fontCSS(family, style string, size float64) template.CSS {
	weight, fontStyle := "normal", "normal"
	for _, c := range style {
		switch c {
		case 'B':
			weight = "bold"
		case 'I':
			fontStyle = "italic"
		}
	}
	return template.CSS(fmt.Sprintf("font-family:%s;font-size:%.1fpt;font-weight:%s;font-style:%s;line-height:%.2f",
		family, size, weight, fontStyle, lineSpacing))
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / mmPerInch
}

// Ensure ChromedpRenderer implements DocumentRenderer
var _ DocumentRenderer = (*ChromedpRenderer)(nil)
