package export

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/santibernabebb-gif/presupuestos/internal/budget"
)

// A4 paper size in inches, as PrintToPDF expects
const (
	a4WidthIn  = 8.27
	a4HeightIn = 11.69
	a4MarginIn = 0.47 // ~12mm, matching the template's @page margin
)

// PDF renders the fixed A4 HTML layout and snapshots it to a PDF with a
// headless browser, the print-target path of the two export adapters.
type PDF struct {
	execPath string
	timeout  time.Duration
}

// PDFOption configures the PDF renderer
type PDFOption func(*PDF)

// WithExecPath points the renderer at a specific Chrome/Chromium binary
func WithExecPath(path string) PDFOption {
	return func(p *PDF) { p.execPath = path }
}

// NewPDF creates the PDF renderer
func NewPDF(opts ...PDFOption) *PDF {
	p := &PDF{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Render produces the PDF bytes for a document
func (p *PDF) Render(ctx context.Context, document *budget.BudgetDocument) ([]byte, error) {
	html, err := RenderHTML(document)
	if err != nil {
		return nil, err
	}

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if p.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(p.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, p.timeout)
	defer cancelTimeout()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPaperWidth(a4WidthIn).
				WithPaperHeight(a4HeightIn).
				WithMarginTop(a4MarginIn).
				WithMarginBottom(a4MarginIn).
				WithMarginLeft(a4MarginIn).
				WithMarginRight(a4MarginIn).
				WithPrintBackground(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("printing budget to PDF: %w", err)
	}

	return pdf, nil
}
