package exportpdf

import (
	"context"
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/goliatone/go-tableview/export"
)

const (
	// DefaultFitColumns is the widest table printed at full scale.
	DefaultFitColumns = 10
	// MinTableScale bounds how far a wide table is shrunk.
	MinTableScale = 0.5

	defaultPageSize     = "A4"
	footerMarginInches  = 0.5
	defaultMarginInches = 0.4
)

// Paper sizes in inches, portrait.
var paperSizes = map[string][2]float64{
	"A3":     {11.69, 16.54},
	"A4":     {8.27, 11.69},
	"A5":     {5.83, 8.27},
	"LETTER": {8.5, 11},
	"LEGAL":  {8.5, 14},
}

var lengthPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*(in|cm|mm|pt|px)?\s*$`)

// Patterns blocked while printing. The document holds remote data, so a cell
// value must never make the browser reach out.
var blockedURLPatterns = []string{"http://*", "https://*", "ws://*", "wss://*", "ftp://*"}

// ChromiumEngine prints the table document through a shared headless
// Chromium. Each render opens its own tab. Tables wider than FitColumns are
// scaled down so every column stays on the page, and PageNumbers adds a
// footer with the table title and page count.
type ChromiumEngine struct {
	BrowserPath string
	Headless    bool
	Timeout     time.Duration
	Args        []string

	Defaults   export.PDFOptions
	FitColumns int

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Render prints req.HTML to PDF. The browser starts on first use.
func (e *ChromiumEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if e == nil {
		return nil, export.NewError(export.KindInternal, "chromium engine is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := e.options(req.Options.PDF)
	params, err := e.printParams(opts, req)
	if err != nil {
		return nil, err
	}

	browser, err := e.browser()
	if err != nil {
		return nil, export.NewError(export.KindInternal, "chromium start failed", err)
	}
	tab, closeTab := chromedp.NewContext(browser)
	defer closeTab()

	// The tab lives under the browser context; ctx only cancels this render.
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		tab, cancel = context.WithTimeout(tab, e.Timeout)
		defer cancel()
	}

	var pdf []byte
	if err := chromedp.Run(tab, printActions(req.HTML, opts, params, &pdf)...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, export.NewError(export.KindInternal, "chromium pdf render failed", err)
	}
	return pdf, nil
}

// Close stops the browser. A later Render starts a new one.
func (e *ChromiumEngine) Close() error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browserCancel != nil {
		e.browserCancel()
	}
	if e.allocCancel != nil {
		e.allocCancel()
	}
	e.browserCtx, e.browserCancel, e.allocCancel = nil, nil, nil
	return nil
}

func (e *ChromiumEngine) browser() (context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browserCtx != nil && e.browserCtx.Err() == nil {
		return e.browserCtx, nil
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if e.BrowserPath != "" {
		opts = append(opts, chromedp.ExecPath(e.BrowserPath))
	}
	opts = append(opts, chromedp.Flag("headless", e.Headless))
	opts = append(opts, chromeFlags(e.Args)...)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}
	e.allocCancel, e.browserCtx, e.browserCancel = allocCancel, browserCtx, browserCancel
	return browserCtx, nil
}

func printActions(doc []byte, opts export.PDFOptions, params *page.PrintToPDFParams, out *[]byte) []chromedp.Action {
	var actions []chromedp.Action
	if opts.ExternalAssetsPolicy != export.PDFExternalAssetsAllow {
		actions = append(actions, network.Enable(), network.SetBlockedURLs(blockedURLPatterns))
	}
	return append(actions,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(doc)).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := params.Do(ctx)
			*out = data
			return err
		}),
	)
}

func (e *ChromiumEngine) options(req export.PDFOptions) export.PDFOptions {
	return layerPDFOptions(e.Defaults, req)
}

// layerPDFOptions lays the request's PDF options over an engine's defaults.
func layerPDFOptions(opts, req export.PDFOptions) export.PDFOptions {
	overlay(&opts.PageSize, req.PageSize)
	if req.Landscape != nil {
		opts.Landscape = req.Landscape
	}
	if req.Scale != 0 {
		opts.Scale = req.Scale
	}
	overlay(&opts.MarginTop, req.MarginTop)
	overlay(&opts.MarginBottom, req.MarginBottom)
	overlay(&opts.MarginLeft, req.MarginLeft)
	overlay(&opts.MarginRight, req.MarginRight)
	if req.PageNumbers != nil {
		opts.PageNumbers = req.PageNumbers
	}
	if req.ExternalAssetsPolicy != export.PDFExternalAssetsUnspecified {
		opts.ExternalAssetsPolicy = req.ExternalAssetsPolicy
	}

	if opts.PageSize == "" {
		opts.PageSize = defaultPageSize
	}
	if opts.ExternalAssetsPolicy == export.PDFExternalAssetsUnspecified {
		opts.ExternalAssetsPolicy = export.PDFExternalAssetsBlock
	}
	return opts
}

func overlay(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func (e *ChromiumEngine) printParams(opts export.PDFOptions, req RenderRequest) (*page.PrintToPDFParams, error) {
	size, ok := paperSizes[strings.ToUpper(strings.TrimSpace(opts.PageSize))]
	if !ok {
		return nil, export.NewError(export.KindValidation, fmt.Sprintf("unsupported pdf page size %q", opts.PageSize), nil)
	}

	scale := opts.Scale
	if scale == 0 {
		fit := e.FitColumns
		if fit == 0 {
			fit = DefaultFitColumns
		}
		scale = tableScale(req.Columns, fit)
	}
	if scale < 0.1 || scale > 2 {
		return nil, export.NewError(export.KindValidation, "pdf scale must be between 0.1 and 2", nil)
	}

	landscape := opts.Landscape != nil && *opts.Landscape
	pageNumbers := opts.PageNumbers != nil && *opts.PageNumbers

	margins := [4]float64{defaultMarginInches, defaultMarginInches, defaultMarginInches, defaultMarginInches}
	if pageNumbers {
		margins[1] = footerMarginInches
	}
	for i, raw := range []string{opts.MarginTop, opts.MarginBottom, opts.MarginLeft, opts.MarginRight} {
		if raw == "" {
			continue
		}
		inches, err := parseLengthInches(raw)
		if err != nil {
			return nil, err
		}
		margins[i] = inches
	}

	params := page.PrintToPDF().
		WithPaperWidth(size[0]).
		WithPaperHeight(size[1]).
		WithLandscape(landscape).
		WithScale(scale).
		WithPrintBackground(true).
		WithMarginTop(margins[0]).
		WithMarginBottom(margins[1]).
		WithMarginLeft(margins[2]).
		WithMarginRight(margins[3])
	if pageNumbers {
		params = params.
			WithDisplayHeaderFooter(true).
			WithHeaderTemplate("<span></span>").
			WithFooterTemplate(footerTemplate(req.Title))
	}
	return params, nil
}

// tableScale shrinks tables wider than fit columns proportionally, down to
// MinTableScale.
func tableScale(columns, fit int) float64 {
	if fit <= 0 || columns <= fit {
		return 1
	}
	scale := math.Floor(float64(fit)/float64(columns)*100) / 100
	return math.Max(scale, MinTableScale)
}

func footerTemplate(title string) string {
	return `<div style="font-size:8px;color:#666;width:100%;margin:0 0.4in;display:flex;justify-content:space-between">` +
		`<span>` + html.EscapeString(title) + `</span>` +
		`<span><span class="pageNumber"></span> / <span class="totalPages"></span></span></div>`
}

func parseLengthInches(value string) (float64, error) {
	m := lengthPattern.FindStringSubmatch(strings.ToLower(value))
	if m == nil {
		return 0, export.NewError(export.KindValidation, fmt.Sprintf("invalid pdf length %q", value), nil)
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, export.NewError(export.KindValidation, fmt.Sprintf("invalid pdf length %q", value), err)
	}
	perInch := map[string]float64{"": 1, "in": 1, "cm": 2.54, "mm": 25.4, "pt": 72, "px": 96}[m[2]]
	return amount / perInch, nil
}

// chromeFlags turns "--name=value" and "--name" args into allocator flags.
func chromeFlags(args []string) []chromedp.ExecAllocatorOption {
	var flags []chromedp.ExecAllocatorOption
	for _, arg := range args {
		arg = strings.TrimPrefix(strings.TrimSpace(arg), "--")
		if arg == "" {
			continue
		}
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			flags = append(flags, chromedp.Flag(name, value))
		} else {
			flags = append(flags, chromedp.Flag(name, true))
		}
	}
	return flags
}

func boolPtr(value bool) *bool {
	return &value
}
