package exportpdf

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-tableview/export"
)

func chromeBinaryPath(t *testing.T) string {
	t.Helper()

	chromePath := os.Getenv("CHROME_BIN")
	if chromePath == "" {
		for _, candidate := range []string{"google-chrome", "chromium", "chromium-browser"} {
			if path, err := exec.LookPath(candidate); err == nil {
				chromePath = path
				break
			}
		}
	}
	if chromePath == "" {
		t.Skip("chromium binary not found; set CHROME_BIN to run this test")
	}
	return chromePath
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.0001
}

func TestParseLengthInches(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{input: "1in", want: 1},
		{input: "25.4mm", want: 1},
		{input: "2.54cm", want: 1},
		{input: "72pt", want: 1},
		{input: "96px", want: 1},
		{input: "2", want: 2},
		{input: " 10 MM ", want: 10 / 25.4},
	}

	for _, tc := range tests {
		got, err := parseLengthInches(tc.input)
		if err != nil {
			t.Fatalf("parseLengthInches(%q): %v", tc.input, err)
		}
		if !approx(got, tc.want) {
			t.Fatalf("parseLengthInches(%q): expected %f, got %f", tc.input, tc.want, got)
		}
	}
}

func TestTableScale(t *testing.T) {
	tests := []struct {
		columns, fit int
		want         float64
	}{
		{columns: 1, fit: 10, want: 1},
		{columns: 10, fit: 10, want: 1},
		{columns: 12, fit: 10, want: 0.83},
		{columns: 15, fit: 10, want: 0.66},
		{columns: 40, fit: 10, want: MinTableScale},
		{columns: 40, fit: 0, want: 1},
	}
	for _, tc := range tests {
		if got := tableScale(tc.columns, tc.fit); !approx(got, tc.want) {
			t.Fatalf("tableScale(%d, %d): expected %v, got %v", tc.columns, tc.fit, tc.want, got)
		}
	}
}

func TestChromiumEngine_PrintParamsDefaults(t *testing.T) {
	engine := &ChromiumEngine{}
	opts := engine.options(export.PDFOptions{})
	params, err := engine.printParams(opts, RenderRequest{Columns: 3, Rows: 5, Title: "users"})
	if err != nil {
		t.Fatalf("printParams: %v", err)
	}
	if !approx(params.PaperWidth, 8.27) || !approx(params.PaperHeight, 11.69) {
		t.Fatalf("expected A4 paper, got %fx%f", params.PaperWidth, params.PaperHeight)
	}
	if params.Landscape {
		t.Fatalf("expected portrait by default")
	}
	if !approx(params.Scale, 1) {
		t.Fatalf("expected full scale for a narrow table, got %v", params.Scale)
	}
	for name, margin := range map[string]float64{
		"top": params.MarginTop, "bottom": params.MarginBottom,
		"left": params.MarginLeft, "right": params.MarginRight,
	} {
		if !approx(margin, defaultMarginInches) {
			t.Fatalf("expected default %s margin %v, got %v", name, defaultMarginInches, margin)
		}
	}
	if !params.PrintBackground {
		t.Fatalf("expected backgrounds so striped rows print")
	}
	if params.DisplayHeaderFooter {
		t.Fatalf("expected no footer without page numbers")
	}
}

func TestChromiumEngine_WideTableIsScaledToFit(t *testing.T) {
	engine := &ChromiumEngine{FitColumns: 8}
	params, err := engine.printParams(engine.options(export.PDFOptions{}), RenderRequest{Columns: 16})
	if err != nil {
		t.Fatalf("printParams: %v", err)
	}
	if !approx(params.Scale, MinTableScale) {
		t.Fatalf("expected scale %v, got %v", MinTableScale, params.Scale)
	}

	explicit, err := engine.printParams(engine.options(export.PDFOptions{Scale: 1.2}), RenderRequest{Columns: 16})
	if err != nil {
		t.Fatalf("printParams: %v", err)
	}
	if !approx(explicit.Scale, 1.2) {
		t.Fatalf("expected explicit scale to win, got %v", explicit.Scale)
	}
}

func TestChromiumEngine_PageNumbersFooter(t *testing.T) {
	engine := &ChromiumEngine{Defaults: export.PDFOptions{PageNumbers: boolPtr(true)}}
	params, err := engine.printParams(engine.options(export.PDFOptions{}), RenderRequest{Columns: 2, Title: "Q3 <sales>"})
	if err != nil {
		t.Fatalf("printParams: %v", err)
	}
	if !params.DisplayHeaderFooter {
		t.Fatalf("expected header/footer display")
	}
	if !strings.Contains(params.FooterTemplate, "Q3 &lt;sales&gt;") {
		t.Fatalf("expected escaped title in footer, got %q", params.FooterTemplate)
	}
	if !strings.Contains(params.FooterTemplate, `class="pageNumber"`) || !strings.Contains(params.FooterTemplate, `class="totalPages"`) {
		t.Fatalf("expected page counters in footer, got %q", params.FooterTemplate)
	}
	if !approx(params.MarginBottom, footerMarginInches) {
		t.Fatalf("expected footer margin %v, got %v", footerMarginInches, params.MarginBottom)
	}

	off, err := engine.printParams(engine.options(export.PDFOptions{PageNumbers: boolPtr(false)}), RenderRequest{Columns: 2})
	if err != nil {
		t.Fatalf("printParams: %v", err)
	}
	if off.DisplayHeaderFooter {
		t.Fatalf("expected request to turn page numbers off")
	}
}

func TestChromiumEngine_OptionsOverlayDefaults(t *testing.T) {
	engine := &ChromiumEngine{Defaults: export.PDFOptions{
		PageSize:  "Letter",
		MarginTop: "1in",
	}}

	opts := engine.options(export.PDFOptions{Landscape: boolPtr(true), MarginLeft: "10mm"})
	if opts.PageSize != "Letter" || opts.MarginTop != "1in" {
		t.Fatalf("expected engine defaults to be kept, got %+v", opts)
	}
	if opts.MarginLeft != "10mm" {
		t.Fatalf("expected request margin, got %q", opts.MarginLeft)
	}
	if opts.Landscape == nil || !*opts.Landscape {
		t.Fatalf("expected landscape override to be kept")
	}
	if opts.ExternalAssetsPolicy != export.PDFExternalAssetsBlock {
		t.Fatalf("expected blocked assets by default, got %q", opts.ExternalAssetsPolicy)
	}

	params, err := engine.printParams(opts, RenderRequest{Columns: 1})
	if err != nil {
		t.Fatalf("printParams: %v", err)
	}
	if !params.Landscape || !approx(params.PaperWidth, 8.5) || !approx(params.MarginTop, 1) {
		t.Fatalf("unexpected params: %+v", params)
	}

	bare := (&ChromiumEngine{}).options(export.PDFOptions{})
	if bare.PageSize != defaultPageSize {
		t.Fatalf("expected %s default, got %q", defaultPageSize, bare.PageSize)
	}
}

func TestChromiumEngine_PrintParamsRejectsBadInput(t *testing.T) {
	engine := &ChromiumEngine{}
	cases := []export.PDFOptions{
		{Scale: 3},
		{PageSize: "B9"},
		{MarginLeft: "1furlong"},
		{MarginRight: "abc"},
	}
	for _, opts := range cases {
		_, err := engine.printParams(engine.options(opts), RenderRequest{Columns: 1})
		if export.KindFromError(err) != export.KindValidation {
			t.Fatalf("expected validation error for %+v, got %v", opts, err)
		}
	}
}

func TestChromiumEngine_RenderRejectsBadOptionsBeforeLaunch(t *testing.T) {
	engine := &ChromiumEngine{BrowserPath: "/nonexistent/chrome"}
	_, err := engine.Render(context.Background(), RenderRequest{
		HTML:    []byte("<html></html>"),
		Options: export.RenderOptions{PDF: export.PDFOptions{PageSize: "B9"}},
	})
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if engine.browserCtx != nil {
		t.Fatalf("expected browser not to start")
	}
}

func TestChromeFlags(t *testing.T) {
	if got := chromeFlags([]string{"", "  "}); len(got) != 0 {
		t.Fatalf("expected blank args to be skipped, got %d", len(got))
	}
	if got := chromeFlags([]string{"--no-sandbox", "--window-size=1280,800", "disable-gpu"}); len(got) != 3 {
		t.Fatalf("expected 3 flags, got %d", len(got))
	}
}

func TestWKHTMLTOPDFArgs(t *testing.T) {
	defaults := wkhtmltopdfArgs(RenderRequest{})
	if !slices.Contains(defaults, "--disable-local-file-access") {
		t.Fatalf("expected local file access disabled, got %v", defaults)
	}
	if i := slices.Index(defaults, "--page-size"); i < 0 || defaults[i+1] != "A4" {
		t.Fatalf("expected A4 default, got %v", defaults)
	}
	if slices.Contains(defaults, "--footer-right") {
		t.Fatalf("expected no footer by default, got %v", defaults)
	}

	args := wkhtmltopdfArgs(RenderRequest{
		Title: "users",
		Options: export.RenderOptions{PDF: export.PDFOptions{
			PageSize:    "Letter",
			Landscape:   boolPtr(true),
			MarginTop:   "10 mm",
			PageNumbers: boolPtr(true),
		}},
	})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--page-size Letter",
		"--orientation Landscape",
		"--margin-top 10mm",
		"--footer-right [page] / [topage]",
		"--footer-left users",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
}

func TestChromiumEngine_Render_Smoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium smoke test in short mode")
	}

	engine := &ChromiumEngine{
		BrowserPath: chromeBinaryPath(t),
		Headless:    true,
		Timeout:     10 * time.Second,
		Args:        []string{"--no-sandbox", "--disable-dev-shm-usage"},
		Defaults:    export.PDFOptions{PageNumbers: boolPtr(true)},
	}
	t.Cleanup(func() {
		_ = engine.Close()
	})

	for i := 0; i < 2; i++ {
		pdf, err := engine.Render(context.Background(), RenderRequest{
			HTML:    []byte("<html><body><table><tr><th>id</th></tr><tr><td>1</td></tr></table></body></html>"),
			Columns: 1,
			Rows:    1,
			Title:   "users",
		})
		if err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
		if len(pdf) < 4 || string(pdf[:4]) != "%PDF" {
			t.Fatalf("expected pdf output, got %q", pdf)
		}
	}
}

func TestChromiumEngine_Render_BlocksExternalAssets(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping chromium external asset test in short mode")
	}

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	engine := &ChromiumEngine{
		BrowserPath: chromeBinaryPath(t),
		Headless:    true,
		Timeout:     10 * time.Second,
		Args:        []string{"--no-sandbox", "--disable-dev-shm-usage"},
	}
	t.Cleanup(func() {
		_ = engine.Close()
	})

	html := []byte(`<html><body><table><tr><td><img src="` + server.URL + `/asset.png"></td></tr></table></body></html>`)
	if _, err := engine.Render(context.Background(), RenderRequest{HTML: html, Columns: 1, Rows: 1}); err != nil {
		t.Fatalf("render: %v", err)
	}

	time.Sleep(500 * time.Millisecond)

	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected external assets to be blocked, got %d request(s)", hits)
	}
}
