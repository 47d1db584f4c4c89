package exportpdf

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	exporttemplate "github.com/goliatone/go-tableview/adapters/template"
	exportpongo2 "github.com/goliatone/go-tableview/adapters/template/pongo2"
	"github.com/goliatone/go-tableview/export"
)

// DefaultMaxHTMLBytes guards in-memory HTML buffering before PDF conversion.
const DefaultMaxHTMLBytes int64 = 8 * 1024 * 1024

// DefaultLandscapeColumns is the column count above which NewRenderer
// prints in landscape.
const DefaultLandscapeColumns = 6

// RenderRequest carries the table document and its shape to an engine.
type RenderRequest struct {
	HTML    []byte
	Options export.RenderOptions
	// Columns and Rows describe the table held in HTML.
	Columns int
	Rows    int64
	Title   string
}

// Engine renders HTML content into PDF bytes.
type Engine interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// EngineFunc adapts a function to an Engine.
type EngineFunc func(ctx context.Context, req RenderRequest) ([]byte, error)

func (f EngineFunc) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if f == nil {
		return nil, errors.New("pdf engine func is nil")
	}
	return f(ctx, req)
}

// Renderer converts the HTML table document into PDF output.
type Renderer struct {
	Enabled      bool
	HTMLRenderer export.Renderer
	Engine       Engine
	MaxHTMLBytes int64
	// LandscapeColumns switches to landscape when the table has more columns
	// and the request did not choose an orientation. Zero disables it.
	LandscapeColumns int
}

// NewRenderer returns an enabled renderer whose HTML stage is the embedded
// pongo2 document template.
func NewRenderer(engine Engine) (Renderer, error) {
	executor, err := exportpongo2.NewExecutor()
	if err != nil {
		return Renderer{}, err
	}
	return Renderer{
		Enabled:      true,
		HTMLRenderer: exporttemplate.Renderer{
			Enabled:      true,
			Templates:    executor,
			TemplateName: exportpongo2.TemplateDocument,
		},
		Engine:           engine,
		LandscapeColumns: DefaultLandscapeColumns,
	}, nil
}

// Render renders HTML using the configured HTML renderer and converts it to PDF.
func (r Renderer) Render(ctx context.Context, schema export.Schema, rows export.RowIterator, w io.Writer, opts export.RenderOptions) (export.RenderStats, error) {
	if !r.Enabled {
		return export.RenderStats{}, export.NewError(export.KindNotImpl, "pdf renderer is disabled", nil)
	}
	if r.HTMLRenderer == nil {
		return export.RenderStats{}, export.NewError(export.KindValidation, "pdf renderer requires html renderer", nil)
	}
	if r.Engine == nil {
		return export.RenderStats{}, export.NewError(export.KindValidation, "pdf renderer requires engine", nil)
	}

	htmlOpts := opts
	if htmlOpts.Template.TemplateName == "" {
		htmlOpts.Template.TemplateName = exportpongo2.TemplateDocument
	}
	if opts.PDF.ExternalAssetsPolicy == export.PDFExternalAssetsUnspecified {
		opts.PDF.ExternalAssetsPolicy = export.PDFExternalAssetsBlock
	}
	if opts.PDF.Landscape == nil && r.LandscapeColumns > 0 && len(schema.Columns) > r.LandscapeColumns {
		landscape := true
		opts.PDF.Landscape = &landscape
	}

	buffer := newLimitedBuffer(r.MaxHTMLBytes)
	htmlStats, err := r.HTMLRenderer.Render(ctx, schema, rows, buffer, htmlOpts)
	if err != nil {
		return export.RenderStats{}, err
	}

	pdf, err := r.Engine.Render(ctx, RenderRequest{
		HTML:    buffer.Bytes(),
		Options: opts,
		Columns: len(schema.Columns),
		Rows:    htmlStats.Rows,
		Title:   opts.Template.Title,
	})
	if err != nil {
		return export.RenderStats{}, err
	}

	cw := &countingWriter{w: w}
	if len(pdf) > 0 {
		if _, err := cw.Write(pdf); err != nil {
			return export.RenderStats{Rows: htmlStats.Rows, Bytes: cw.count}, err
		}
	}

	return export.RenderStats{Rows: htmlStats.Rows, Bytes: cw.count}, nil
}

// WKHTMLTOPDFEngine invokes wkhtmltopdf for HTML-to-PDF conversion.
type WKHTMLTOPDFEngine struct {
	Command  string
	Args     []string
	Env      []string
	Timeout  time.Duration
	Defaults export.PDFOptions
}

// Render executes wkhtmltopdf using stdin/stdout for HTML/PDF.
func (e WKHTMLTOPDFEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	cmdPath := strings.TrimSpace(e.Command)
	if cmdPath == "" {
		cmdPath = "wkhtmltopdf"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cmdCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	req.Options.PDF = layerPDFOptions(e.Defaults, req.Options.PDF)
	args := append(wkhtmltopdfArgs(req), e.Args...)
	args = append(args, "-", "-")
	cmd := exec.CommandContext(cmdCtx, cmdPath, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.Stdin = bytes.NewReader(req.HTML)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = "wkhtmltopdf failed"
		}
		return nil, export.NewError(export.KindInternal, message, err)
	}
	if stdout.Len() == 0 {
		return nil, export.NewError(export.KindInternal, "wkhtmltopdf produced no output", nil)
	}
	return stdout.Bytes(), nil
}

// wkhtmltopdfArgs maps the request's page layout onto wkhtmltopdf flags.
// Local file access and JavaScript stay off since cells hold remote data.
func wkhtmltopdfArgs(req RenderRequest) []string {
	opts := req.Options.PDF
	args := []string{"--quiet", "--disable-javascript", "--disable-local-file-access"}

	pageSize := strings.TrimSpace(opts.PageSize)
	if pageSize == "" {
		pageSize = defaultPageSize
	}
	args = append(args, "--page-size", pageSize)
	if opts.Landscape != nil && *opts.Landscape {
		args = append(args, "--orientation", "Landscape")
	}
	for _, margin := range []struct{ flag, value string }{
		{"--margin-top", opts.MarginTop},
		{"--margin-bottom", opts.MarginBottom},
		{"--margin-left", opts.MarginLeft},
		{"--margin-right", opts.MarginRight},
	} {
		if margin.value != "" {
			args = append(args, margin.flag, strings.ReplaceAll(margin.value, " ", ""))
		}
	}
	if opts.PageNumbers != nil && *opts.PageNumbers {
		args = append(args, "--footer-font-size", "8", "--footer-right", "[page] / [topage]")
		if req.Title != "" {
			args = append(args, "--footer-left", req.Title)
		}
	}
	return args
}

type limitedBuffer struct {
	buf     bytes.Buffer
	maxSize int64
}

func newLimitedBuffer(maxSize int64) *limitedBuffer {
	if maxSize <= 0 {
		maxSize = DefaultMaxHTMLBytes
	}
	return &limitedBuffer{maxSize: maxSize}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if b.maxSize > 0 && int64(b.buf.Len()+len(p)) > b.maxSize {
		return 0, export.NewError(export.KindValidation, "pdf renderer max html bytes exceeded", nil)
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
