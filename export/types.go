package export

import (
	"context"
	"io"
	"time"
)

// Format is the export output format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatXLSX     Format = "xlsx"
	FormatTemplate Format = "template"
	FormatPDF      Format = "pdf"
	FormatSQLite   Format = "sqlite"
)

// DefaultFilename is the base name used for every download.
const DefaultFilename = "table_data"

// Column types inferred from fetched records.
const (
	ColumnTypeString = "string"
	ColumnTypeNumber = "number"
	ColumnTypeBool   = "bool"
	ColumnTypeJSON   = "json"
)

// Column defines a column in the export schema.
type Column struct {
	Name   string
	Label  string
	Type   string
	Format ColumnFormat
}

// ColumnFormat provides renderer-specific formatting hints.
type ColumnFormat struct {
	Layout string
	Number string
	Excel  string
}

// Schema defines the columns for a dataset.
type Schema struct {
	Columns []Column
}

// ColumnNames returns the column names in schema order.
func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// Row is a column-aligned record.
type Row []any

// RowSource provides row iterators for exports.
type RowSource interface {
	Open(ctx context.Context, req ExportRequest) (RowIterator, Schema, error)
}

// RowIterator streams rows.
type RowIterator interface {
	Next(ctx context.Context) (Row, error)
	Close() error
}

// Renderer writes rows to the destination.
type Renderer interface {
	Render(ctx context.Context, schema Schema, rows RowIterator, w io.Writer, opts RenderOptions) (RenderStats, error)
}

// RenderStats capture renderer output.
type RenderStats struct {
	Rows  int64
	Bytes int64
}

// ExportRequest captures an export request.
type ExportRequest struct {
	Format        Format
	Filename      string
	Source        string
	Schema        Schema
	Rows          RowIterator
	RowSource     RowSource
	MaxBytes      int64
	MaxDuration   time.Duration
	Output        io.Writer
	RenderOptions RenderOptions
}

// ExportResult captures a completed export.
type ExportResult struct {
	ID          string
	Format      Format
	Rows        int64
	Bytes       int64
	Filename    string
	ContentType string
}

// CSVQuoteMode selects how CSV fields are escaped.
type CSVQuoteMode string

const (
	// CSVQuoteMinimal quotes fields holding the delimiter, a quote or a line break.
	CSVQuoteMinimal CSVQuoteMode = "minimal"
	// CSVQuoteNone joins raw values. A value holding the delimiter shifts columns.
	CSVQuoteNone CSVQuoteMode = "none"
)

// CSVOptions configures CSV output.
type CSVOptions struct {
	IncludeHeaders  bool
	HeadersSet      bool
	Delimiter       rune
	Quote           CSVQuoteMode
	TrailingNewline bool
}

// JSONOptions configures JSON output.
type JSONOptions struct {
	Indent string
}

// TemplateStrategy selects template rendering behavior.
type TemplateStrategy string

const (
	TemplateStrategyBuffered TemplateStrategy = "buffered"
)

// TemplateOptions configures template rendering.
type TemplateOptions struct {
	Strategy     TemplateStrategy
	MaxRows      int
	TemplateName string
	Title        string
	Source       string
	GeneratedAt  time.Time
	Data         map[string]any
}

// XLSXOptions configures XLSX output.
type XLSXOptions struct {
	IncludeHeaders bool
	HeadersSet     bool
	SheetName      string
	MaxRows        int
	MaxBytes       int64
}

// PDFExternalAssetsPolicy controls how external assets are handled in PDF rendering.
type PDFExternalAssetsPolicy string

const (
	PDFExternalAssetsUnspecified PDFExternalAssetsPolicy = ""
	PDFExternalAssetsAllow       PDFExternalAssetsPolicy = "allow"
	PDFExternalAssetsBlock       PDFExternalAssetsPolicy = "block"
)

// PDFOptions configures PDF output. Empty fields fall back to the engine's
// defaults.
type PDFOptions struct {
	PageSize string
	// Landscape nil lets the renderer choose by column count.
	Landscape *bool
	// Scale zero lets the engine fit wide tables.
	Scale        float64
	MarginTop    string
	MarginBottom string
	MarginLeft   string
	MarginRight  string
	// PageNumbers adds a "title  page/total" footer to every page.
	PageNumbers          *bool
	ExternalAssetsPolicy PDFExternalAssetsPolicy
}

// SQLiteOptions configures SQLite output.
type SQLiteOptions struct {
	TableName string
}

// FormatOptions configures timezone formatting.
type FormatOptions struct {
	Timezone string
}

// RenderOptions configures renderer behavior.
type RenderOptions struct {
	CSV      CSVOptions
	JSON     JSONOptions
	Template TemplateOptions
	XLSX     XLSXOptions
	PDF      PDFOptions
	SQLite   SQLiteOptions
	Format   FormatOptions
}

// Logger provides logging hooks.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Errorf(format string, args ...any)
}

// MetricsEvent describes lifecycle metrics.
type MetricsEvent struct {
	Name      string
	ExportID  string
	Source    string
	Format    Format
	Rows      int64
	Bytes     int64
	Duration  time.Duration
	ErrorKind ErrorKind
	Timestamp time.Time
}

// MetricsHook emits metrics-friendly lifecycle observations.
type MetricsHook interface {
	Emit(ctx context.Context, evt MetricsEvent) error
}

// MetricsHookFunc adapts a function to a MetricsHook.
type MetricsHookFunc func(ctx context.Context, evt MetricsEvent) error

func (f MetricsHookFunc) Emit(ctx context.Context, evt MetricsEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, evt)
}

// NopLogger is a no-op logger.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any) {}
func (NopLogger) Infof(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
