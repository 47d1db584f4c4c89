package exporttemplate

import (
	"context"
	"io"
	"time"

	"github.com/goliatone/go-tableview/export"
)

// DefaultMaxBufferedRows bounds template buffering by default.
const DefaultMaxBufferedRows = 10000

// TemplateExecutor executes a named template with data.
type TemplateExecutor interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// Strategy renders template output.
type Strategy interface {
	Render(ctx context.Context, tmpl TemplateExecutor, name string, schema export.Schema, rows export.RowIterator, w io.Writer, opts export.RenderOptions) (export.RenderStats, error)
}

// BufferedStrategy collects rows in memory before executing the template.
// MaxRows controls the maximum number of rows buffered before returning an error.
type BufferedStrategy struct {
	MaxRows int
}

func (s BufferedStrategy) Render(ctx context.Context, tmpl TemplateExecutor, name string, schema export.Schema, rows export.RowIterator, w io.Writer, opts export.RenderOptions) (export.RenderStats, error) {
	maxRows := s.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxBufferedRows
	}

	collected, err := export.CollectRows(ctx, rows, len(schema.Columns), maxRows)
	if err != nil {
		if export.KindFromError(err) == export.KindValidation {
			return export.RenderStats{}, export.NewError(export.KindValidation, "template renderer: "+err.Error(), nil)
		}
		return export.RenderStats{}, err
	}

	data, err := BuildTemplateData(schema, collected, opts)
	if err != nil {
		return export.RenderStats{}, err
	}

	cw := &countingWriter{w: w}
	if err := tmpl.ExecuteTemplate(cw, name, data); err != nil {
		return export.RenderStats{}, err
	}

	return export.RenderStats{
		Rows:  int64(len(collected)),
		Bytes: cw.count,
	}, nil
}

// BuildTemplateData formats rows into the template context.
func BuildTemplateData(schema export.Schema, rows []export.Row, opts export.RenderOptions) (TemplateData, error) {
	data := TemplateData{
		Schema:       schema,
		Columns:      templateColumns(schema),
		Rows:         rows,
		Cells:        make([][]string, len(rows)),
		RowCount:     len(rows),
		TemplateMeta: templateMetaFromOptions(opts),
	}
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, value := range row {
			text, err := export.FormatText(schema.Columns[j], value, opts.Format)
			if err != nil {
				return TemplateData{}, err
			}
			cells[j] = text
		}
		data.Cells[i] = cells
	}
	return data, nil
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

func templateColumns(schema export.Schema) []string {
	columns := make([]string, 0, len(schema.Columns))
	for _, col := range schema.Columns {
		label := col.Label
		if label == "" {
			label = col.Name
		}
		columns = append(columns, label)
	}
	return columns
}

func templateMetaFromOptions(opts export.RenderOptions) TemplateMeta {
	meta := TemplateMeta{
		TemplateName: opts.Template.TemplateName,
		Title:        opts.Template.Title,
		Source:       opts.Template.Source,
		GeneratedAt:  opts.Template.GeneratedAt,
		Data:         opts.Template.Data,
	}
	if meta.Title == "" {
		meta.Title = "Data Table"
	}
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now()
	}
	meta.Generated = meta.GeneratedAt.Format(time.RFC3339)
	return meta
}
