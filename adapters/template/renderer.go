package exporttemplate

import (
	"context"
	"io"
	"time"

	"github.com/goliatone/go-tableview/export"
)

// DefaultTemplateName is rendered when no template name is configured.
const DefaultTemplateName = "table"

// Renderer renders templated HTML exports.
type Renderer struct {
	Enabled      bool
	Templates    TemplateExecutor
	TemplateName string
	Strategy     Strategy
}

// TemplateMeta carries request metadata into templates.
type TemplateMeta struct {
	TemplateName string         `json:"template_name,omitempty"`
	Title        string         `json:"title,omitempty"`
	Source       string         `json:"source,omitempty"`
	Generated    string         `json:"generated,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

// TemplateData is the context passed to templates.
type TemplateData struct {
	Schema   export.Schema `json:"schema"`
	Columns  []string      `json:"columns"`
	Rows     []export.Row  `json:"rows"`
	Cells    [][]string    `json:"cells"`
	RowCount int           `json:"row_count"`
	TemplateMeta
}

// TemplateContext flattens the data into snake_case keys for engines that
// take a map context.
func (d TemplateData) TemplateContext() map[string]any {
	return map[string]any{
		"columns":       d.Columns,
		"rows":          d.Cells,
		"raw_rows":      d.Rows,
		"row_count":     d.RowCount,
		"title":         d.Title,
		"source":        d.Source,
		"generated":     d.Generated,
		"generated_at":  d.GeneratedAt,
		"template_name": d.TemplateName,
		"data":          d.Data,
	}
}

// Render executes a template with the provided rows.
func (r Renderer) Render(ctx context.Context, schema export.Schema, rows export.RowIterator, w io.Writer, opts export.RenderOptions) (export.RenderStats, error) {
	if !r.Enabled {
		return export.RenderStats{}, export.NewError(export.KindNotImpl, "template renderer is disabled", nil)
	}
	if r.Templates == nil {
		return export.RenderStats{}, export.NewError(export.KindValidation, "template renderer requires templates", nil)
	}

	name := opts.Template.TemplateName
	if name == "" {
		name = r.TemplateName
	}
	if name == "" {
		name = DefaultTemplateName
	}

	strategy, err := r.resolveStrategy(opts)
	if err != nil {
		return export.RenderStats{}, err
	}
	return strategy.Render(ctx, r.Templates, name, schema, rows, w, opts)
}

func (r Renderer) resolveStrategy(opts export.RenderOptions) (Strategy, error) {
	if r.Strategy != nil {
		return r.Strategy, nil
	}

	switch opts.Template.Strategy {
	case "", export.TemplateStrategyBuffered:
		return BufferedStrategy{MaxRows: opts.Template.MaxRows}, nil
	default:
		return nil, export.NewError(export.KindValidation, "unknown template strategy", nil)
	}
}
