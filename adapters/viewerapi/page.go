package viewerapi

import (
	"bytes"
	"context"
	"strings"

	exporttemplate "github.com/goliatone/go-tableview/adapters/template"
	"github.com/goliatone/go-tableview/export"
	"github.com/goliatone/go-tableview/viewer"
)

// TableTitle heads the rendered table.
const TableTitle = "Data Table"

// ExportLinks lists the export actions offered on the page.
func (c *Controller) ExportLinks() []ExportLink {
	links := make([]ExportLink, 0, len(c.formats))
	for _, format := range c.formats {
		links = append(links, ExportLink{
			Format: format,
			Label:  formatLabel(format),
			Href:   c.Route("export", string(format)),
		})
	}
	return links
}

// RenderPage renders the viewer page for a snapshot. The table and the export
// actions exist only while a non-empty record set is held; fetch errors are
// not shown.
func (c *Controller) RenderPage(ctx context.Context, snap viewer.Snapshot) ([]byte, error) {
	if c.templates == nil {
		return nil, export.NewError(export.KindInternal, "page templates not configured", nil)
	}

	data := map[string]any{
		"url":             snap.URL,
		"loading":         snap.Loading,
		"has_data":        snap.HasData(),
		"has_rows":        snap.Exportable(),
		"fetch_path":      c.Route("fetch"),
		"refresh_seconds": c.refreshSeconds,
		"exports":         c.ExportLinks(),
		"table":           "",
	}

	if snap.Exportable() {
		table, err := c.renderTable(ctx, snap)
		if err != nil {
			return nil, err
		}
		data["table"] = table
	}

	var buf bytes.Buffer
	if err := c.templates.ExecuteTemplate(&buf, c.pageTemplate, data); err != nil {
		return nil, export.NewError(export.KindInternal, "page template failed", err)
	}
	return buf.Bytes(), nil
}

func (c *Controller) renderTable(ctx context.Context, snap viewer.Snapshot) (string, error) {
	renderer := exporttemplate.Renderer{
		Enabled:      true,
		Templates:    c.templates,
		TemplateName: c.tableTemplate,
	}
	maxRows := len(snap.Records)

	var buf bytes.Buffer
	_, err := renderer.Render(ctx, snap.Records.Schema(), snap.Records.Iterator(), &buf, export.RenderOptions{
		Template: export.TemplateOptions{
			MaxRows:     maxRows,
			Title:       TableTitle,
			Source:      snap.URL,
			GeneratedAt: snap.UpdatedAt,
		},
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatLabel(format export.Format) string {
	switch format {
	case export.FormatTemplate:
		return "HTML"
	case export.FormatSQLite:
		return "SQLite"
	default:
		return strings.ToUpper(string(format))
	}
}
