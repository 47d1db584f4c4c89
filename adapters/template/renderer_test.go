package exporttemplate

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"testing"

	"github.com/goliatone/go-tableview/export"
)

var twoColumns = export.Schema{Columns: []export.Column{{Name: "id"}, {Name: "name"}}}

func TestRenderer_Disabled(t *testing.T) {
	renderer := Renderer{}
	buf := &bytes.Buffer{}
	_, err := renderer.Render(context.Background(), export.Schema{}, export.NewSliceIterator(nil), buf, export.RenderOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if export.KindFromError(err) != export.KindNotImpl {
		t.Fatalf("expected not_implemented, got %v", export.KindFromError(err))
	}
}

func TestRenderer_MissingTemplates(t *testing.T) {
	renderer := Renderer{Enabled: true}
	buf := &bytes.Buffer{}
	_, err := renderer.Render(context.Background(), export.Schema{}, export.NewSliceIterator(nil), buf, export.RenderOptions{})
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", export.KindFromError(err))
	}
}

func TestRenderer_BufferedMaxRows(t *testing.T) {
	tmpl := template.Must(template.New("table").Parse("{{range .Cells}}{{index . 0}}{{end}}"))
	renderer := Renderer{
		Enabled:   true,
		Templates: tmpl,
		Strategy:  BufferedStrategy{MaxRows: 1},
	}
	_, err := renderer.Render(context.Background(), twoColumns, export.NewSliceIterator([]export.Row{
		{"1", "a"}, {"2", "b"},
	}), &bytes.Buffer{}, export.RenderOptions{})
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderer_OptionsBufferedMaxRows(t *testing.T) {
	tmpl := template.Must(template.New("table").Parse("{{range .Cells}}{{index . 0}}{{end}}"))
	renderer := Renderer{Enabled: true, Templates: tmpl}
	_, err := renderer.Render(context.Background(), twoColumns, export.NewSliceIterator([]export.Row{
		{"1", "a"}, {"2", "b"},
	}), &bytes.Buffer{}, export.RenderOptions{
		Template: export.TemplateOptions{MaxRows: 1},
	})
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderer_OptionsUnknownStrategy(t *testing.T) {
	tmpl := template.Must(template.New("table").Parse(""))
	renderer := Renderer{Enabled: true, Templates: tmpl}
	_, err := renderer.Render(context.Background(), twoColumns, export.NewSliceIterator(nil), &bytes.Buffer{}, export.RenderOptions{
		Template: export.TemplateOptions{Strategy: "streaming"},
	})
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderer_BufferedRendersCells(t *testing.T) {
	tmpl := template.Must(template.New("table").Parse("{{.Title}}:{{range .Cells}}{{index . 0}}={{index . 1}};{{end}}{{.RowCount}}"))
	renderer := Renderer{Enabled: true, Templates: tmpl}
	buf := &bytes.Buffer{}
	stats, err := renderer.Render(context.Background(), twoColumns, export.NewSliceIterator([]export.Row{
		{json.Number("1"), true}, {json.Number("2"), nil},
	}), buf, export.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if stats.Rows != 2 || stats.Bytes != int64(buf.Len()) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := buf.String(); got != "Data Table:1=true;2=;2" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestTemplateContextKeys(t *testing.T) {
	data, err := BuildTemplateData(twoColumns, []export.Row{{"1", "a"}}, export.RenderOptions{
		Template: export.TemplateOptions{Title: "Users", Source: "https://x"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := data.TemplateContext()
	if ctx["title"] != "Users" || ctx["source"] != "https://x" || ctx["row_count"] != 1 {
		t.Fatalf("unexpected context %v", ctx)
	}
	rows, ok := ctx["rows"].([][]string)
	if !ok || rows[0][1] != "a" {
		t.Fatalf("expected formatted rows, got %#v", ctx["rows"])
	}
}
