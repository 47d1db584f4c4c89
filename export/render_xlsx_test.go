package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestXLSXRenderer_WritesRows(t *testing.T) {
	buf := &bytes.Buffer{}
	iter := &stubIterator{rows: []Row{
		{json.Number("1"), "alice", json.Number("12.5"), true, json.RawMessage(`{"a":1}`)},
	}}

	renderer := XLSXRenderer{}
	schema := Schema{Columns: []Column{
		{Name: "id", Type: ColumnTypeNumber},
		{Name: "name", Label: "Full Name", Type: ColumnTypeString},
		{Name: "amount", Type: ColumnTypeNumber},
		{Name: "active", Type: ColumnTypeBool},
		{Name: "meta", Type: ColumnTypeJSON},
	}}

	stats, err := renderer.Render(context.Background(), schema, iter, buf, RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if stats.Rows != 1 {
		t.Fatalf("expected 1 row, got %d", stats.Rows)
	}
	if stats.Bytes == 0 {
		t.Fatalf("expected non-zero bytes")
	}

	file, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer file.Close()

	sheet := file.GetSheetName(0)
	if sheet != "Data Table" {
		t.Fatalf("expected default sheet name, got %q", sheet)
	}
	rows, err := file.GetRows(sheet)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + data row, got %d", len(rows))
	}
	if rows[0][1] != "Full Name" {
		t.Fatalf("expected header label, got %v", rows[0])
	}
	if rows[1][1] != "alice" {
		t.Fatalf("expected name cell, got %v", rows[1])
	}
	if rows[1][4] != `{"a":1}` {
		t.Fatalf("expected nested value as json text, got %q", rows[1][4])
	}

	cellType, err := file.GetCellType(sheet, "C2")
	if err != nil {
		t.Fatalf("cell type: %v", err)
	}
	if cellType != excelize.CellTypeNumber && cellType != excelize.CellTypeUnset {
		t.Fatalf("expected numeric amount cell, got %v", cellType)
	}
}

func TestXLSXRenderer_MaxRows(t *testing.T) {
	iter := &stubIterator{rows: []Row{{"a"}, {"b"}}}
	schema := Schema{Columns: []Column{{Name: "v"}}}

	_, err := XLSXRenderer{}.Render(context.Background(), schema, iter, &bytes.Buffer{}, RenderOptions{
		XLSX: XLSXOptions{MaxRows: 1},
	})
	if KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
