package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

var sampleSchema = Schema{Columns: []Column{{Name: "id"}, {Name: "name"}, {Name: "value"}}}

func sampleRows() []Row {
	return []Row{
		{json.Number("1"), "a", "x"},
		{json.Number("2"), "b", "y"},
	}
}

func TestCSVRenderer_HeaderAndRowsWithoutTrailingNewline(t *testing.T) {
	buf := &bytes.Buffer{}
	stats, err := CSVRenderer{}.Render(context.Background(), sampleSchema, NewSliceIterator(sampleRows()), buf, RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "id,name,value\n1,a,x\n2,b,y" {
		t.Fatalf("unexpected csv %q", got)
	}
	if stats.Rows != 2 || stats.Bytes != int64(buf.Len()) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCSVRenderer_QuotesSpecialCharacters(t *testing.T) {
	rows := []Row{{json.Number("1"), "Smith, John", "say \"hi\"\nbye"}}
	buf := &bytes.Buffer{}
	if _, err := (CSVRenderer{}).Render(context.Background(), sampleSchema, NewSliceIterator(rows), buf, RenderOptions{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "id,name,value\n1,\"Smith, John\",\"say \"\"hi\"\"\nbye\""
	if got := buf.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

// Minimal quoting also wraps a value that starts with whitespace and the
// lone `\.` field, both of which some readers would otherwise mangle.
// Trailing whitespace is left bare.
func TestCSVRenderer_QuotesLeadingSpaceAndBackslashDot(t *testing.T) {
	rows := []Row{{json.Number("1"), " a", `\.`}, {json.Number("2"), "\tb", "c "}}
	buf := &bytes.Buffer{}
	if _, err := (CSVRenderer{}).Render(context.Background(), sampleSchema, NewSliceIterator(rows), buf, RenderOptions{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "id,name,value\n1,\" a\",\"\\.\"\n2,\"\tb\",c "
	if got := buf.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

// Unquoted output keeps the raw join: a comma inside a value shifts the
// columns that follow it.
func TestCSVRenderer_QuoteNoneShiftsColumns(t *testing.T) {
	rows := []Row{{json.Number("1"), "Smith, John", "x"}}
	buf := &bytes.Buffer{}
	_, err := CSVRenderer{}.Render(context.Background(), sampleSchema, NewSliceIterator(rows), buf, RenderOptions{
		CSV: CSVOptions{Quote: CSVQuoteNone},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "id,name,value\n1,Smith, John,x" {
		t.Fatalf("unexpected csv %q", got)
	}
}

func TestCSVRenderer_CellText(t *testing.T) {
	schema := Schema{Columns: []Column{{Name: "n"}, {Name: "b"}, {Name: "z"}, {Name: "j"}, {Name: "f"}}}
	rows := []Row{{json.Number("1.50"), true, nil, json.RawMessage(`[1,2]`), 2.25}}
	buf := &bytes.Buffer{}
	_, err := CSVRenderer{}.Render(context.Background(), schema, NewSliceIterator(rows), buf, RenderOptions{
		CSV: CSVOptions{HeadersSet: true, IncludeHeaders: false},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "1.50,true,,\"[1,2]\",2.25" {
		t.Fatalf("unexpected csv %q", got)
	}
}

func TestCSVRenderer_DelimiterAndTrailingNewline(t *testing.T) {
	buf := &bytes.Buffer{}
	_, err := CSVRenderer{}.Render(context.Background(), sampleSchema, NewSliceIterator(sampleRows()), buf, RenderOptions{
		CSV: CSVOptions{Delimiter: ';', TrailingNewline: true},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "id;name;value\n1;a;x\n2;b;y\n" {
		t.Fatalf("unexpected csv %q", got)
	}
}

func TestCSVRenderer_RowLengthMismatch(t *testing.T) {
	rows := []Row{{"only-one"}}
	_, err := CSVRenderer{}.Render(context.Background(), sampleSchema, NewSliceIterator(rows), &bytes.Buffer{}, RenderOptions{})
	if KindFromError(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCSVRenderer_TimezoneFormatting(t *testing.T) {
	buf := &bytes.Buffer{}
	iter := &stubIterator{rows: []Row{
		{time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)},
	}}

	schema := Schema{Columns: []Column{{Name: "created_at"}}}
	_, err := CSVRenderer{}.Render(context.Background(), schema, iter, buf, RenderOptions{
		CSV:    CSVOptions{HeadersSet: true},
		Format: FormatOptions{Timezone: "America/New_York"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != "2024-01-02T10:04:05-05:00" {
		t.Fatalf("expected timezone offset in output, got %q", got)
	}
}

func TestJSONRenderer_PreservesColumnOrder(t *testing.T) {
	schema := Schema{Columns: []Column{{Name: "z"}, {Name: "a"}, {Name: "m"}}}
	rows := []Row{{json.Number("1"), nil, json.RawMessage(`{"k":true}`)}}
	buf := &bytes.Buffer{}
	if _, err := (JSONRenderer{}).Render(context.Background(), schema, NewSliceIterator(rows), buf, RenderOptions{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if got := buf.String(); got != `[{"z":1,"a":null,"m":{"k":true}}]` {
		t.Fatalf("unexpected json %q", got)
	}
}

func TestJSONRenderer_EmptyAndIndented(t *testing.T) {
	buf := &bytes.Buffer{}
	if _, err := (JSONRenderer{}).Render(context.Background(), sampleSchema, NewSliceIterator(nil), buf, RenderOptions{}); err != nil {
		t.Fatalf("render: %v", err)
	}
	if buf.String() != "[]" {
		t.Fatalf("expected empty array, got %q", buf.String())
	}

	buf.Reset()
	rows := []Row{{json.Number("1"), "a", "x"}}
	_, err := JSONRenderer{}.Render(context.Background(), sampleSchema, NewSliceIterator(rows), buf, RenderOptions{
		JSON: JSONOptions{Indent: "  "},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("indented output is not valid json: %v\n%s", err, buf.String())
	}
	if len(decoded) != 1 || decoded[0]["name"] != "a" {
		t.Fatalf("unexpected decoded rows %v", decoded)
	}
}
