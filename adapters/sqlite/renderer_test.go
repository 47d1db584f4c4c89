package exportsqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"math"
	"os"
	"testing"

	"github.com/goliatone/go-tableview/export"
	_ "modernc.org/sqlite"
)

type stubIterator struct {
	rows  []export.Row
	index int
}

func (it *stubIterator) Next(ctx context.Context) (export.Row, error) {
	_ = ctx
	if it.index >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.index]
	it.index++
	return row, nil
}

func (it *stubIterator) Close() error { return nil }

func TestRenderer_RendersRecords(t *testing.T) {
	renderer := Renderer{Enabled: true}
	schema := export.Schema{
		Columns: []export.Column{
			{Name: "id", Type: export.ColumnTypeNumber},
			{Name: "name", Type: export.ColumnTypeString},
			{Name: "active", Type: export.ColumnTypeBool},
			{Name: "score", Type: export.ColumnTypeNumber},
			{Name: "tags", Type: export.ColumnTypeJSON},
		},
	}
	iter := &stubIterator{rows: []export.Row{
		{json.Number("1"), "alice", true, json.Number("9.5"), json.RawMessage(`["a","b"]`)},
		{json.Number("2"), nil, false, json.Number("7.25"), json.RawMessage(`{"k":1}`)},
	}}

	buf := &bytes.Buffer{}
	stats, err := renderer.Render(context.Background(), schema, iter, buf, export.RenderOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if stats.Rows != 2 {
		t.Fatalf("expected 2 rows, got %d", stats.Rows)
	}
	if stats.Bytes != int64(buf.Len()) || stats.Bytes == 0 {
		t.Fatalf("expected bytes %d, got %d", buf.Len(), stats.Bytes)
	}

	db := openSQLite(t, buf.Bytes())

	infoRows, err := db.Query(`PRAGMA table_info("table_data")`)
	if err != nil {
		t.Fatalf("table info: %v", err)
	}
	defer infoRows.Close()

	var names, types []string
	for infoRows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultValue sql.NullString
		if err := infoRows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			t.Fatalf("scan table info: %v", err)
		}
		names = append(names, name)
		types = append(types, colType)
	}
	if err := infoRows.Err(); err != nil {
		t.Fatalf("table info rows: %v", err)
	}

	wantNames := []string{"id", "name", "active", "score", "tags"}
	wantTypes := []string{"NUMERIC", "TEXT", "INTEGER", "NUMERIC", "TEXT"}
	if len(names) != len(wantNames) {
		t.Fatalf("expected %d columns, got %d", len(wantNames), len(names))
	}
	for i := range wantNames {
		if names[i] != wantNames[i] || types[i] != wantTypes[i] {
			t.Fatalf("column %d: expected %s %s, got %s %s", i, wantNames[i], wantTypes[i], names[i], types[i])
		}
	}

	rows, err := db.Query(`SELECT id, name, active, score, tags FROM "table_data" ORDER BY id`)
	if err != nil {
		t.Fatalf("select rows: %v", err)
	}
	defer rows.Close()

	type rowData struct {
		id     int64
		name   sql.NullString
		active int64
		score  float64
		tags   string
	}
	var results []rowData
	for rows.Next() {
		var row rowData
		if err := rows.Scan(&row.id, &row.name, &row.active, &row.score, &row.tags); err != nil {
			t.Fatalf("scan row: %v", err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows error: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 result rows, got %d", len(results))
	}
	if results[0].id != 1 || results[0].name.String != "alice" || results[0].active != 1 || results[0].tags != `["a","b"]` {
		t.Fatalf("unexpected first row: %+v", results[0])
	}
	if math.Abs(results[0].score-9.5) > 0.0001 {
		t.Fatalf("unexpected first row score: %v", results[0].score)
	}
	if results[1].name.Valid {
		t.Fatalf("expected null name in second row, got %q", results[1].name.String)
	}
	if results[1].active != 0 || results[1].tags != `{"k":1}` {
		t.Fatalf("unexpected second row: %+v", results[1])
	}
}

func TestRenderer_TableNameFromOptions(t *testing.T) {
	renderer := Renderer{Enabled: true, TableName: "ignored"}
	schema := export.Schema{Columns: []export.Column{{Name: "id", Type: export.ColumnTypeNumber}}}
	buf := &bytes.Buffer{}
	_, err := renderer.Render(context.Background(), schema, &stubIterator{rows: []export.Row{{json.Number("1")}}}, buf, export.RenderOptions{
		SQLite: export.SQLiteOptions{TableName: "2024 users!"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	db := openSQLite(t, buf.Bytes())
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "t_2024_users"`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestRenderer_RejectsCaseCollidingColumns(t *testing.T) {
	renderer := Renderer{Enabled: true}
	schema := export.Schema{Columns: []export.Column{{Name: "id"}, {Name: "ID"}}}
	_, err := renderer.Render(context.Background(), schema, &stubIterator{}, &bytes.Buffer{}, export.RenderOptions{})
	if export.KindFromError(err) != export.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderer_Disabled(t *testing.T) {
	_, err := Renderer{}.Render(context.Background(), export.Schema{}, &stubIterator{}, &bytes.Buffer{}, export.RenderOptions{})
	if export.KindFromError(err) != export.KindNotImpl {
		t.Fatalf("expected not_implemented, got %v", err)
	}
}

func openSQLite(t *testing.T, data []byte) *sql.DB {
	t.Helper()

	file, err := os.CreateTemp(t.TempDir(), "export-*.sqlite")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		t.Fatalf("write temp file: %v", err)
	}
	if err := file.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}

	db, err := sql.Open("sqlite", file.Name())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func TestRenderer_QuotesColumnNames(t *testing.T) {
	renderer := Renderer{Enabled: true}
	schema := export.Schema{Columns: []export.Column{{Name: `first "name"`}, {Name: "select"}}}
	buf := &bytes.Buffer{}
	if _, err := renderer.Render(context.Background(), schema, &stubIterator{rows: []export.Row{{"ada", "x"}}}, buf, export.RenderOptions{}); err != nil {
		t.Fatalf("render: %v", err)
	}

	db := openSQLite(t, buf.Bytes())
	var first, sel string
	if err := db.QueryRow(`SELECT "first ""name""", "select" FROM "table_data"`).Scan(&first, &sel); err != nil {
		t.Fatalf("select: %v", err)
	}
	if first != "ada" || sel != "x" {
		t.Fatalf("unexpected row: %q %q", first, sel)
	}
}
