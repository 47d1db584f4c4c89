package exportsqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goliatone/go-tableview/export"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// DefaultTableName is used when neither the renderer nor the request names a table.
const DefaultTableName = export.DefaultFilename

// Renderer writes rows into a SQLite database file.
type Renderer struct {
	Enabled   bool
	TableName string
}

// Render buffers rows into a temp SQLite database and streams it to w.
func (r Renderer) Render(ctx context.Context, schema export.Schema, rows export.RowIterator, w io.Writer, opts export.RenderOptions) (export.RenderStats, error) {
	if !r.Enabled {
		return export.RenderStats{}, export.NewError(export.KindNotImpl, "sqlite renderer is disabled", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tableName := strings.TrimSpace(opts.SQLite.TableName)
	if tableName == "" {
		tableName = strings.TrimSpace(r.TableName)
	}
	spec, err := buildTableSpec(schema, sanitizeIdentifier(tableName, DefaultTableName))
	if err != nil {
		return export.RenderStats{}, err
	}

	tempFile, err := os.CreateTemp("", "tableview-*.sqlite")
	if err != nil {
		return export.RenderStats{}, export.NewError(export.KindInternal, "sqlite temp file create failed", err)
	}
	path := tempFile.Name()
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(path)
		return export.RenderStats{}, export.NewError(export.KindInternal, "sqlite temp file close failed", err)
	}
	defer func() {
		_ = os.Remove(path)
	}()

	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return export.RenderStats{}, export.NewError(export.KindInternal, "sqlite open failed", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())

	stats, err := writeRows(ctx, db, spec, rows, opts.Format)
	if err != nil {
		_ = db.Close()
		return stats, err
	}
	if err := db.Close(); err != nil {
		return stats, export.NewError(export.KindInternal, "sqlite close failed", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return stats, export.NewError(export.KindInternal, "sqlite temp file open failed", err)
	}
	defer func() {
		_ = file.Close()
	}()

	cw := &countingWriter{w: w}
	if _, err := io.Copy(cw, file); err != nil {
		return export.RenderStats{Rows: stats.Rows, Bytes: cw.count}, err
	}
	stats.Bytes = cw.count
	return stats, nil
}

type tableSpec struct {
	table   string
	columns []export.Column
	create  string
	args    []any
}

func buildTableSpec(schema export.Schema, tableName string) (tableSpec, error) {
	if len(schema.Columns) == 0 {
		return tableSpec{}, export.NewError(export.KindValidation, "schema has no columns", nil)
	}

	// SQLite identifiers are case-insensitive, JSON keys are not.
	seen := make(map[string]struct{}, len(schema.Columns))
	defs := make([]string, len(schema.Columns))
	args := []any{bun.Ident(tableName)}

	for i, col := range schema.Columns {
		if col.Name == "" {
			return tableSpec{}, export.NewError(export.KindValidation, "column name is required", nil)
		}
		key := strings.ToLower(col.Name)
		if _, ok := seen[key]; ok {
			return tableSpec{}, export.NewError(export.KindValidation, fmt.Sprintf("column %q collides with another column in sqlite", col.Name), nil)
		}
		seen[key] = struct{}{}

		defs[i] = "? " + columnAffinity(col.Type)
		args = append(args, bun.Ident(col.Name))
	}

	return tableSpec{
		table:   tableName,
		columns: schema.Columns,
		create:  "CREATE TABLE ? (" + strings.Join(defs, ", ") + ")",
		args:    args,
	}, nil
}

func writeRows(ctx context.Context, db *bun.DB, spec tableSpec, rows export.RowIterator, format export.FormatOptions) (export.RenderStats, error) {
	stats := export.RenderStats{}

	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, spec.create, spec.args...); err != nil {
			return export.NewError(export.KindInternal, "sqlite create table failed", err)
		}

		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			row, err := rows.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if len(row) != len(spec.columns) {
				return export.NewError(export.KindValidation, "row length does not match schema", nil)
			}

			values := make(map[string]any, len(row))
			for i, value := range row {
				v, err := sqliteValue(spec.columns[i], value, format)
				if err != nil {
					return err
				}
				values[spec.columns[i].Name] = v
			}

			if _, err := tx.NewInsert().Model(&values).TableExpr("?", bun.Ident(spec.table)).Exec(ctx); err != nil {
				return export.NewError(export.KindInternal, "sqlite insert failed", err)
			}
			stats.Rows++
		}
	})
	return stats, err
}

func columnAffinity(colType string) string {
	switch colType {
	case export.ColumnTypeNumber:
		return "NUMERIC"
	case export.ColumnTypeBool:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// sqliteValue keeps nulls as NULL and stores numbers natively when the cell
// holds a number; anything else is stored as its display text.
func sqliteValue(col export.Column, value any, format export.FormatOptions) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		if f, err := v.Float64(); err == nil {
			return f, nil
		}
		return v.String(), nil
	}
	return export.FormatText(col, value, format)
}

func sanitizeIdentifier(value, fallback string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	sanitized := strings.Trim(b.String(), "_")
	if sanitized == "" {
		sanitized = fallback
	}
	if sanitized[0] >= '0' && sanitized[0] <= '9' {
		sanitized = "t_" + sanitized
	}
	return sanitized
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
