package export

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
)

// JSONRenderer renders rows as a JSON array of objects. Object keys follow
// schema column order.
type JSONRenderer struct{}

// Render streams rows as a JSON array.
func (r JSONRenderer) Render(ctx context.Context, schema Schema, rows RowIterator, w io.Writer, opts RenderOptions) (RenderStats, error) {
	cw := &countingWriter{w: w}
	stats := RenderStats{}

	formatter, err := newFormatContext(opts.Format)
	if err != nil {
		return stats, err
	}

	keys := make([][]byte, len(schema.Columns))
	for i, col := range schema.Columns {
		encoded, err := json.Marshal(col.Name)
		if err != nil {
			return stats, err
		}
		keys[i] = encoded
	}

	if _, err := cw.Write([]byte("[")); err != nil {
		return stats, err
	}

	first := true
	var obj bytes.Buffer
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		row, err := rows.Next(ctx)
		if err != nil {
			if err == io.EOF {
				break
			}
			return stats, err
		}
		if len(row) != len(schema.Columns) {
			return stats, NewError(KindValidation, "row length does not match schema", nil)
		}

		obj.Reset()
		obj.WriteByte('{')
		for i, col := range schema.Columns {
			value, err := formatter.formatJSONValue(col, row[i])
			if err != nil {
				return stats, err
			}
			payload, err := json.Marshal(value)
			if err != nil {
				return stats, NewError(KindValidation, "invalid value for column "+col.Name, err)
			}
			if i > 0 {
				obj.WriteByte(',')
			}
			obj.Write(keys[i])
			obj.WriteByte(':')
			obj.Write(payload)
		}
		obj.WriteByte('}')

		if !first {
			if _, err := cw.Write([]byte(",")); err != nil {
				return stats, err
			}
		}
		first = false

		payload := obj.Bytes()
		if opts.JSON.Indent != "" {
			var indented bytes.Buffer
			if err := json.Indent(&indented, payload, opts.JSON.Indent, opts.JSON.Indent); err != nil {
				return stats, err
			}
			if _, err := cw.Write([]byte("\n" + opts.JSON.Indent)); err != nil {
				return stats, err
			}
			payload = indented.Bytes()
		}
		if _, err := cw.Write(payload); err != nil {
			return stats, err
		}
		stats.Rows++
	}

	closing := "]"
	if opts.JSON.Indent != "" && !first {
		closing = "\n]"
	}
	if _, err := cw.Write([]byte(closing)); err != nil {
		return stats, err
	}

	stats.Bytes = cw.count
	return stats, nil
}
