package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
)

// CSVRenderer renders CSV output. Lines are separated by "\n" with no
// trailing newline unless CSVOptions.TrailingNewline is set.
type CSVRenderer struct{}

// Render streams rows as CSV.
func (r CSVRenderer) Render(ctx context.Context, schema Schema, rows RowIterator, w io.Writer, opts RenderOptions) (RenderStats, error) {
	cw := &countingWriter{w: w}
	line := newCSVLineWriter(opts.CSV)

	formatter, err := newFormatContext(opts.Format)
	if err != nil {
		return RenderStats{}, err
	}

	first := true
	writeLine := func(record []string) error {
		encoded, err := line.encode(record)
		if err != nil {
			return err
		}
		if !first {
			if _, err := io.WriteString(cw, "\n"); err != nil {
				return err
			}
		}
		first = false
		_, err = cw.Write(encoded)
		return err
	}

	if includeCSVHeaders(opts.CSV) {
		headers := make([]string, 0, len(schema.Columns))
		for _, col := range schema.Columns {
			label := col.Label
			if label == "" {
				label = col.Name
			}
			headers = append(headers, label)
		}
		if err := writeLine(headers); err != nil {
			return RenderStats{}, err
		}
	}

	stats := RenderStats{}
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

		record := make([]string, len(row))
		for i, value := range row {
			formatted, err := formatter.formatTextValue(schema.Columns[i], value)
			if err != nil {
				return stats, err
			}
			record[i] = formatted
		}
		if err := writeLine(record); err != nil {
			return stats, err
		}
		stats.Rows++
	}

	if opts.CSV.TrailingNewline && !first {
		if _, err := io.WriteString(cw, "\n"); err != nil {
			return stats, err
		}
	}

	stats.Bytes = cw.count
	return stats, nil
}

func includeCSVHeaders(opts CSVOptions) bool {
	if !opts.HeadersSet {
		return true
	}
	return opts.IncludeHeaders
}

type csvLineWriter struct {
	mode  CSVQuoteMode
	comma rune
	buf   bytes.Buffer
	csv   *csv.Writer
}

func newCSVLineWriter(opts CSVOptions) *csvLineWriter {
	lw := &csvLineWriter{mode: opts.Quote, comma: opts.Delimiter}
	if lw.mode == "" {
		lw.mode = CSVQuoteMinimal
	}
	if lw.comma == 0 {
		lw.comma = ','
	}
	lw.csv = csv.NewWriter(&lw.buf)
	lw.csv.Comma = lw.comma
	return lw
}

func (lw *csvLineWriter) encode(record []string) ([]byte, error) {
	if lw.mode == CSVQuoteNone {
		return []byte(strings.Join(record, string(lw.comma))), nil
	}

	lw.buf.Reset()
	if err := lw.csv.Write(record); err != nil {
		return nil, err
	}
	lw.csv.Flush()
	if err := lw.csv.Error(); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(lw.buf.Bytes(), []byte("\n")), nil
}
