package export

import (
	"context"
	"fmt"
	"io"
)

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}

type limitedWriter struct {
	w     io.Writer
	count int64
	limit int64
}

func newLimitedWriter(w io.Writer, limit int64) *limitedWriter {
	return &limitedWriter{w: w, limit: limit}
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.limit > 0 && lw.count+int64(len(p)) > lw.limit {
		return 0, NewError(KindValidation, "max bytes exceeded", nil)
	}
	n, err := lw.w.Write(p)
	lw.count += int64(n)
	return n, err
}

func stringify(value any) string {
	if value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

// SliceIterator iterates over rows held in memory.
type SliceIterator struct {
	rows   []Row
	index  int
	closed bool
}

// NewSliceIterator wraps rows in a RowIterator.
func NewSliceIterator(rows []Row) *SliceIterator {
	return &SliceIterator{rows: rows}
}

func (it *SliceIterator) Next(ctx context.Context) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.closed || it.index >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.index]
	it.index++
	return row, nil
}

func (it *SliceIterator) Close() error {
	it.closed = true
	return nil
}

// CollectRows drains an iterator, enforcing maxRows when positive.
func CollectRows(ctx context.Context, rows RowIterator, width, maxRows int) ([]Row, error) {
	out := make([]Row, 0)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := rows.Next(ctx)
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, err
		}
		if width >= 0 && len(row) != width {
			return nil, NewError(KindValidation, "row length does not match schema", nil)
		}
		if maxRows > 0 && len(out) >= maxRows {
			return nil, NewError(KindValidation, "max rows exceeded", nil)
		}
		out = append(out, row)
	}
}
