package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	excelMaxRows     = 1048576
	defaultSheetName = "Data Table"
	defaultNumberFmt = "General"
)

// XLSXRenderer renders XLSX output.
type XLSXRenderer struct{}

// Render streams rows into an XLSX workbook.
func (r XLSXRenderer) Render(ctx context.Context, schema Schema, rows RowIterator, w io.Writer, opts RenderOptions) (RenderStats, error) {
	formatter, err := newFormatContext(opts.Format)
	if err != nil {
		return RenderStats{}, err
	}

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	sheetName := opts.XLSX.SheetName
	if sheetName == "" {
		sheetName = defaultSheetName
	}
	defaultSheet := file.GetSheetName(0)
	if defaultSheet != sheetName {
		if err := file.SetSheetName(defaultSheet, sheetName); err != nil {
			return RenderStats{}, NewError(KindValidation, "invalid sheet name", err)
		}
	}

	stream, err := file.NewStreamWriter(sheetName)
	if err != nil {
		return RenderStats{}, err
	}

	styles, err := buildXLSXStyles(file)
	if err != nil {
		return RenderStats{}, err
	}
	columnStyles, err := styles.forColumns(schema.Columns)
	if err != nil {
		return RenderStats{}, err
	}

	includeHeaders := !opts.XLSX.HeadersSet || opts.XLSX.IncludeHeaders
	rowIndex := 1
	if includeHeaders {
		headers := make([]interface{}, len(schema.Columns))
		for i, col := range schema.Columns {
			label := col.Label
			if label == "" {
				label = col.Name
			}
			headers[i] = excelize.Cell{StyleID: styles.headerID, Value: label}
		}
		if err := stream.SetRow(fmt.Sprintf("A%d", rowIndex), headers); err != nil {
			return RenderStats{}, err
		}
		rowIndex++
	}

	maxRows := opts.XLSX.MaxRows
	if maxRows <= 0 || maxRows > excelMaxRows {
		maxRows = excelMaxRows
	}
	if includeHeaders && maxRows > excelMaxRows-1 {
		maxRows = excelMaxRows - 1
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

		stats.Rows++
		if stats.Rows > int64(maxRows) {
			return stats, NewError(KindValidation, "max rows exceeded", nil)
		}

		cells := make([]interface{}, len(row))
		for i, value := range row {
			cell, err := buildXLSXCell(schema.Columns[i], value, formatter, columnStyles[i])
			if err != nil {
				return stats, err
			}
			cells[i] = cell
		}

		if err := stream.SetRow(fmt.Sprintf("A%d", rowIndex), cells); err != nil {
			return stats, err
		}
		rowIndex++
	}

	if err := stream.Flush(); err != nil {
		return stats, err
	}

	lw := newLimitedWriter(w, opts.XLSX.MaxBytes)
	if _, err := file.WriteTo(lw); err != nil {
		return stats, err
	}
	stats.Bytes = lw.count
	return stats, nil
}

type xlsxStyles struct {
	headerID  int
	numberID  int
	customIDs map[string]int
	file      *excelize.File
}

func buildXLSXStyles(file *excelize.File) (*xlsxStyles, error) {
	headerID, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	numberID, err := newCustomStyle(file, defaultNumberFmt)
	if err != nil {
		return nil, err
	}

	return &xlsxStyles{
		headerID:  headerID,
		numberID:  numberID,
		customIDs: make(map[string]int),
		file:      file,
	}, nil
}

func newCustomStyle(file *excelize.File, format string) (int, error) {
	if format == "" {
		return 0, nil
	}
	return file.NewStyle(&excelize.Style{CustomNumFmt: &format})
}

func (s *xlsxStyles) forColumns(columns []Column) ([]int, error) {
	styles := make([]int, len(columns))
	for i, col := range columns {
		styleID := 0
		if col.Format.Excel != "" {
			custom, err := s.customStyle(col.Format.Excel)
			if err != nil {
				return nil, err
			}
			styleID = custom
		} else if normalizeColumnType(col.Type) == ColumnTypeNumber {
			styleID = s.numberID
		}
		styles[i] = styleID
	}
	return styles, nil
}

func (s *xlsxStyles) customStyle(format string) (int, error) {
	if styleID, ok := s.customIDs[format]; ok {
		return styleID, nil
	}
	styleID, err := newCustomStyle(s.file, format)
	if err != nil {
		return 0, err
	}
	s.customIDs[format] = styleID
	return styleID, nil
}

// buildXLSXCell writes numbers and booleans as native cells. Values that do
// not match the inferred column type fall back to their display text.
func buildXLSXCell(col Column, value any, formatter formatContext, styleID int) (excelize.Cell, error) {
	if value == nil {
		return excelize.Cell{Value: ""}, nil
	}

	switch normalizeColumnType(col.Type) {
	case ColumnTypeNumber:
		if number, ok := coerceFloat(value); ok {
			return excelize.Cell{Value: number, StyleID: styleID}, nil
		}
	case ColumnTypeBool:
		if flag, ok := coerceBool(value); ok {
			return excelize.Cell{Value: flag, StyleID: styleID}, nil
		}
	}

	if v, ok := value.(time.Time); ok {
		return excelize.Cell{Value: formatter.applyTimezone(v), StyleID: styleID}, nil
	}

	text, err := formatter.formatTextValue(col, value)
	if err != nil {
		return excelize.Cell{}, err
	}
	return excelize.Cell{Value: text, StyleID: styleID}, nil
}
