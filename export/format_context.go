package export

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type formatContext struct {
	location *time.Location
}

func newFormatContext(opts FormatOptions) (formatContext, error) {
	ctx := formatContext{}
	if tz := strings.TrimSpace(opts.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return formatContext{}, NewError(KindValidation, "invalid timezone", err)
		}
		ctx.location = loc
	}
	return ctx, nil
}

func (f formatContext) applyTimezone(value time.Time) time.Time {
	if f.location == nil {
		return value
	}
	return value.In(f.location)
}

// FormatText renders a cell the way text exports do.
func FormatText(col Column, value any, opts FormatOptions) (string, error) {
	formatter, err := newFormatContext(opts)
	if err != nil {
		return "", err
	}
	return formatter.formatTextValue(col, value)
}

// formatTextValue renders a cell as display text. Numbers keep their source
// literal, booleans render as true/false and nested values as compact JSON.
func (f formatContext) formatTextValue(col Column, value any) (string, error) {
	if value == nil {
		return "", nil
	}
	switch v := value.(type) {
	case time.Time:
		layout := strings.TrimSpace(col.Format.Layout)
		if layout == "" {
			layout = time.RFC3339
		}
		return f.applyTimezone(v).Format(layout), nil
	case json.Number:
		if format := strings.TrimSpace(col.Format.Number); format != "" && strings.Contains(format, "%") {
			parsed, err := v.Float64()
			if err != nil {
				return "", NewError(KindValidation, fmt.Sprintf("invalid number for column %q", col.Name), err)
			}
			return fmt.Sprintf(format, parsed), nil
		}
		return v.String(), nil
	case json.RawMessage:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return stringify(value), nil
}

// formatJSONValue returns a value json.Marshal encodes faithfully.
func (f formatContext) formatJSONValue(col Column, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case time.Time:
		text, err := f.formatTextValue(col, v)
		if err != nil {
			return nil, err
		}
		return text, nil
	case string, bool, json.Number, json.RawMessage, int, int64, float64:
		return v, nil
	default:
		return stringify(value), nil
	}
}

func normalizeColumnType(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "", "string", "text":
		return ColumnTypeString
	case "bool", "boolean":
		return ColumnTypeBool
	case "number", "int", "integer", "float", "decimal", "numeric":
		return ColumnTypeNumber
	case "json", "object", "array":
		return ColumnTypeJSON
	default:
		return normalized
	}
}

func coerceFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		if err != nil || math.IsInf(parsed, 0) {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func coerceBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}
