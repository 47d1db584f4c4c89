package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/goliatone/go-tableview/export"
)

// Field is one key/value pair of a record.
type Field struct {
	Key   string
	Value any
}

// Record is an ordered field list.
type Record []Field

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r)
}

// Keys returns the field names in source order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, field := range r {
		keys[i] = field.Key
	}
	return keys
}

// Values returns the field values in source order.
func (r Record) Values() []any {
	values := make([]any, len(r))
	for i, field := range r {
		values[i] = field.Value
	}
	return values
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	for _, field := range r {
		if field.Key == key {
			return field.Value, true
		}
	}
	return nil, false
}

// MarshalJSON encodes the record as an object with keys in source order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r Record) sameKeys(keys []string) bool {
	if len(r) != len(keys) {
		return false
	}
	for i, field := range r {
		if field.Key != keys[i] {
			return false
		}
	}
	return true
}

// RecordSet is an ordered sequence of records. A nil set means no data was
// fetched; an empty non-nil set is a successful fetch of "[]".
type RecordSet []Record

// Columns returns the keys of the first record.
func (s RecordSet) Columns() []string {
	if len(s) == 0 {
		return nil
	}
	return s[0].Keys()
}

// Validate reports a heterogeneous record set: every record must carry the
// keys of the first record in the same order.
func (s RecordSet) Validate() error {
	if len(s) < 2 {
		return nil
	}
	keys := s[0].Keys()
	for i, record := range s[1:] {
		if !record.sameKeys(keys) {
			return export.NewError(export.KindHeterogeneous, "heterogeneous record set",
				fmt.Errorf("record %d has keys %v, expected %v", i+1, record.Keys(), keys))
		}
	}
	return nil
}

// Schema derives export columns from the first record. Column types are
// inferred from the first record's values.
func (s RecordSet) Schema() export.Schema {
	if len(s) == 0 {
		return export.Schema{}
	}
	columns := make([]export.Column, len(s[0]))
	for i, field := range s[0] {
		columns[i] = export.Column{Name: field.Key, Type: inferType(field.Value)}
	}
	return export.Schema{Columns: columns}
}

// Rows returns the records as column-aligned rows in set order.
func (s RecordSet) Rows() []export.Row {
	keys := s.Columns()
	rows := make([]export.Row, len(s))
	for i, record := range s {
		rows[i] = record.row(keys)
	}
	return rows
}

// Iterator returns a row iterator over the set.
func (s RecordSet) Iterator() export.RowIterator {
	return export.NewSliceIterator(s.Rows())
}

func (r Record) row(keys []string) export.Row {
	if r.sameKeys(keys) {
		return export.Row(r.Values())
	}
	row := make(export.Row, len(keys))
	for i, key := range keys {
		row[i], _ = r.Get(key)
	}
	return row
}

func inferType(value any) string {
	switch value.(type) {
	case json.Number:
		return export.ColumnTypeNumber
	case bool:
		return export.ColumnTypeBool
	case json.RawMessage:
		return export.ColumnTypeJSON
	default:
		return export.ColumnTypeString
	}
}
