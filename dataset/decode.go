package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/goliatone/go-tableview/export"
)

// Decode reads a JSON array of objects, keeping each object's key order.
// A repeated key keeps its first position and takes the last value.
func Decode(r io.Reader) (RecordSet, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, decodeError("invalid JSON body", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, decodeError("expected a JSON array", fmt.Errorf("found %s", describeToken(tok)))
	}

	set := RecordSet{}
	for dec.More() {
		record, err := decodeRecord(dec, len(set))
		if err != nil {
			return nil, err
		}
		set = append(set, record)
	}

	if _, err := dec.Token(); err != nil {
		return nil, decodeError("invalid JSON body", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after array")
		}
		return nil, decodeError("invalid JSON body", err)
	}

	return set, nil
}

// UnmarshalJSON decodes one object with the same key-order and duplicate-key
// rules as Decode.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	record, err := decodeRecord(dec, 0)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after object")
		}
		return decodeError("invalid JSON body", err)
	}
	*r = record
	return nil
}

func decodeRecord(dec *json.Decoder, index int) (Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, decodeError("invalid JSON body", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, decodeError("expected an array of objects",
			fmt.Errorf("element %d is %s", index, describeToken(tok)))
	}

	record := Record{}
	positions := map[string]int{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, decodeError("invalid JSON body", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, decodeError("invalid JSON body", fmt.Errorf("element %d has a non-string key", index))
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, decodeError("invalid JSON body", err)
		}
		value, err := decodeValue(raw)
		if err != nil {
			return nil, decodeError("invalid JSON body", fmt.Errorf("element %d field %q: %w", index, key, err))
		}

		if pos, seen := positions[key]; seen {
			record[pos].Value = value
			continue
		}
		positions[key] = len(record)
		record = append(record, Field{Key: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, decodeError("invalid JSON body", err)
	}
	return record, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty value")
	}
	switch raw[0] {
	case 'n':
		return nil, nil
	case 't', 'f':
		var b bool
		err := json.Unmarshal(raw, &b)
		return b, err
	case '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return nil, err
		}
		return json.RawMessage(buf.Bytes()), nil
	default:
		return json.Number(string(raw)), nil
	}
}

func describeToken(tok json.Token) string {
	switch v := tok.(type) {
	case json.Delim:
		if v == '{' {
			return "an object"
		}
		return "an array"
	case string:
		return "a string"
	case json.Number, float64:
		return "a number"
	case bool:
		return "a boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", tok)
	}
}

func decodeError(msg string, err error) error {
	return export.NewError(export.KindDecode, msg, err)
}
