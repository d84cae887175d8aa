package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Row is one record of the external feed. Rows are schema-free: any column may be
// missing on any row, so every accessor reports whether the column exists.
// Rows are treated as immutable once ingested.
type Row map[string]any

// Value returns the raw value of a column. A column holding JSON null counts as absent.
func (r Row) Value(column string) (any, bool) {
	if r == nil || column == "" {
		return nil, false
	}
	v, ok := r[column]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// String returns the display form of a column.
func (r Row) String(column string) (string, bool) {
	v, ok := r.Value(column)
	if !ok {
		return "", false
	}
	return FormatValue(v), true
}

// Identity returns the canonical identity of the row read from field.
// Numeric and string spellings of the same number share an identity.
func (r Row) Identity(field string) (string, bool) {
	v, ok := r.Value(field)
	if !ok {
		return "", false
	}
	id := strings.TrimSpace(FormatValue(v))
	if id == "" {
		return "", false
	}
	return id, true
}

// Flag reports whether a boolean-like column is set. Accepted truthy values are
// true, "true", "yes", "1" and any non-zero number.
func (r Row) Flag(column string) bool {
	v, ok := r.Value(column)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		}
		return false
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	return false
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FormatValue converts a scalar feed value to its display string. Numbers are
// printed without trailing zeros and booleans as true/false.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// DecodeRows parses a feed payload. The payload must be a JSON array of objects;
// numbers are kept as json.Number so identities survive without float rounding.
func DecodeRows(data []byte) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeedData, err)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload is not an array", ErrMalformedFeedData)
	}

	rows := make([]Row, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is not an object", ErrMalformedFeedData, i)
		}
		rows = append(rows, Row(obj))
	}
	return rows, nil
}
