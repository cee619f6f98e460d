// Package literal holds the typed argument values carried by query tree
// relations: int64, uint64, float64, bool, string, Enum, nil, []any and Object.
package literal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Enum is a bare enum name such as ASC or DESC.
type Enum string

// Field is one key of an Object literal.
type Field struct {
	Name  string
	Value any
}

// Object is an input object literal. Field order is the order written in the
// query or variables document.
type Object []Field

// Get returns the value stored under name.
func (o Object) Get(name string) (any, bool) {
	for _, f := range o {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// IsScalar reports whether v is a leaf literal usable as a SQL argument.
func IsScalar(v any) bool {
	switch v.(type) {
	case int64, uint64, float64, bool, string, Enum:
		return true
	default:
		return false
	}
}

// SQLValue converts a scalar literal into a driver argument.
func SQLValue(v any) any {
	if e, ok := v.(Enum); ok {
		return string(e)
	}
	return v
}

// Describe renders a literal for error messages.
func Describe(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", val)
	case Enum:
		return string(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Describe(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Object:
		parts := make([]string, len(val))
		for i, f := range val {
			parts[i] = f.Name + ": " + Describe(f.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// DecodeJSON parses a JSON document into literals. Objects keep key order,
// integral numbers become integers (see Integer) and other numbers float64.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected trailing data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Object{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj = append(obj, Field{Name: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			list := []any{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		if !strings.ContainsAny(t.String(), ".eE") {
			return Integer(t.String())
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %s: %w", t, err)
		}
		return f, nil
	default:
		// string, bool, nil
		return t, nil
	}
}

// Integer parses decimal digits as int64, then uint64 for BIGINT UNSIGNED
// values. Anything wider stays the digit string so keys never lose precision.
func Integer(digits string) (any, error) {
	if i, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return i, nil
	}
	if u, err := strconv.ParseUint(digits, 10, 64); err == nil {
		return u, nil
	}
	trimmed := strings.TrimPrefix(digits, "-")
	if trimmed == "" || strings.Trim(trimmed, "0123456789") != "" {
		return nil, fmt.Errorf("invalid integer %s", digits)
	}
	return digits, nil
}
