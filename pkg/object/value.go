// Package object defines the configuration value model: tagged property
// values, property bags and named configuration objects.
package object

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind int

// Value kinds. String, Integer, Boolean and Null are the storable kinds; the
// remaining kinds only appear in proposed input and are always rejected by
// the validator.
const (
	KindNull Kind = iota
	KindString
	KindInteger
	KindBoolean
	KindReal
	KindObject
	KindArray
)

// JSONType returns the wire type name used in error messages.
func (k Kind) JSONType() string {
	switch k {
	case KindString:
		return "JSON_STRING"
	case KindInteger:
		return "JSON_INTEGER"
	case KindBoolean:
		return "JSON_BOOLEAN"
	case KindReal:
		return "JSON_REAL"
	case KindObject:
		return "JSON_OBJECT"
	case KindArray:
		return "JSON_ARRAY"
	default:
		return "JSON_NULL"
	}
}

// Value is a single property value.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
	Bool bool

	// raw holds the original JSON text of real, object and array inputs.
	raw json.RawMessage
}

// String returns a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Integer returns an integer value.
func Integer(i int64) Value { return Value{Kind: KindInteger, Int: i} }

// Boolean returns a boolean value.
func Boolean(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// Null returns the null value.
func Null() Value { return Value{} }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsEmpty reports whether v is null or the empty string.
func (v Value) IsEmpty() bool {
	return v.Kind == KindNull || (v.Kind == KindString && v.Str == "")
}

// Equal reports whether two values hold the same variant and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindString:
		return v.Str == o.Str
	case KindInteger:
		return v.Int == o.Int
	case KindBoolean:
		return v.Bool == o.Bool
	case KindNull:
		return true
	default:
		return bytes.Equal(v.raw, o.raw)
	}
}

// Text renders the value the way it appears inside error messages.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInteger:
		return strconv.FormatInt(v.Int, 10)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	case KindNull:
		return "null"
	default:
		return string(v.raw)
	}
}

// Native converts the value to a plain Go value (string, int, bool or nil).
func (v Value) Native() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInteger:
		return int(v.Int)
	case KindBoolean:
		return v.Bool
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindInteger:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case KindBoolean:
		return []byte(strconv.FormatBool(v.Bool)), nil
	case KindNull:
		return []byte("null"), nil
	default:
		if len(v.raw) == 0 {
			return []byte("null"), nil
		}
		return v.raw, nil
	}
}

// UnmarshalJSON implements json.Unmarshaler. Any JSON value is accepted;
// non-scalar and non-integer numbers are kept with their original text.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	val, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// FromAny converts a decoded JSON value (decoded with UseNumber, or from a
// YAML decoder) into a Value.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Boolean(t), nil
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return Integer(i), nil
		}
		return Value{Kind: KindReal, raw: json.RawMessage(t.String())}, nil
	case int:
		return Integer(int64(t)), nil
	case int64:
		return Integer(t), nil
	case float64:
		if t == float64(int64(t)) {
			return Integer(int64(t)), nil
		}
		return Value{Kind: KindReal, raw: json.RawMessage(strconv.FormatFloat(t, 'g', -1, 64))}, nil
	case map[string]any:
		b, err := json.Marshal(t)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindObject, raw: b}, nil
	case []any:
		b, err := json.Marshal(t)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: KindArray, raw: b}, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}
