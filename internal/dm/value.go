package dm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind is the declared type of a resource value.
type Kind string

// Value kinds.
const (
	KindNone   Kind = "none"
	KindString Kind = "string"
	KindInt    Kind = "int"
)

// Value is a typed resource value.
type Value struct {
	Kind Kind
	Str  string
	Int  int64
}

// String returns a string value.
func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Int returns an integer value.
func Int(i int64) Value {
	return Value{Kind: KindInt, Int: i}
}

// AsString returns the value as text. Integers are not converted.
func (v Value) AsString() (string, error) {
	if v.Kind != KindString {
		return "", NewError(CodeBadRequest, fmt.Sprintf("expected string, got %s", v.Kind))
	}
	return v.Str, nil
}

// AsInt returns the value as an integer. Decimal text is accepted.
func (v Value) AsInt() (int64, error) {
	switch v.Kind {
	case KindInt:
		return v.Int, nil
	case KindString:
		i, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return 0, NewErrorWithCause(CodeBadRequest, "invalid integer", err)
		}
		return i, nil
	default:
		return 0, NewError(CodeBadRequest, fmt.Sprintf("expected int, got %s", v.Kind))
	}
}

// Any returns the native Go value for JSON encoding.
func (v Value) Any() any {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindInt:
		return v.Int
	default:
		return nil
	}
}

// MarshalJSON encodes the value as a bare JSON string or number.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// FromJSON converts a decoded JSON value into a Value.
func FromJSON(raw any) (Value, error) {
	switch x := raw.(type) {
	case string:
		return String(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x >= math.MaxInt64 || x < math.MinInt64 {
			return Value{}, NewError(CodeBadRequest, fmt.Sprintf("not an integer: %v", x))
		}
		return Int(int64(x)), nil
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return Value{}, NewErrorWithCause(CodeBadRequest, "not an integer", err)
		}
		return Int(i), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	default:
		return Value{}, NewError(CodeBadRequest, fmt.Sprintf("unsupported value type %T", raw))
	}
}
