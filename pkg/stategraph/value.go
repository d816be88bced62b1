package stategraph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/expr"
)

// Kind identifies which variant a Value holds.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a state value: null, string, number, bool, list or map.
// Numbers are always float64. The zero Value is null.
//
// Values are immutable from the outside; list and map accessors return
// copies.
type Value struct {
	kind Kind
	str  string
	num  float64
	flag bool
	list []Value
	dict map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// List returns a list value holding copies of items.
func List(items ...Value) Value {
	out := make([]Value, len(items))
	for i, v := range items {
		out[i] = v.Clone()
	}
	return Value{kind: KindList, list: out}
}

// Map returns a map value holding copies of m.
func Map(m map[string]Value) Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return Value{kind: KindMap, dict: out}
}

// FromAny converts a native Go value into a Value.
//
// Accepted: nil, string, bool, every integer and float type, json.Number,
// []any, []string, map[string]any, and Value itself. Nested containers are
// converted recursively.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t.Clone(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("number %q: %w", t, err)
		}
		return Number(f), nil
	case []string:
		out := make([]Value, len(t))
		for i, s := range t {
			out[i] = String(s)
		}
		return Value{kind: KindList, list: out}, nil
	case []any:
		out := make([]Value, len(t))
		for i, item := range t {
			cv, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = cv
		}
		return Value{kind: KindList, list: out}, nil
	case map[string]any:
		out := make(map[string]Value, len(t))
		for k, item := range t {
			cv, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = cv
		}
		return Value{kind: KindMap, dict: out}, nil
	}
	if f, ok := config.ToFloat(v); ok {
		return Number(f), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported value type %T", ErrTypeMismatch, v)
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber returns the number held by v.
func (v Value) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.flag, v.kind == KindBool }

// AsList returns a copy of the list held by v.
func (v Value) AsList() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return List(v.list...).list, true
}

// AsMap returns a copy of the map held by v.
func (v Value) AsMap() (map[string]Value, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return Map(v.dict).dict, true
}

// Len returns the number of items in a list or map, or the byte length of a
// string. Other kinds report 0.
func (v Value) Len() int {
	switch v.kind {
	case KindString:
		return len(v.str)
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.dict)
	default:
		return 0
	}
}

// Text returns the string form of v: strings as-is, whole numbers without a
// fractional part, booleans as true/false, null as "null", and lists and
// maps as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		data, err := json.Marshal(v.Any())
		if err != nil {
			return fmt.Sprintf("%v", v.Any())
		}
		return string(data)
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.kind == KindString {
		return strconv.Quote(v.str)
	}
	return v.Text()
}

// Any returns v as a native Go value: nil, string, float64, bool, []any or
// map[string]any. The result shares nothing with v.
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.flag
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.dict))
		for k, item := range v.dict {
			out[k] = item.Any()
		}
		return out
	default:
		return nil
	}
}

// Equal reports typed equality. Numbers compare numerically, lists
// element-wise and maps key-wise; different kinds are never equal.
func (v Value) Equal(other Value) bool {
	return expr.Equal(v.Any(), other.Any())
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		out := make([]Value, len(v.list))
		for i, item := range v.list {
			out[i] = item.Clone()
		}
		return Value{kind: KindList, list: out}
	case KindMap:
		out := make(map[string]Value, len(v.dict))
		for k, item := range v.dict {
			out[k] = item.Clone()
		}
		return Value{kind: KindMap, dict: out}
	default:
		return v
	}
}

// MarshalJSON encodes v as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

// UnmarshalJSON decodes any JSON document into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cv, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = cv
	return nil
}

// GoString renders v for debugging with %#v.
func (v Value) GoString() string {
	switch v.kind {
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.GoString()
		}
		return "List(" + strings.Join(parts, ", ") + ")"
	case KindMap:
		keys := make([]string, 0, len(v.dict))
		for k := range v.dict {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + v.dict[k].GoString()
		}
		return "Map{" + strings.Join(parts, ", ") + "}"
	default:
		return v.String()
	}
}
