package expr

import (
	"strconv"
	"strings"
)

// StatePrefix may precede any identifier; "state.score" and "score" are the same lookup.
const StatePrefix = "state."

// Resolve resolves a literal or a variable reference.
// It handles quoted strings, booleans, null, numbers, and variable lookups.
// Numbers are always float64. An identifier that is not found resolves to nil.
func Resolve(s string, vars map[string]any) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}

	switch s {
	case "true", "True":
		return true
	case "false", "False":
		return false
	case "null", "nil", "None":
		return nil
	}

	if looksNumeric(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}

	v, _ := Lookup(vars, s)
	return v
}

// Lookup resolves a dotted path against vars, after removing an optional
// "state." prefix. Each segment must address a key of a nested map.
func Lookup(vars map[string]any, path string) (any, bool) {
	if vars == nil {
		return nil, false
	}
	if v, ok := vars[path]; ok {
		return v, true
	}
	path = strings.TrimPrefix(path, StatePrefix)
	if v, ok := vars[path]; ok {
		return v, true
	}

	var cur any = vars
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// looksNumeric keeps identifiers such as "inf" or "nan" out of ParseFloat.
func looksNumeric(s string) bool {
	c := s[0]
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

// IsTruthy returns whether a value is truthy.
// nil is false, bools return their value, empty strings, lists and maps are
// false, zero numbers are false, everything else is true.
func IsTruthy(v any) bool {
	if v == nil {
		return false
	}
	if f, ok := ToFloat64(v); ok {
		return f != 0
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != ""
	case []any:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// ToFloat64 converts a Go numeric value to float64.
// Strings are not coerced.
func ToFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	default:
		return 0, false
	}
}
