package expr

import (
	"fmt"
	"reflect"
	"strings"
)

// symbolOps are matched longest first so ">=" never splits as ">".
var symbolOps = []string{"==", "!=", ">=", "<=", ">", "<"}

var builtinOps = map[string]BinaryOp{
	"==":       Equal,
	"!=":       func(l, r any) bool { return !Equal(l, r) },
	"<":        func(l, r any) bool { c, ok := order(l, r); return ok && c < 0 },
	">":        func(l, r any) bool { c, ok := order(l, r); return ok && c > 0 },
	"<=":       func(l, r any) bool { c, ok := order(l, r); return ok && c <= 0 },
	">=":       func(l, r any) bool { c, ok := order(l, r); return ok && c >= 0 },
	"contains": contains,
}

// Compare compares two values using the specified operator.
// Returns an error for unknown operators.
func Compare(left, right any, op string) (bool, error) {
	fn, ok := builtinOps[op]
	if !ok {
		return false, fmt.Errorf("unknown operator: %s", op)
	}
	return fn(left, right), nil
}

// Equal reports typed equality. Numbers compare numerically regardless of
// their Go type; values of different kinds are never equal.
func Equal(left, right any) bool {
	if lf, ok := ToFloat64(left); ok {
		rf, ok := ToFloat64(right)
		return ok && lf == rf
	}
	if _, ok := ToFloat64(right); ok {
		return false
	}
	switch l := left.(type) {
	case nil:
		return right == nil
	case string:
		r, ok := right.(string)
		return ok && l == r
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	case []any:
		r, ok := right.([]any)
		if !ok || len(l) != len(r) {
			return false
		}
		for i := range l {
			if !Equal(l[i], r[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		r, ok := right.(map[string]any)
		if !ok || len(l) != len(r) {
			return false
		}
		for k, lv := range l {
			rv, ok := r[k]
			if !ok || !Equal(lv, rv) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(left, right)
}

// order compares two numbers or two strings. ok is false for any other pairing.
func order(left, right any) (int, bool) {
	if lf, ok := ToFloat64(left); ok {
		rf, ok := ToFloat64(right)
		if !ok {
			return 0, false
		}
		switch {
		case lf < rf:
			return -1, true
		case lf > rf:
			return 1, true
		}
		return 0, true
	}
	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		return strings.Compare(ls, rs), true
	}
	return 0, false
}

// contains is substring for strings, membership for lists, key presence for maps.
func contains(left, right any) bool {
	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		return ok && strings.Contains(l, r)
	case []any:
		for _, item := range l {
			if Equal(item, right) {
				return true
			}
		}
	case map[string]any:
		if r, ok := right.(string); ok {
			_, found := l[r]
			return found
		}
	}
	return false
}
