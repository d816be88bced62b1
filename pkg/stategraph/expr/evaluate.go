package expr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is returned for expressions that cannot be parsed.
var ErrSyntax = errors.New("expression syntax error")

// BinaryOp is a function that compares two values and returns a boolean result.
type BinaryOp func(left, right any) bool

// Evaluator evaluates boolean expressions with optional custom operators.
type Evaluator struct {
	customOps map[string]BinaryOp
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a custom word operator, used as "left name right".
// The operator name should not conflict with built-in operators.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// New creates a new Evaluator with the given options.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate evaluates a boolean expression against the provided variables.
// Identifiers are looked up with Lookup, so "state.score" and "score" both
// address vars["score"] and dotted paths reach into nested maps.
func (e *Evaluator) Evaluate(expr string, vars map[string]any) (bool, error) {
	return e.evalOr(strings.TrimSpace(expr), vars)
}

// Eval is a convenience function that evaluates an expression using
// the default evaluator (no custom operators).
func Eval(expr string, vars map[string]any) (bool, error) {
	return New().Evaluate(expr, vars)
}

// Check reports a syntax error without needing variables.
func (e *Evaluator) Check(expr string) error {
	_, err := e.Evaluate(expr, nil)
	return err
}

// Precedence, loosest first: or, and, not/!, comparison, parentheses.
func (e *Evaluator) evalOr(expr string, vars map[string]any) (bool, error) {
	if expr == "" {
		return false, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	if i := indexTopLevel(expr, " or "); i >= 0 {
		left, err := e.evalOr(strings.TrimSpace(expr[:i]), vars)
		if err != nil {
			return false, err
		}
		right, err := e.evalOr(strings.TrimSpace(expr[i+len(" or "):]), vars)
		if err != nil {
			return false, err
		}
		return left || right, nil
	}
	return e.evalAnd(expr, vars)
}

func (e *Evaluator) evalAnd(expr string, vars map[string]any) (bool, error) {
	if i := indexTopLevel(expr, " and "); i >= 0 {
		left, err := e.evalAnd(strings.TrimSpace(expr[:i]), vars)
		if err != nil {
			return false, err
		}
		right, err := e.evalAnd(strings.TrimSpace(expr[i+len(" and "):]), vars)
		if err != nil {
			return false, err
		}
		return left && right, nil
	}
	return e.evalUnary(expr, vars)
}

func (e *Evaluator) evalUnary(expr string, vars map[string]any) (bool, error) {
	if expr == "" {
		return false, fmt.Errorf("%w: missing operand", ErrSyntax)
	}
	var inner string
	switch {
	case expr == "not":
		return false, fmt.Errorf("%w: missing operand", ErrSyntax)
	case strings.HasPrefix(expr, "not "):
		inner = expr[len("not "):]
	case strings.HasPrefix(expr, "!") && !strings.HasPrefix(expr, "!="):
		inner = expr[1:]
	default:
		return e.evalComparison(expr, vars)
	}
	result, err := e.evalUnary(strings.TrimSpace(inner), vars)
	if err != nil {
		return false, err
	}
	return !result, nil
}

func (e *Evaluator) evalComparison(expr string, vars map[string]any) (bool, error) {
	if inner, ok := stripParens(expr); ok {
		return e.evalOr(strings.TrimSpace(inner), vars)
	}

	pos, op, fn := e.findOperator(expr)
	if pos < 0 {
		if err := checkOperand(expr); err != nil {
			return false, err
		}
		return IsTruthy(Resolve(expr, vars)), nil
	}

	lhs := strings.TrimSpace(expr[:pos])
	rhs := strings.TrimSpace(expr[pos+len(op):])
	if err := checkOperand(lhs); err != nil {
		return false, err
	}
	if err := checkOperand(rhs); err != nil {
		return false, err
	}
	return fn(Resolve(lhs, vars), Resolve(rhs, vars)), nil
}

// findOperator returns the leftmost top-level comparison operator.
func (e *Evaluator) findOperator(expr string) (int, string, BinaryOp) {
	words := make([]string, 0, len(e.customOps)+1)
	words = append(words, " contains ")
	for name := range e.customOps {
		words = append(words, " "+name+" ")
	}

	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
			continue
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, op := range symbolOps {
			if strings.HasPrefix(expr[i:], op) {
				return i, op, builtinOps[op]
			}
		}
		for _, w := range words {
			if strings.HasPrefix(expr[i:], w) {
				name := strings.TrimSpace(w)
				if fn, ok := builtinOps[name]; ok {
					return i, w, fn
				}
				return i, w, e.customOps[name]
			}
		}
	}
	return -1, "", nil
}

// indexTopLevel finds sep outside quotes and parentheses.
func indexTopLevel(expr, sep string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		default:
			if depth == 0 && strings.HasPrefix(expr[i:], sep) {
				return i
			}
		}
	}
	return -1
}

// stripParens removes one pair of parentheses enclosing the whole expression.
func stripParens(expr string) (string, bool) {
	if !strings.HasPrefix(expr, "(") || !strings.HasSuffix(expr, ")") {
		return "", false
	}
	depth := 0
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(expr)-1 {
				return "", false
			}
		}
	}
	return expr[1 : len(expr)-1], depth == 0
}

func checkOperand(s string) error {
	if s == "" {
		return fmt.Errorf("%w: missing operand", ErrSyntax)
	}
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
		case ' ', '\t':
			if depth == 0 {
				return fmt.Errorf("%w: unexpected token in %q", ErrSyntax, s)
			}
		}
	}
	if quote != 0 {
		return fmt.Errorf("%w: unterminated string in %q", ErrSyntax, s)
	}
	if depth != 0 {
		return fmt.Errorf("%w: unbalanced parentheses in %q", ErrSyntax, s)
	}
	return nil
}
