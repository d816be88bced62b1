package expr

import (
	"errors"
	"regexp"
	"testing"
)

func TestEval_Equality(t *testing.T) {
	tests := []struct {
		name string
		expr string
		vars map[string]any
		want bool
	}{
		{"quoted string", "status == 'active'", map[string]any{"status": "active"}, true},
		{"double quoted string", `status == "active"`, map[string]any{"status": "active"}, true},
		{"string mismatch", "status == 'inactive'", map[string]any{"status": "active"}, false},
		{"number", "count == 5", map[string]any{"count": 5.0}, true},
		{"int and float are numerically equal", "count == 5.0", map[string]any{"count": 5}, true},
		{"number vs numeric string", "count == '5'", map[string]any{"count": 5.0}, false},
		{"boolean", "enabled == true", map[string]any{"enabled": true}, true},
		{"two variables", "a == b", map[string]any{"a": "x", "b": "x"}, true},
		{"missing equals null", "missing == null", map[string]any{}, true},
		{"not equal", "status != 'done'", map[string]any{"status": "active"}, true},
		{"not equal false", "status != 'active'", map[string]any{"status": "active"}, false},
		{"quoted operator text", "op == '>='", map[string]any{"op": ">="}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.expr, tt.vars)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Ordering(t *testing.T) {
	vars := map[string]any{"score": 65.0, "name": "bob", "label": "x"}
	tests := []struct {
		expr string
		want bool
	}{
		{"score > 49", true},
		{"score > 79", false},
		{"score >= 65", true},
		{"score <= 64", false},
		{"score < 100", true},
		{"name < 'carol'", true},
		{"name > 'carol'", false},
		{"missing < 5", false},
		{"missing > 5", false},
		{"label > 1", false},
		{"1 < 2", true},
		{"-1 < 0", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, vars)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_StatePrefixAndPaths(t *testing.T) {
	vars := map[string]any{
		"iteration_count": 2.0,
		"meta": map[string]any{
			"owner": map[string]any{"name": "ops"},
		},
	}
	tests := []struct {
		expr string
		want bool
	}{
		{"state.iteration_count > 1", true},
		{"iteration_count > 1", true},
		{"state.iteration_count > 2", false},
		{"meta.owner.name == 'ops'", true},
		{"state.meta.owner.name == 'ops'", true},
		{"meta.owner.missing == null", true},
		{"meta.owner.name.deeper == null", true},
		{"state.missing", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, vars)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Contains(t *testing.T) {
	vars := map[string]any{
		"message": "disk error on node",
		"tags":    []any{"a", 2.0},
		"meta":    map[string]any{"k": "v"},
		"count":   3.0,
	}
	tests := []struct {
		expr string
		want bool
	}{
		{"message contains 'error'", true},
		{"message contains 'warning'", false},
		{"tags contains 'a'", true},
		{"tags contains 2", true},
		{"tags contains 'b'", false},
		{"meta contains 'k'", true},
		{"meta contains 'v'", false},
		{"count contains 3", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, vars)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Logical(t *testing.T) {
	vars := map[string]any{"a": true, "b": false, "n": 3.0}
	tests := []struct {
		expr string
		want bool
	}{
		{"a and b", false},
		{"a or b", true},
		{"not b", true},
		{"!a", false},
		{"not not a", true},
		{"b or a and b", false},
		{"a or b and b", true},
		{"not a or a", true},
		{"(a or b) and b", false},
		{"not (b or b)", true},
		{"n > 1 and n < 5", true},
		{"n > 1 and (n < 2 or a)", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, vars)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_SyntaxErrors(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"score >",
		"== 5",
		"a and",
		"name == 'unterminated",
		"(a or b",
		"not",
	}

	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			_, err := Eval(expr, map[string]any{"a": true})
			if !errors.Is(err, ErrSyntax) {
				t.Errorf("Eval(%q) error = %v, want ErrSyntax", expr, err)
			}
		})
	}
}

func TestEvaluator_Check(t *testing.T) {
	e := New()
	if err := e.Check("state.score > 79"); err != nil {
		t.Errorf("Check() error = %v", err)
	}
	if err := e.Check("score >"); err == nil {
		t.Error("Check() expected error for dangling operator")
	}
}

func TestEvaluator_WithCustomOperator(t *testing.T) {
	e := New(WithCustomOperator("matches", func(left, right any) bool {
		l, lok := left.(string)
		r, rok := right.(string)
		if !lok || !rok {
			return false
		}
		ok, _ := regexp.MatchString(r, l)
		return ok
	}))

	got, err := e.Evaluate("name matches '^test'", map[string]any{"name": "testing"})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !got {
		t.Error("expected custom operator to match")
	}

	got, err = e.Evaluate("name matches '^prod' or count > 1", map[string]any{"name": "testing", "count": 2.0})
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if !got {
		t.Error("expected custom operator to combine with or")
	}
}

func TestResolve(t *testing.T) {
	vars := map[string]any{"x": "var", "nested": map[string]any{"y": 1.0}}
	tests := []struct {
		in   string
		want any
	}{
		{"'quoted'", "quoted"},
		{`"double"`, "double"},
		{"''", ""},
		{"true", true},
		{"False", false},
		{"null", nil},
		{"None", nil},
		{"42", 42.0},
		{"-3.5", -3.5},
		{"x", "var"},
		{"state.x", "var"},
		{"nested.y", 1.0},
		{"unknown", nil},
		{"nan", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Resolve(tt.in, vars); got != tt.want {
				t.Errorf("Resolve(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"true", true, true},
		{"false", false, false},
		{"empty string", "", false},
		{"string", "x", true},
		{"zero", 0.0, false},
		{"int", 3, true},
		{"empty list", []any{}, false},
		{"list", []any{1.0}, true},
		{"empty map", map[string]any{}, false},
		{"map", map[string]any{"k": 1.0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTruthy(tt.v); got != tt.want {
				t.Errorf("IsTruthy(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		l, r any
		want bool
	}{
		{"numbers across types", 3, 3.0, true},
		{"string vs number", "3", 3.0, false},
		{"nil vs nil", nil, nil, true},
		{"nil vs string", nil, "", false},
		{"lists", []any{1.0, "a"}, []any{1, "a"}, true},
		{"lists differ", []any{1.0}, []any{2.0}, false},
		{"maps", map[string]any{"k": 1.0}, map[string]any{"k": 1}, true},
		{"maps differ", map[string]any{"k": 1.0}, map[string]any{"j": 1.0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.l, tt.r); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tt.l, tt.r, got, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	got, err := Compare(5.0, 3, ">")
	if err != nil || !got {
		t.Errorf("Compare(5, 3, >) = %v, %v", got, err)
	}
	if _, err := Compare(1, 2, "~="); err == nil {
		t.Error("Compare() expected error for unknown operator")
	}
}

func TestLookup(t *testing.T) {
	vars := map[string]any{
		"a.b": "literal dotted key",
		"a":   map[string]any{"b": "nested"},
	}

	got, ok := Lookup(vars, "a.b")
	if !ok || got != "literal dotted key" {
		t.Errorf("Lookup(a.b) = %v, %v; exact keys win over paths", got, ok)
	}
	if _, ok := Lookup(nil, "a"); ok {
		t.Error("Lookup(nil) should not find anything")
	}
	if _, ok := Lookup(vars, "a.c"); ok {
		t.Error("Lookup(a.c) should miss")
	}
}
