package stategraph

import (
	"testing"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/stretchr/testify/assert"
)

func TestConditions_Evaluate(t *testing.T) {
	conds := DefaultConditions()
	st := MustState(map[string]any{
		"score":  95,
		"status": "approved",
		"ready":  true,
		"empty":  nil,
		"label":  "80",
		"meta":   map[string]any{"attempts": 2},
		"count":  1,
	})

	tests := []struct {
		name string
		cond *ConditionSpec
		want bool
	}{
		{"no condition", nil, true},
		{"unregistered type", &ConditionSpec{Type: "nope"}, false},

		{"key_equals string", &ConditionSpec{Type: CondKeyEquals, Params: map[string]any{"key": "status", "value": "approved"}}, true},
		{"key_equals string mismatch", &ConditionSpec{Type: CondKeyEquals, Params: map[string]any{"key": "status", "value": "rejected"}}, false},
		{"key_equals number across types", &ConditionSpec{Type: CondKeyEquals, Params: map[string]any{"key": "score", "value": 95.0}}, true},
		{"key_equals number vs string", &ConditionSpec{Type: CondKeyEquals, Params: map[string]any{"key": "score", "value": "95"}}, false},
		{"key_equals bool", &ConditionSpec{Type: CondKeyEquals, Params: map[string]any{"key": "ready", "value": true}}, true},
		{"key_equals bool vs number", &ConditionSpec{Type: CondKeyEquals, Params: map[string]any{"key": "count", "value": true}}, false},
		{"key_equals missing key", &ConditionSpec{Type: CondKeyEquals, Params: map[string]any{"key": "missing", "value": nil}}, false},
		{"key_equals null without value", &ConditionSpec{Type: CondKeyEquals, Params: map[string]any{"key": "empty"}}, true},
		{"key_equals map", &ConditionSpec{Type: CondKeyEquals, Params: map[string]any{"key": "meta", "value": map[string]any{"attempts": 2}}}, true},

		{"key_exists present", &ConditionSpec{Type: CondKeyExists, Params: map[string]any{"key": "score"}}, true},
		{"key_exists null value", &ConditionSpec{Type: CondKeyExists, Params: map[string]any{"key": "empty"}}, true},
		{"key_exists missing", &ConditionSpec{Type: CondKeyExists, Params: map[string]any{"key": "missing"}}, false},

		{"key_greater_than 79 with 95", &ConditionSpec{Type: CondKeyGreaterThan, Params: map[string]any{"key": "score", "threshold": 79}}, true},
		{"key_greater_than equal is false", &ConditionSpec{Type: CondKeyGreaterThan, Params: map[string]any{"key": "score", "threshold": 95}}, false},
		{"key_greater_than missing key", &ConditionSpec{Type: CondKeyGreaterThan, Params: map[string]any{"key": "missing", "threshold": 0}}, false},
		{"key_greater_than numeric string", &ConditionSpec{Type: CondKeyGreaterThan, Params: map[string]any{"key": "label", "threshold": 1}}, false},
		{"key_greater_than default threshold", &ConditionSpec{Type: CondKeyGreaterThan, Params: map[string]any{"key": "count"}}, true},

		{"expression true", &ConditionSpec{Type: CondExpression, Params: map[string]any{"expr": "state.score > 90"}}, true},
		{"expression without prefix", &ConditionSpec{Type: CondExpression, Params: map[string]any{"expr": "status == 'approved' and ready"}}, true},
		{"expression nested path", &ConditionSpec{Type: CondExpression, Params: map[string]any{"expr": "state.meta.attempts >= 2"}}, true},
		{"expression missing key", &ConditionSpec{Type: CondExpression, Params: map[string]any{"expr": "state.iteration_count > 1"}}, false},
		{"expression bad syntax is false", &ConditionSpec{Type: CondExpression, Params: map[string]any{"expr": "score >"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, conds.Evaluate(st, tt.cond))
		})
	}
}

// TestKeyGreaterThan_Scores tests the grading thresholds.
func TestKeyGreaterThan_Scores(t *testing.T) {
	cond := &ConditionSpec{Type: CondKeyGreaterThan, Params: map[string]any{"key": "score", "threshold": 79}}
	conds := DefaultConditions()

	assert.True(t, conds.Evaluate(MustState(map[string]any{"score": 95}), cond))
	assert.False(t, conds.Evaluate(MustState(map[string]any{"score": 65}), cond))
	assert.False(t, conds.Evaluate(NewState(), cond))
}

// TestConditions_DoNotMutate tests that evaluation leaves the state alone.
func TestConditions_DoNotMutate(t *testing.T) {
	st := MustState(map[string]any{"score": 50, "meta": map[string]any{"a": 1}})
	before := st.Clone()

	conds := DefaultConditions()
	for _, tag := range conds.Tags() {
		conds.Evaluate(st, &ConditionSpec{Type: tag, Params: map[string]any{"key": "score", "expr": "meta.a == 1"}})
	}
	assert.True(t, before.Equal(st))
}

func TestConditions_Register(t *testing.T) {
	conds := NewConditions()
	assert.Empty(t, conds.Tags())

	conds.Register("key_less_than", func(st *State, params config.Config) bool {
		v, ok := st.Get(params.String("key", ""))
		n, isNum := v.AsNumber()
		return ok && isNum && n < params.Float("threshold", 0)
	}, "key", "threshold")

	assert.True(t, conds.Has("key_less_than"))
	assert.Equal(t, []string{"key_less_than"}, conds.Tags())

	cond, ok := conds.Lookup("key_less_than")
	assert.True(t, ok)
	assert.Equal(t, []string{"key", "threshold"}, cond.Required)

	assert.True(t, conds.Evaluate(MustState(map[string]any{"x": 1}),
		&ConditionSpec{Type: "key_less_than", Params: map[string]any{"key": "x", "threshold": 2}}))

	assert.Panics(t, func() { conds.Register("", cond.Eval) })
	assert.Panics(t, func() { conds.Register("nil", nil) })
}

func TestDefaultConditions_Independent(t *testing.T) {
	a := DefaultConditions()
	a.Register("extra", func(*State, config.Config) bool { return true })

	assert.True(t, a.Has("extra"))
	assert.False(t, DefaultConditions().Has("extra"))
	assert.Equal(t, []string{CondExpression, CondKeyEquals, CondKeyExists, CondKeyGreaterThan}, DefaultConditions().Tags())
}
