package stategraph

import (
	"fmt"
	"sort"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/expr"
	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
)

// Built-in condition types.
const (
	CondKeyEquals      = "key_equals"
	CondKeyExists      = "key_exists"
	CondKeyGreaterThan = "key_greater_than"
	CondExpression     = "expression"
)

// Predicate decides whether an edge is traversed.
// Predicates must not mutate st and never fail: anything they cannot
// evaluate is false.
type Predicate func(st *State, params config.Config) bool

// Condition is a registered predicate together with the params it needs.
type Condition struct {
	// Eval is the predicate.
	Eval Predicate
	// Required lists params that must be present; checked at compile time.
	Required []string
	// Validate optionally checks params at compile time.
	Validate func(params config.Config) error
}

// Conditions maps condition-type tags to predicates.
// Safe for concurrent use.
type Conditions struct {
	reg *registry.Registry[string, Condition]
}

// NewConditions creates an empty condition table.
func NewConditions() *Conditions {
	return &Conditions{reg: registry.New[string, Condition]()}
}

// DefaultConditions creates a table holding the built-ins: key_equals,
// key_exists, key_greater_than and expression.
func DefaultConditions() *Conditions {
	c := NewConditions()
	c.RegisterCondition(CondKeyEquals, Condition{
		Eval:     keyEquals,
		Required: []string{"key"},
		Validate: stringParams("key"),
	})
	c.RegisterCondition(CondKeyExists, Condition{
		Eval:     keyExists,
		Required: []string{"key"},
		Validate: stringParams("key"),
	})
	c.RegisterCondition(CondKeyGreaterThan, Condition{
		Eval:     keyGreaterThan,
		Required: []string{"key"},
		Validate: validateThreshold,
	})
	c.RegisterCondition(CondExpression, Condition{
		Eval:     expression,
		Required: []string{"expr"},
		Validate: validateExpression,
	})
	return c
}

var builtinConditions = DefaultConditions()

// Register adds or replaces pred under tag.
//
// Panics if tag is empty or pred is nil.
func (c *Conditions) Register(tag string, pred Predicate, required ...string) *Conditions {
	return c.RegisterCondition(tag, Condition{Eval: pred, Required: required})
}

// RegisterCondition adds or replaces a fully described condition under tag.
//
// Panics if tag is empty or cond.Eval is nil.
func (c *Conditions) RegisterCondition(tag string, cond Condition) *Conditions {
	if tag == "" {
		panic("stategraph: condition type cannot be empty")
	}
	if cond.Eval == nil {
		panic(fmt.Sprintf("stategraph: condition %s cannot be nil", tag))
	}
	cond.Required = append([]string(nil), cond.Required...)
	c.reg.Register(tag, cond)
	return c
}

// Lookup returns the condition registered under tag.
func (c *Conditions) Lookup(tag string) (Condition, bool) {
	return c.reg.Get(tag)
}

// Has reports whether tag is registered.
func (c *Conditions) Has(tag string) bool {
	return c.reg.Has(tag)
}

// Tags returns the registered tags in sorted order.
func (c *Conditions) Tags() []string {
	tags := c.reg.Keys()
	sort.Strings(tags)
	return tags
}

// Evaluate runs the condition registered under spec.Type against st.
// A nil spec is always satisfied; an unregistered type is never satisfied.
func (c *Conditions) Evaluate(st *State, spec *ConditionSpec) bool {
	if spec == nil {
		return true
	}
	cond, ok := c.Lookup(spec.Type)
	if !ok {
		return false
	}
	return cond.Eval(st, config.New(spec.Params))
}

func (cond Condition) check(params config.Config) []error {
	var errs []error
	for _, key := range params.Missing(cond.Required...) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingParam, key))
	}
	if cond.Validate != nil && len(errs) == 0 {
		if err := cond.Validate(params); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// keyEquals is true iff params.key is present and equal to params.value.
// An absent value param compares against null.
func keyEquals(st *State, params config.Config) bool {
	v, ok := st.Get(params.String("key", ""))
	if !ok {
		return false
	}
	want, err := FromAny(params.Any("value", nil))
	if err != nil {
		return false
	}
	return v.Equal(want)
}

func keyExists(st *State, params config.Config) bool {
	return st.Has(params.String("key", ""))
}

// keyGreaterThan is true iff params.key holds a number above
// params.threshold (default 0).
func keyGreaterThan(st *State, params config.Config) bool {
	v, ok := st.Get(params.String("key", ""))
	if !ok {
		return false
	}
	n, ok := v.AsNumber()
	if !ok {
		return false
	}
	return n > params.Float("threshold", 0)
}

func validateThreshold(params config.Config) error {
	if err := stringParams("key")(params); err != nil {
		return err
	}
	if !params.Has("threshold") {
		return nil
	}
	if _, ok := config.ToFloat(params.Any("threshold", nil)); !ok {
		return fmt.Errorf("%w: threshold must be a number", ErrInvalidParam)
	}
	return nil
}

var evaluator = expr.New()

// expression evaluates params.expr against the state. Keys may be written
// with or without a "state." prefix; dotted paths reach into nested maps.
func expression(st *State, params config.Config) bool {
	ok, err := evaluator.Evaluate(params.String("expr", ""), st.ToMap())
	return err == nil && ok
}

func validateExpression(params config.Config) error {
	src := params.String("expr", "")
	if src == "" {
		return fmt.Errorf("%w: expr must be a non-empty string", ErrInvalidParam)
	}
	if err := evaluator.Check(src); err != nil {
		return fmt.Errorf("%w: expr: %v", ErrInvalidParam, err)
	}
	return nil
}
