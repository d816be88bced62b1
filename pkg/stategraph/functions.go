package stategraph

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
	"github.com/randalmurphal/stategraph/pkg/stategraph/template"
)

// Built-in function types.
const (
	FuncSetValue  = "set_value"
	FuncTransform = "transform"
	FuncAggregate = "aggregate"
	FuncCustom    = "custom"
)

// NodeFunc transforms the run's state in place.
// params are the node's function_params; returning an error fails the run
// and keeps whatever mutations already happened.
type NodeFunc func(ctx Context, st *State, params config.Config) error

// Function is a registered node function together with the params it needs.
type Function struct {
	// Fn is the transformation.
	Fn NodeFunc
	// Required lists params that must be present; checked at compile time.
	Required []string
	// Validate optionally checks params at compile time.
	Validate func(params config.Config) error
}

// Functions maps function-type tags to node functions.
// Safe for concurrent use.
type Functions struct {
	reg *registry.Registry[string, Function]
}

// NewFunctions creates an empty function table.
func NewFunctions() *Functions {
	return &Functions{reg: registry.New[string, Function]()}
}

// DefaultFunctions creates a table holding the built-ins: set_value,
// transform, aggregate and custom. Each call returns a fresh table, so
// registering domain functions on it never leaks into other callers.
func DefaultFunctions() *Functions {
	f := NewFunctions()
	f.RegisterFunction(FuncSetValue, Function{
		Fn:       setValue,
		Required: []string{"key"},
		Validate: stringParams("key"),
	})
	f.RegisterFunction(FuncTransform, Function{
		Fn:       transform,
		Required: []string{"input_key"},
		Validate: stringParams("input_key", "output_key", "operation"),
	})
	f.RegisterFunction(FuncAggregate, Function{
		Fn:       aggregate,
		Required: []string{"input_keys", "output_key"},
		Validate: validateAggregate,
	})
	f.RegisterFunction(FuncCustom, Function{Fn: custom})
	return f
}

// builtinFunctions backs Compile when no table is supplied. Never exposed.
var builtinFunctions = DefaultFunctions()

// Register adds or replaces fn under tag. required params are checked when
// a graph using tag is compiled.
//
// Panics if tag is empty or fn is nil.
func (f *Functions) Register(tag string, fn NodeFunc, required ...string) *Functions {
	return f.RegisterFunction(tag, Function{Fn: fn, Required: required})
}

// RegisterFunction adds or replaces a fully described function under tag.
//
// Panics if tag is empty or fn.Fn is nil.
func (f *Functions) RegisterFunction(tag string, fn Function) *Functions {
	if tag == "" {
		panic("stategraph: function type cannot be empty")
	}
	if fn.Fn == nil {
		panic(fmt.Sprintf("stategraph: function %s cannot be nil", tag))
	}
	fn.Required = append([]string(nil), fn.Required...)
	f.reg.Register(tag, fn)
	return f
}

// Lookup returns the function registered under tag.
func (f *Functions) Lookup(tag string) (Function, bool) {
	return f.reg.Get(tag)
}

// Has reports whether tag is registered.
func (f *Functions) Has(tag string) bool {
	return f.reg.Has(tag)
}

// Tags returns the registered tags in sorted order.
func (f *Functions) Tags() []string {
	tags := f.reg.Keys()
	sort.Strings(tags)
	return tags
}

// check validates params against fn's declared requirements.
func (fn Function) check(params config.Config) []error {
	var errs []error
	for _, key := range params.Missing(fn.Required...) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingParam, key))
	}
	if fn.Validate != nil && len(errs) == 0 {
		if err := fn.Validate(params); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// setValue writes params.key only if it is absent or params.force is true.
func setValue(_ Context, st *State, params config.Config) error {
	key := params.String("key", "")
	if st.Has(key) && !params.Bool("force", false) {
		return nil
	}
	v, err := FromAny(params.Any("value", nil))
	if err != nil {
		return err
	}
	st.Set(key, v)
	return nil
}

// transform applies params.operation to params.input_key and writes the
// result to params.output_key (defaults to input_key). Unknown operations
// copy the value through unchanged.
func transform(_ Context, st *State, params config.Config) error {
	in := params.String("input_key", "")
	out := params.String("output_key", in)

	v, ok := st.Get(in)
	if !ok {
		return &MissingKeyError{Key: in}
	}

	var result Value
	switch op := params.String("operation", ""); op {
	case "uppercase":
		result = String(strings.ToUpper(v.Text()))
	case "lowercase":
		result = String(strings.ToLower(v.Text()))
	case "double", "increment":
		n, ok := v.AsNumber()
		if !ok {
			return &TypeMismatchError{Key: in, Want: KindNumber.String(), Got: v.Kind().String()}
		}
		if op == "double" {
			n *= 2
		} else {
			n++
		}
		var err error
		if result, err = finite(out, n); err != nil {
			return err
		}
	case "append":
		suffix, err := FromAny(params.Any("append_value", ""))
		if err != nil {
			return err
		}
		result = String(v.Text() + suffix.Text())
	default:
		result = v.Clone()
	}

	st.Set(out, result)
	return nil
}

// aggregate combines the present params.input_keys with params.operation
// (sum, product, concat, list) into params.output_key. Absent keys are
// skipped. Unknown operations behave as list.
func aggregate(_ Context, st *State, params config.Config) error {
	keys := params.StringSlice("input_keys", nil)
	out := params.String("output_key", "")
	op := params.String("operation", "sum")

	present := make([]string, 0, len(keys))
	values := make([]Value, 0, len(keys))
	for _, k := range keys {
		if v, ok := st.Get(k); ok {
			present = append(present, k)
			values = append(values, v)
		}
	}

	switch op {
	case "sum", "product":
		acc := 0.0
		if op == "product" {
			acc = 1
		}
		for i, v := range values {
			n, ok := v.AsNumber()
			if !ok {
				return &TypeMismatchError{Key: present[i], Want: KindNumber.String(), Got: v.Kind().String()}
			}
			if op == "sum" {
				acc += n
			} else {
				acc *= n
			}
		}
		result, err := finite(out, acc)
		if err != nil {
			return err
		}
		st.Set(out, result)
	case "concat":
		var b strings.Builder
		for _, v := range values {
			b.WriteString(v.Text())
		}
		st.Set(out, String(b.String()))
	default:
		st.Set(out, List(values...))
	}
	return nil
}

// finite rejects arithmetic results that overflowed, since state must stay
// JSON encodable.
func finite(key string, n float64) (Value, error) {
	if math.IsInf(n, 0) || math.IsNaN(n) {
		return Value{}, &TypeMismatchError{Key: key, Want: "finite number", Got: strconv.FormatFloat(n, 'g', -1, 64)}
	}
	return Number(n), nil
}

func validateAggregate(params config.Config) error {
	if params.StringSlice("input_keys", nil) == nil {
		return fmt.Errorf("%w: input_keys must be a list of keys", ErrInvalidParam)
	}
	return stringParams("output_key", "operation")(params)
}

// stringParams rejects keys that are present but not non-empty strings.
func stringParams(keys ...string) func(config.Config) error {
	return func(params config.Config) error {
		for _, k := range keys {
			if params.Has(k) && params.String(k, "") == "" {
				return fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidParam, k)
			}
		}
		return nil
	}
}

// custom records params.message on the history entry and leaves the state
// untouched. ${path} placeholders in the message are filled from the state;
// unresolved ones are kept as written.
func custom(ctx Context, st *State, params config.Config) error {
	ctx.Annotate(template.Expand(params.String("message", "custom node executed"), func(path string) (string, bool) {
		v, ok := st.Lookup(path)
		return v.Text(), ok
	}))
	return nil
}
