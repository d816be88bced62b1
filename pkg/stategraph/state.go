package stategraph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph/expr"
)

// State is the key/value map shared by every node of one run.
//
// State is NOT safe for concurrent use. The engine owns a run's State for
// the run's lifetime; everything handed to callers is a Clone.
type State struct {
	values map[string]Value
}

// NewState creates an empty state.
func NewState() *State {
	return &State{values: make(map[string]Value)}
}

// StateFrom converts a native map into a State.
// A nil map yields an empty state.
func StateFrom(m map[string]any) (*State, error) {
	st := NewState()
	for k, raw := range m {
		v, err := FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("state key %s: %w", k, err)
		}
		st.values[k] = v
	}
	return st, nil
}

// MustState is StateFrom for literals in tests and examples.
// It panics on unsupported value types.
func MustState(m map[string]any) *State {
	st, err := StateFrom(m)
	if err != nil {
		panic("stategraph: " + err.Error())
	}
	return st
}

// Get returns the value for key and whether the key is present.
func (s *State) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set writes key. Last write wins.
func (s *State) Set(key string, v Value) {
	if s.values == nil {
		s.values = make(map[string]Value)
	}
	s.values[key] = v
}

// Has reports whether key is present, regardless of its value.
func (s *State) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Lookup resolves a path the way expression conditions name keys: an exact
// key wins, the "state." prefix is optional, and each dotted segment after
// the first addresses a key of a nested map.
func (s *State) Lookup(path string) (Value, bool) {
	if v, ok := s.values[path]; ok {
		return v, true
	}
	path = strings.TrimPrefix(path, expr.StatePrefix)
	if v, ok := s.values[path]; ok {
		return v, true
	}

	segs := strings.Split(path, ".")
	cur, ok := s.values[segs[0]]
	if !ok {
		return Value{}, false
	}
	for _, seg := range segs[1:] {
		if cur.kind != KindMap {
			return Value{}, false
		}
		if cur, ok = cur.dict[seg]; !ok {
			return Value{}, false
		}
	}
	return cur, true
}

// Delete removes key.
func (s *State) Delete(key string) {
	delete(s.values, key)
}

// Keys returns the keys in sorted order.
func (s *State) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (s *State) Len() int {
	return len(s.values)
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	out := &State{values: make(map[string]Value, len(s.values))}
	for k, v := range s.values {
		out.values[k] = v.Clone()
	}
	return out
}

// ToMap returns the state as native Go values.
func (s *State) ToMap() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v.Any()
	}
	return out
}

// Equal reports whether both states hold the same keys with equal values.
func (s *State) Equal(other *State) bool {
	if s.Len() != other.Len() {
		return false
	}
	for k, v := range s.values {
		ov, ok := other.values[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the state as a JSON object.
func (s *State) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s.values)
}

// UnmarshalJSON replaces the state with a decoded JSON object.
func (s *State) UnmarshalJSON(data []byte) error {
	var values map[string]Value
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	if values == nil {
		values = make(map[string]Value)
	}
	s.values = values
	return nil
}
