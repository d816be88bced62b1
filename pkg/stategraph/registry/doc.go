// Package registry provides a generic thread-safe map keyed by any
// comparable type.
//
// stategraph uses it for every lookup table that is written rarely and read
// on every node execution: the node function table, the condition table, the
// graph catalog and the run catalog.
//
// # Basic Usage
//
//	r := registry.New[string, int]()
//	r.Register("one", 1)
//
//	value, ok := r.Get("one")
//
// # Unique Keys
//
// Add refuses to overwrite an existing entry, which is how catalogs reject
// identifier collisions:
//
//	if !runs.Add(id, run) {
//	    return fmt.Errorf("duplicate run id %s", id)
//	}
//
// # Conditional Removal
//
// DeleteFunc checks and removes in one critical section. The run catalog
// uses it to refuse deleting a run that is still executing:
//
//	found, deleted := runs.DeleteFunc(id, func(r *Run) bool { return r.Terminal() })
//
// # Thread Safety
//
// All methods are safe for concurrent use. Range iterates over a snapshot,
// so callbacks may mutate the registry.
package registry
