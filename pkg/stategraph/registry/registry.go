package registry

import "sync"

// Registry is a thread-safe map of values indexed by key.
// Function tables, condition tables and the graph and run catalogs are
// all built on it. Reads take a shared lock.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates an empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Register stores value under key, replacing any previous entry.
func (r *Registry[K, V]) Register(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
}

// Add stores value under key only if the key is not taken.
// Returns false and leaves the registry untouched when it is.
func (r *Registry[K, V]) Add(key K, value V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return false
	}
	r.entries[key] = value
	return true
}

// Get returns the value for key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Has reports whether key is registered.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Delete removes key. Returns false if it was not registered.
func (r *Registry[K, V]) Delete(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	return true
}

// DeleteFunc removes key only if allow returns true for its current value.
// The check and the removal happen under one lock, so no writer can slip in
// between them. The first result reports whether the key existed, the
// second whether it was removed.
func (r *Registry[K, V]) DeleteFunc(key K, allow func(V) bool) (found, deleted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[key]
	if !ok {
		return false, false
	}
	if !allow(v) {
		return true, false
	}
	delete(r.entries, key)
	return true, true
}

// Keys returns all keys. The order is not guaranteed.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// Values returns all values. The order is not guaranteed.
func (r *Registry[K, V]) Values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()

	values := make([]V, 0, len(r.entries))
	for _, v := range r.entries {
		values = append(values, v)
	}
	return values
}

// Len returns the number of entries.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for each entry until fn returns false.
//
// Range walks a snapshot taken under the read lock, so fn may call
// Register or Delete without deadlocking and without affecting the walk.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	snapshot := make(map[K]V, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}
