package checkpoint

import (
	"slices"
	"sync"
)

// MemoryStore is an in-memory checkpoint store.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[int]storedCheckpoint // runID -> sequence -> checkpoint
	closed bool
}

type storedCheckpoint struct {
	data []byte
	info Info
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[int]storedCheckpoint),
	}
}

// Save implements Store. The checkpoint is serialized so later changes by
// the caller are not observed.
func (m *MemoryStore) Save(cp *Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	data, err := cp.Marshal()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if m.data[cp.RunID] == nil {
		m.data[cp.RunID] = make(map[int]storedCheckpoint)
	}
	m.data[cp.RunID][cp.Sequence] = storedCheckpoint{
		data: data,
		info: Info{
			RunID:     cp.RunID,
			NodeID:    cp.NodeID,
			Sequence:  cp.Sequence,
			Timestamp: cp.Timestamp,
			Size:      int64(len(data)),
		},
	}
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID string, sequence int) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	stored, ok := m.data[runID][sequence]
	if !ok {
		return nil, ErrNotFound
	}
	return Unmarshal(stored.data)
}

// Latest implements Store.
func (m *MemoryStore) Latest(runID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	run := m.data[runID]
	if len(run) == 0 {
		return nil, ErrNotFound
	}
	latest := 0
	for seq := range run {
		latest = max(latest, seq)
	}
	return Unmarshal(run[latest].data)
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	run := m.data[runID]
	infos := make([]Info, 0, len(run))
	for _, stored := range run {
		infos = append(infos, stored.info)
	}
	slices.SortFunc(infos, func(a, b Info) int { return a.Sequence - b.Sequence })
	return infos, nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the total number of checkpoints across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, run := range m.data {
		count += len(run)
	}
	return count
}
