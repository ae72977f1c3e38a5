package state

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Entry is one record held by MemoryStore.
type Entry struct {
	Value    []byte
	Metadata map[string]string
}

// MemoryStore is a caller-owned in-memory store for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

// Write implements Store.
func (m *MemoryStore) Write(_ context.Context, key string, value []byte, metadata map[string]string) error {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = Entry{Value: append([]byte(nil), value...), Metadata: md}
	return nil
}

// Read implements Reader.
func (m *MemoryStore) Read(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.Value...), true, nil
}

// Entry returns the stored record for key.
func (m *MemoryStore) Entry(key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok
}

// Keys lists stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FailingStore rejects every write. Hosts without persistence use it so that
// publish operations surface state_error rather than silently dropping data.
type FailingStore struct {
	Err error
}

// Write implements Store.
func (f FailingStore) Write(_ context.Context, key string, _ []byte, _ map[string]string) error {
	err := f.Err
	if err == nil {
		err = errors.New("state store not configured")
	}
	return persistenceError("write", key, err)
}

var (
	_ ReadWriter = (*MemoryStore)(nil)
	_ Store      = FailingStore{}
)
