package storage

import (
	"sort"
	"sync"
	"time"
)

// MemoryStorage keeps state blobs in process memory. State is lost on exit.
type MemoryStorage struct {
	mu       sync.Mutex
	states   map[string][]byte
	searches []SearchRecord
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{states: make(map[string][]byte)}
}

func (m *MemoryStorage) Init() error { return nil }

func (m *MemoryStorage) LoadState(scope string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	blob, ok := m.states[scope]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

func (m *MemoryStorage) SaveState(scope string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(blob))
	copy(stored, blob)
	m.states[scope] = stored
	return nil
}

func (m *MemoryStorage) DeleteState(scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, scope)
	return nil
}

func (m *MemoryStorage) ListScopes() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	scopes := make([]string, 0, len(m.states))
	for scope := range m.states {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes, nil
}

func (m *MemoryStorage) RecordSearch(search SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.searches = append(m.searches, search)
	return nil
}

// Searches returns a copy of the recorded searches.
func (m *MemoryStorage) Searches() []SearchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SearchRecord, len(m.searches))
	copy(out, m.searches)
	return out
}

func (m *MemoryStorage) Cleanup(retention time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	kept := m.searches[:0]
	for _, s := range m.searches {
		if !s.Timestamp.Before(cutoff) {
			kept = append(kept, s)
		}
	}
	m.searches = kept
	return nil
}

func (m *MemoryStorage) Close() error { return nil }
