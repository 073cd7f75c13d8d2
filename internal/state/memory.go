package state

import "sync"

// Memory is an in-process backend. Nothing survives a restart, so it
// suits tests and throwaway sessions.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key, or nil if absent.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}

	return append([]byte(nil), v...), nil
}

// PutAll writes every entry under one lock.
func (m *Memory) PutAll(entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range entries {
		m.data[k] = append([]byte(nil), v...)
	}

	return nil
}

// DeleteAll removes every key under one lock.
func (m *Memory) DeleteAll(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.data, k)
	}

	return nil
}
