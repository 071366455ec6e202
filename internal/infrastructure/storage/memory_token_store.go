package storage

import (
	"context"
	"sync"

	"TasteClient/internal/ports"
)

// MemoryTokenStore keeps values for the lifetime of the process only.
type MemoryTokenStore struct {
	mu     sync.Mutex
	values map[string]string
}

var _ ports.TokenPersister = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore builds an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{values: map[string]string{}}
}

func (m *MemoryTokenStore) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryTokenStore) Save(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryTokenStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
