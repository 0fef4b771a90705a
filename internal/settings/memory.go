package settings

import (
	"context"
	"sync"
)

// MemoryStore keeps settings in process.
type MemoryStore struct {
	mu    sync.RWMutex
	saved *Settings
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.saved == nil {
		return Settings{}, ErrNotFound
	}
	return *m.saved, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s = s.Clamped()
	m.saved = &s
	return nil
}

var _ Store = (*MemoryStore)(nil)
