// Package store persists small key-value preferences, such as the selected
// UI language, across process restarts.
package store

import (
	"context"
	"sync"
)

// PreferenceStore loads and saves string preferences by key.
type PreferenceStore interface {
	// Load returns the stored value and true, or false when the key was
	// never saved.
	Load(ctx context.Context, key string) (string, bool, error)
	// Save stores value under key, replacing any previous value.
	Save(ctx context.Context, key, value string) error
}

// MemoryStore keeps preferences in process memory. It is the default when
// no persistent store is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemoryStore) Save(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

var (
	_ PreferenceStore = (*MemoryStore)(nil)
	_ PreferenceStore = (*FileStore)(nil)
	_ PreferenceStore = (*SQLiteStore)(nil)
)
