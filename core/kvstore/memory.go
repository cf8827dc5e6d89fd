package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// MemoryStore is an in-process Store for development and tests. It keeps
// values as marshaled JSON so reads observe the same shapes as the persistent
// drivers.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return errors.Join(ErrEncodeValue, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = b
	return nil
}
