// Package storage is the durable key-value contract the rest of the service
// persists through: door states keyed by door id, members keyed by member id.
// The backend is interchangeable; callers must tolerate it being absent, so
// the factory degrades to a memory-only store instead of failing.
package storage

import (
	"sync"
	"time"
)

// Store is a durable put/get keyed store. Get returns (nil, nil) for a
// missing key.
type Store interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	Close() error
}

// kv is the subset of the fiber storage driver contract we rely on.
type kv interface {
	Get(key string) ([]byte, error)
	Set(key string, val []byte, exp time.Duration) error
	Delete(key string) error
	Close() error
}

// MemoryStore is the in-process fallback used when no durable backend is
// configured or reachable. State lives only for the process lifetime.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemory() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]byte, len(value))
	copy(copied, value)
	s.values[key] = copied
	return nil
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
