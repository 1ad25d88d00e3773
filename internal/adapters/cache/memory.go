package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// memoryItem stores a serialized value with expiration
type memoryItem struct {
	data     []byte
	expireAt time.Time
}

func (m *memoryItem) expired() bool {
	return !m.expireAt.IsZero() && time.Now().After(m.expireAt)
}

// MemoryStore implements Store with in-process storage. It keeps the same
// JSON round-trip semantics as the Redis store so components behave
// identically against either backend. Used for tests and single-node runs
// without Redis.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*memoryItem
}

// NewMemoryStore creates an in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*memoryItem),
	}
}

// Get retrieves and unmarshals the value at key
func (s *MemoryStore) Get(_ context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	item, ok := s.data[key]
	if !ok || item.expired() {
		if ok {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return ErrMiss
	}
	data := item.data
	s.mu.Unlock()

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

// Set marshals value and stores it with the given TTL
func (s *MemoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	var expireAt time.Time
	if ttl > 0 {
		expireAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.data[key] = &memoryItem{data: data, expireAt: expireAt}
	s.mu.Unlock()

	return nil
}

// Delete removes keys
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	for _, key := range keys {
		delete(s.data, key)
	}
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}
