// internal/infra/session/memory_store.go
package session

import (
	"context"
	"sync"
	"time"

	"course_runtime/internal/domain/session"
)

type memoryItem struct {
	value   string
	expires time.Time
}

// MemoryStore is the in-process volatile channel used when no Redis is
// configured. Values expire after ttl; a zero ttl keeps them forever.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return "", session.ErrKeyNotFound
	}
	if !item.expires.IsZero() && !s.now().Before(item.expires) {
		delete(s.items, key)
		return "", session.ErrKeyNotFound
	}
	return item.value, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := memoryItem{value: value}
	if s.ttl > 0 {
		item.expires = s.now().Add(s.ttl)
	}
	s.items[key] = item
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Purge drops expired entries and returns how many were removed.
func (s *MemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, item := range s.items {
		if !item.expires.IsZero() && !now.Before(item.expires) {
			delete(s.items, key)
			removed++
		}
	}
	return removed
}
