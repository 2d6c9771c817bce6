package artifact

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/trunov/convo/internal/entities"
)

// MemoryStore is a bounded in-process store. The least recently used entry is
// evicted when the store is full.
type MemoryStore struct {
	// mu serializes Take against Remove so a payload is handed out once.
	mu    sync.Mutex
	items *expirable.LRU[string, entities.Blob]
}

func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	return &MemoryStore{items: expirable.NewLRU[string, entities.Blob](maxEntries, nil, EffectiveTTL(ttl))}
}

func (s *MemoryStore) Put(_ context.Context, id string, blob entities.Blob) error {
	s.items.Add(id, blob)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (entities.Blob, error) {
	blob, ok := s.items.Get(id)
	if !ok {
		return entities.Blob{}, ErrNotFound
	}
	return blob, nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Remove(id), nil
}

func (s *MemoryStore) Take(_ context.Context, id string) (entities.Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, ok := s.items.Peek(id)
	if !ok || !s.items.Remove(id) {
		return entities.Blob{}, ErrNotFound
	}
	return blob, nil
}

func (s *MemoryStore) Len() int { return s.items.Len() }
