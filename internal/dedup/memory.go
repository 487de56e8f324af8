package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps the ledger in process. Each task's set expires ttl after
// its last write so finished tasks do not accumulate.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

// NewMemoryStore creates an in-memory ledger. A non-positive ttl keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		return &MemoryStore{cache: cache.New(cache.NoExpiration, 0)}
	}
	return &MemoryStore{cache: cache.New(ttl, ttl/2)}
}

func (s *MemoryStore) MarkReviewed(_ context.Context, taskID, filePath string) error {
	if err := validate(taskID, filePath); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, _ := s.lookup(taskID)
	if set == nil {
		set = make(map[string]struct{})
	}
	set[filePath] = struct{}{}
	s.cache.Set(taskID, set, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) GetReviewed(_ context.Context, taskID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, _ := s.lookup(taskID)
	out := make(map[string]struct{}, len(set))
	for path := range set {
		out[path] = struct{}{}
	}
	return out, nil
}

// lookup must be called with mu held.
func (s *MemoryStore) lookup(taskID string) (map[string]struct{}, bool) {
	v, ok := s.cache.Get(taskID)
	if !ok {
		return nil, false
	}
	set, ok := v.(map[string]struct{})
	return set, ok
}
