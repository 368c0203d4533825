package repository

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"jertine-site/internal/domain"
)

const defaultMaxKeys = 10000

// MemoryStore keeps rate records in a bounded LRU. Expired records are dropped
// when read; the least recently seen key is evicted once the bound is hit.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache
	now   func() time.Time
}

// NewMemoryStore creates a store holding at most maxKeys client keys.
func NewMemoryStore(maxKeys int) *MemoryStore {
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}
	return &MemoryStore{cache: lru.New(maxKeys), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (domain.RateRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(key)
	if !ok {
		return domain.RateRecord{}, false, nil
	}
	rec := v.(domain.RateRecord)
	if rec.Expired(s.now()) {
		s.cache.Remove(key)
		return domain.RateRecord{}, false, nil
	}
	return rec, true, nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, now time.Time, window time.Duration) (domain.RateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec domain.RateRecord
	if v, ok := s.cache.Get(key); ok {
		rec = v.(domain.RateRecord)
	}
	if rec.Count == 0 || rec.Expired(now) {
		rec = domain.RateRecord{Count: 1, ResetAt: now.Add(window)}
	} else {
		rec.Count++
	}
	s.cache.Add(key, rec)
	return rec, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, rec domain.RateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(key, rec)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(key)
	return nil
}

// Len reports the number of tracked keys, including not yet pruned ones.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
