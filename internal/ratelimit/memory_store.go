package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int
	expires time.Time
}

// MemoryStore is a process-local Store for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Take(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	e, ok := s.entries[key]
	if !ok || !now.Before(e.expires) {
		// First request in a window, or the previous window elapsed.
		e = &memoryEntry{count: 1, expires: now.Add(window)}
		s.entries[key] = e
		return Result{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: e.expires}, nil
	}

	if e.count >= limit {
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: e.expires}, nil
	}

	e.count++
	return Result{Allowed: true, Limit: limit, Remaining: limit - e.count, ResetAt: e.expires}, nil
}
