package repository

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 1000

// expiringSet is a mutex-guarded set of keys with per-key deadlines.
// Expired keys are swept every sweepEvery additions.
type expiringSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
	adds    int
	now     func() time.Time
}

func newExpiringSet() *expiringSet {
	return &expiringSet{entries: make(map[string]time.Time), now: time.Now}
}

func (s *expiringSet) add(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if deadline, ok := s.entries[key]; ok && now.Before(deadline) {
		return false
	}
	s.entries[key] = now.Add(ttl)

	s.adds++
	if s.adds%sweepEvery == 0 {
		for k, deadline := range s.entries {
			if !now.Before(deadline) {
				delete(s.entries, k)
			}
		}
	}
	return true
}

func (s *expiringSet) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// MemoryLocker is the in-process Locker used when REDIS_URL is empty.
type MemoryLocker struct {
	set *expiringSet
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{set: newExpiringSet()}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	return l.set.add(key, ttl), nil
}

func (l *MemoryLocker) Release(_ context.Context, key string) error {
	l.set.remove(key)
	return nil
}

// MemoryEventStore is the in-process EventStore used when REDIS_URL is empty.
type MemoryEventStore struct {
	set *expiringSet
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{set: newExpiringSet()}
}

func (s *MemoryEventStore) MarkProcessed(_ context.Context, id string, ttl time.Duration) (bool, error) {
	return s.set.add(webhookEventPrefix+id, ttl), nil
}

func (s *MemoryEventStore) Forget(_ context.Context, id string) error {
	s.set.remove(webhookEventPrefix + id)
	return nil
}
