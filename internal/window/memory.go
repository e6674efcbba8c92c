package window

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with a TTL and a bounded entry count.
type MemoryStore struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]Entry
	gens       map[string]uint64
}

func NewMemoryStore(ttl time.Duration, maxEntries int, now func() time.Time) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]Entry),
		gens:       make(map[string]uint64),
	}
}

func (s *MemoryStore) Get(_ context.Context, resourceID string) (*Entry, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[resourceID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if s.expired(entry) {
		s.mu.Lock()
		delete(s.entries, resourceID)
		s.mu.Unlock()
		return nil, false, nil
	}

	entry.Bookings = cloneBookings(entry.Bookings)
	return &entry, true, nil
}

func (s *MemoryStore) Generation(_ context.Context, resourceID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gens[resourceID], nil
}

func (s *MemoryStore) Put(_ context.Context, entry Entry, gen uint64) (bool, error) {
	entry.Bookings = cloneBookings(entry.Bookings)
	if entry.StoredAt.IsZero() {
		entry.StoredAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gens[entry.ResourceID] != gen {
		return false, nil
	}
	s.cleanupLocked()
	if _, exists := s.entries[entry.ResourceID]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}
	s.entries[entry.ResourceID] = entry
	return true, nil
}

func (s *MemoryStore) Invalidate(_ context.Context, resourceID string) error {
	s.mu.Lock()
	delete(s.entries, resourceID)
	s.gens[resourceID]++
	s.mu.Unlock()
	return nil
}

// Len returns the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked()
	return len(s.entries)
}

func (s *MemoryStore) expired(entry Entry) bool {
	return s.now().After(entry.StoredAt.Add(s.ttl))
}

func (s *MemoryStore) cleanupLocked() {
	for key, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, key)
		}
	}
}

func (s *MemoryStore) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range s.entries {
		if oldestKey == "" || entry.StoredAt.Before(oldest) {
			oldestKey, oldest = key, entry.StoredAt
		}
	}
	delete(s.entries, oldestKey)
}
