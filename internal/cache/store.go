// Package cache implements the tag-invalidated response cache of the data
// access layer. Reads are cached per scope and parameters and tagged with
// the records they contain; mutations drop every entry carrying one of the
// affected tags. Entries are never patched in place.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pitabwire/bazaar/model"
)

// Store holds encoded cache entries and their tag index.
type Store interface {
	// Get returns the value for key. Expired entries are reported as absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key with the given tags and TTL.
	Set(ctx context.Context, key string, value []byte, tags []model.Tag, ttl time.Duration) error

	// InvalidateTags removes every entry carrying any of the tags and returns
	// how many entries were removed.
	InvalidateTags(ctx context.Context, tags ...model.Tag) (int, error)

	// HealthCheck verifies the store is reachable.
	HealthCheck(ctx context.Context) error
}

// --- MemoryStore ---

// MemoryStore is an in-process Store with TTL and a bounded entry count.
// Suitable for tests and single-instance deployments.
type MemoryStore struct {
	mu         sync.Mutex
	entries    map[string]*memEntry
	tagIndex   map[string]map[string]struct{}
	maxEntries int
	now        func() time.Time
}

type memEntry struct {
	value     []byte
	tags      []string
	expiresAt time.Time
}

// NewMemoryStore creates a memory store. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*memEntry),
		tagIndex:   make(map[string]map[string]struct{}),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the value for key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		s.removeLocked(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, tags []model.Tag, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		s.removeLocked(key)
	}
	if s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.evictLocked()
	}

	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.String()
		set, ok := s.tagIndex[names[i]]
		if !ok {
			set = make(map[string]struct{})
			s.tagIndex[names[i]] = set
		}
		set[key] = struct{}{}
	}
	s.entries[key] = &memEntry{
		value:     value,
		tags:      names,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// InvalidateTags removes every entry carrying any of the tags.
func (s *MemoryStore) InvalidateTags(_ context.Context, tags ...model.Tag) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, t := range tags {
		for key := range s.tagIndex[t.String()] {
			if _, ok := s.entries[key]; ok {
				s.removeLocked(key)
				removed++
			}
		}
		delete(s.tagIndex, t.String())
	}
	return removed, nil
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(context.Context) error {
	return nil
}

// Len returns the number of entries (including expired ones). For testing.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// removeLocked drops key from the entries and the tag index. Must be called
// with lock held.
func (s *MemoryStore) removeLocked(key string) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	for _, tag := range e.tags {
		if set, ok := s.tagIndex[tag]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(s.tagIndex, tag)
			}
		}
	}
	delete(s.entries, key)
}

// evictLocked makes room for one entry: expired entries go first, then the
// entries closest to expiry. Must be called with lock held.
func (s *MemoryStore) evictLocked() {
	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			s.removeLocked(key)
		}
	}
	if len(s.entries) < s.maxEntries {
		return
	}

	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s.entries[keys[i]].expiresAt.Before(s.entries[keys[j]].expiresAt)
	})
	for _, key := range keys[:len(s.entries)-s.maxEntries+1] {
		s.removeLocked(key)
	}
}
