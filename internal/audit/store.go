// Package audit keeps the trail of confirmed console actions: who approved,
// rejected, suspended, or deleted what, and whether the backend accepted it.
package audit

import (
	"context"
	"sync"
	"time"
)

// Outcomes of an audited action.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Entry is one audited action.
type Entry struct {
	ID        string    `json:"id"`
	At        time.Time `json:"at"`
	SubjectID string    `json:"subject_id"`
	Email     string    `json:"email,omitempty"`
	SessionID string    `json:"-"`
	Resource  string    `json:"resource"`
	TargetID  string    `json:"target_id"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
}

// Filter narrows a listing. Zero fields match everything; Limit defaults to
// 50.
type Filter struct {
	Resource  string
	SubjectID string
	Limit     int
	Offset    int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return 50
	}
	return f.Limit
}

func (f Filter) matches(e Entry) bool {
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if f.SubjectID != "" && e.SubjectID != f.SubjectID {
		return false
	}
	return true
}

// Store persists audit entries.
type Store interface {
	Record(ctx context.Context, e Entry) error
	// List returns matching entries newest first, plus the total number of
	// matches.
	List(ctx context.Context, f Filter) ([]Entry, int, error)
	HealthCheck(ctx context.Context) error
}

// --- MemoryStore ---

// MemoryStore keeps the most recent entries in memory. Suitable for tests
// and single-instance deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

// NewMemoryStore keeps at most capacity entries; capacity <= 0 means 10000.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &MemoryStore{capacity: capacity}
}

// Record appends e, dropping the oldest entry when full.
func (s *MemoryStore) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.capacity {
		s.entries = s.entries[len(s.entries)-s.capacity:]
	}
	return nil
}

// List returns matching entries newest first.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if f.matches(s.entries[i]) {
			matched = append(matched, s.entries[i])
		}
	}
	total := len(matched)
	if f.Offset >= total {
		return []Entry{}, total, nil
	}
	end := min(f.Offset+f.limit(), total)
	return matched[f.Offset:end], total, nil
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(context.Context) error {
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
