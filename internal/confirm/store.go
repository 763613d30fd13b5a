// Package confirm holds the state of open confirmation dialogs. A pending
// confirmation is created when an admin asks for a destructive or
// state-changing action, locked while the action runs, and destroyed once
// it succeeds or is cancelled.
package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotOpen is returned for unknown or expired tokens.
	ErrNotOpen = errors.New("confirm: confirmation is not open")
	// ErrBusy is returned when the action of a confirmation is already
	// running.
	ErrBusy = errors.New("confirm: confirmation is busy")
)

// Pending is one open confirmation.
type Pending struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	SubjectID string    `json:"subject_id"`
	Resource  string    `json:"resource"`
	TargetID  string    `json:"target_id"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason,omitempty"`
	Busy      bool      `json:"busy"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store keeps pending confirmations until they expire.
type Store interface {
	Put(ctx context.Context, p Pending, ttl time.Duration) error
	// Get returns ErrNotOpen for unknown or expired tokens.
	Get(ctx context.Context, token string) (Pending, error)
	// Acquire atomically marks an open confirmation busy. It returns
	// ErrBusy if it already was.
	Acquire(ctx context.Context, token string) (Pending, error)
	// Release clears the busy mark after a failed action.
	Release(ctx context.Context, token string) error
	Delete(ctx context.Context, token string) error
	HealthCheck(ctx context.Context) error
}

// --- MemoryStore ---

// MemoryStore is an in-memory Store with TTL support. Suitable for testing
// and single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Pending
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Pending), now: time.Now}
}

// Put stores p until ttl elapses.
func (s *MemoryStore) Put(_ context.Context, p Pending, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ExpiresAt = s.now().Add(ttl)
	s.entries[p.Token] = p
	return nil
}

func (s *MemoryStore) getLocked(token string) (Pending, error) {
	p, ok := s.entries[token]
	if !ok {
		return Pending{}, ErrNotOpen
	}
	if !s.now().Before(p.ExpiresAt) {
		delete(s.entries, token)
		return Pending{}, ErrNotOpen
	}
	return p, nil
}

// Get returns the confirmation for token.
func (s *MemoryStore) Get(_ context.Context, token string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(token)
}

// Acquire marks the confirmation busy.
func (s *MemoryStore) Acquire(_ context.Context, token string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.getLocked(token)
	if err != nil {
		return Pending{}, err
	}
	if p.Busy {
		return Pending{}, ErrBusy
	}
	p.Busy = true
	s.entries[token] = p
	return p, nil
}

// Release clears the busy mark. An expired confirmation stays gone.
func (s *MemoryStore) Release(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.getLocked(token)
	if err != nil {
		return nil
	}
	p.Busy = false
	s.entries[token] = p
	return nil
}

// Delete removes the confirmation.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(context.Context) error {
	return nil
}

// Len returns the number of entries, including expired ones.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// --- RedisStore ---

// RedisStore is a Redis-backed Store. The busy mark is a separate key set
// with SETNX so that two replicas cannot run the same confirmation.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a store whose keys start with prefix.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(token string) string     { return s.prefix + token }
func (s *RedisStore) busyKey(token string) string { return s.prefix + token + ":busy" }

// Put stores p until ttl elapses.
func (s *RedisStore) Put(ctx context.Context, p Pending, ttl time.Duration) error {
	p.Busy = false
	p.ExpiresAt = time.Now().Add(ttl)
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("confirm: marshal pending: %w", err)
	}
	if err := s.client.Set(ctx, s.key(p.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("confirm: redis set %q: %w", p.Token, err)
	}
	return nil
}

// Get returns the confirmation for token.
func (s *RedisStore) Get(ctx context.Context, token string) (Pending, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Pending{}, ErrNotOpen
	}
	if err != nil {
		return Pending{}, fmt.Errorf("confirm: redis get %q: %w", token, err)
	}
	var p Pending
	if err := json.Unmarshal(raw, &p); err != nil {
		return Pending{}, fmt.Errorf("confirm: unmarshal pending %q: %w", token, err)
	}
	n, err := s.client.Exists(ctx, s.busyKey(token)).Result()
	if err != nil {
		return Pending{}, fmt.Errorf("confirm: redis exists %q: %w", token, err)
	}
	p.Busy = n > 0
	return p, nil
}

// Acquire sets the busy mark for the remaining lifetime of the
// confirmation.
func (s *RedisStore) Acquire(ctx context.Context, token string) (Pending, error) {
	p, err := s.Get(ctx, token)
	if err != nil {
		return Pending{}, err
	}
	ttl := time.Until(p.ExpiresAt)
	if ttl <= 0 {
		return Pending{}, ErrNotOpen
	}
	ok, err := s.client.SetNX(ctx, s.busyKey(token), "1", ttl).Result()
	if err != nil {
		return Pending{}, fmt.Errorf("confirm: redis setnx %q: %w", token, err)
	}
	if !ok {
		return Pending{}, ErrBusy
	}
	p.Busy = true
	return p, nil
}

// Release clears the busy mark.
func (s *RedisStore) Release(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.busyKey(token)).Err(); err != nil {
		return fmt.Errorf("confirm: redis del %q: %w", token, err)
	}
	return nil
}

// Delete removes the confirmation and its busy mark.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token), s.busyKey(token)).Err(); err != nil {
		return fmt.Errorf("confirm: redis del %q: %w", token, err)
	}
	return nil
}

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
