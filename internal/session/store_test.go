package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testSession(id string) Session {
	return Session{
		ID:        id,
		SubjectID: "admin-1",
		Email:     "root@example.com",
		Name:      "Root Admin",
		Roles:     []string{"admin"},
		Token:     "backend-token",
	}
}

func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("unknown id", func(t *testing.T) {
		if _, err := newStore(t).Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get error = %v, want ErrNotFound", err)
		}
	})

	t.Run("save and get", func(t *testing.T) {
		s := newStore(t)
		if err := s.Save(ctx, testSession("s1"), time.Hour); err != nil {
			t.Fatalf("Save: %v", err)
		}
		got, err := s.Get(ctx, "s1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Token != "backend-token" || got.SubjectID != "admin-1" || len(got.Roles) != 1 {
			t.Errorf("Get = %+v", got)
		}
		if got.ExpiresAt.IsZero() {
			t.Error("ExpiresAt not set")
		}
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		_ = s.Save(ctx, testSession("s1"), time.Hour)
		if err := s.Delete(ctx, "s1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := s.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "s1"); err != nil {
			t.Errorf("second Delete = %v, want nil", err)
		}
	})

	t.Run("health", func(t *testing.T) {
		if err := newStore(t).HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck = %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	_ = s.Save(ctx, testSession("s1"), time.Minute)
	now = now.Add(time.Minute)

	if _, err := s.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after TTL error = %v, want ErrNotFound", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want expired session purged", s.Len())
	}
}

func TestRedisStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		mr := miniredis.RunT(t)
		return NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "session:")
	})
}

func TestRedisStore_Expiry(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "session:")
	ctx := context.Background()

	_ = s.Save(ctx, testSession("s1"), time.Minute)
	if !mr.Exists("session:s1") {
		t.Fatal("key session:s1 not written")
	}
	mr.FastForward(2 * time.Minute)

	if _, err := s.Get(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after TTL error = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_HealthCheckFails(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "session:")
	mr.Close()
	if err := s.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck = nil after redis closed, want error")
	}
}

func TestSession_RequestContext(t *testing.T) {
	rctx := testSession("s1").RequestContext()
	if rctx.SessionID != "s1" || rctx.Token != "backend-token" || !rctx.HasRole("admin") {
		t.Errorf("RequestContext = %+v", rctx)
	}
	if rctx.Scope() != "s:s1" {
		t.Errorf("Scope = %q, want s:s1", rctx.Scope())
	}
}
