package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/bazaar/model"
)

// RedisStore is a Redis-backed Store. Values are plain string keys with an
// expiry; each tag is a set of the keys carrying it. Tag sets outlive their
// members by one TTL so invalidation still finds keys written late in a
// set's lifetime.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisStore creates a Redis store. All keys are namespaced by prefix.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) entryKey(key string) string {
	return s.prefix + "entry:" + key
}

func (s *RedisStore) tagKey(t model.Tag) string {
	return s.prefix + "tag:" + t.String()
}

// Get returns the value for key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.entryKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return raw, true, nil
}

// Set stores value under key and records it in each tag set.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, tags []model.Tag, ttl time.Duration) error {
	ek := s.entryKey(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ek, value, ttl)
		for _, t := range tags {
			tk := s.tagKey(t)
			pipe.SAdd(ctx, tk, ek)
			pipe.Expire(ctx, tk, 2*ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// InvalidateTags deletes the members of each tag set and the sets
// themselves.
func (s *RedisStore) InvalidateTags(ctx context.Context, tags ...model.Tag) (int, error) {
	seen := make(map[string]struct{})
	var entries, tagKeys []string
	for _, t := range tags {
		tk := s.tagKey(t)
		members, err := s.client.SMembers(ctx, tk).Result()
		if err != nil && err != redis.Nil {
			return 0, fmt.Errorf("redis smembers %q: %w", tk, err)
		}
		for _, m := range members {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			entries = append(entries, m)
		}
		tagKeys = append(tagKeys, tk)
	}

	removed := int64(0)
	if len(entries) > 0 {
		n, err := s.client.Del(ctx, entries...).Result()
		if err != nil {
			return 0, fmt.Errorf("redis del entries: %w", err)
		}
		removed = n
	}
	if len(tagKeys) > 0 {
		if err := s.client.Del(ctx, tagKeys...).Err(); err != nil {
			return int(removed), fmt.Errorf("redis del tags: %w", err)
		}
	}
	return int(removed), nil
}

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
