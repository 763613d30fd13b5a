package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pitabwire/bazaar/internal/observability"
	"github.com/pitabwire/bazaar/model"
)

// Notifier is told about every invalidation so live consoles can refetch.
type Notifier interface {
	NotifyInvalidated(tags ...model.Tag)
}

// QueryCache is a read-through cache in front of backend reads. Identical
// concurrent reads share one backend call. Invalidation bumps a generation
// counter so reads that were already in flight neither store their result
// nor hand it to readers that arrive after the mutation.
type QueryCache struct {
	store      Store
	ttl        time.Duration
	group      singleflight.Group
	generation atomic.Uint64
	// Held shared across a result's generation check and Set, exclusively
	// across an invalidation.
	writeMu    sync.RWMutex
	notifier   Notifier
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// Option configures a QueryCache.
type Option func(*QueryCache)

// WithNotifier sets the invalidation notifier.
func WithNotifier(n Notifier) Option {
	return func(c *QueryCache) { c.notifier = n }
}

// WithMetrics enables cache metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *QueryCache) { c.logger = l }
}

// New creates a query cache. A ttl <= 0 disables caching but keeps
// request de-duplication and invalidation notices.
func New(store Store, ttl time.Duration, opts ...Option) *QueryCache {
	c := &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key joins a resource, a caller scope, and the read's parameters into a
// cache key.
func Key(resource, scope string, parts ...string) string {
	return resource + "|" + scope + "|" + strings.Join(parts, "|")
}

// Fetch returns the cached value for key or calls fetch, caches its result
// under tags, and returns it. Errors are never cached.
func Fetch[T any](ctx context.Context, c *QueryCache, key string, tags []model.Tag, fetch func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return fetch(ctx)
	}
	resource := resourceOf(tags)

	if c.ttl > 0 && c.store != nil {
		raw, found, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.Warn("cache: read failed", zap.String("key", key), zap.Error(err))
		} else if found {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				c.metrics.RecordQueryCacheHit(resource)
				return v, nil
			}
			c.logger.Debug("cache: dropping undecodable entry", zap.String("key", key))
		}
	}
	c.metrics.RecordQueryCacheMiss(resource)

	gen := c.generation.Load()
	run := func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		c.storeResult(ctx, key, tags, gen, v)
		return v, nil
	}

	flightKey := key + "#" + strconv.FormatUint(gen, 10)
	res, err, shared := c.group.Do(flightKey, run)
	if err != nil && shared && ctx.Err() == nil && errors.Is(err, context.Canceled) {
		// The caller that led the shared flight went away; read on our own.
		res, err = run()
	}
	v, _ := res.(T)
	return v, err
}

func (c *QueryCache) storeResult(ctx context.Context, key string, tags []model.Tag, gen uint64, v any) {
	if c.ttl <= 0 || c.store == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Debug("cache: value not encodable", zap.String("key", key), zap.Error(err))
		return
	}

	c.writeMu.RLock()
	defer c.writeMu.RUnlock()
	if c.generation.Load() != gen {
		return
	}
	if err := c.store.Set(context.WithoutCancel(ctx), key, raw, tags, c.ttl); err != nil {
		c.logger.Warn("cache: write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached read carrying one of tags and notifies
// subscribers. The notice is sent even when the store fails so consoles
// still refetch.
func (c *QueryCache) Invalidate(ctx context.Context, tags ...model.Tag) error {
	if c == nil || len(tags) == 0 {
		return nil
	}
	var err error
	c.writeMu.Lock()
	c.generation.Add(1)
	if c.store != nil {
		var n int
		n, err = c.store.InvalidateTags(context.WithoutCancel(ctx), tags...)
		if err != nil {
			c.logger.Warn("cache: invalidation failed", zap.Error(err))
		} else {
			c.metrics.RecordQueryCacheInvalidation(resourceOf(tags), n)
			c.logger.Debug("cache: invalidated",
				zap.Stringers("tags", tags),
				zap.Int("entries", n),
			)
		}
	}
	c.writeMu.Unlock()

	if c.notifier != nil {
		c.notifier.NotifyInvalidated(tags...)
	}
	return err
}

// HealthCheck verifies the backing store.
func (c *QueryCache) HealthCheck(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.HealthCheck(ctx)
}

func resourceOf(tags []model.Tag) string {
	if len(tags) == 0 {
		return "unknown"
	}
	return tags[0].Type
}
