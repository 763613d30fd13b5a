package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/bazaar/internal/audit"
	"github.com/pitabwire/bazaar/internal/cache"
	"github.com/pitabwire/bazaar/internal/config"
	"github.com/pitabwire/bazaar/internal/confirm"
	"github.com/pitabwire/bazaar/internal/session"
)

// auditMemoryCapacity bounds the in-memory audit trail.
const auditMemoryCapacity = 10000

// storeSet builds the configured stores and shares one redis client per
// address and database.
type storeSet struct {
	logger  *zap.Logger
	redis   map[string]*redis.Client
	closers []func()
}

func newStoreSet(logger *zap.Logger) *storeSet {
	return &storeSet{logger: logger, redis: make(map[string]*redis.Client)}
}

// Close releases every connection opened by the set.
func (s *storeSet) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *storeSet) redisClient(ctx context.Context, cfg config.StoreConfig) (*redis.Client, error) {
	addr := os.Getenv(cfg.AddrEnv)
	if addr == "" {
		return nil, fmt.Errorf("redis store: %s environment variable not set", cfg.AddrEnv)
	}
	key := fmt.Sprintf("%s/%d", addr, cfg.DB)
	if c, ok := s.redis[key]; ok {
		return c, nil
	}
	c := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis store: ping %s: %w", addr, err)
	}
	s.redis[key] = c
	s.closers = append(s.closers, func() { _ = c.Close() })
	s.logger.Info("connected to redis", zap.String("addr", addr), zap.Int("db", cfg.DB))
	return c, nil
}

func (s *storeSet) sessions(ctx context.Context, cfg config.StoreConfig) (session.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		s.logger.Info("using in-memory session store")
		return session.NewMemoryStore(), nil
	case config.DriverRedis:
		c, err := s.redisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return session.NewRedisStore(c, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported session store driver: %q", cfg.Driver)
	}
}

func (s *storeSet) queryCache(ctx context.Context, cfg config.QueryCacheConfig) (cache.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory, "":
		return cache.NewMemoryStore(cfg.MaxEntries), nil
	case config.DriverRedis:
		c, err := s.redisClient(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisStore(c, cfg.Store.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported query cache driver: %q", cfg.Store.Driver)
	}
}

func (s *storeSet) confirmations(ctx context.Context, cfg config.StoreConfig) (confirm.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return confirm.NewMemoryStore(), nil
	case config.DriverRedis:
		c, err := s.redisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return confirm.NewRedisStore(c, cfg.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported confirmation store driver: %q", cfg.Driver)
	}
}

// audit returns nil when the audit trail is disabled.
func (s *storeSet) audit(ctx context.Context, cfg config.AuditConfig) (audit.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Store.Driver {
	case config.DriverMemory, "":
		s.logger.Info("using in-memory audit store")
		return audit.NewMemoryStore(auditMemoryCapacity), nil
	case config.DriverPostgres:
		dsn := os.Getenv(cfg.Store.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("audit store: %s environment variable not set", cfg.Store.DSNEnv)
		}
		pg, err := audit.OpenPgStore(ctx, dsn, cfg.Store)
		if err != nil {
			return nil, err
		}
		if err := pg.HealthCheck(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("audit store: ping: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		s.closers = append(s.closers, pg.Close)
		return pg, nil
	default:
		return nil, fmt.Errorf("unsupported audit store driver: %q", cfg.Store.Driver)
	}
}
