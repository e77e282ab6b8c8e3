package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/hatch/internal/config"
)

var cacheMeter = otel.Meter("github.com/Additional-Code/hatch/cache")

// Store represents a generic cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ErrCacheMiss indicates the key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// Module provides the cache store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore initialises the configured cache store (redis or noop) and
// records hit and miss counts for it.
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.Cache.Driver {
	case "noop":
		if logger != nil {
			logger.Info("cache disabled; using noop store")
		}
		store = noopStore{}
	case "redis":
		store, err = newRedisStore(lc, cfg.Cache, logger)
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(store, cfg.Cache.Driver)
}

type noopStore struct{}

func (noopStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (noopStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (noopStore) Delete(context.Context, string) error {
	return nil
}

type redisStore struct {
	client     *goredis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedisClient builds a go-redis client from the shared redis settings.
func NewRedisClient(cfg config.Redis) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func newRedisStore(lc fx.Lifecycle, cfg config.Cache, logger *zap.Logger) (Store, error) {
	client := NewRedisClient(cfg.Redis)
	store := &redisStore{client: client, prefix: cfg.Prefix, defaultTTL: cfg.DefaultTTL}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}
			if logger != nil {
				logger.Info("redis cache connected", zap.String("addr", cfg.Redis.Addr), zap.String("prefix", cfg.Prefix))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if logger != nil {
				logger.Info("closing redis cache")
			}
			return client.Close()
		},
	})

	return store, nil
}

func (s *redisStore) key(k string) string {
	return s.prefix + k
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}
	res, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(key)).Err()
}

// instrumented counts lookups by outcome and key family ("orders", "menu").
type instrumented struct {
	Store
	backend string
	lookups metric.Int64Counter
}

// Instrument wraps s so every Get is counted as a hit, miss or error.
func Instrument(s Store, backend string) (Store, error) {
	lookups, err := cacheMeter.Int64Counter("cache.lookups",
		metric.WithDescription("Cache lookups by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create cache counter: %w", err)
	}
	return &instrumented{Store: s, backend: backend, lookups: lookups}, nil
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := i.Store.Get(ctx, key)
	outcome := "hit"
	switch {
	case errors.Is(err, ErrCacheMiss):
		outcome = "miss"
	case err != nil:
		outcome = "error"
	}
	i.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.backend", i.backend),
		attribute.String("cache.family", family(key)),
		attribute.String("cache.outcome", outcome),
	))
	return v, err
}

func family(key string) string {
	if head, _, ok := strings.Cut(key, ":"); ok {
		return head
	}
	return key
}
