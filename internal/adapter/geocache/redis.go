package geocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cadnav:"

// kvStore is the subset of Redis the decorator needs.
type kvStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// Redis wraps a Geocoder with a shared Redis cache. Redis errors are logged
// and the query is passed through to the inner geocoder.
type Redis struct {
	inner   domain.Geocoder
	store   kvStore
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewRedis creates a Redis cache decorator around a geocoder.
func NewRedis(inner domain.Geocoder, client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Redis {
	return newRedis(inner, redisStore{client: client}, ttl, metrics, logger)
}

func newRedis(inner domain.Geocoder, store kvStore, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Redis {
	return &Redis{
		inner:   inner,
		store:   store,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger.With("component", "geocode_redis_cache"),
	}
}

// Resolve serves queries from Redis when present.
func (c *Redis) Resolve(ctx context.Context, text string) ([]domain.Location, error) {
	key := keyPrefix + cacheKey(text)

	data, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("cache get failed", "key", key, "error", err)
	case ok:
		var locs []domain.Location
		if err := json.Unmarshal(data, &locs); err == nil && len(locs) > 0 {
			c.metrics.GeocodeCache.WithLabelValues("redis", "hit").Inc()
			return locs, nil
		}
		c.logger.Warn("discarding unreadable cache entry", "key", key)
	}
	c.metrics.GeocodeCache.WithLabelValues("redis", "miss").Inc()

	locs, err := c.inner.Resolve(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(locs) > 0 {
		c.put(ctx, key, locs)
	}
	return locs, nil
}

func (c *Redis) put(ctx context.Context, key string, locs []domain.Location) {
	data, err := json.Marshal(locs)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

type redisStore struct {
	client *redis.Client
}

func (s redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}
