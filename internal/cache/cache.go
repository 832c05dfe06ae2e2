// Package cache provides the optional forecast-response cache. Cache
// failures are always soft: a broken cache degrades to recomputation,
// never to a request error.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petfriends/servicedemand/internal/logging"
)

// Cache stores serialized forecast responses keyed by horizon, anchor
// date and model version.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Noop is the disabled cache.
type Noop struct{}

// Get always misses.
func (Noop) Get(ctx context.Context, key string) ([]byte, bool) {
	return nil, false
}

// Set discards the value.
func (Noop) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {}

// Redis caches responses in a Redis instance.
type Redis struct {
	logger *logging.Logger
	client *redis.Client
}

// NewRedis connects to the Redis URL (redis://host:port/db).
func NewRedis(url string, logger *logging.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{
		logger: logger,
		client: redis.NewClient(opts),
	}, nil
}

// Get fetches a cached response; errors count as a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Warn("Cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return value, true
}

// Set stores a response with the given TTL; errors are logged and dropped.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Warn("Cache write failed", "key", key, "error", err)
	}
}

// Close releases the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
