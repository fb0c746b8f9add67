// Package redis provides a Redis-backed implementation of the
// idempotency.Cache interface, for running the mock bank with replay state
// shared across processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rohan-js/automated-api-testing-framework/idempotency"
)

// Ensure RedisCache implements idempotency.Cache
var _ idempotency.Cache = (*RedisCache)(nil)

// RedisCache stores replay records in Redis under a common key prefix.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

// Option is a functional option for configuring RedisCache.
type Option func(*RedisCache)

// WithPrefix sets the key prefix for cached records.
func WithPrefix(prefix string) Option {
	return func(c *RedisCache) {
		c.prefix = prefix
	}
}

// New creates a new Redis-backed replay cache.
func New(client redis.Cmdable, opts ...Option) *RedisCache {
	c := &RedisCache{
		client: client,
		prefix: "bank:idempotency:",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get checks whether a result was already cached for the key.
func (c *RedisCache) Get(ctx context.Context, key string) (bool, []byte, error) {
	result, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("redis get: %w", err)
	}
	return true, result, nil
}

// Put caches the serialized result of a processed request.
func (c *RedisCache) Put(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, result, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Clear drops every cached record under the configured prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}
