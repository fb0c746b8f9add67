// Package memory provides an in-process implementation of the
// idempotency.Cache interface.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rohan-js/automated-api-testing-framework/idempotency"
)

// Ensure MemoryCache implements idempotency.Cache
var _ idempotency.Cache = (*MemoryCache)(nil)

// MemoryCache is a mutex-guarded in-memory replay cache.
type MemoryCache struct {
	mu      sync.RWMutex
	records map[string]record
	now     func() time.Time
}

type record struct {
	result    []byte
	expiresAt time.Time // zero means no expiry
}

// Option is a functional option for configuring MemoryCache.
type Option func(*MemoryCache)

// WithNowFunc overrides the clock, used by expiry tests.
func WithNowFunc(now func() time.Time) Option {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// New creates an empty MemoryCache.
func New(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		records: make(map[string]record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get checks whether a result was already cached for the key.
func (c *MemoryCache) Get(_ context.Context, key string) (bool, []byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, exists := c.records[key]
	if !exists {
		return false, nil, nil
	}
	if !rec.expiresAt.IsZero() && c.now().After(rec.expiresAt) {
		return false, nil, nil
	}
	return true, rec.result, nil
}

// Put caches the serialized result of a processed request.
func (c *MemoryCache) Put(_ context.Context, key string, result []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec := record{result: result}
	if ttl > 0 {
		rec.expiresAt = c.now().Add(ttl)
	}
	c.records[key] = rec
	return nil
}

// Clear drops every cached record.
func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = make(map[string]record)
	return nil
}

// Len returns the number of cached records, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.records)
}
