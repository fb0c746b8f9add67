// Package idempotency provides the replay cache used to deduplicate requests
// that carry an Idempotency-Key header.
package idempotency

import (
	"context"
	"time"
)

// Cache stores the serialized result of the first request seen under an
// idempotency key so replays can return it unchanged without reapplying side
// effects.
type Cache interface {
	// Get checks whether a result was already cached for the key.
	// Returns:
	//   - exists: true if a result is cached and not expired
	//   - result: the cached serialized result (if exists is true)
	//   - err: any error that occurred during the lookup
	Get(ctx context.Context, key string) (exists bool, result []byte, err error)

	// Put caches the serialized result of a processed request.
	// The record expires after the given TTL; a TTL of 0 means no expiry.
	Put(ctx context.Context, key string, result []byte, ttl time.Duration) error

	// Clear drops every cached record. Invoked when the target state is
	// reset so replay behavior stays deterministic across runs.
	Clear(ctx context.Context) error
}
