package cache

import (
	"context"
	"time"
)

// Cache defines a minimal key-value cache API with optional TTL per entry.
// Implementations are safe for concurrent use.
type Cache[K comparable, V any] interface {
	// Get returns the value and whether it was present and not expired.
	Get(ctx context.Context, key K) (V, bool, error)

	// Set stores the value with an optional TTL. If ttl <= 0, the entry does not expire.
	Set(ctx context.Context, key K, value V, ttl time.Duration) error

	// Delete removes a key if present.
	Delete(ctx context.Context, key K) error
}

// Nop is a Cache that stores nothing; every Get misses.
type Nop[K comparable, V any] struct{}

func (Nop[K, V]) Get(context.Context, K) (V, bool, error) {
	var zero V
	return zero, false, nil
}

func (Nop[K, V]) Set(context.Context, K, V, time.Duration) error { return nil }

func (Nop[K, V]) Delete(context.Context, K) error { return nil }

var _ Cache[int64, string] = Nop[int64, string]{}
