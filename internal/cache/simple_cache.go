package cache

import (
	"context"
	"sync"
	"time"
)

// entry stores a cached value and its absolute expiration timestamp.
type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiration
}

// SimpleCache is an in-process map-backed cache guarded by a RWMutex.
// Expired entries are dropped lazily on Get or in bulk via PurgeExpired.
type SimpleCache[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]entry[V]
}

// NewSimpleCache constructs an empty SimpleCache.
func NewSimpleCache[K comparable, V any]() *SimpleCache[K, V] {
	return &SimpleCache[K, V]{
		items: make(map[K]entry[V]),
	}
}

// now is a small indirection to allow test stubbing if needed.
var now = time.Now

func (e entry[V]) expired(at time.Time) bool {
	return !e.expiresAt.IsZero() && at.After(e.expiresAt)
}

// Get implements Cache.Get.
func (c *SimpleCache[K, V]) Get(_ context.Context, key K) (V, bool, error) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !ok || e.expired(now()) {
		return zero, false, nil
	}
	return e.value, true, nil
}

// Set implements Cache.Set.
func (c *SimpleCache[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: exp}
	return nil
}

// Delete implements Cache.Delete.
func (c *SimpleCache[K, V]) Delete(_ context.Context, key K) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// Len counts only non-expired entries.
func (c *SimpleCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	nowTs := now()
	count := 0
	for _, e := range c.items {
		if !e.expired(nowTs) {
			count++
		}
	}
	return count
}

// PurgeExpired scans and removes expired entries.
func (c *SimpleCache[K, V]) PurgeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	nowTs := now()
	for k, e := range c.items {
		if e.expired(nowTs) {
			delete(c.items, k)
		}
	}
}

// RunJanitor purges expired entries every interval until ctx is done.
func (c *SimpleCache[K, V]) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.PurgeExpired()
		}
	}
}

// Ensure SimpleCache implements Cache at compile time.
var _ Cache[int64, string] = (*SimpleCache[int64, string])(nil)
