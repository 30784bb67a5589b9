package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSimpleCache_SetGet_NoTTL(t *testing.T) {
	ctx := context.Background()
	c := NewSimpleCache[string, int]()
	_ = c.Set(ctx, "a", 1, 0)
	if v, ok, err := c.Get(ctx, "a"); err != nil || !ok || v != 1 {
		t.Fatalf("expected hit with value 1, got ok=%v v=%v err=%v", ok, v, err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected Len=1, got %d", c.Len())
	}
}

func TestSimpleCache_TTL_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewSimpleCache[string, string]()

	// Freeze time via now indirection
	base := time.Now()
	now = func() time.Time { return base }
	t.Cleanup(func() { now = time.Now })

	_ = c.Set(ctx, "k", "v", time.Second)
	if v, ok, _ := c.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("expected hit before expiry")
	}

	// advance time beyond TTL
	base = base.Add(2 * time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected miss after expiry")
	}
	c.PurgeExpired()
	if c.Len() != 0 {
		t.Fatalf("expected Len=0 after purge, got %d", c.Len())
	}
}

func TestSimpleCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewSimpleCache[int64, int]()
	_ = c.Set(ctx, 1, 10, 0)
	_ = c.Set(ctx, 2, 20, 0)
	_ = c.Delete(ctx, 1)
	if _, ok, _ := c.Get(ctx, 1); ok {
		t.Fatalf("expected key 1 to be deleted")
	}
	if c.Len() != 1 {
		t.Fatalf("expected Len=1, got %d", c.Len())
	}
}

func TestSimpleCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	keys := 100
	rounds := 200

	c := NewSimpleCache[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < keys; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				_ = c.Set(ctx, i, r, 0)
				_, _, _ = c.Get(ctx, i)
			}
		}()
	}
	wg.Wait()
	for i := 0; i < keys; i++ {
		if v, ok, _ := c.Get(ctx, i); !ok || v != rounds-1 {
			t.Fatalf("expected key %d = %d, got ok=%v v=%d", i, rounds-1, ok, v)
		}
	}
}

func TestSimpleCache_RunJanitor(t *testing.T) {
	c := NewSimpleCache[string, int]()
	_ = c.Set(context.Background(), "short", 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		c.mu.RLock()
		n := len(c.items)
		c.mu.RUnlock()
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("janitor did not purge expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestNop(t *testing.T) {
	var c Cache[int64, string] = Nop[int64, string]{}
	ctx := context.Background()
	_ = c.Set(ctx, 1, "x", 0)
	if _, ok, _ := c.Get(ctx, 1); ok {
		t.Fatalf("expected Nop cache to miss")
	}
}
