package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) (*IdempotencyStore, func(string) string) {
	t.Helper()

	client, mr := newTestRedisClient(t)
	t.Cleanup(func() { _ = client.Close() })

	store := NewIdempotencyStore(client, Config{TTL: time.Minute, LockTTL: 5 * time.Second, Logger: zerolog.Nop()})
	get := func(key string) string {
		v, err := mr.Get(key)
		if err != nil {
			return ""
		}
		return v
	}

	return store, get
}

func TestIdempotencyStore_StoresResultWithTTL(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	store := NewIdempotencyStore(client, Config{TTL: time.Minute, Logger: zerolog.Nop()})
	ctx := context.Background()

	got, err := store.GetOrSet(ctx, "key", func(ctx context.Context) ([]byte, error) {
		return []byte("done"), nil
	})
	if err != nil || string(got) != "done" {
		t.Fatalf("unexpected result: %s %v", got, err)
	}

	val, err := mr.Get(store.prefix + "key")
	if err != nil || val != "done" {
		t.Fatalf("expected stored response, got val=%s err=%v", val, err)
	}
	if ttl := mr.TTL(store.prefix + "key"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}
	if mr.Exists(store.lock.prefix + "key") {
		t.Fatalf("expected lock to be released")
	}

	// after the ttl the key is forgotten and the operation runs again
	mr.FastForward(2 * time.Minute)
	got, err = store.GetOrSet(ctx, "key", func(ctx context.Context) ([]byte, error) {
		return []byte("again"), nil
	})
	if err != nil || string(got) != "again" {
		t.Fatalf("expected op to run after expiry, got %s %v", got, err)
	}
}

func TestIdempotencyStore_ReturnsExisting(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.client.Set(ctx, store.prefix+"key", "cached", time.Minute).Err(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	got, err := store.GetOrSet(ctx, "key", func(ctx context.Context) ([]byte, error) {
		t.Fatal("operation must not run for a stored key")
		return nil, nil
	})
	if err != nil || string(got) != "cached" {
		t.Fatalf("expected existing cached response, got %s %v", got, err)
	}
}

func TestIdempotencyStore_FailureIsNotStored(t *testing.T) {
	store, get := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := store.GetOrSet(ctx, "key", func(ctx context.Context) ([]byte, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected op error, got %v", err)
	}
	if v := get(store.prefix + "key"); v != "" {
		t.Fatalf("expected nothing stored, got %s", v)
	}
	if v := get(store.lock.prefix + "key"); v != "" {
		t.Fatalf("expected lock released, got %s", v)
	}
}

func TestIdempotencyStore_ConcurrentCallersRunOnce(t *testing.T) {
	store, _ := newTestStore(t)
	store.lock.minWait = time.Millisecond
	store.lock.maxWait = 5 * time.Millisecond

	var calls atomic.Int32
	op := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return []byte("once"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.GetOrSet(context.Background(), "key", op)
			if err != nil || string(got) != "once" {
				t.Errorf("unexpected result: %s %v", got, err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("expected op to run once, ran %d times", n)
	}
}

func TestIdempotencyStore_WaitHonoursContext(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// a foreign holder owns the lock
	if err := store.client.Set(ctx, store.lock.prefix+"key", "someone-else", time.Minute).Err(); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err := store.GetOrSet(waitCtx, "key", func(ctx context.Context) ([]byte, error) {
		return []byte("x"), nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestKeyLock_ReleaseRequiresOwnership(t *testing.T) {
	client, mr := newTestRedisClient(t)
	defer client.Close()

	lock := newKeyLock(client, time.Minute)
	ctx := context.Background()

	token, err := lock.acquire(ctx, "k")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}

	if err := lock.release(ctx, "k", "not-the-owner"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if !mr.Exists(lock.prefix + "k") {
		t.Fatalf("foreign token must not release the lock")
	}

	if err := lock.release(ctx, "k", token); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if mr.Exists(lock.prefix + "k") {
		t.Fatalf("owner must release the lock")
	}
}
