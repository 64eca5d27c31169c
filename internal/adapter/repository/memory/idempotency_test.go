package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IdempotencyStore) lockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.locks)
}

func TestIdempotencyStore_RunsOnce(t *testing.T) {
	store := NewIdempotencyStore()
	var calls atomic.Int32

	op := func(ctx context.Context) ([]byte, error) {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return []byte("result"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.GetOrSet(context.Background(), "key", op)
			assert.NoError(t, err)
			assert.Equal(t, "result", string(got))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, store.lockCount())
}

func TestIdempotencyStore_FailuresAreNotStored(t *testing.T) {
	store := NewIdempotencyStore()
	boom := errors.New("boom")

	_, err := store.GetOrSet(context.Background(), "key", func(ctx context.Context) ([]byte, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	got, err := store.GetOrSet(context.Background(), "key", func(ctx context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
}

func TestIdempotencyStore_KeysAreIndependent(t *testing.T) {
	store := NewIdempotencyStore()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = store.GetOrSet(context.Background(), "slow", func(ctx context.Context) ([]byte, error) {
			close(started)
			<-release
			return []byte("slow"), nil
		})
	}()
	<-started

	got, err := store.GetOrSet(context.Background(), "fast", func(ctx context.Context) ([]byte, error) {
		return []byte("fast"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fast", string(got))

	close(release)
}

func TestIdempotencyStore_ReturnsCopies(t *testing.T) {
	store := NewIdempotencyStore()

	first, err := store.GetOrSet(context.Background(), "k", func(ctx context.Context) ([]byte, error) {
		return []byte("abc"), nil
	})
	require.NoError(t, err)
	first[0] = 'z'

	second, err := store.GetOrSet(context.Background(), "k", nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(second))
}
