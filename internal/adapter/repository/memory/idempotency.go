package memory

import (
	"bytes"
	"context"
	"sync"
)

// IdempotencyStore keeps operation results in process memory.
//
// Hits are served from a sync.Map without locking. Misses serialize on a per-key
// mutex that is reference counted and dropped once no caller holds it, so the
// lock table only grows with in-flight keys.
type IdempotencyStore struct {
	results sync.Map // key -> []byte

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewIdempotencyStore creates an empty store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{locks: make(map[string]*keyLock)}
}

// GetOrSet implements usecase.IdempotencyStore.
func (s *IdempotencyStore) GetOrSet(ctx context.Context, key string, op func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok := s.results.Load(key); ok {
		return bytes.Clone(v.([]byte)), nil
	}

	l := s.acquire(key)
	l.mu.Lock()
	defer func() {
		l.mu.Unlock()
		s.release(key, l)
	}()

	// another caller may have finished while we waited
	if v, ok := s.results.Load(key); ok {
		return bytes.Clone(v.([]byte)), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := op(ctx)
	if err != nil {
		return nil, err
	}

	s.results.Store(key, bytes.Clone(result))

	return result, nil
}

func (s *IdempotencyStore) acquire(key string) *keyLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++

	return l
}

func (s *IdempotencyStore) release(key string, l *keyLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}
