package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/infrastructure/metrics"
)

// Default lifetimes.
const (
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultLockTTL        = 30 * time.Second
)

// Config for IdempotencyStore.
type Config struct {
	// TTL is how long a stored result is remembered.
	TTL time.Duration
	// LockTTL bounds how long a crashed holder can block a key. It must exceed
	// the longest operation.
	LockTTL time.Duration
	Logger  zerolog.Logger
	Metrics *metrics.Metrics // optional
}

// IdempotencyStore implements usecase.IdempotencyStore using Redis, so results
// survive restarts and are shared between instances.
type IdempotencyStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	lock    *keyLock
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client, cfg Config) *IdempotencyStore {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultIdempotencyTTL
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = DefaultLockTTL
	}

	return &IdempotencyStore{
		client:  client,
		prefix:  "idempotency:",
		ttl:     cfg.TTL,
		lock:    newKeyLock(client, cfg.LockTTL),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// GetOrSet returns the stored result for key or runs op under a distributed
// per-key lock and stores what it returns. Failed operations are not stored.
func (s *IdempotencyStore) GetOrSet(ctx context.Context, key string, op func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if result, ok, err := s.get(ctx, key); err != nil || ok {
		return result, err
	}

	token, err := s.lock.acquire(ctx, key)
	s.metrics.ObserveRedis("lock", err)
	if err != nil {
		return nil, err
	}
	defer func() {
		err := s.lock.release(context.WithoutCancel(ctx), key, token)
		s.metrics.ObserveRedis("unlock", err)
		if err != nil {
			s.logger.Warn().Err(err).Str("idempotency_key", key).Msg("failed to release idempotency lock")
		}
	}()

	// another holder may have finished while we waited
	if result, ok, err := s.get(ctx, key); err != nil || ok {
		return result, err
	}

	result, err := op(ctx)
	if err != nil {
		return nil, err
	}

	err = s.client.Set(context.WithoutCancel(ctx), s.prefix+key, result, s.ttl).Err()
	s.metrics.ObserveRedis("set", err)
	if err != nil {
		// op already ran; report its result and let a retry with this key run again
		s.logger.Error().Err(err).Str("idempotency_key", key).Msg("failed to store idempotent result")
	}

	return result, nil
}

func (s *IdempotencyStore) get(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		s.metrics.ObserveRedis("get", nil)
		return nil, false, nil
	}
	s.metrics.ObserveRedis("get", err)
	if err != nil {
		return nil, false, err
	}

	return result, true, nil
}
