package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errLockHeld = errors.New("lock held by another owner")

// unlockScript deletes the lock only if the caller still owns it, so a holder
// whose lease expired cannot release a lock taken over by someone else.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// keyLock is a lease-based mutual exclusion lock on a Redis key.
type keyLock struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	minWait time.Duration
	maxWait time.Duration
}

func newKeyLock(client *redis.Client, ttl time.Duration) *keyLock {
	return &keyLock{
		client:  client,
		prefix:  "lock:",
		ttl:     ttl,
		minWait: 5 * time.Millisecond,
		maxWait: 200 * time.Millisecond,
	}
}

// acquire blocks until the lock on key is taken or ctx is done. It returns the
// owner token needed to release it.
func (l *keyLock) acquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.minWait
	b.MaxInterval = l.maxWait
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		ok, err := l.client.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", key, err)
	}

	return token, nil
}

// release drops the lock if token still owns it.
func (l *keyLock) release(ctx context.Context, key, token string) error {
	return unlockScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
}
