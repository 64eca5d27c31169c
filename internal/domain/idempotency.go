package domain

import "github.com/google/uuid"

// IdempotencyKey identifies "the same" command across retries.
type IdempotencyKey string

// NewIdempotencyKey returns a fresh random key.
func NewIdempotencyKey() IdempotencyKey {
	return IdempotencyKey(uuid.NewString())
}

func (k IdempotencyKey) String() string {
	return string(k)
}
