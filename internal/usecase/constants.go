package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a unit of work.
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotent results are kept by durable stores
	IdempotencyKeyTTL = 24 * time.Hour
)
