// Package decorator wraps command handlers with cross-cutting behaviour.
package decorator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/usecase"
)

// IdempotentHandler runs its inner handler at most once per idempotency key.
// A repeated key returns the first successful result without touching the inner
// handler. Results are stored as JSON, so R must round-trip through encoding/json.
//
// Keys are namespaced by scope, so the same client key sent to two different
// commands never returns one command's result to the other.
type IdempotentHandler[C usecase.IdempotentCommand, R any] struct {
	next    usecase.CommandHandler[C, R]
	store   usecase.IdempotencyStore
	scope   string
	metrics *metrics.Metrics
}

// Idempotent wraps next with store. scope names the command and must be
// unique among handlers sharing store.
func Idempotent[C usecase.IdempotentCommand, R any](next usecase.CommandHandler[C, R], store usecase.IdempotencyStore, scope string) *IdempotentHandler[C, R] {
	return &IdempotentHandler[C, R]{next: next, store: store, scope: scope}
}

// WithMetrics records hits and misses on m.
func (h *IdempotentHandler[C, R]) WithMetrics(m *metrics.Metrics) *IdempotentHandler[C, R] {
	h.metrics = m
	return h
}

// Handle implements usecase.CommandHandler.
func (h *IdempotentHandler[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	var zero R

	key := cmd.IdempotencyKey()
	if key == "" {
		// no key means every call is unique
		key = domain.NewIdempotencyKey()
	}

	executed := false
	raw, err := h.store.GetOrSet(ctx, h.storeKey(key), func(ctx context.Context) ([]byte, error) {
		executed = true
		result, err := h.next.Handle(ctx, cmd)
		if err != nil {
			return nil, err
		}

		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}

		return encoded, nil
	})
	if err != nil {
		return zero, err
	}
	h.metrics.ObserveIdempotency(!executed)

	var result R
	if err := json.Unmarshal(raw, &result); err != nil {
		return zero, fmt.Errorf("decode stored result for key %s: %w", key, err)
	}

	return result, nil
}

func (h *IdempotentHandler[C, R]) storeKey(key domain.IdempotencyKey) string {
	if h.scope == "" {
		return string(key)
	}

	return h.scope + ":" + string(key)
}
