package decorator

import (
	"context"

	"github.com/iho/ledgercore/internal/infrastructure/shard"
	"github.com/iho/ledgercore/internal/usecase"
)

// ShardedHandler routes each command to the lane for its shard key, so commands
// sharing a key execute one at a time in arrival order.
type ShardedHandler[C usecase.ShardedCommand, R any] struct {
	next     usecase.CommandHandler[C, R]
	registry *shard.Registry
}

// Sharded wraps next with registry.
func Sharded[C usecase.ShardedCommand, R any](next usecase.CommandHandler[C, R], registry *shard.Registry) *ShardedHandler[C, R] {
	return &ShardedHandler[C, R]{next: next, registry: registry}
}

// Handle implements usecase.CommandHandler.
func (h *ShardedHandler[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return shard.Ask(ctx, h.registry, cmd.ShardKey(), func(ctx context.Context) (R, error) {
		return h.next.Handle(ctx, cmd)
	})
}
