package usecase

import (
	"context"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/shopspring/decimal"
)

// CommandHandler executes a command and returns its result.
// Decorators (idempotency, sharding) and use cases share this shape so they
// can be stacked at startup.
type CommandHandler[C, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

// HandlerFunc adapts a function to CommandHandler.
type HandlerFunc[C, R any] func(ctx context.Context, cmd C) (R, error)

// Handle calls f(ctx, cmd).
func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

// IdempotentCommand is a command that carries an idempotency key.
type IdempotentCommand interface {
	IdempotencyKey() domain.IdempotencyKey
}

// ShardedCommand is a command routed to a serialized lane by key.
type ShardedCommand interface {
	ShardKey() string
}

// CreateAccountCommand opens an account in the chart of accounts.
type CreateAccountCommand struct {
	Name            string
	Type            domain.AccountType
	Asset           domain.Asset
	ParentAccountID *string
	Metadata        map[string]string
	Key             domain.IdempotencyKey
}

// IdempotencyKey implements IdempotentCommand.
func (c CreateAccountCommand) IdempotencyKey() domain.IdempotencyKey { return c.Key }

// RenameAccountCommand changes an account's name.
type RenameAccountCommand struct {
	AccountID string
	NewName   string
}

// ShardKey implements ShardedCommand.
func (c RenameAccountCommand) ShardKey() string { return c.AccountID }

// EntryInput is one line of a PostTransactionCommand.
type EntryInput struct {
	AccountID   string
	Amount      decimal.Decimal
	Asset       domain.Asset
	Type        domain.EntryType
	Description string
}

// PostTransactionCommand posts a balanced ledger transaction.
type PostTransactionCommand struct {
	SourceTransactionID string
	Description         string
	Entries             []EntryInput
	Key                 domain.IdempotencyKey
}

// IdempotencyKey implements IdempotentCommand.
func (c PostTransactionCommand) IdempotencyKey() domain.IdempotencyKey { return c.Key }

// ShardKey implements ShardedCommand. Postings for the same upstream transaction
// are serialized.
func (c PostTransactionCommand) ShardKey() string { return c.SourceTransactionID }
