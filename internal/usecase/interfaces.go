package usecase

import (
	"context"
	"time"

	"github.com/iho/ledgercore/internal/domain"
)

// ChartOfAccountsRepository defines data access for accounts.
// Implementations are bound to a single UnitOfWork.
type ChartOfAccountsRepository interface {
	// Exists reports whether an active account with the given id exists.
	Exists(ctx context.Context, id string) (bool, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	ListAll(ctx context.Context) ([]*domain.Account, error)
	Add(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	FindByAsset(ctx context.Context, asset domain.Asset) ([]*domain.Account, error)
	// FindAllByIDs returns the active accounts among ids. Missing or inactive ids are omitted.
	FindAllByIDs(ctx context.Context, ids []string) ([]*domain.Account, error)
}

// LedgerTransactionRepository defines data access for ledger transactions.
type LedgerTransactionRepository interface {
	// Save persists the transaction and one outbox row per pending domain event,
	// then clears the events.
	Save(ctx context.Context, tx *domain.LedgerTransaction) error
	FindByID(ctx context.Context, id string) (*domain.LedgerTransaction, error)
}

// UnitOfWork is a transactional boundary. Every repository it hands out writes
// into the same transaction.
type UnitOfWork interface {
	Accounts() ChartOfAccountsRepository
	Transactions() LedgerTransactionRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory handles unit of work lifecycle.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// OutboxRepository defines data access for outbox rows outside of a unit of work.
type OutboxRepository interface {
	// FindPending returns up to limit PENDING or FAILED rows, oldest first.
	FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, attempts int, at time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastError string, at time.Time) error
	ListByStatus(ctx context.Context, status domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error)
}

// DomainEventPublisher delivers domain events to external consumers.
type DomainEventPublisher interface {
	Publish(ctx context.Context, events []domain.DomainEvent) error
}

// EventSerializer encodes a domain event into an outbox payload.
type EventSerializer interface {
	Serialize(event domain.DomainEvent) (string, error)
}

// EventDeserializer decodes an outbox row back into its domain event.
type EventDeserializer interface {
	Deserialize(row *domain.OutboxEvent) (domain.DomainEvent, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore runs an operation at most once per key and remembers its result.
type IdempotencyStore interface {
	// GetOrSet returns the stored result for key, or runs op under a per-key lock
	// and stores its result. Failed operations are not stored.
	GetOrSet(ctx context.Context, key string, op func(ctx context.Context) ([]byte, error)) ([]byte, error)
}

// Retrier re-runs an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}
