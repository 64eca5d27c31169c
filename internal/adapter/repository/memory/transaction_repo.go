package memory

import (
	"context"
	"fmt"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

type transactionRepository struct {
	uow *UnitOfWork
}

// Save stages the transaction and its outbox rows, then clears the aggregate's events.
func (r *transactionRepository) Save(ctx context.Context, tx *domain.LedgerTransaction) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkOpen(); err != nil {
		return err
	}

	if _, ok := r.uow.store.transaction(tx.ID); ok {
		return fmt.Errorf("%w: %s", domain.ErrTransactionAlreadyExists, tx.ID)
	}
	for _, staged := range r.uow.transactions {
		if staged.ID == tx.ID {
			return fmt.Errorf("%w: %s", domain.ErrTransactionAlreadyExists, tx.ID)
		}
	}

	store := r.uow.store
	rows, err := usecase.OutboxEventsFor(tx.DomainEvents(), store.serializer, store.idGen, store.now())
	if err != nil {
		return err
	}

	r.uow.transactions = append(r.uow.transactions, cloneTransaction(tx))
	r.uow.outbox = append(r.uow.outbox, rows...)
	tx.ClearEvents()

	return nil
}

func (r *transactionRepository) FindByID(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkOpen(); err != nil {
		return nil, err
	}

	for _, staged := range r.uow.transactions {
		if staged.ID == id {
			return cloneTransaction(staged), nil
		}
	}

	tx, ok := r.uow.store.transaction(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
	}

	return tx, nil
}
