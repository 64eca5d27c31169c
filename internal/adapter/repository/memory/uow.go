package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// UnitOfWorkFactory begins units of work against a Store.
type UnitOfWorkFactory struct {
	store *Store
}

// NewUnitOfWorkFactory creates a factory for store.
func NewUnitOfWorkFactory(store *Store) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{store: store}
}

// Begin implements usecase.UnitOfWorkFactory.
func (f *UnitOfWorkFactory) Begin(ctx context.Context) (usecase.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u := &UnitOfWork{
		store:   f.store,
		added:   make(map[string]*domain.Account),
		updated: make(map[string]*domain.Account),
	}
	u.accountRepo = &accountRepository{uow: u}
	u.txRepo = &transactionRepository{uow: u}

	return u, nil
}

// UnitOfWork buffers writes and applies them atomically on Commit.
// Reads see committed data overlaid with the unit's own pending writes.
type UnitOfWork struct {
	store *Store

	mu           sync.Mutex
	done         bool
	added        map[string]*domain.Account
	updated      map[string]*domain.Account
	transactions []*domain.LedgerTransaction
	outbox       []*domain.OutboxEvent

	accountRepo *accountRepository
	txRepo      *transactionRepository
}

// Accounts implements usecase.UnitOfWork.
func (u *UnitOfWork) Accounts() usecase.ChartOfAccountsRepository { return u.accountRepo }

// Transactions implements usecase.UnitOfWork.
func (u *UnitOfWork) Transactions() usecase.LedgerTransactionRepository { return u.txRepo }

// Commit applies every pending write or none of them.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.done {
		return ErrUnitOfWorkFinished
	}
	u.done = true

	ids := make([]string, 0, len(u.added)+len(u.updated)+len(u.transactions)+len(u.outbox))
	for id := range u.added {
		ids = append(ids, id)
	}
	for id := range u.updated {
		ids = append(ids, id)
	}
	for _, tx := range u.transactions {
		ids = append(ids, tx.ID)
	}
	for _, row := range u.outbox {
		ids = append(ids, row.ID)
	}

	unlock := u.store.lockStripes(ids)
	defer unlock()

	// validate everything before the first write
	for id := range u.added {
		if _, ok := u.store.stripeFor(id).accounts[id]; ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, id)
		}
	}
	for id := range u.updated {
		if _, ok := u.store.stripeFor(id).accounts[id]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
	}
	for _, tx := range u.transactions {
		if _, ok := u.store.stripeFor(tx.ID).transactions[tx.ID]; ok {
			return fmt.Errorf("%w: %s", domain.ErrTransactionAlreadyExists, tx.ID)
		}
	}

	for id, acc := range u.added {
		u.store.stripeFor(id).accounts[id] = acc
	}
	for id, acc := range u.updated {
		u.store.stripeFor(id).accounts[id] = acc
	}
	for _, tx := range u.transactions {
		u.store.stripeFor(tx.ID).transactions[tx.ID] = tx
	}
	for _, row := range u.outbox {
		u.store.stripeFor(row.ID).outbox[row.ID] = row
	}

	return nil
}

// Rollback discards pending writes. Rolling back a finished unit is a no-op.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.done = true
	u.added = nil
	u.updated = nil
	u.transactions = nil
	u.outbox = nil

	return nil
}

func (u *UnitOfWork) checkOpen() error {
	if u.done {
		return ErrUnitOfWorkFinished
	}

	return nil
}

// lookupAccount returns the account as this unit sees it.
// Callers hold u.mu.
func (u *UnitOfWork) lookupAccount(id string) (*domain.Account, bool) {
	if acc, ok := u.updated[id]; ok {
		return cloneAccount(acc), true
	}
	if acc, ok := u.added[id]; ok {
		return cloneAccount(acc), true
	}

	return u.store.account(id)
}
