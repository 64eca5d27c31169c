package memory

import (
	"context"
	"fmt"

	"github.com/iho/ledgercore/internal/domain"
)

type accountRepository struct {
	uow *UnitOfWork
}

func (r *accountRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkOpen(); err != nil {
		return false, err
	}

	acc, ok := r.uow.lookupAccount(id)

	return ok && acc.IsActive, nil
}

func (r *accountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkOpen(); err != nil {
		return nil, err
	}

	acc, ok := r.uow.lookupAccount(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}

	return acc, nil
}

func (r *accountRepository) ListAll(ctx context.Context) ([]*domain.Account, error) {
	return r.list(func(*domain.Account) bool { return true })
}

func (r *accountRepository) FindByAsset(ctx context.Context, asset domain.Asset) ([]*domain.Account, error) {
	return r.list(func(acc *domain.Account) bool { return acc.Asset == asset })
}

func (r *accountRepository) list(keep func(*domain.Account) bool) ([]*domain.Account, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkOpen(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []*domain.Account

	r.uow.store.scanAccounts(func(acc *domain.Account) {
		if pending, ok := r.uow.updated[acc.ID]; ok {
			acc = cloneAccount(pending)
		}
		seen[acc.ID] = struct{}{}
		if keep(acc) {
			out = append(out, acc)
		}
	})

	for id, acc := range r.uow.added {
		if _, ok := seen[id]; ok {
			continue
		}
		if keep(acc) {
			out = append(out, cloneAccount(acc))
		}
	}

	sortAccounts(out)

	return out, nil
}

func (r *accountRepository) FindAllByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkOpen(); err != nil {
		return nil, err
	}

	out := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		if acc, ok := r.uow.lookupAccount(id); ok && acc.IsActive {
			out = append(out, acc)
		}
	}

	return out, nil
}

func (r *accountRepository) Add(ctx context.Context, account *domain.Account) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkOpen(); err != nil {
		return err
	}

	if _, ok := r.uow.lookupAccount(account.ID); ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, account.ID)
	}

	r.uow.added[account.ID] = cloneAccount(account)

	return nil
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	r.uow.mu.Lock()
	defer r.uow.mu.Unlock()

	if err := r.uow.checkOpen(); err != nil {
		return err
	}

	if _, ok := r.uow.added[account.ID]; ok {
		r.uow.added[account.ID] = cloneAccount(account)
		return nil
	}

	if _, ok := r.uow.lookupAccount(account.ID); !ok {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account.ID)
	}

	r.uow.updated[account.ID] = cloneAccount(account)

	return nil
}
