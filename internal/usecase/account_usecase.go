package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iho/ledgercore/internal/domain"
)

// AccountUseCase handles chart-of-accounts business logic.
type AccountUseCase struct {
	uowFactory UnitOfWorkFactory
	idGen      IDGenerator
	retrier    Retrier
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(uowFactory UnitOfWorkFactory, idGen IDGenerator) *AccountUseCase {
	return &AccountUseCase{
		uowFactory: uowFactory,
		idGen:      idGen,
	}
}

// WithRetrier re-runs commands on transient storage errors.
func (uc *AccountUseCase) WithRetrier(retrier Retrier) *AccountUseCase {
	uc.retrier = retrier
	return uc
}

// CreateAccount opens a new active account.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, cmd CreateAccountCommand) (*domain.Account, error) {
	if err := domain.ValidateAccountName(cmd.Name); err != nil {
		return nil, err
	}

	var parentID *string
	if cmd.ParentAccountID != nil && strings.TrimSpace(*cmd.ParentAccountID) != "" {
		id := strings.TrimSpace(*cmd.ParentAccountID)
		parentID = &id
	}

	return transactWithRetry(ctx, uc.uowFactory, uc.retrier, func(ctx context.Context, uow UnitOfWork) (*domain.Account, error) {
		accounts := uow.Accounts()

		if parentID != nil {
			exists, err := accounts.Exists(ctx, *parentID)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, fmt.Errorf("%w: %s", domain.ErrParentAccountNotFound, *parentID)
			}
		}

		account, err := domain.NewAccount(domain.NewAccountParams{
			ID:              uc.idGen.Generate(),
			Name:            cmd.Name,
			Type:            cmd.Type,
			Asset:           cmd.Asset,
			ParentAccountID: parentID,
			Metadata:        cmd.Metadata,
			CreatedAt:       time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}

		if err := accounts.Add(ctx, account); err != nil {
			return nil, err
		}

		return account, nil
	})
}

// RenameAccount changes the name of an existing account.
func (uc *AccountUseCase) RenameAccount(ctx context.Context, cmd RenameAccountCommand) (*domain.Account, error) {
	if err := domain.ValidateAccountName(cmd.NewName); err != nil {
		return nil, err
	}

	return transactWithRetry(ctx, uc.uowFactory, uc.retrier, func(ctx context.Context, uow UnitOfWork) (*domain.Account, error) {
		accounts := uow.Accounts()

		account, err := accounts.FindByID(ctx, cmd.AccountID)
		if err != nil {
			return nil, err
		}

		renamed, err := account.Rename(cmd.NewName, time.Now().UTC())
		if err != nil {
			return nil, err
		}

		if err := accounts.Update(ctx, renamed); err != nil {
			return nil, err
		}

		return renamed, nil
	})
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return Transact(ctx, uc.uowFactory, func(ctx context.Context, uow UnitOfWork) (*domain.Account, error) {
		return uow.Accounts().FindByID(ctx, id)
	})
}

// ListAccounts lists the whole chart of accounts.
func (uc *AccountUseCase) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return Transact(ctx, uc.uowFactory, func(ctx context.Context, uow UnitOfWork) ([]*domain.Account, error) {
		return uow.Accounts().ListAll(ctx)
	})
}

// ListAccountsByAsset lists the accounts denominated in asset.
func (uc *AccountUseCase) ListAccountsByAsset(ctx context.Context, asset domain.Asset) ([]*domain.Account, error) {
	return Transact(ctx, uc.uowFactory, func(ctx context.Context, uow UnitOfWork) ([]*domain.Account, error) {
		return uow.Accounts().FindByAsset(ctx, asset)
	})
}
