package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/iho/ledgercore/internal/domain"
)

// TransactionUseCase handles ledger posting business logic.
type TransactionUseCase struct {
	uowFactory UnitOfWorkFactory
	idGen      IDGenerator
	retrier    Retrier
}

// NewTransactionUseCase creates a new TransactionUseCase.
func NewTransactionUseCase(uowFactory UnitOfWorkFactory, idGen IDGenerator) *TransactionUseCase {
	return &TransactionUseCase{
		uowFactory: uowFactory,
		idGen:      idGen,
	}
}

// WithRetrier re-runs postings on transient storage errors.
func (uc *TransactionUseCase) WithRetrier(retrier Retrier) *TransactionUseCase {
	uc.retrier = retrier
	return uc
}

// PostTransaction validates and records a balanced transaction together with its
// LedgerTransactionPosted outbox row.
func (uc *TransactionUseCase) PostTransaction(ctx context.Context, cmd PostTransactionCommand) (*domain.LedgerTransaction, error) {
	// 1. Validate command fields before touching storage
	if strings.TrimSpace(cmd.SourceTransactionID) == "" {
		return nil, domain.ErrBlankSourceTransactionID
	}
	if strings.TrimSpace(cmd.Description) == "" {
		return nil, domain.ErrBlankDescription
	}

	accountIDs := distinctAccountIDs(cmd.Entries)

	return transactWithRetry(ctx, uc.uowFactory, uc.retrier, func(ctx context.Context, uow UnitOfWork) (*domain.LedgerTransaction, error) {
		// 2. Every referenced account must exist and be active
		found, err := uow.Accounts().FindAllByIDs(ctx, accountIDs)
		if err != nil {
			return nil, err
		}

		if missing := missingAccountIDs(accountIDs, found); len(missing) > 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountsUnavailable, strings.Join(missing, ", "))
		}

		// 3. Build the aggregate; this enforces the double-entry invariants
		now := time.Now().UTC()

		entries := make([]domain.LedgerEntry, 0, len(cmd.Entries))
		for _, in := range cmd.Entries {
			amount, err := domain.NewAmount(in.Amount, in.Asset)
			if err != nil {
				return nil, err
			}

			entry, err := domain.NewLedgerEntry(in.AccountID, amount, in.Type, in.Description, now)
			if err != nil {
				return nil, err
			}

			entries = append(entries, entry)
		}

		tx, err := domain.NewLedgerTransaction(uc.idGen.Generate(), cmd.SourceTransactionID, cmd.Description, entries, now)
		if err != nil {
			return nil, err
		}

		// 4. Persist transaction and outbox row in the same unit of work
		if err := uow.Transactions().Save(ctx, tx); err != nil {
			return nil, err
		}

		return tx, nil
	})
}

// GetTransaction retrieves a ledger transaction by ID.
func (uc *TransactionUseCase) GetTransaction(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	return Transact(ctx, uc.uowFactory, func(ctx context.Context, uow UnitOfWork) (*domain.LedgerTransaction, error) {
		return uow.Transactions().FindByID(ctx, id)
	})
}

// distinctAccountIDs returns referenced account ids in first-reference order.
func distinctAccountIDs(entries []EntryInput) []string {
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.AccountID]; ok {
			continue
		}
		seen[e.AccountID] = struct{}{}
		ids = append(ids, e.AccountID)
	}

	return ids
}

func missingAccountIDs(ids []string, found []*domain.Account) []string {
	active := make(map[string]struct{}, len(found))
	for _, acc := range found {
		if acc.IsActive {
			active[acc.ID] = struct{}{}
		}
	}

	var missing []string
	for _, id := range ids {
		if _, ok := active[id]; !ok {
			missing = append(missing, id)
		}
	}

	return missing
}
