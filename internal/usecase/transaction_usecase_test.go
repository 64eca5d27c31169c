package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

var brl = domain.Asset{Code: "BRL"}

func saleCommand() usecase.PostTransactionCommand {
	return usecase.PostTransactionCommand{
		SourceTransactionID: "tx1",
		Description:         "sale",
		Entries: []usecase.EntryInput{
			{AccountID: "cash", Amount: decimal.RequireFromString("100.00"), Asset: brl, Type: domain.EntryTypeDebit},
			{AccountID: "revenue", Amount: decimal.RequireFromString("100.00"), Asset: brl, Type: domain.EntryTypeCredit},
		},
	}
}

func activeAccounts(ids ...string) []*domain.Account {
	accounts := make([]*domain.Account, 0, len(ids))
	for _, id := range ids {
		accounts = append(accounts, &domain.Account{ID: id, Asset: brl, IsActive: true})
	}
	return accounts
}

func TestTransactionUseCase_PostTransaction(t *testing.T) {
	m := newUoWMocks(t)
	m.accounts.EXPECT().FindAllByIDs(gomock.Any(), []string{"cash", "revenue"}).Return(activeAccounts("cash", "revenue"), nil)
	m.idGen.EXPECT().Generate().Return("ltx-1")
	m.transactions.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, tx *domain.LedgerTransaction) error {
			if len(tx.DomainEvents()) != 1 {
				t.Errorf("expected one pending event at save time, got %d", len(tx.DomainEvents()))
			}
			return nil
		})
	m.expectCommit()

	uc := usecase.NewTransactionUseCase(m.factory, m.idGen)
	tx, err := uc.PostTransaction(context.Background(), saleCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tx.ID != "ltx-1" || len(tx.Entries) != 2 || tx.SourceTransactionID != "tx1" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
}

func TestTransactionUseCase_PostTransactionRejections(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(cmd *usecase.PostTransactionCommand)
		setupMocks func(m *uowMocks)
		wantErr    error
		wantMsg    string
	}{
		{
			name:       "blank source transaction id",
			mutate:     func(cmd *usecase.PostTransactionCommand) { cmd.SourceTransactionID = " " },
			setupMocks: func(m *uowMocks) {},
			wantErr:    domain.ErrBlankSourceTransactionID,
		},
		{
			name:       "blank description",
			mutate:     func(cmd *usecase.PostTransactionCommand) { cmd.Description = "" },
			setupMocks: func(m *uowMocks) {},
			wantErr:    domain.ErrBlankDescription,
		},
		{
			name: "every missing account is reported",
			mutate: func(cmd *usecase.PostTransactionCommand) {
				cmd.Entries[0].AccountID = "ghost-1"
				cmd.Entries[1].AccountID = "ghost-2"
			},
			setupMocks: func(m *uowMocks) {
				m.accounts.EXPECT().FindAllByIDs(gomock.Any(), []string{"ghost-1", "ghost-2"}).Return(nil, nil)
				m.expectRollback()
			},
			wantErr: domain.ErrAccountsUnavailable,
			wantMsg: "ghost-1, ghost-2",
		},
		{
			name: "unbalanced transaction is never saved",
			mutate: func(cmd *usecase.PostTransactionCommand) {
				cmd.Entries[1].Amount = decimal.RequireFromString("90")
			},
			setupMocks: func(m *uowMocks) {
				m.accounts.EXPECT().FindAllByIDs(gomock.Any(), gomock.Any()).Return(activeAccounts("cash", "revenue"), nil)
				m.idGen.EXPECT().Generate().Return("ltx-1")
				m.expectRollback()
			},
			wantErr: domain.ErrUnbalancedTransaction,
		},
		{
			name: "inactive account counts as missing",
			mutate: func(cmd *usecase.PostTransactionCommand) {},
			setupMocks: func(m *uowMocks) {
				accounts := activeAccounts("cash", "revenue")
				accounts[1].IsActive = false
				m.accounts.EXPECT().FindAllByIDs(gomock.Any(), gomock.Any()).Return(accounts, nil)
				m.expectRollback()
			},
			wantErr: domain.ErrAccountsUnavailable,
			wantMsg: "revenue",
		},
		{
			name: "save failure rolls back",
			mutate: func(cmd *usecase.PostTransactionCommand) {},
			setupMocks: func(m *uowMocks) {
				m.accounts.EXPECT().FindAllByIDs(gomock.Any(), gomock.Any()).Return(activeAccounts("cash", "revenue"), nil)
				m.idGen.EXPECT().Generate().Return("ltx-1")
				m.transactions.EXPECT().Save(gomock.Any(), gomock.Any()).Return(domain.ErrTransactionAlreadyExists)
				m.expectRollback()
			},
			wantErr: domain.ErrTransactionAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newUoWMocks(t)
			tt.setupMocks(m)

			cmd := saleCommand()
			tt.mutate(&cmd)

			uc := usecase.NewTransactionUseCase(m.factory, m.idGen)
			tx, err := uc.PostTransaction(context.Background(), cmd)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected %q in %q", tt.wantMsg, err.Error())
			}
			if tx != nil {
				t.Fatalf("expected no transaction, got %+v", tx)
			}
		})
	}
}

func TestTransactionUseCase_GetTransaction(t *testing.T) {
	m := newUoWMocks(t)
	m.transactions.EXPECT().FindByID(gomock.Any(), "nope").Return(nil, domain.ErrTransactionNotFound)
	m.expectRollback()

	uc := usecase.NewTransactionUseCase(m.factory, m.idGen)
	if _, err := uc.GetTransaction(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
