package memory

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/eventcodec"
	"github.com/iho/ledgercore/internal/usecase"
)

type seqIDs struct {
	prefix string
	n      atomic.Int64
}

func (g *seqIDs) Generate() string {
	return fmt.Sprintf("%s-%03d", g.prefix, g.n.Add(1))
}

var (
	brl  = domain.Asset{Code: "BRL"}
	when = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
)

func newTestStore() *Store {
	return NewStore(eventcodec.New(), &seqIDs{prefix: "evt"})
}

func begin(t *testing.T, store *Store) usecase.UnitOfWork {
	t.Helper()

	uow, err := NewUnitOfWorkFactory(store).Begin(context.Background())
	require.NoError(t, err)

	return uow
}

func testAccount(t *testing.T, id, name string, createdAt time.Time) *domain.Account {
	t.Helper()

	acc, err := domain.NewAccount(domain.NewAccountParams{
		ID:        id,
		Name:      name,
		Type:      domain.AccountTypeAsset,
		Asset:     brl,
		CreatedAt: createdAt,
	})
	require.NoError(t, err)

	return acc
}

func seedAccounts(t *testing.T, store *Store, accounts ...*domain.Account) {
	t.Helper()

	uow := begin(t, store)
	for _, acc := range accounts {
		require.NoError(t, uow.Accounts().Add(context.Background(), acc))
	}
	require.NoError(t, uow.Commit(context.Background()))
}

func testTransaction(t *testing.T, id string) *domain.LedgerTransaction {
	t.Helper()

	amount := domain.Amount{Value: decimal.NewFromInt(100), Asset: brl}
	debit, err := domain.NewLedgerEntry("cash", amount, domain.EntryTypeDebit, "", when)
	require.NoError(t, err)
	credit, err := domain.NewLedgerEntry("revenue", amount, domain.EntryTypeCredit, "", when)
	require.NoError(t, err)

	tx, err := domain.NewLedgerTransaction(id, "sale-"+id, "sale", []domain.LedgerEntry{debit, credit}, when)
	require.NoError(t, err)

	return tx
}
