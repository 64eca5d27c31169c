package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/eventcodec"
	"github.com/iho/ledgercore/internal/usecase"
)

var when = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations were not met: %v", err)
	}
}

type fixedIDs struct{ n int }

func (g *fixedIDs) Generate() string {
	g.n++
	return fmt.Sprintf("evt-%d", g.n)
}

func newTestFactory(pool pgxmock.PgxPoolIface) *UnitOfWorkFactory {
	f := newUnitOfWorkFactoryWithPool(pool, eventcodec.New(), &fixedIDs{})
	f.now = func() time.Time { return when }
	return f
}

func beginMocked(t *testing.T, pool pgxmock.PgxPoolIface) usecase.UnitOfWork {
	t.Helper()
	pool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})

	uow, err := newTestFactory(pool).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	return uow
}

func saleTransaction(t *testing.T) *domain.LedgerTransaction {
	t.Helper()

	brl := domain.Asset{Code: "BRL"}
	amount := domain.Amount{Value: decimal.RequireFromString("100.00"), Asset: brl}
	debit, err := domain.NewLedgerEntry("cash", amount, domain.EntryTypeDebit, "", when)
	if err != nil {
		t.Fatal(err)
	}
	credit, err := domain.NewLedgerEntry("revenue", amount, domain.EntryTypeCredit, "", when)
	if err != nil {
		t.Fatal(err)
	}

	tx, err := domain.NewLedgerTransaction("tx-1", "sale-1", "sale", []domain.LedgerEntry{debit, credit}, when)
	if err != nil {
		t.Fatal(err)
	}
	return tx
}
