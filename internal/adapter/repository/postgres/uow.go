package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgercore/internal/usecase"
)

type pgxPool interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// UnitOfWorkFactory opens serializable database transactions.
// Conflicting commits fail with SQLSTATE 40001 and are retried by Retrier.
type UnitOfWorkFactory struct {
	pool       pgxPool
	serializer usecase.EventSerializer
	idGen      usecase.IDGenerator
	now        func() time.Time
}

// NewUnitOfWorkFactory creates a new UnitOfWorkFactory.
func NewUnitOfWorkFactory(pool *pgxpool.Pool, serializer usecase.EventSerializer, idGen usecase.IDGenerator) *UnitOfWorkFactory {
	return newUnitOfWorkFactoryWithPool(pool, serializer, idGen)
}

func newUnitOfWorkFactoryWithPool(pool pgxPool, serializer usecase.EventSerializer, idGen usecase.IDGenerator) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{
		pool:       pool,
		serializer: serializer,
		idGen:      idGen,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Begin starts a new transaction.
func (f *UnitOfWorkFactory) Begin(ctx context.Context) (usecase.UnitOfWork, error) {
	tx, err := f.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, err
	}

	return &UnitOfWork{
		tx:           tx,
		accounts:     &AccountRepository{tx: tx},
		transactions: &TransactionRepository{tx: tx, serializer: f.serializer, idGen: f.idGen, now: f.now},
	}, nil
}

// UnitOfWork wraps a pgx transaction.
type UnitOfWork struct {
	tx           pgx.Tx
	accounts     *AccountRepository
	transactions *TransactionRepository
}

// Accounts implements usecase.UnitOfWork.
func (u *UnitOfWork) Accounts() usecase.ChartOfAccountsRepository { return u.accounts }

// Transactions implements usecase.UnitOfWork.
func (u *UnitOfWork) Transactions() usecase.LedgerTransactionRepository { return u.transactions }

// Commit commits the transaction.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	return u.tx.Commit(ctx)
}

// Rollback rolls back the transaction. Rolling back a closed transaction is a no-op.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}

	return nil
}

// PgxTx returns the underlying pgx.Tx.
func (u *UnitOfWork) PgxTx() pgx.Tx {
	return u.tx
}
