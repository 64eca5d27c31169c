package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

const (
	transactionInsertSQL = `INSERT INTO ledger_transactions (id, source_transaction_id, description, posted_at) VALUES ($1, $2, $3, $4)`
	entryInsertSQL       = `INSERT INTO ledger_entries (transaction_id, position, account_id, amount, asset_code, entry_type, description, posted_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	outboxInsertSQL      = `INSERT INTO outbox_events (id, aggregate_id, event_type, payload, status, attempt_count, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	transactionByIDSQL   = `SELECT id, source_transaction_id, description, posted_at FROM ledger_transactions WHERE id = $1`
	entriesByTxSQL       = `SELECT account_id, amount, asset_code, entry_type, description, posted_at FROM ledger_entries WHERE transaction_id = $1 ORDER BY position`
)

// TransactionRepository implements usecase.LedgerTransactionRepository inside one transaction.
type TransactionRepository struct {
	tx         pgx.Tx
	serializer usecase.EventSerializer
	idGen      usecase.IDGenerator
	now        func() time.Time
}

// Save inserts the transaction, its entries and one outbox row per pending event.
func (r *TransactionRepository) Save(ctx context.Context, tx *domain.LedgerTransaction) error {
	rows, err := usecase.OutboxEventsFor(tx.DomainEvents(), r.serializer, r.idGen, r.now())
	if err != nil {
		return err
	}

	if _, err := r.tx.Exec(ctx, transactionInsertSQL, tx.ID, tx.SourceTransactionID, tx.Description, tx.PostedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrTransactionAlreadyExists, tx.ID)
		}
		return fmt.Errorf("insert ledger transaction: %w", err)
	}

	for i, e := range tx.Entries {
		if _, err := r.tx.Exec(ctx, entryInsertSQL,
			tx.ID,
			i,
			e.AccountID,
			decimalToNumeric(e.Amount.Value),
			e.Amount.Asset.Code,
			string(e.Type),
			e.Description,
			e.PostedAt,
		); err != nil {
			return fmt.Errorf("insert ledger entry %d: %w", i, err)
		}
	}

	for _, row := range rows {
		if _, err := r.tx.Exec(ctx, outboxInsertSQL,
			row.ID,
			row.AggregateID,
			row.EventType,
			row.Payload,
			string(row.Status),
			row.AttemptCount,
			row.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert outbox event: %w", err)
		}
	}

	tx.ClearEvents()

	return nil
}

// FindByID retrieves a transaction with its entries.
func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	var (
		tx       domain.LedgerTransaction
		postedAt time.Time
	)

	err := r.tx.QueryRow(ctx, transactionByIDSQL, id).Scan(&tx.ID, &tx.SourceTransactionID, &tx.Description, &postedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, id)
		}
		return nil, err
	}
	tx.PostedAt = postedAt.UTC()

	rows, err := r.tx.Query(ctx, entriesByTxSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e         domain.LedgerEntry
			amount    pgtype.Numeric
			assetCode string
			entryType string
			entryAt   time.Time
		)
		if err := rows.Scan(&e.AccountID, &amount, &assetCode, &entryType, &e.Description, &entryAt); err != nil {
			return nil, err
		}

		e.Amount = domain.Amount{Value: numericToDecimal(amount), Asset: domain.Asset{Code: assetCode}}
		e.Type = domain.EntryType(entryType)
		e.PostedAt = entryAt.UTC()
		tx.Entries = append(tx.Entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &tx, nil
}
