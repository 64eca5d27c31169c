package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/ledgercore/internal/domain"
)

const accountColumns = `id, name, type, asset_code, parent_account_id, is_active, metadata, created_at, updated_at`

const (
	accountExistsSQL  = `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1 AND is_active)`
	accountByIDSQL    = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	accountListSQL    = `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at, id`
	accountByAssetSQL = `SELECT ` + accountColumns + ` FROM accounts WHERE asset_code = $1 ORDER BY created_at, id`
	accountsActiveSQL = `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1) AND is_active`
	accountInsertSQL  = `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	accountUpdateSQL  = `UPDATE accounts SET name = $2, is_active = $3, metadata = $4, updated_at = $5 WHERE id = $1`
)

// AccountRepository implements usecase.ChartOfAccountsRepository inside one transaction.
type AccountRepository struct {
	tx pgx.Tx
}

// Exists reports whether an active account exists.
func (r *AccountRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.tx.QueryRow(ctx, accountExistsSQL, id).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

// FindByID retrieves an account by ID.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	acc, err := scanAccount(r.tx.QueryRow(ctx, accountByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}

		return nil, err
	}

	return acc, nil
}

// ListAll lists every account, oldest first.
func (r *AccountRepository) ListAll(ctx context.Context) ([]*domain.Account, error) {
	return r.query(ctx, accountListSQL)
}

// FindByAsset lists the accounts denominated in asset.
func (r *AccountRepository) FindByAsset(ctx context.Context, asset domain.Asset) ([]*domain.Account, error) {
	return r.query(ctx, accountByAssetSQL, asset.Code)
}

// FindAllByIDs returns the active accounts among ids.
func (r *AccountRepository) FindAllByIDs(ctx context.Context, ids []string) ([]*domain.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return r.query(ctx, accountsActiveSQL, ids)
}

// Add inserts a new account.
func (r *AccountRepository) Add(ctx context.Context, account *domain.Account) error {
	metadata, err := metadataToJSON(account.Metadata)
	if err != nil {
		return err
	}

	_, err = r.tx.Exec(ctx, accountInsertSQL,
		account.ID,
		account.Name,
		string(account.Type),
		account.Asset.Code,
		account.ParentAccountID,
		account.IsActive,
		metadata,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrAccountAlreadyExists, account.ID)
		}

		return err
	}

	return nil
}

// Update writes the mutable fields of an account.
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	metadata, err := metadataToJSON(account.Metadata)
	if err != nil {
		return err
	}

	tag, err := r.tx.Exec(ctx, accountUpdateSQL,
		account.ID,
		account.Name,
		account.IsActive,
		metadata,
		account.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account.ID)
	}

	return nil
}

func (r *AccountRepository) query(ctx context.Context, sql string, args ...any) ([]*domain.Account, error) {
	rows, err := r.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc       domain.Account
		typ       string
		assetCode string
		metadata  []byte
		createdAt time.Time
		updatedAt time.Time
	)

	if err := row.Scan(
		&acc.ID,
		&acc.Name,
		&typ,
		&assetCode,
		&acc.ParentAccountID,
		&acc.IsActive,
		&metadata,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	m, err := jsonToMetadata(metadata)
	if err != nil {
		return nil, err
	}

	acc.Type = domain.AccountType(typ)
	acc.Asset = domain.Asset{Code: assetCode}
	acc.Metadata = m
	acc.CreatedAt = createdAt.UTC()
	acc.UpdatedAt = updatedAt.UTC()

	return &acc, nil
}
