package domain

import (
	"fmt"
	"maps"
	"strings"
	"time"
)

// AccountType classifies an account in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// ParseAccountType parses an account type, case-insensitively.
func ParseAccountType(s string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountType, s)
	}
}

// Account is an entry in the chart of accounts.
// Accounts are never deleted; the name is the only field that changes after creation.
type Account struct {
	ID              string
	Name            string
	Type            AccountType
	Asset           Asset
	ParentAccountID *string
	IsActive        bool
	Metadata        map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAccountParams holds the fields needed to open an account.
type NewAccountParams struct {
	ID              string
	Name            string
	Type            AccountType
	Asset           Asset
	ParentAccountID *string
	Metadata        map[string]string
	CreatedAt       time.Time
}

// NewAccount creates an active account.
func NewAccount(p NewAccountParams) (*Account, error) {
	if err := ValidateAccountName(p.Name); err != nil {
		return nil, err
	}

	if _, err := ParseAccountType(string(p.Type)); err != nil {
		return nil, err
	}

	if err := ValidateAssetCode(p.Asset.Code); err != nil {
		return nil, err
	}

	if err := ValidateMetadata(p.Metadata); err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(p.Metadata))
	maps.Copy(metadata, p.Metadata)

	return &Account{
		ID:              p.ID,
		Name:            strings.TrimSpace(p.Name),
		Type:            p.Type,
		Asset:           p.Asset,
		ParentAccountID: p.ParentAccountID,
		IsActive:        true,
		Metadata:        metadata,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.CreatedAt,
	}, nil
}

// Rename returns a copy of the account carrying the new name.
func (a *Account) Rename(newName string, at time.Time) (*Account, error) {
	if err := ValidateAccountName(newName); err != nil {
		return nil, err
	}

	renamed := *a
	renamed.Name = strings.TrimSpace(newName)
	renamed.UpdatedAt = at
	renamed.Metadata = maps.Clone(a.Metadata)

	return &renamed, nil
}
