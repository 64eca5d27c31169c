package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// CreateAccountRequest represents a request to open an account.
type CreateAccountRequest struct {
	Name            string            `json:"name"`
	Type            string            `json:"type"`
	Asset           string            `json:"asset"`
	ParentAccountID *string           `json:"parent_account_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// ToCommand converts the request into a CreateAccountCommand carrying key.
func (r *CreateAccountRequest) ToCommand(key domain.IdempotencyKey) (usecase.CreateAccountCommand, error) {
	accountType, err := domain.ParseAccountType(r.Type)
	if err != nil {
		return usecase.CreateAccountCommand{}, err
	}

	asset, err := domain.NewAsset(r.Asset)
	if err != nil {
		return usecase.CreateAccountCommand{}, err
	}

	return usecase.CreateAccountCommand{
		Name:            r.Name,
		Type:            accountType,
		Asset:           asset,
		ParentAccountID: r.ParentAccountID,
		Metadata:        r.Metadata,
		Key:             key,
	}, nil
}

// RenameAccountRequest represents a request to rename an account.
type RenameAccountRequest struct {
	Name string `json:"name"`
}

// ToCommand converts the request into a RenameAccountCommand for accountID.
func (r *RenameAccountRequest) ToCommand(accountID string) usecase.RenameAccountCommand {
	return usecase.RenameAccountCommand{AccountID: accountID, NewName: r.Name}
}

// EntryRequest is one line of a PostTransactionRequest.
type EntryRequest struct {
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Asset       string          `json:"asset"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
}

// PostTransactionRequest represents a request to post a ledger transaction.
type PostTransactionRequest struct {
	SourceTransactionID string         `json:"source_transaction_id"`
	Description         string         `json:"description"`
	Entries             []EntryRequest `json:"entries"`
}

// ToCommand converts the request into a PostTransactionCommand carrying key.
func (r *PostTransactionRequest) ToCommand(key domain.IdempotencyKey) (usecase.PostTransactionCommand, error) {
	entries := make([]usecase.EntryInput, len(r.Entries))
	for i, e := range r.Entries {
		entryType, err := domain.ParseEntryType(e.Type)
		if err != nil {
			return usecase.PostTransactionCommand{}, err
		}

		asset, err := domain.NewAsset(e.Asset)
		if err != nil {
			return usecase.PostTransactionCommand{}, err
		}

		entries[i] = usecase.EntryInput{
			AccountID:   e.AccountID,
			Amount:      e.Amount,
			Asset:       asset,
			Type:        entryType,
			Description: e.Description,
		}
	}

	return usecase.PostTransactionCommand{
		SourceTransactionID: r.SourceTransactionID,
		Description:         r.Description,
		Entries:             entries,
		Key:                 key,
	}, nil
}
