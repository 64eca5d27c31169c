package dto

import (
	"time"

	"github.com/iho/ledgercore/internal/domain"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Type            string            `json:"type"`
	Asset           string            `json:"asset"`
	ParentAccountID *string           `json:"parent_account_id,omitempty"`
	IsActive        bool              `json:"is_active"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:              a.ID,
		Name:            a.Name,
		Type:            string(a.Type),
		Asset:           a.Asset.Code,
		ParentAccountID: a.ParentAccountID,
		IsActive:        a.IsActive,
		Metadata:        a.Metadata,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse represents a list of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int                `json:"total"`
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	AccountID   string `json:"account_id"`
	Amount      string `json:"amount"`
	Asset       string `json:"asset"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// TransactionResponse represents a ledger transaction in API responses.
type TransactionResponse struct {
	ID                  string          `json:"id"`
	SourceTransactionID string          `json:"source_transaction_id"`
	Description         string          `json:"description"`
	Asset               string          `json:"asset"`
	TotalAmount         string          `json:"total_amount"`
	Entries             []EntryResponse `json:"entries"`
	PostedAt            time.Time       `json:"posted_at"`
}

// TransactionFromDomain converts a domain transaction to response.
func TransactionFromDomain(tx *domain.LedgerTransaction) *TransactionResponse {
	entries := make([]EntryResponse, len(tx.Entries))
	for i, e := range tx.Entries {
		entries[i] = EntryResponse{
			AccountID:   e.AccountID,
			Amount:      e.Amount.Value.String(),
			Asset:       e.Amount.Asset.Code,
			Type:        string(e.Type),
			Description: e.Description,
		}
	}

	total := tx.Total()

	return &TransactionResponse{
		ID:                  tx.ID,
		SourceTransactionID: tx.SourceTransactionID,
		Description:         tx.Description,
		Asset:               total.Asset.Code,
		TotalAmount:         total.Value.String(),
		Entries:             entries,
		PostedAt:            tx.PostedAt,
	}
}

// OutboxEventResponse represents an outbox row in API responses.
type OutboxEventResponse struct {
	ID            string     `json:"id"`
	AggregateID   string     `json:"aggregate_id"`
	EventType     string     `json:"event_type"`
	Payload       string     `json:"payload"`
	Status        string     `json:"status"`
	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
	LastError     *string    `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// OutboxEventsFromDomain converts outbox rows to responses.
func OutboxEventsFromDomain(events []*domain.OutboxEvent) []*OutboxEventResponse {
	result := make([]*OutboxEventResponse, len(events))
	for i, e := range events {
		result[i] = &OutboxEventResponse{
			ID:            e.ID,
			AggregateID:   e.AggregateID,
			EventType:     e.EventType,
			Payload:       e.Payload,
			Status:        string(e.Status),
			AttemptCount:  e.AttemptCount,
			LastAttemptAt: e.LastAttemptAt,
			LastError:     e.LastError,
			CreatedAt:     e.CreatedAt,
		}
	}
	return result
}

// ListOutboxResponse represents a list of outbox rows.
type ListOutboxResponse struct {
	Events []*OutboxEventResponse `json:"events"`
	Total  int                    `json:"total"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
