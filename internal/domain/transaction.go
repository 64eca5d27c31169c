package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerTransaction is the aggregate root of the ledger: a balanced set of entries
// posted together. It is immutable once created.
type LedgerTransaction struct {
	ID                  string
	SourceTransactionID string
	Description         string
	Entries             []LedgerEntry
	PostedAt            time.Time

	events []DomainEvent
}

// NewLedgerTransaction builds a transaction and records a LedgerTransactionPosted event.
//
// Checks run in a fixed order and stop at the first failure: entry count, asset
// homogeneity, balance, positive total.
func NewLedgerTransaction(id, sourceTransactionID, description string, entries []LedgerEntry, postedAt time.Time) (*LedgerTransaction, error) {
	if len(entries) < 2 {
		return nil, ErrTooFewEntries
	}

	asset := entries[0].Amount.Asset
	for _, e := range entries[1:] {
		if e.Amount.Asset != asset {
			return nil, fmt.Errorf("%w: found %s and %s", ErrMixedAssets, asset.Code, e.Amount.Asset.Code)
		}
	}

	debits, credits := sumSides(entries)
	if !debits.Equal(credits) {
		return nil, fmt.Errorf("%w: debits (%s) do not equal credits (%s)", ErrUnbalancedTransaction, debits.String(), credits.String())
	}

	if !debits.IsPositive() {
		return nil, ErrNonPositiveTotal
	}

	tx := &LedgerTransaction{
		ID:                  id,
		SourceTransactionID: sourceTransactionID,
		Description:         description,
		Entries:             slices.Clone(entries),
		PostedAt:            postedAt,
	}

	tx.events = append(tx.events, &LedgerTransactionPosted{
		TransactionID: id,
		TotalAmount:   debits,
		Asset:         asset,
		OccurredAt:    postedAt.UTC(),
	})

	return tx, nil
}

// Asset returns the single asset shared by every entry.
func (t *LedgerTransaction) Asset() Asset {
	if len(t.Entries) == 0 {
		return Asset{}
	}

	return t.Entries[0].Amount.Asset
}

// Total returns the debit total, which equals the credit total.
func (t *LedgerTransaction) Total() Amount {
	debits, _ := sumSides(t.Entries)
	return Amount{Value: debits, Asset: t.Asset()}
}

// DomainEvents returns the events recorded since the last ClearEvents.
func (t *LedgerTransaction) DomainEvents() []DomainEvent {
	return slices.Clone(t.events)
}

// ClearEvents drops pending events once they have been persisted.
func (t *LedgerTransaction) ClearEvents() {
	t.events = nil
}

func sumSides(entries []LedgerEntry) (debits, credits decimal.Decimal) {
	for _, e := range entries {
		switch e.Type {
		case EntryTypeDebit:
			debits = debits.Add(e.Amount.Value)
		case EntryTypeCredit:
			credits = credits.Add(e.Amount.Value)
		}
	}

	return debits, credits
}
