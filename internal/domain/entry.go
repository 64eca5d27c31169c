package domain

import (
	"fmt"
	"strings"
	"time"
)

// EntryType is the side of a ledger entry.
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// ParseEntryType parses an entry type, case-insensitively.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(strings.ToUpper(strings.TrimSpace(s)))
	if t != EntryTypeDebit && t != EntryTypeCredit {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryType, s)
	}

	return t, nil
}

// LedgerEntry is a single debit or credit against one account.
type LedgerEntry struct {
	AccountID   string
	Amount      Amount
	Type        EntryType
	Description string
	PostedAt    time.Time
}

// NewLedgerEntry creates an entry. Zero and negative amounts are rejected.
func NewLedgerEntry(accountID string, amount Amount, entryType EntryType, description string, postedAt time.Time) (LedgerEntry, error) {
	if !amount.IsPositive() {
		return LedgerEntry{}, fmt.Errorf("%w: got %s", ErrInvalidEntryAmount, amount)
	}

	if entryType != EntryTypeDebit && entryType != EntryTypeCredit {
		return LedgerEntry{}, fmt.Errorf("%w: %q", ErrInvalidEntryType, entryType)
	}

	return LedgerEntry{
		AccountID:   accountID,
		Amount:      amount,
		Type:        entryType,
		Description: description,
		PostedAt:    postedAt,
	}, nil
}
