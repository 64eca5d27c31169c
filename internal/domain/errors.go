package domain

import (
	"errors"
	"fmt"
)

// Error categories. Every error below wraps exactly one of them.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

var (
	// Value object errors
	ErrInvalidAsset   = fmt.Errorf("%w: asset code must not be blank", ErrValidation)
	ErrNegativeAmount = fmt.Errorf("%w: amount must not be negative", ErrValidation)
	ErrAssetMismatch  = fmt.Errorf("%w: amounts have different assets", ErrValidation)

	// Account errors
	ErrInvalidAccountName    = fmt.Errorf("%w: invalid account name", ErrValidation)
	ErrInvalidAccountType    = fmt.Errorf("%w: invalid account type", ErrValidation)
	ErrAccountNotFound       = fmt.Errorf("account %w", ErrNotFound)
	ErrParentAccountNotFound = fmt.Errorf("parent account %w", ErrNotFound)
	ErrAccountAlreadyExists  = fmt.Errorf("%w: account already exists", ErrConflict)
	ErrAccountsUnavailable   = fmt.Errorf("%w: accounts do not exist or are not active in the chart of accounts", ErrValidation)

	// Entry errors
	ErrInvalidEntryAmount = fmt.Errorf("%w: entry amount must be positive", ErrValidation)
	ErrInvalidEntryType   = fmt.Errorf("%w: invalid entry type", ErrValidation)

	// Transaction errors
	ErrTooFewEntries            = fmt.Errorf("%w: a transaction must have at least two entries", ErrValidation)
	ErrMixedAssets              = fmt.Errorf("%w: all entries in a transaction must have the same asset", ErrValidation)
	ErrUnbalancedTransaction    = fmt.Errorf("%w: ledger transaction is unbalanced", ErrValidation)
	ErrNonPositiveTotal         = fmt.Errorf("%w: transaction amount must be positive", ErrValidation)
	ErrBlankSourceTransactionID = fmt.Errorf("%w: source transaction ID must not be blank", ErrValidation)
	ErrBlankDescription         = fmt.Errorf("%w: description must not be blank", ErrValidation)
	ErrTransactionNotFound      = fmt.Errorf("ledger transaction %w", ErrNotFound)
	ErrTransactionAlreadyExists = fmt.Errorf("%w: ledger transaction already exists", ErrConflict)

	// Outbox errors
	ErrOutboxEventNotFound     = fmt.Errorf("outbox event %w", ErrNotFound)
	ErrInvalidOutboxTransition = errors.New("invalid outbox status transition")
)
