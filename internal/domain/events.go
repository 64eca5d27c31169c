package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeLedgerTransactionPosted = "LedgerTransactionPosted"
)

// DomainEvent is an immutable fact recorded by an aggregate.
// EventType is the discriminator used for serialization and relay dispatch.
type DomainEvent interface {
	EventType() string
	AggregateID() string
	EventTime() time.Time
}

// LedgerTransactionPosted is recorded when a balanced transaction is created.
type LedgerTransactionPosted struct {
	TransactionID string
	TotalAmount   decimal.Decimal
	Asset         Asset
	OccurredAt    time.Time
}

func (e *LedgerTransactionPosted) EventType() string    { return EventTypeLedgerTransactionPosted }
func (e *LedgerTransactionPosted) AggregateID() string  { return e.TransactionID }
func (e *LedgerTransactionPosted) EventTime() time.Time { return e.OccurredAt }
