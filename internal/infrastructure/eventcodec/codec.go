// Package eventcodec converts domain events to and from outbox payloads.
package eventcodec

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gowebpki/jcs"
	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/domain"
)

// ErrDeserialization is returned when an outbox row cannot be turned back into an event.
var ErrDeserialization = errors.New("event deserialization failed")

// Encoder turns one event type into its JSON wire form.
type Encoder func(event domain.DomainEvent) (any, error)

// Decoder rebuilds one event type from its JSON payload.
type Decoder func(payload []byte) (domain.DomainEvent, error)

// Codec serializes events into canonical JSON and back, dispatching on event type.
type Codec struct {
	mu       sync.RWMutex
	encoders map[string]Encoder
	decoders map[string]Decoder
}

// New returns a Codec with every ledger event type registered.
func New() *Codec {
	c := &Codec{
		encoders: make(map[string]Encoder),
		decoders: make(map[string]Decoder),
	}
	c.Register(domain.EventTypeLedgerTransactionPosted, encodeTransactionPosted, decodeTransactionPosted)

	return c
}

// Register adds or replaces the codec for an event type.
func (c *Codec) Register(eventType string, enc Encoder, dec Decoder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.encoders[eventType] = enc
	c.decoders[eventType] = dec
}

// Serialize implements usecase.EventSerializer.
func (c *Codec) Serialize(event domain.DomainEvent) (string, error) {
	c.mu.RLock()
	enc, ok := c.encoders[event.EventType()]
	c.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no encoder registered for event type %q", event.EventType())
	}

	wire, err := enc(event)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize %s: %w", event.EventType(), err)
	}

	return string(canonical), nil
}

// Deserialize implements usecase.EventDeserializer.
func (c *Codec) Deserialize(row *domain.OutboxEvent) (domain.DomainEvent, error) {
	c.mu.RLock()
	dec, ok := c.decoders[row.EventType]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrDeserialization, row.EventType)
	}

	event, err := dec([]byte(row.Payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrDeserialization, row.EventType, row.ID, err)
	}

	return event, nil
}

type assetPayload struct {
	Code string `json:"code"`
}

type transactionPostedPayload struct {
	TransactionID string       `json:"transactionId"`
	TotalAmount   string       `json:"totalAmount"`
	Asset         assetPayload `json:"asset"`
	OccurredAt    string       `json:"occurredAt"`
}

func encodeTransactionPosted(event domain.DomainEvent) (any, error) {
	e, ok := event.(*domain.LedgerTransactionPosted)
	if !ok {
		return nil, fmt.Errorf("unexpected event %T for %s", event, domain.EventTypeLedgerTransactionPosted)
	}

	return transactionPostedPayload{
		TransactionID: e.TransactionID,
		TotalAmount:   e.TotalAmount.String(),
		Asset:         assetPayload{Code: e.Asset.Code},
		OccurredAt:    e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func decodeTransactionPosted(payload []byte) (domain.DomainEvent, error) {
	var p transactionPostedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}

	if p.TransactionID == "" {
		return nil, errors.New("missing transactionId")
	}
	if p.Asset.Code == "" {
		return nil, errors.New("missing asset code")
	}

	total, err := decimal.NewFromString(p.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("totalAmount: %w", err)
	}

	occurredAt, err := time.Parse(time.RFC3339Nano, p.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("occurredAt: %w", err)
	}

	return &domain.LedgerTransactionPosted{
		TransactionID: p.TransactionID,
		TotalAmount:   total,
		Asset:         domain.Asset{Code: p.Asset.Code},
		OccurredAt:    occurredAt.UTC(),
	}, nil
}
