package domain

import (
	"fmt"
	"strings"
	"time"
)

// OutboxStatus is the delivery state of an outbox row.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusPublished OutboxStatus = "PUBLISHED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// ParseOutboxStatus parses a status name.
func ParseOutboxStatus(s string) (OutboxStatus, error) {
	switch st := OutboxStatus(s); st {
	case OutboxStatusPending, OutboxStatusPublished, OutboxStatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown outbox status %q", ErrValidation, s)
	}
}

// CanTransitionTo reports whether the relay may move a row from s to next.
// PUBLISHED is terminal. FAILED rows stay eligible for the relay, which may
// publish them or record a new failure.
func (s OutboxStatus) CanTransitionTo(next OutboxStatus) bool {
	switch s {
	case OutboxStatusPending, OutboxStatusFailed:
		return next == OutboxStatusPublished || next == OutboxStatusFailed
	default:
		return false
	}
}

// OutboxEvent is a serialized domain event waiting to be relayed.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	EventType     string
	Payload       string
	Status        OutboxStatus
	AttemptCount  int
	LastAttemptAt *time.Time
	LastError     *string
	CreatedAt     time.Time
}

// DeserializationFailedPrefix starts the last error of a row whose payload
// could not be decoded. Such rows are never retried by the relay.
const DeserializationFailedPrefix = "deserialization failed: "

// NewOutboxEvent creates a PENDING row.
func NewOutboxEvent(id, aggregateID, eventType, payload string, createdAt time.Time) *OutboxEvent {
	return &OutboxEvent{
		ID:          id,
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		Status:      OutboxStatusPending,
		CreatedAt:   createdAt,
	}
}

// MarkPublished records a successful delivery after the given number of attempts.
func (e *OutboxEvent) MarkPublished(attempts int, at time.Time) error {
	if !e.Status.CanTransitionTo(OutboxStatusPublished) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidOutboxTransition, e.Status, OutboxStatusPublished)
	}

	e.Status = OutboxStatusPublished
	e.AttemptCount = attempts
	e.LastAttemptAt = &at
	e.LastError = nil

	return nil
}

// MarkFailed records a terminal failure.
func (e *OutboxEvent) MarkFailed(attempts int, lastError string, at time.Time) error {
	if !e.Status.CanTransitionTo(OutboxStatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidOutboxTransition, e.Status, OutboxStatusFailed)
	}

	e.Status = OutboxStatusFailed
	e.AttemptCount = attempts
	e.LastAttemptAt = &at
	e.LastError = &lastError

	return nil
}

// Relayable reports whether the relay should pick the row up: PENDING rows,
// and FAILED rows whose payload did decode.
func (e *OutboxEvent) Relayable() bool {
	switch e.Status {
	case OutboxStatusPending:
		return true
	case OutboxStatusFailed:
		return e.LastError == nil || !strings.HasPrefix(*e.LastError, DeserializationFailedPrefix)
	default:
		return false
	}
}

// Clone returns a deep copy.
func (e *OutboxEvent) Clone() *OutboxEvent {
	c := *e
	if e.LastAttemptAt != nil {
		t := *e.LastAttemptAt
		c.LastAttemptAt = &t
	}
	if e.LastError != nil {
		s := *e.LastError
		c.LastError = &s
	}

	return &c
}
