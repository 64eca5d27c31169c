package usecase

import (
	"fmt"
	"time"

	"github.com/iho/ledgercore/internal/domain"
)

// OutboxEventsFor serializes pending domain events into PENDING outbox rows.
// Repositories call it from Save so the rows are written in the aggregate's transaction.
func OutboxEventsFor(events []domain.DomainEvent, serializer EventSerializer, idGen IDGenerator, now time.Time) ([]*domain.OutboxEvent, error) {
	rows := make([]*domain.OutboxEvent, 0, len(events))
	for _, event := range events {
		payload, err := serializer.Serialize(event)
		if err != nil {
			return nil, fmt.Errorf("serialize %s event: %w", event.EventType(), err)
		}

		rows = append(rows, domain.NewOutboxEvent(idGen.Generate(), event.AggregateID(), event.EventType(), payload, now))
	}

	return rows, nil
}
