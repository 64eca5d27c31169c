package eventpublisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// LogPublisher is a simple publisher that logs events.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a new LogPublisher.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the events.
func (p *LogPublisher) Publish(ctx context.Context, events []domain.DomainEvent) error {
	for _, event := range events {
		p.logger.Info().
			Str("event_type", event.EventType()).
			Str("aggregate_id", event.AggregateID()).
			Time("event_time", event.EventTime()).
			Msg("EVENT PUBLISHED")
	}

	return nil
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig for KafkaPublisher.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Logger          zerolog.Logger
}

// KafkaPublisher writes events to a Kafka topic keyed by aggregate id, so every
// event of one transaction lands on the same partition. Calls go through a
// circuit breaker; while it is open Publish fails fast and the relay's backoff
// absorbs the outage.
type KafkaPublisher struct {
	writer     messageWriter
	serializer usecase.EventSerializer
	breaker    *gobreaker.CircuitBreaker
}

// NewKafkaPublisher creates a publisher backed by a kafka-go writer.
func NewKafkaPublisher(cfg KafkaConfig, serializer usecase.EventSerializer) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return newKafkaPublisher(writer, serializer, cfg)
}

func newKafkaPublisher(writer messageWriter, serializer usecase.EventSerializer, cfg KafkaConfig) *KafkaPublisher {
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout == 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	logger := cfg.Logger
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "kafka-publisher",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})

	return &KafkaPublisher{
		writer:     writer,
		serializer: serializer,
		breaker:    breaker,
	}
}

// Publish writes all events in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, events []domain.DomainEvent) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		payload, err := p.serializer.Serialize(event)
		if err != nil {
			return fmt.Errorf("serialize %s: %w", event.EventType(), err)
		}

		msgs = append(msgs, kafka.Message{
			Key:   []byte(event.AggregateID()),
			Value: []byte(payload),
			Time:  event.EventTime(),
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(event.EventType())},
			},
		})
	}

	_, err := p.breaker.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, msgs...)
	})
	if err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}

	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ErrSimulatedFailure is returned by InMemoryPublisher while it is failing.
var ErrSimulatedFailure = errors.New("simulated publish failure")

// InMemoryPublisher records published events. It fails the first FailTimes calls,
// which makes it useful for exercising the relay's retry path.
type InMemoryPublisher struct {
	mu        sync.Mutex
	failTimes int
	calls     int
	published []domain.DomainEvent
}

// NewInMemoryPublisher creates a publisher that fails its first failTimes calls.
func NewInMemoryPublisher(failTimes int) *InMemoryPublisher {
	return &InMemoryPublisher{failTimes: failTimes}
}

// Publish implements usecase.DomainEventPublisher.
func (p *InMemoryPublisher) Publish(ctx context.Context, events []domain.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.calls <= p.failTimes {
		return fmt.Errorf("%w (call %d)", ErrSimulatedFailure, p.calls)
	}

	p.published = append(p.published, events...)

	return nil
}

// Published returns a copy of every event published so far.
func (p *InMemoryPublisher) Published() []domain.DomainEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]domain.DomainEvent(nil), p.published...)
}

// Calls returns how many times Publish was called.
func (p *InMemoryPublisher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls
}
