package eventpublisher

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/usecase"
)

// Relay defaults.
const (
	DefaultBatchSize     = 100
	DefaultMaxAttempts   = 5
	DefaultInitialDelay  = 100 * time.Millisecond
	DefaultBackoffFactor = 2.0
	DefaultJitter        = 0.1
	DefaultInterval      = 5 * time.Second
)

// Relay moves outbox rows to the event publisher.
type Relay struct {
	outbox       usecase.OutboxRepository
	deserializer usecase.EventDeserializer
	publisher    usecase.DomainEventPublisher
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time

	batchSize     int
	maxAttempts   int
	initialDelay  time.Duration
	backoffFactor float64
	jitter        float64
	interval      time.Duration
}

// Config for Relay.
type Config struct {
	Outbox       usecase.OutboxRepository
	Deserializer usecase.EventDeserializer
	Publisher    usecase.DomainEventPublisher
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics // optional

	BatchSize     int           // Rows fetched per cycle
	MaxAttempts   int           // Publish attempts per row per cycle
	InitialDelay  time.Duration // Delay before the second attempt
	BackoffFactor float64
	Jitter        float64       // Extra delay, as a fraction of the base delay
	Interval      time.Duration // Polling interval for Start
}

// NewRelay creates a new Relay.
func NewRelay(cfg Config) *Relay {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = DefaultBackoffFactor
	}
	if cfg.Jitter == 0 {
		cfg.Jitter = DefaultJitter
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}

	return &Relay{
		outbox:        cfg.Outbox,
		deserializer:  cfg.Deserializer,
		publisher:     cfg.Publisher,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		now:           time.Now,
		batchSize:     cfg.BatchSize,
		maxAttempts:   cfg.MaxAttempts,
		initialDelay:  cfg.InitialDelay,
		backoffFactor: cfg.BackoffFactor,
		jitter:        cfg.Jitter,
		interval:      cfg.Interval,
	}
}

// Start runs relay cycles until the context is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info().
		Int("batch_size", r.batchSize).
		Int("max_attempts", r.maxAttempts).
		Dur("interval", r.interval).
		Msg("outbox relay started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Process immediately on start
	if err := r.RelayPendingEvents(ctx); err != nil {
		r.logger.Error().Err(err).Msg("error relaying events on start")
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := r.RelayPendingEvents(ctx); err != nil {
				r.logger.Error().Err(err).Msg("error relaying events")
			}
		}
	}
}

// RelayPendingEvents runs one relay cycle over the oldest relayable rows.
// Each row is handled on its own: a failure on one row never stops the others.
// Only a failure to fetch the batch is returned.
func (r *Relay) RelayPendingEvents(ctx context.Context) error {
	start := time.Now()
	defer func() { r.metrics.ObserveRelayCycle(time.Since(start)) }()

	rows, err := r.outbox.FindPending(ctx, r.batchSize)
	if err != nil {
		return fmt.Errorf("find pending outbox events: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}

	r.logger.Debug().Int("count", len(rows)).Msg("relaying outbox events")

	for i, row := range rows {
		if ctx.Err() != nil {
			// rows not started yet stay eligible for the next run
			r.logger.Info().Int("skipped", len(rows)-i).Msg("relay cycle interrupted")
			return nil
		}
		r.relay(context.WithoutCancel(ctx), row)
	}

	return nil
}

// relay handles one row to completion. ctx must not be cancellable, so a row
// that has started is always left PUBLISHED or FAILED with its real attempt count.
func (r *Relay) relay(ctx context.Context, row *domain.OutboxEvent) {
	event, err := r.deserializer.Deserialize(row)
	if err != nil {
		r.markFailed(ctx, row, 1, domain.DeserializationFailedPrefix+err.Error(), "deserialization")
		return
	}

	attempts, err := r.publishWithRetry(ctx, event)
	if err != nil {
		r.markFailed(ctx, row, attempts, fmt.Sprintf("%s (attempt %d)", err.Error(), attempts), "exhausted")
		return
	}

	if err := r.outbox.MarkPublished(ctx, row.ID, attempts, r.now()); err != nil {
		// the row stays eligible and is published again next cycle
		r.logger.Error().Err(err).Str("event_id", row.ID).Msg("failed to mark outbox event as published")
		return
	}

	r.metrics.ObserveOutboxPublished(attempts)
	r.logger.Info().
		Str("event_id", row.ID).
		Str("event_type", row.EventType).
		Str("aggregate_id", row.AggregateID).
		Int("attempts", attempts).
		Msg("outbox event published")
}

// publishWithRetry publishes one event and reports how many attempts it took.
// The retry loop is not bound to ctx.
func (r *Relay) publishWithRetry(ctx context.Context, event domain.DomainEvent) (int, error) {
	attempts := 0
	operation := func() error {
		attempts++
		return r.publisher.Publish(ctx, []domain.DomainEvent{event})
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn().
			Err(err).
			Str("aggregate_id", event.AggregateID()).
			Int("attempt", attempts).
			Dur("retry_in", wait).
			Msg("publish failed, retrying")
	}

	err := backoff.RetryNotify(operation, r.newBackOff(), notify)

	return attempts, err
}

func (r *Relay) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.initialDelay
	exp.Multiplier = r.backoffFactor
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Hour
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithMaxRetries(&jitteredBackOff{BackOff: exp, jitter: r.jitter}, uint64(r.maxAttempts-1))
}

func (r *Relay) markFailed(ctx context.Context, row *domain.OutboxEvent, attempts int, lastError, reason string) {
	r.metrics.ObserveOutboxFailed(reason, attempts)
	r.logger.Error().
		Str("event_id", row.ID).
		Str("event_type", row.EventType).
		Int("attempts", attempts).
		Str("last_error", lastError).
		Msg("outbox event failed")

	if err := r.outbox.MarkFailed(ctx, row.ID, attempts, lastError, r.now()); err != nil {
		r.logger.Error().Err(err).Str("event_id", row.ID).Msg("failed to mark outbox event as failed")
	}
}

// jitteredBackOff adds a uniform [0, jitter) fraction on top of each delay.
type jitteredBackOff struct {
	backoff.BackOff
	jitter float64
}

func (b *jitteredBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}

	return d + time.Duration(rand.Float64()*b.jitter*float64(d))
}
