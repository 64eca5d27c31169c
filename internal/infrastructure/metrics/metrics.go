package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/ledgercore/internal/domain"
)

// Metrics holds all Prometheus metrics.
// Helper methods are safe to call on a nil *Metrics.
type Metrics struct {
	// Command metrics
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec

	// Idempotency metrics
	IdempotencyLookups *prometheus.CounterVec

	// Shard metrics
	ActiveShardLanes prometheus.Gauge

	// Outbox metrics
	OutboxPublished       prometheus.Counter
	OutboxFailed          *prometheus.CounterVec
	OutboxPublishAttempts prometheus.Histogram
	RelayCycleDuration    prometheus.Histogram

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBRetries *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Command metrics
		Commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_commands_total",
				Help: "Total commands handled by name and outcome",
			},
			[]string{"command", "outcome"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgercore_command_duration_seconds",
				Help:    "Duration of command handling",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),

		// Idempotency metrics
		IdempotencyLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_idempotency_lookups_total",
				Help: "Idempotent command executions by result (hit or miss)",
			},
			[]string{"result"},
		),

		// Shard metrics
		ActiveShardLanes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledgercore_shard_active_lanes",
			Help: "Current number of live shard lanes",
		}),

		// Outbox metrics
		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgercore_outbox_published_total",
			Help: "Total outbox rows published",
		}),
		OutboxFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_outbox_failed_total",
				Help: "Total outbox rows marked failed by reason",
			},
			[]string{"reason"},
		),
		OutboxPublishAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgercore_outbox_publish_attempts",
			Help:    "Attempts spent per relayed outbox row",
			Buckets: []float64{1, 2, 3, 4, 5, 10},
		}),
		RelayCycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgercore_relay_cycle_duration_seconds",
			Help:    "Duration of one outbox relay cycle",
			Buckets: prometheus.DefBuckets,
		}),

		// API metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgercore_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_db_retries_total",
				Help: "Unit of work retries after serialization failures or deadlocks",
			},
			[]string{"code"},
		),

		// Redis metrics
		RedisOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgercore_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),
	}
}

// ObserveCommand records one handled command.
func (m *Metrics) ObserveCommand(command string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.Commands.WithLabelValues(command, Outcome(err)).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// ObserveIdempotency records whether an idempotent command was served from the store.
func (m *Metrics) ObserveIdempotency(hit bool) {
	if m == nil {
		return
	}

	if hit {
		m.IdempotencyLookups.WithLabelValues("hit").Inc()
		return
	}
	m.IdempotencyLookups.WithLabelValues("miss").Inc()
}

// ObserveOutboxPublished records a relayed row.
func (m *Metrics) ObserveOutboxPublished(attempts int) {
	if m == nil {
		return
	}

	m.OutboxPublished.Inc()
	m.OutboxPublishAttempts.Observe(float64(attempts))
}

// ObserveOutboxFailed records a row marked FAILED.
func (m *Metrics) ObserveOutboxFailed(reason string, attempts int) {
	if m == nil {
		return
	}

	m.OutboxFailed.WithLabelValues(reason).Inc()
	m.OutboxPublishAttempts.Observe(float64(attempts))
}

// ObserveRelayCycle records the duration of one relay cycle.
func (m *Metrics) ObserveRelayCycle(elapsed time.Duration) {
	if m == nil {
		return
	}

	m.RelayCycleDuration.Observe(elapsed.Seconds())
}

// ObserveDBRetry records a retried unit of work.
func (m *Metrics) ObserveDBRetry(code string) {
	if m == nil {
		return
	}

	m.DBRetries.WithLabelValues(code).Inc()
}

// ObserveRedis records a Redis call and its failure, if any.
func (m *Metrics) ObserveRedis(operation string, err error) {
	if m == nil {
		return
	}

	m.RedisOperations.WithLabelValues(operation).Inc()
	if err != nil {
		m.RedisErrors.WithLabelValues(operation).Inc()
	}
}

// Outcome maps an error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
