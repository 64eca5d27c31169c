package decorator

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/usecase"
)

// InstrumentedHandler logs and times every command it passes through.
type InstrumentedHandler[C, R any] struct {
	next    usecase.CommandHandler[C, R]
	name    string
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// Instrumented wraps next. m may be nil.
func Instrumented[C, R any](next usecase.CommandHandler[C, R], name string, m *metrics.Metrics, logger zerolog.Logger) *InstrumentedHandler[C, R] {
	return &InstrumentedHandler[C, R]{next: next, name: name, metrics: m, logger: logger}
}

// Handle implements usecase.CommandHandler.
func (h *InstrumentedHandler[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	start := time.Now()
	result, err := h.next.Handle(ctx, cmd)
	elapsed := time.Since(start)

	h.metrics.ObserveCommand(h.name, err, elapsed)

	if err != nil {
		h.logger.Warn().
			Str("command", h.name).
			Str("outcome", metrics.Outcome(err)).
			Dur("duration", elapsed).
			Err(err).
			Msg("command failed")
	} else {
		h.logger.Debug().
			Str("command", h.name).
			Dur("duration", elapsed).
			Msg("command handled")
	}

	return result, err
}
