package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	postgresRepo "github.com/iho/ledgercore/internal/adapter/repository/postgres"
	"github.com/iho/ledgercore/internal/app"
	"github.com/iho/ledgercore/internal/infrastructure/config"
	"github.com/iho/ledgercore/internal/infrastructure/eventcodec"
	"github.com/iho/ledgercore/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgercore/internal/infrastructure/logger"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	codec := eventcodec.New()
	idGen := postgresRepo.NewULIDGenerator()

	backend, err := app.NewBackend(ctx, cfg, codec, idGen, log, m)
	if err != nil {
		return err
	}
	defer backend.Close()
	log.Info().Str("backend", cfg.StorageBackend).Msg("storage ready")

	publisher, closePublisher := newPublisher(cfg, codec, log)
	defer closePublisher()

	application, err := app.New(app.Deps{
		Backend:      backend,
		IDGenerator:  idGen,
		Deserializer: codec,
		Publisher:    publisher,
		Logger:       log,
		Metrics:      m,
		Gatherer:     reg,
		LaneCapacity: cfg.ShardLaneCapacity,
		Relay:        relayConfig(cfg),
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      application.Router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := application.Relay.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox relay: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()

		// Stop accepting requests before draining the lanes they feed.
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		return application.Close(shutdownCtx)
	})

	return g.Wait()
}

// newPublisher returns the configured event publisher and a function releasing it.
func newPublisher(cfg *config.Config, serializer usecase.EventSerializer, log zerolog.Logger) (usecase.DomainEventPublisher, func()) {
	if cfg.Publisher == config.PublisherKafka {
		p := eventpublisher.NewKafkaPublisher(eventpublisher.KafkaConfig{
			Brokers:         cfg.KafkaBrokers,
			Topic:           cfg.KafkaTopic,
			BreakerFailures: cfg.KafkaBreakerFailures,
			BreakerTimeout:  cfg.KafkaBreakerTimeout,
			Logger:          log.With().Str("component", "kafka").Logger(),
		}, serializer)

		return p, func() {
			if err := p.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close kafka writer")
			}
		}
	}

	return eventpublisher.NewLogPublisher(log.With().Str("component", "publisher").Logger()), func() {}
}

func relayConfig(cfg *config.Config) eventpublisher.Config {
	return eventpublisher.Config{
		BatchSize:     cfg.RelayBatchSize,
		MaxAttempts:   cfg.RelayMaxAttempts,
		InitialDelay:  cfg.RelayInitialDelay,
		BackoffFactor: cfg.RelayBackoffFactor,
		Jitter:        cfg.RelayJitter,
		Interval:      cfg.RelayInterval,
	}
}
