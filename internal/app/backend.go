package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/ledgercore/internal/adapter/http/handler"
	"github.com/iho/ledgercore/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/ledgercore/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/ledgercore/internal/adapter/repository/redis"
	"github.com/iho/ledgercore/internal/infrastructure/config"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/infrastructure/postgres"
	"github.com/iho/ledgercore/internal/infrastructure/redis"
	"github.com/iho/ledgercore/internal/usecase"
)

// Backend is the storage side of the ledger: where accounts, transactions,
// outbox rows and idempotency results live.
type Backend struct {
	UnitOfWork   usecase.UnitOfWorkFactory
	Outbox       usecase.OutboxRepository
	Idempotency  usecase.IdempotencyStore
	Retrier      usecase.Retrier // nil when the store never aborts transactions
	HealthChecks []handler.HealthCheck

	closers []func()
}

// Close releases connections held by the backend.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// NewMemoryBackend returns a process-local backend.
func NewMemoryBackend(serializer usecase.EventSerializer, idGen usecase.IDGenerator) *Backend {
	store := memory.NewStore(serializer, idGen)

	return &Backend{
		UnitOfWork:  memory.NewUnitOfWorkFactory(store),
		Outbox:      memory.NewOutboxRepository(store),
		Idempotency: memory.NewIdempotencyStore(),
	}
}

// NewPostgresBackend connects to Postgres for the ledger and outbox and to Redis
// for idempotency.
func NewPostgresBackend(
	ctx context.Context,
	cfg *config.Config,
	serializer usecase.EventSerializer,
	idGen usecase.IDGenerator,
	logger zerolog.Logger,
	m *metrics.Metrics,
) (*Backend, error) {
	if cfg.AutoMigrate {
		if err := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, logger).Up(); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info().Msg("connected to postgres")

	client, err := redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info().Msg("connected to redis")

	return &Backend{
		UnitOfWork: postgresRepo.NewUnitOfWorkFactory(pool, serializer, idGen),
		Outbox:     postgresRepo.NewOutboxRepository(pool),
		Idempotency: redisRepo.NewIdempotencyStore(client, redisRepo.Config{
			TTL:     cfg.IdempotencyTTL,
			LockTTL: cfg.IdempotencyLockTTL,
			Logger:  logger.With().Str("component", "idempotency").Logger(),
			Metrics: m,
		}),
		Retrier: postgresRepo.NewRetrier(logger.With().Str("component", "retrier").Logger()).WithMetrics(m),
		HealthChecks: []handler.HealthCheck{
			{Name: "postgres", Check: pool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return client.Ping(ctx).Err() }},
		},
		closers: []func(){pool.Close, func() { _ = client.Close() }},
	}, nil
}

// NewBackend picks the backend named by cfg.StorageBackend.
func NewBackend(
	ctx context.Context,
	cfg *config.Config,
	serializer usecase.EventSerializer,
	idGen usecase.IDGenerator,
	logger zerolog.Logger,
	m *metrics.Metrics,
) (*Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return NewMemoryBackend(serializer, idGen), nil
	case config.StoragePostgres:
		return NewPostgresBackend(ctx, cfg, serializer, idGen, logger, m)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
