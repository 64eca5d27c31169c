// Package app wires use cases, decorator chains, the outbox relay and the HTTP
// router into one object. It holds no state of its own beyond what it builds.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/ledgercore/internal/adapter/http"
	"github.com/iho/ledgercore/internal/adapter/http/handler"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/eventpublisher"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/infrastructure/shard"
	"github.com/iho/ledgercore/internal/usecase"
	"github.com/iho/ledgercore/internal/usecase/decorator"
)

// Command names used for logs and metrics.
const (
	CommandCreateAccount   = "create_account"
	CommandRenameAccount   = "rename_account"
	CommandPostTransaction = "post_transaction"
)

// Deps are the collaborators New needs. Backend supplies storage; the rest is
// process-level plumbing.
type Deps struct {
	Backend      *Backend
	IDGenerator  usecase.IDGenerator
	Deserializer usecase.EventDeserializer
	Publisher    usecase.DomainEventPublisher

	Logger   zerolog.Logger
	Metrics  *metrics.Metrics    // optional
	Gatherer prometheus.Gatherer // optional, serves /metrics

	LaneCapacity int
	// Relay carries tuning only. Outbox, Deserializer, Publisher, Logger and
	// Metrics are filled in by New.
	Relay eventpublisher.Config
}

// App is the assembled ledger core.
type App struct {
	Accounts     *usecase.AccountUseCase
	Transactions *usecase.TransactionUseCase

	CreateAccount   usecase.CommandHandler[usecase.CreateAccountCommand, *domain.Account]
	RenameAccount   usecase.CommandHandler[usecase.RenameAccountCommand, *domain.Account]
	PostTransaction usecase.CommandHandler[usecase.PostTransactionCommand, *domain.LedgerTransaction]

	Outbox usecase.OutboxRepository
	Relay  *eventpublisher.Relay
	Shards *shard.Registry
	Router http.Handler
}

// New builds the application graph.
//
//	CreateAccount   = Instrumented(Idempotent(UseCase))
//	RenameAccount   = Instrumented(Sharded(UseCase))
//	PostTransaction = Instrumented(Idempotent(Sharded(UseCase)))
func New(d Deps) (*App, error) {
	if d.Backend == nil {
		return nil, errors.New("app: backend is required")
	}
	if d.IDGenerator == nil || d.Deserializer == nil || d.Publisher == nil {
		return nil, errors.New("app: id generator, deserializer and publisher are required")
	}

	b := d.Backend

	var activeLanes prometheus.Gauge
	if d.Metrics != nil {
		activeLanes = d.Metrics.ActiveShardLanes
	}

	shards := shard.NewRegistry(shard.Config{
		LaneCapacity: d.LaneCapacity,
		Logger:       d.Logger.With().Str("component", "shard").Logger(),
		ActiveLanes:  activeLanes,
	})

	accounts := usecase.NewAccountUseCase(b.UnitOfWork, d.IDGenerator).WithRetrier(b.Retrier)
	transactions := usecase.NewTransactionUseCase(b.UnitOfWork, d.IDGenerator).WithRetrier(b.Retrier)

	cmdLogger := d.Logger.With().Str("component", "command").Logger()

	createAccount := decorator.Instrumented(
		decorator.Idempotent(
			usecase.HandlerFunc[usecase.CreateAccountCommand, *domain.Account](accounts.CreateAccount),
			b.Idempotency,
			CommandCreateAccount,
		).WithMetrics(d.Metrics),
		CommandCreateAccount, d.Metrics, cmdLogger,
	)

	renameAccount := decorator.Instrumented(
		decorator.Sharded(
			usecase.HandlerFunc[usecase.RenameAccountCommand, *domain.Account](accounts.RenameAccount),
			shards,
		),
		CommandRenameAccount, d.Metrics, cmdLogger,
	)

	postTransaction := decorator.Instrumented(
		decorator.Idempotent(
			decorator.Sharded(
				usecase.HandlerFunc[usecase.PostTransactionCommand, *domain.LedgerTransaction](transactions.PostTransaction),
				shards,
			),
			b.Idempotency,
			CommandPostTransaction,
		).WithMetrics(d.Metrics),
		CommandPostTransaction, d.Metrics, cmdLogger,
	)

	relayCfg := d.Relay
	relayCfg.Outbox = b.Outbox
	relayCfg.Deserializer = d.Deserializer
	relayCfg.Publisher = d.Publisher
	relayCfg.Logger = d.Logger.With().Str("component", "relay").Logger()
	relayCfg.Metrics = d.Metrics

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		AccountHandler:     handler.NewAccountHandler(createAccount, renameAccount, accounts),
		TransactionHandler: handler.NewTransactionHandler(postTransaction, transactions),
		OutboxHandler:      handler.NewOutboxHandler(b.Outbox),
		HealthHandler:      handler.NewHealthHandler(b.HealthChecks...),
		Logger:             d.Logger.With().Str("component", "http").Logger(),
		Metrics:            d.Metrics,
		Gatherer:           d.Gatherer,
	})

	return &App{
		Accounts:        accounts,
		Transactions:    transactions,
		CreateAccount:   createAccount,
		RenameAccount:   renameAccount,
		PostTransaction: postTransaction,
		Outbox:          b.Outbox,
		Relay:           eventpublisher.NewRelay(relayCfg),
		Shards:          shards,
		Router:          router,
	}, nil
}

// Close drains the shard lanes. The backend is closed by its owner.
func (a *App) Close(ctx context.Context) error {
	return a.Shards.Close(ctx)
}
