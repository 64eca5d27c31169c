package decorator_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/infrastructure/metrics"
	"github.com/iho/ledgercore/internal/infrastructure/shard"
	"github.com/iho/ledgercore/internal/usecase"
	"github.com/iho/ledgercore/internal/usecase/decorator"
)

// mapStore serializes every GetOrSet call, which is enough for these tests.
type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
	keys []string
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (s *mapStore) GetOrSet(ctx context.Context, key string, op func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = append(s.keys, key)
	if v, ok := s.data[key]; ok {
		return v, nil
	}

	v, err := op(ctx)
	if err != nil {
		return nil, err
	}
	s.data[key] = v

	return v, nil
}

func postedTransaction(id string) *domain.LedgerTransaction {
	brl := domain.Asset{Code: "BRL"}
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	debit, _ := domain.NewLedgerEntry("cash", domain.Amount{Value: decimal.NewFromInt(100), Asset: brl}, domain.EntryTypeDebit, "", at)
	credit, _ := domain.NewLedgerEntry("revenue", domain.Amount{Value: decimal.NewFromInt(100), Asset: brl}, domain.EntryTypeCredit, "", at)
	tx, _ := domain.NewLedgerTransaction(id, "sale-1", "sale", []domain.LedgerEntry{debit, credit}, at)
	return tx
}

func TestIdempotent_RepeatedKeyRunsOnce(t *testing.T) {
	var calls atomic.Int32
	inner := usecase.HandlerFunc[usecase.PostTransactionCommand, *domain.LedgerTransaction](
		func(ctx context.Context, cmd usecase.PostTransactionCommand) (*domain.LedgerTransaction, error) {
			n := calls.Add(1)
			if n > 1 {
				return postedTransaction("second"), nil
			}
			return postedTransaction("first"), nil
		})

	h := decorator.Idempotent(inner, newMapStore(), "test")
	cmd := usecase.PostTransactionCommand{SourceTransactionID: "sale-1", Key: "key-1"}

	first, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	second, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "first", first.ID)
	assert.Equal(t, "first", second.ID)
	assert.Len(t, second.Entries, 2)
	assert.True(t, second.Total().Value.Equal(decimal.NewFromInt(100)))
}

func TestIdempotent_FailuresAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	inner := usecase.HandlerFunc[usecase.CreateAccountCommand, *domain.Account](
		func(ctx context.Context, cmd usecase.CreateAccountCommand) (*domain.Account, error) {
			if calls.Add(1) == 1 {
				return nil, boom
			}
			return &domain.Account{ID: "acc-1", Name: cmd.Name, IsActive: true}, nil
		})

	h := decorator.Idempotent(inner, newMapStore(), "test")
	cmd := usecase.CreateAccountCommand{Name: "Cash", Key: "key-1"}

	_, err := h.Handle(context.Background(), cmd)
	assert.ErrorIs(t, err, boom)

	got, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotent_EmptyKeyAlwaysExecutes(t *testing.T) {
	var calls atomic.Int32
	inner := usecase.HandlerFunc[usecase.CreateAccountCommand, *domain.Account](
		func(ctx context.Context, cmd usecase.CreateAccountCommand) (*domain.Account, error) {
			calls.Add(1)
			return &domain.Account{ID: "acc"}, nil
		})

	store := newMapStore()
	h := decorator.Idempotent(inner, store, "test")

	for i := 0; i < 3; i++ {
		_, err := h.Handle(context.Background(), usecase.CreateAccountCommand{Name: "Cash"})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, store.keys, 3)
	assert.NotEqual(t, store.keys[0], store.keys[1])
	assert.NotEmpty(t, store.keys[0])
}

func TestIdempotent_KeysAreScopedPerCommand(t *testing.T) {
	store := newMapStore()

	createAccount := decorator.Idempotent(
		usecase.HandlerFunc[usecase.CreateAccountCommand, *domain.Account](
			func(ctx context.Context, cmd usecase.CreateAccountCommand) (*domain.Account, error) {
				return &domain.Account{ID: "acc-1", Name: cmd.Name, IsActive: true}, nil
			}),
		store, "create_account")

	var posted atomic.Int32
	postTransaction := decorator.Idempotent(
		usecase.HandlerFunc[usecase.PostTransactionCommand, *domain.LedgerTransaction](
			func(ctx context.Context, cmd usecase.PostTransactionCommand) (*domain.LedgerTransaction, error) {
				posted.Add(1)
				return postedTransaction("tx-1"), nil
			}),
		store, "post_transaction")

	_, err := createAccount.Handle(context.Background(), usecase.CreateAccountCommand{Name: "Cash", Key: "shared"})
	require.NoError(t, err)

	tx, err := postTransaction.Handle(context.Background(), usecase.PostTransactionCommand{SourceTransactionID: "sale-1", Key: "shared"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), posted.Load())
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, []string{"create_account:shared", "post_transaction:shared"}, store.keys)
}

func TestSharded_SerializesSameKey(t *testing.T) {
	registry := shard.NewRegistry(shard.Config{Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	var active, overlaps atomic.Int32
	inner := usecase.HandlerFunc[usecase.RenameAccountCommand, string](
		func(ctx context.Context, cmd usecase.RenameAccountCommand) (string, error) {
			if active.Add(1) > 1 {
				overlaps.Add(1)
			}
			time.Sleep(time.Millisecond)
			active.Add(-1)
			return cmd.NewName, nil
		})

	h := decorator.Sharded(inner, registry)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := h.Handle(context.Background(), usecase.RenameAccountCommand{AccountID: "acc-1", NewName: "Cash"})
			assert.NoError(t, err)
			assert.Equal(t, "Cash", got)
		}()
	}
	wg.Wait()

	assert.Zero(t, overlaps.Load())
}

func TestSharded_PropagatesErrors(t *testing.T) {
	registry := shard.NewRegistry(shard.Config{Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	inner := usecase.HandlerFunc[usecase.RenameAccountCommand, *domain.Account](
		func(ctx context.Context, cmd usecase.RenameAccountCommand) (*domain.Account, error) {
			return nil, domain.ErrAccountNotFound
		})

	_, err := decorator.Sharded(inner, registry).Handle(context.Background(), usecase.RenameAccountCommand{AccountID: "missing"})
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestIdempotent_RecordsHitsAndMisses(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	inner := usecase.HandlerFunc[usecase.CreateAccountCommand, *domain.Account](
		func(ctx context.Context, cmd usecase.CreateAccountCommand) (*domain.Account, error) {
			return &domain.Account{ID: "acc-1"}, nil
		})

	h := decorator.Idempotent(inner, newMapStore(), "test").WithMetrics(m)
	cmd := usecase.CreateAccountCommand{Name: "Cash", Key: "k"}

	for i := 0; i < 3; i++ {
		_, err := h.Handle(context.Background(), cmd)
		require.NoError(t, err)
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.IdempotencyLookups.WithLabelValues("miss")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.IdempotencyLookups.WithLabelValues("hit")))
}

func TestInstrumented_CountsOutcomes(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	inner := usecase.HandlerFunc[usecase.RenameAccountCommand, *domain.Account](
		func(ctx context.Context, cmd usecase.RenameAccountCommand) (*domain.Account, error) {
			if cmd.AccountID == "missing" {
				return nil, domain.ErrAccountNotFound
			}
			return &domain.Account{ID: cmd.AccountID, Name: cmd.NewName}, nil
		})

	h := decorator.Instrumented(inner, "RenameAccount", m, zerolog.Nop())

	_, err := h.Handle(context.Background(), usecase.RenameAccountCommand{AccountID: "acc-1", NewName: "Cash"})
	require.NoError(t, err)
	_, err = h.Handle(context.Background(), usecase.RenameAccountCommand{AccountID: "missing", NewName: "Cash"})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Commands.WithLabelValues("RenameAccount", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Commands.WithLabelValues("RenameAccount", "not_found")))
}
