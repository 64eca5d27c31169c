package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/iho/ledgercore/internal/domain"
)

// OutboxRepository reads and updates outbox rows committed to a Store.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates an OutboxRepository for store.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// FindPending returns up to limit relayable rows, oldest first. FAILED rows
// that never decoded are left out.
func (r *OutboxRepository) FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	return r.collect(limit, (*domain.OutboxEvent).Relayable), nil
}

// ListByStatus returns up to limit rows with the given status, oldest first.
func (r *OutboxRepository) ListByStatus(ctx context.Context, status domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error) {
	return r.collect(limit, func(row *domain.OutboxEvent) bool { return row.Status == status }), nil
}

func (r *OutboxRepository) collect(limit int, keep func(*domain.OutboxEvent) bool) []*domain.OutboxEvent {
	var rows []*domain.OutboxEvent
	r.store.scanOutbox(func(row *domain.OutboxEvent) {
		if keep(row) {
			rows = append(rows, row)
		}
	})

	slices.SortFunc(rows, func(a, b *domain.OutboxEvent) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	return rows
}

// MarkPublished records a successful delivery.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, attempts int, at time.Time) error {
	return r.update(id, func(row *domain.OutboxEvent) error {
		return row.MarkPublished(attempts, at)
	})
}

// MarkFailed records a failed delivery.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string, at time.Time) error {
	return r.update(id, func(row *domain.OutboxEvent) error {
		return row.MarkFailed(attempts, lastError, at)
	})
}

func (r *OutboxRepository) update(id string, apply func(row *domain.OutboxEvent) error) error {
	st := r.store.stripeFor(id)
	st.mu.Lock()
	defer st.mu.Unlock()

	row, ok := st.outbox[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrOutboxEventNotFound, id)
	}

	// mutate a copy so a rejected transition leaves the row untouched
	next := row.Clone()
	if err := apply(next); err != nil {
		return err
	}
	st.outbox[id] = next

	return nil
}
