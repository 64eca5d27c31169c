package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/ledgercore/internal/domain"
)

const outboxColumns = `id, aggregate_id, event_type, payload, status, attempt_count, last_attempt_at, last_error, created_at`

const (
	outboxPendingSQL   = `SELECT ` + outboxColumns + ` FROM outbox_events WHERE status = 'PENDING' OR (status = 'FAILED' AND (last_error IS NULL OR last_error NOT LIKE 'deserialization failed: %')) ORDER BY created_at, id LIMIT $1`
	outboxByStatusSQL  = `SELECT ` + outboxColumns + ` FROM outbox_events WHERE status = $1 ORDER BY created_at, id LIMIT $2`
	outboxStatusSQL    = `SELECT status FROM outbox_events WHERE id = $1`
	outboxPublishedSQL = `UPDATE outbox_events SET status = 'PUBLISHED', attempt_count = $2, last_attempt_at = $3, last_error = NULL WHERE id = $1 AND status <> 'PUBLISHED'`
	outboxFailedSQL    = `UPDATE outbox_events SET status = 'FAILED', attempt_count = $2, last_attempt_at = $3, last_error = $4 WHERE id = $1 AND status <> 'PUBLISHED'`
)

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OutboxRepository implements usecase.OutboxRepository. Rows are written by
// TransactionRepository.Save; this repository only reads and updates them.
type OutboxRepository struct {
	pool dbPool
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// FindPending returns up to limit relayable rows, oldest first. FAILED rows
// that never decoded are left out.
func (r *OutboxRepository) FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	return r.query(ctx, outboxPendingSQL, limit)
}

// ListByStatus returns up to limit rows in status, oldest first.
func (r *OutboxRepository) ListByStatus(ctx context.Context, status domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error) {
	return r.query(ctx, outboxByStatusSQL, string(status), limit)
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, attempts int, at time.Time) error {
	tag, err := r.pool.Exec(ctx, outboxPublishedSQL, id, attempts, at)
	if err != nil {
		return err
	}

	return r.checkUpdated(ctx, tag, id, domain.OutboxStatusPublished)
}

// MarkFailed records a failed delivery.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, outboxFailedSQL, id, attempts, at, lastError)
	if err != nil {
		return err
	}

	return r.checkUpdated(ctx, tag, id, domain.OutboxStatusFailed)
}

// checkUpdated explains why an update touched no row.
func (r *OutboxRepository) checkUpdated(ctx context.Context, tag pgconn.CommandTag, id string, next domain.OutboxStatus) error {
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	if err := r.pool.QueryRow(ctx, outboxStatusSQL, id).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrOutboxEventNotFound, id)
		}
		return err
	}

	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidOutboxTransition, status, next)
}

func (r *OutboxRepository) query(ctx context.Context, sql string, args ...any) ([]*domain.OutboxEvent, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var (
			e         domain.OutboxEvent
			status    string
			createdAt time.Time
		)
		if err := rows.Scan(
			&e.ID,
			&e.AggregateID,
			&e.EventType,
			&e.Payload,
			&status,
			&e.AttemptCount,
			&e.LastAttemptAt,
			&e.LastError,
			&createdAt,
		); err != nil {
			return nil, err
		}

		e.Status = domain.OutboxStatus(status)
		e.CreatedAt = createdAt.UTC()
		events = append(events, &e)
	}

	return events, rows.Err()
}
