package handler

import (
	"context"
	"net/http"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
)

// OutboxReader lists outbox rows for inspection.
type OutboxReader interface {
	ListByStatus(ctx context.Context, status domain.OutboxStatus, limit int) ([]*domain.OutboxEvent, error)
}

// OutboxHandler exposes outbox rows, mainly to find FAILED deliveries.
type OutboxHandler struct {
	outbox OutboxReader
}

// NewOutboxHandler creates a new OutboxHandler.
func NewOutboxHandler(outbox OutboxReader) *OutboxHandler {
	return &OutboxHandler{outbox: outbox}
}

// List lists outbox rows with ?status= (default PENDING) and ?limit=.
func (h *OutboxHandler) List(w http.ResponseWriter, r *http.Request) {
	status := domain.OutboxStatusPending
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseOutboxStatus(raw)
		if err != nil {
			writeDomainError(w, "invalid status", err)
			return
		}
		status = parsed
	}

	limit, _, _ := domain.ValidatePagination(parseIntQuery(r, "limit", 0), 0)

	events, err := h.outbox.ListByStatus(r.Context(), status, limit)
	if err != nil {
		writeDomainError(w, "failed to list outbox events", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListOutboxResponse{
		Events: dto.OutboxEventsFromDomain(events),
		Total:  len(events),
	})
}
