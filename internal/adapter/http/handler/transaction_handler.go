package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/adapter/http/middleware"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// TransactionQueries defines the read side needed by TransactionHandler.
type TransactionQueries interface {
	GetTransaction(ctx context.Context, id string) (*domain.LedgerTransaction, error)
}

// TransactionHandler handles ledger transaction HTTP requests.
type TransactionHandler struct {
	post    usecase.CommandHandler[usecase.PostTransactionCommand, *domain.LedgerTransaction]
	queries TransactionQueries
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(
	post usecase.CommandHandler[usecase.PostTransactionCommand, *domain.LedgerTransaction],
	queries TransactionQueries,
) *TransactionHandler {
	return &TransactionHandler{post: post, queries: queries}
}

// Post records a balanced ledger transaction.
func (h *TransactionHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req dto.PostTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cmd, err := req.ToCommand(middleware.IdempotencyKeyFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, "invalid transaction", err)
		return
	}

	tx, err := h.post.Handle(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, "failed to post transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionFromDomain(tx))
}

// Get retrieves a ledger transaction by ID.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction ID", "")
		return
	}

	tx, err := h.queries.GetTransaction(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(tx))
}
