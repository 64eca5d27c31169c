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

// AccountQueries defines the read side needed by AccountHandler.
type AccountQueries interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	ListAccountsByAsset(ctx context.Context, asset domain.Asset) ([]*domain.Account, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	create  usecase.CommandHandler[usecase.CreateAccountCommand, *domain.Account]
	rename  usecase.CommandHandler[usecase.RenameAccountCommand, *domain.Account]
	queries AccountQueries
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(
	create usecase.CommandHandler[usecase.CreateAccountCommand, *domain.Account],
	rename usecase.CommandHandler[usecase.RenameAccountCommand, *domain.Account],
	queries AccountQueries,
) *AccountHandler {
	return &AccountHandler{create: create, rename: rename, queries: queries}
}

// Create opens a new account.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cmd, err := req.ToCommand(middleware.IdempotencyKeyFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, "invalid account", err)
		return
	}

	account, err := h.create.Handle(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, "failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(account))
}

// Rename changes an account's name.
func (h *AccountHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	var req dto.RenameAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	account, err := h.rename.Handle(r.Context(), req.ToCommand(id))
	if err != nil {
		writeDomainError(w, "failed to rename account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// Get retrieves an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	account, err := h.queries.GetAccount(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get account", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(account))
}

// List lists the chart of accounts, optionally filtered by ?asset=.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		accounts []*domain.Account
		err      error
	)

	if code := r.URL.Query().Get("asset"); code != "" {
		asset, assetErr := domain.NewAsset(code)
		if assetErr != nil {
			writeDomainError(w, "invalid asset", assetErr)
			return
		}
		accounts, err = h.queries.ListAccountsByAsset(r.Context(), asset)
	} else {
		accounts, err = h.queries.ListAccounts(r.Context())
	}

	if err != nil {
		writeDomainError(w, "failed to list accounts", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListAccountsResponse{
		Accounts: dto.AccountsFromDomain(accounts),
		Total:    len(accounts),
	})
}
