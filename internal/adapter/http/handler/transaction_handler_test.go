package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/adapter/http/middleware"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

type postFunc = usecase.HandlerFunc[usecase.PostTransactionCommand, *domain.LedgerTransaction]

type transactionQueriesStub struct {
	getFn func(ctx context.Context, id string) (*domain.LedgerTransaction, error)
}

func (s *transactionQueriesStub) GetTransaction(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	return s.getFn(ctx, id)
}

func saleTransaction(t *testing.T) *domain.LedgerTransaction {
	t.Helper()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	amount := domain.Amount{Value: decimal.NewFromInt(100), Asset: domain.Asset{Code: "BRL"}}

	debit, err := domain.NewLedgerEntry("cash", amount, domain.EntryTypeDebit, "", now)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	credit, err := domain.NewLedgerEntry("revenue", amount, domain.EntryTypeCredit, "", now)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	tx, err := domain.NewLedgerTransaction("tx-1", "sale-1", "Sale", []domain.LedgerEntry{debit, credit}, now)
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	return tx
}

const saleBody = `{
	"source_transaction_id": "sale-1",
	"description": "Sale",
	"entries": [
		{"account_id": "cash", "amount": "100", "asset": "BRL", "type": "DEBIT"},
		{"account_id": "revenue", "amount": "100", "asset": "BRL", "type": "CREDIT"}
	]
}`

func TestTransactionHandler_Post_Success(t *testing.T) {
	var captured usecase.PostTransactionCommand
	h := NewTransactionHandler(
		postFunc(func(ctx context.Context, cmd usecase.PostTransactionCommand) (*domain.LedgerTransaction, error) {
			captured = cmd
			return saleTransaction(t), nil
		}),
		&transactionQueriesStub{},
	)

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(saleBody))
	req.Header.Set(middleware.IdempotencyKeyHeader, "sale-1-key")
	rec := httptest.NewRecorder()

	middleware.IdempotencyKey(http.HandlerFunc(h.Post)).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if captured.Key != "sale-1-key" || captured.SourceTransactionID != "sale-1" || len(captured.Entries) != 2 {
		t.Fatalf("unexpected command %+v", captured)
	}

	var resp dto.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "tx-1" || resp.TotalAmount != "100" || resp.Asset != "BRL" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestTransactionHandler_Post_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unbalanced", domain.ErrUnbalancedTransaction, http.StatusBadRequest},
		{"unknown accounts", fmt.Errorf("%w: ghost", domain.ErrAccountsUnavailable), http.StatusBadRequest},
		{"duplicate", domain.ErrTransactionAlreadyExists, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTransactionHandler(
				postFunc(func(ctx context.Context, cmd usecase.PostTransactionCommand) (*domain.LedgerTransaction, error) {
					return nil, tt.err
				}),
				&transactionQueriesStub{},
			)

			rec := httptest.NewRecorder()
			h.Post(rec, httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(saleBody)))

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}

			var resp dto.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode error response: %v", err)
			}
			if resp.Message != tt.err.Error() {
				t.Fatalf("expected message %q, got %q", tt.err.Error(), resp.Message)
			}
		})
	}
}

func TestTransactionHandler_Post_InvalidJSON(t *testing.T) {
	h := NewTransactionHandler(
		postFunc(func(ctx context.Context, cmd usecase.PostTransactionCommand) (*domain.LedgerTransaction, error) {
			t.Fatal("PostTransaction should not be called")
			return nil, nil
		}),
		&transactionQueriesStub{},
	)

	rec := httptest.NewRecorder()
	h.Post(rec, httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString(`{"entries":`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTransactionHandler_Get(t *testing.T) {
	h := NewTransactionHandler(nil, &transactionQueriesStub{
		getFn: func(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
			if id == "tx-1" {
				return saleTransaction(t), nil
			}
			return nil, domain.ErrTransactionNotFound
		},
	})

	rec := httptest.NewRecorder()
	h.Get(rec, setChiURLParam(httptest.NewRequest(http.MethodGet, "/transactions/tx-1", nil), "id", "tx-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, setChiURLParam(httptest.NewRequest(http.MethodGet, "/transactions/nope", nil), "id", "nope"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
