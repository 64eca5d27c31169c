package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/iho/ledgercore/internal/domain"
)

// IdempotencyKeyHeader is the header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

type idempotencyKeyContextKey struct{}

// IdempotencyKey validates the Idempotency-Key header of mutating requests and
// stores it in the request context. Replay of results is done by the command
// pipeline, not here.
func IdempotencyKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only apply to mutating requests
		if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		if err := domain.ValidateIdempotencyKey(key); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "invalid idempotency key",
				"message": err.Error(),
			})
			return
		}

		ctx := context.WithValue(r.Context(), idempotencyKeyContextKey{}, domain.IdempotencyKey(key))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdempotencyKeyFromContext returns the key stored by IdempotencyKey, or "".
func IdempotencyKeyFromContext(ctx context.Context) domain.IdempotencyKey {
	key, _ := ctx.Value(idempotencyKeyContextKey{}).(domain.IdempotencyKey)
	return key
}
