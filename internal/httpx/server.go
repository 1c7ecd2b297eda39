package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/ariefcatur/go-retail-settlement.git/internal/cash"
	"github.com/ariefcatur/go-retail-settlement.git/internal/catalog"
	"github.com/ariefcatur/go-retail-settlement.git/internal/checkout"
	"github.com/ariefcatur/go-retail-settlement.git/internal/ledger"
	"github.com/ariefcatur/go-retail-settlement.git/internal/orders"
	"github.com/ariefcatur/go-retail-settlement.git/internal/postgres"
	"github.com/ariefcatur/go-retail-settlement.git/internal/promo"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError memetakan taksonomi error domain ke kode HTTP. Semua
// handler lewat sini supaya mapping konsisten.
func writeError(w http.ResponseWriter, err error) {
	var ise *ledger.InsufficientStockError
	var rej *promo.RejectError
	var se *orders.StateError
	var ve validator.ValidationErrors

	switch {
	case errors.As(err, &ise):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      "insufficient stock",
			"shortfalls": ise.Shortfalls,
		})
	case errors.As(err, &rej):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "promo rejected",
			"reason": string(rej.Reason),
		})
	case errors.As(err, &se):
		writeJSON(w, http.StatusConflict, map[string]string{"error": se.Error()})
	case errors.Is(err, orders.ErrAlreadyCancelled),
		errors.Is(err, orders.ErrNotVerifiable),
		errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, cash.ErrInsufficientBalance):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, cash.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, promo.ErrBatchNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, checkout.ErrInvalidItem),
		errors.Is(err, orders.ErrNotWalkIn),
		errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, postgres.ErrWriteConflict):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy, retry later"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
