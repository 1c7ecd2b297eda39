package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ariefcatur/go-retail-settlement.git/internal/cash"
)

type CashHandler struct {
	Repo     *cash.Repo
	Validate *validator.Validate
}

type deductCashReq struct {
	AmountPaise int64  `json:"amount_paise" validate:"required,gt=0"`
	Reason      string `json:"reason" validate:"required"`
	Actor       string `json:"actor" validate:"required,uuid4"`
}

func (h *CashHandler) Register(r *chi.Mux) {
	r.Get("/vendors/{id}/cash", h.balance)
	r.Post("/vendors/{id}/cash/deduct", h.deduct)
	r.Get("/vendors/{id}/cash/deductions", h.deductions)
}

func (h *CashHandler) balance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	e, err := h.Repo.Balance(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *CashHandler) deduct(w http.ResponseWriter, r *http.Request) {
	var req deductCashReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vendor := chi.URLParam(r, "id")
	if err := h.Repo.Debit(ctx, vendor, req.AmountPaise, req.Reason, req.Actor); err != nil {
		writeError(w, err)
		return
	}
	e, err := h.Repo.Balance(ctx, vendor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *CashHandler) deductions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ds, err := h.Repo.Deductions(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}
