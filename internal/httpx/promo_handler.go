package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ariefcatur/go-retail-settlement.git/internal/checkout"
	"github.com/ariefcatur/go-retail-settlement.git/internal/promo"
)

type PromoHandler struct {
	Repo      *promo.Repo
	Assembler *checkout.Assembler
	Validate  *validator.Validate
}

type createBatchReq struct {
	Title         string   `json:"title" validate:"required"`
	BaseInput     string   `json:"base_input" validate:"required,alphanum,min=3,max=12"`
	UsageScope    string   `json:"usage_scope" validate:"required,oneof=PER_USER GLOBAL"`
	DiscountType  string   `json:"discount_type" validate:"required,oneof=PERCENTAGE FLAT"`
	DiscountValue int64    `json:"discount_value" validate:"required,gt=0"`
	StartDate     string   `json:"start_date" validate:"required"`
	EndDate       string   `json:"end_date" validate:"required"`
	Products      []string `json:"products" validate:"required,min=1,dive,uuid4"`
	Count         int      `json:"count" validate:"required,gt=0,lte=1000"`
	UsageLimit    int64    `json:"usage_limit" validate:"required,gt=0"`
}

type validatePromoReq struct {
	Code     string         `json:"code" validate:"required"`
	BuyerID  string         `json:"buyer_id" validate:"required,uuid4"`
	VendorID string         `json:"vendor_id" validate:"required,uuid4"`
	Items    []orderItemReq `json:"items" validate:"required,min=1,dive"`
}

func (h *PromoHandler) Register(r *chi.Mux) {
	r.Post("/promos/batches", h.createBatch)
	r.Post("/promos/batches/{id}/deactivate", h.deactivateBatch)
	r.Post("/promos/validate", h.validatePromo)
}

func (h *PromoHandler) createBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_date must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_date must be RFC3339"})
		return
	}
	if !end.After(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_date must be after start_date"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	batch, codes, err := h.Repo.CreateBatch(ctx, promo.NewBatch{
		Title:         req.Title,
		BaseInput:     req.BaseInput,
		UsageScope:    req.UsageScope,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		StartDate:     start,
		EndDate:       end,
		Products:      req.Products,
		Count:         req.Count,
		UsageLimit:    req.UsageLimit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"batch": batch, "codes": codes})
}

func (h *PromoHandler) deactivateBatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.DeactivateBatch(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// validatePromo = dry-run: hitung diskon utk keranjang tanpa
// mengkonsumsi kode.
func (h *PromoHandler) validatePromo(w http.ResponseWriter, r *http.Request) {
	var req validatePromoReq
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

	inputs := make([]checkout.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		inputs = append(inputs, checkout.ItemInput{ProductID: it.ProductID, SKUID: it.SKUID, Qty: it.Quantity})
	}
	summary, err := h.Assembler.Build(ctx, req.VendorID, inputs)
	if err != nil {
		writeError(w, err)
		return
	}

	lines := make([]promo.CheckoutLine, 0, len(summary.Items))
	for _, it := range summary.Items {
		lines = append(lines, promo.CheckoutLine{ProductID: it.ProductID, SubtotalPaise: it.SubtotalPaise})
	}
	res, err := h.Repo.Validate(ctx, req.Code, req.BuyerID, lines)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":           res.Code.Code,
		"discount_paise": res.DiscountPaise,
		"eligible_paise": res.EligiblePaise,
		"total_paise":    summary.SubtotalPaise - res.DiscountPaise,
	})
}
