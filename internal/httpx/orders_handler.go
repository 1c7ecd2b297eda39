package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-retail-settlement.git/internal/checkout"
	"github.com/ariefcatur/go-retail-settlement.git/internal/orders"
	"github.com/ariefcatur/go-retail-settlement.git/internal/promo"
	"github.com/ariefcatur/go-retail-settlement.git/internal/redisx"
)

type OrdersHandler struct {
	Assembler *checkout.Assembler
	Svc       *orders.Service
	Promo     *promo.Repo
	Redis     *redis.Client
	Validate  *validator.Validate
}

type orderItemReq struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	SKUID     string `json:"sku_id" validate:"omitempty,uuid4"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

type createOrderReq struct {
	BuyerID       string         `json:"buyer_id" validate:"required,uuid4"`
	VendorID      string         `json:"vendor_id" validate:"required,uuid4"`
	OrderType     string         `json:"order_type" validate:"required,oneof=online walk_in"`
	PickupAddress string         `json:"pickup_address"`
	PromoCode     string         `json:"promo_code"`
	Items         []orderItemReq `json:"items" validate:"required,min=1,dive"`
}

type reassignReq struct {
	VendorID      string `json:"vendor_id" validate:"required,uuid4"`
	PickupAddress string `json:"pickup_address" validate:"required"`
}

type rejectReq struct {
	Reason string `json:"reason"`
}

type billReq struct {
	CashTenderedPaise int64 `json:"cash_tendered_paise" validate:"required,gt=0"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Get("/orders/verify/{code}", h.verifyOrder)
	r.Post("/orders/{id}/confirm", h.confirmOrder)
	r.Post("/orders/{id}/reject", h.rejectOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Post("/orders/{id}/reassign", h.reassignOrder)
	r.Post("/orders/{id}/bill", h.generateBill)
	r.Post("/orders/{id}/complete", h.completeOrder)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
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

	// Idempotency opsional: retry client dengan key sama dapat order
	// yang sudah dibuat, bukan order baru.
	idemKey := ""
	if k := r.Header.Get("Idempotency-Key"); k != "" {
		idemKey = fmt.Sprintf(redisx.KeyIdemOrderCreate, k)
		if id, err := h.Redis.Get(ctx, idemKey).Result(); err == nil && id != "" {
			if o, err := h.Svc.Get(ctx, id); err == nil {
				writeJSON(w, http.StatusOK, o)
				return
			}
		}
	}

	inputs := make([]checkout.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		inputs = append(inputs, checkout.ItemInput{
			ProductID: it.ProductID,
			SKUID:     it.SKUID,
			Qty:       it.Quantity,
		})
	}
	summary, err := h.Assembler.Build(ctx, req.VendorID, inputs)
	if err != nil {
		writeError(w, err)
		return
	}

	var promoRes *promo.Result
	if req.PromoCode != "" {
		lines := make([]promo.CheckoutLine, 0, len(summary.Items))
		for _, it := range summary.Items {
			lines = append(lines, promo.CheckoutLine{ProductID: it.ProductID, SubtotalPaise: it.SubtotalPaise})
		}
		promoRes, err = h.Promo.Validate(ctx, req.PromoCode, req.BuyerID, lines)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	o, err := h.Svc.Create(ctx, orders.CreateInput{
		BuyerID:       req.BuyerID,
		OrderType:     req.OrderType,
		PickupAddress: req.PickupAddress,
		Summary:       summary,
		Promo:         promoRes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if idemKey != "" {
		_ = h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err()
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus layani polling murah: coba cache dulu, fallback DB.
func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, id)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Svc.Get(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	body, _ := json.Marshal(map[string]string{"status": string(o.Status)})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
	writeJSON(w, http.StatusOK, json.RawMessage(body))
}

func (h *OrdersHandler) verifyOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Svc.Verify(ctx, chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, func(ctx context.Context, id string) (*orders.Order, error) {
		return h.Svc.Confirm(ctx, id)
	})
}

func (h *OrdersHandler) rejectOrder(w http.ResponseWriter, r *http.Request) {
	var req rejectReq
	_ = json.NewDecoder(r.Body).Decode(&req) // reason opsional
	h.mutateOrder(w, r, func(ctx context.Context, id string) (*orders.Order, error) {
		return h.Svc.PartialReject(ctx, id, req.Reason)
	})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, func(ctx context.Context, id string) (*orders.Order, error) {
		return h.Svc.Cancel(ctx, id)
	})
}

func (h *OrdersHandler) completeOrder(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, func(ctx context.Context, id string) (*orders.Order, error) {
		return h.Svc.Complete(ctx, id)
	})
}

func (h *OrdersHandler) reassignOrder(w http.ResponseWriter, r *http.Request) {
	var req reassignReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}
	h.mutateOrder(w, r, func(ctx context.Context, id string) (*orders.Order, error) {
		return h.Svc.Reassign(ctx, id, req.VendorID, req.PickupAddress)
	})
}

func (h *OrdersHandler) generateBill(w http.ResponseWriter, r *http.Request) {
	var req billReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		writeError(w, err)
		return
	}
	h.mutateOrder(w, r, func(ctx context.Context, id string) (*orders.Order, error) {
		return h.Svc.GenerateBill(ctx, id, req.CashTenderedPaise)
	})
}

func (h *OrdersHandler) mutateOrder(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id string) (*orders.Order, error)) {

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := fn(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, _ := json.Marshal(map[string]string{"status": string(o.Status)})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}
