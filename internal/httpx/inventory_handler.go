package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ariefcatur/go-retail-settlement.git/internal/ledger"
)

type InventoryHandler struct {
	Ledger   *ledger.Repo
	Validate *validator.Validate
}

type addStockReq struct {
	SKUID    string `json:"sku_id" validate:"required,uuid4"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
}

type transferReq struct {
	SKUID    string `json:"sku_id" validate:"required,uuid4"`
	VendorID string `json:"vendor_id" validate:"required,uuid4"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
}

type rejectTransferReq struct {
	Reason string `json:"reason"`
}

type damageTicketReq struct {
	LotID    string `json:"lot_id" validate:"required,uuid4"`
	Type     string `json:"type" validate:"required,oneof=damage lost"`
	Reason   string `json:"reason" validate:"required"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Post("/inventory/stock", h.addStock)
	r.Get("/inventory/lots", h.listLots)
	r.Post("/inventory/transfers", h.createTransfer)
	r.Get("/inventory/transfers", h.pendingTransfers)
	r.Post("/inventory/transfers/{id}/accept", h.acceptTransfer)
	r.Post("/inventory/transfers/{id}/reject", h.rejectTransfer)
	r.Post("/inventory/damage", h.createDamageTicket)
	r.Post("/inventory/damage/{id}/approve", h.approveDamage)
}

// addStock menambah stok milik platform (gudang pusat).
func (h *InventoryHandler) addStock(w http.ResponseWriter, r *http.Request) {
	var req addStockReq
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

	lotID, err := h.Ledger.AddStock(ctx, req.SKUID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"lot_id": lotID})
}

func (h *InventoryHandler) listLots(w http.ResponseWriter, r *http.Request) {
	sku := r.URL.Query().Get("sku_id")
	if sku == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing sku_id"})
		return
	}
	vendor := r.URL.Query().Get("vendor_id") // kosong = stok platform

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	lots, err := h.Ledger.Lots(ctx, sku, vendor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lots":      lots,
		"available": ledger.Available(lots),
	})
}

func (h *InventoryHandler) createTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferReq
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

	id, err := h.Ledger.TransferToVendor(ctx, req.SKUID, req.VendorID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"transfer_id": id})
}

func (h *InventoryHandler) pendingTransfers(w http.ResponseWriter, r *http.Request) {
	vendor := r.URL.Query().Get("vendor_id")
	if vendor == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing vendor_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ts, err := h.Ledger.PendingTransfers(ctx, vendor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (h *InventoryHandler) acceptTransfer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.AcceptTransfer(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *InventoryHandler) rejectTransfer(w http.ResponseWriter, r *http.Request) {
	var req rejectTransferReq
	_ = json.NewDecoder(r.Body).Decode(&req)

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.RejectTransfer(ctx, chi.URLParam(r, "id"), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (h *InventoryHandler) createDamageTicket(w http.ResponseWriter, r *http.Request) {
	var req damageTicketReq
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

	id, err := h.Ledger.CreateDamageTicket(ctx, req.LotID, req.Type, req.Reason, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"ticket_id": id})
}

func (h *InventoryHandler) approveDamage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Ledger.ApproveDamage(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}
