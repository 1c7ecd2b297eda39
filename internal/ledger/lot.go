package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Lot = satu baris stok utk (sku, holder). Vendor kosong berarti stok
// platform (dipegang admin). Boleh ada banyak lot utk pasangan yang sama;
// alokasi memperlakukannya sebagai pool, konsumsi dari lot tertua dulu.
type Lot struct {
	ID        string
	SKU       string
	Vendor    string // "" = platform
	Quantity  int64
	Reserved  int64
	CreatedAt time.Time
}

type Transfer struct {
	ID              string
	SKU             string
	Vendor          string
	Quantity        int64
	Status          string // pending | accepted | rejected
	RejectionReason string
	CreatedAt       time.Time
	RespondedAt     *time.Time
}

type DamageTicket struct {
	ID        string
	LotID     string
	SKU       string
	Vendor    string
	Quantity  int64
	Type      string // damage | lost
	Reason    string
	Status    string // pending | approved | rejected
	CreatedAt time.Time
}

const (
	TransferPending  = "pending"
	TransferAccepted = "accepted"
	TransferRejected = "rejected"

	TicketPending  = "pending"
	TicketApproved = "approved"
	TicketRejected = "rejected"
)

// Tipe entri audit di stock_history.
const (
	EntrySale              = "sale"
	EntryAdd               = "add"
	EntryTransferInitiated = "transfer_initiated"
	EntryTransferAccepted  = "transfer_accepted"
	EntryTransferRejected  = "transfer_rejected"
	EntryDamage            = "damage"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
)

type Shortfall struct {
	SKU       string `json:"sku"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

// InsufficientStockError membawa daftar kekurangan per SKU supaya caller
// bisa menampilkan semuanya sekaligus.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", s.SKU, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(parts, ", ")
}
