package orders

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("order not found")
	ErrAlreadyCancelled = errors.New("order already cancelled")
	ErrNotVerifiable    = errors.New("order is not awaiting verification")
)

const (
	TypeOnline = "online"
	TypeWalkIn = "walk_in"
)

type Order struct {
	ID               string    `json:"id"`
	OrderCode        string    `json:"order_code"`
	VerificationCode string    `json:"verification_code,omitempty"`
	BuyerID          string    `json:"buyer_id"`
	VendorID         string    `json:"vendor_id"`
	OrderType        string    `json:"order_type"`
	Status           Status    `json:"status"`
	PickupAddress    string    `json:"pickup_address,omitempty"`
	SubtotalPaise    int64     `json:"subtotal_paise"`
	DiscountPaise    int64     `json:"discount_paise"`
	TotalPaise       int64     `json:"total_paise"`
	PromoCodeID      string    `json:"promo_code_id,omitempty"`
	Items            []Item    `json:"items,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Item = satu komponen SKU di order. Bundle sudah di-flatten oleh
// checkout, jadi qty di sini sudah qty order * per_bundle.
type Item struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	SKUID          string `json:"sku_id"`
	Quantity       int64  `json:"quantity"`
	UnitPricePaise int64  `json:"unit_price_paise"`
}

type Payment struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	BuyerID     string    `json:"buyer_id"`
	ProviderRef string    `json:"provider_ref"`
	AmountPaise int64     `json:"amount_paise"`
	CreatedAt   time.Time `json:"created_at"`
}
