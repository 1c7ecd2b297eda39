package events

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventOrderConfirmed   = "OrderConfirmed"
	EventOrderCancelled   = "OrderCancelled"
	EventOrderRejected    = "OrderRejected"
	EventOrderCompleted   = "OrderCompleted"
	EventBillGenerated    = "BillGenerated"
	EventPaymentSucceeded = "PaymentSucceeded"
	EventLowStock         = "LowStock"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type OrderItemSummary struct {
	ProductID      string `json:"product_id"`
	SKUID          string `json:"sku_id"`
	Qty            int64  `json:"qty"`
	UnitPricePaise int64  `json:"unit_price_paise"`
}

type OrderCreatedPayload struct {
	OrderID       string             `json:"order_id"`
	OrderCode     string             `json:"order_code"`
	BuyerID       string             `json:"buyer_id"`
	VendorID      string             `json:"vendor_id"`
	OrderType     string             `json:"order_type"`
	Items         []OrderItemSummary `json:"items"`
	SubtotalPaise int64              `json:"subtotal_paise"`
	DiscountPaise int64              `json:"discount_paise"`
	TotalPaise    int64              `json:"total_paise"`
}

type OrderStatusPayload struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

type BillGeneratedPayload struct {
	OrderID           string `json:"order_id"`
	VendorID          string `json:"vendor_id"`
	CashTenderedPaise int64  `json:"cash_tendered_paise"`
}

// PaymentSucceededPayload datang dari gateway luar; core hanya konsumen.
type PaymentSucceededPayload struct {
	PaymentRef  string `json:"payment_ref"`
	OrderID     string `json:"order_id"`
	BuyerID     string `json:"buyer_id"`
	VendorID    string `json:"vendor_id"`
	AmountPaise int64  `json:"amount_paise"`
}

type LowStockPayload struct {
	VendorID string `json:"vendor_id"`
	SKUID    string `json:"sku_id"`
	Quantity int64  `json:"quantity"`
}
