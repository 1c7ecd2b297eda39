package redisx

import "time"

const (
	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cache status order: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Idempotency create order per Idempotency-Key client: idem:order:%s
	KeyIdemOrderCreate = "idem:order:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLIdempotency = 24 * time.Hour
)
