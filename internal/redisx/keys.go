package redisx

import "time"

const (
	// Idempotent checkout: idem:checkout:{customer_id}:{idempotency_key} -> transaction_id
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Idempotent direct order: idem:transaction:create:{customer_id}:{idempotency_key} -> transaction_id
	KeyIdemCreate = "idem:transaction:create:%s:%s"

	// Status cache: order_status:{transaction_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
