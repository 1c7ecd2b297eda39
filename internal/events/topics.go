package events

const (
	TopicOrderCreated     = "retail.order.created"
	TopicOrderStatus      = "retail.order.status"
	TopicPaymentSucceeded = "retail.payment.succeeded"
	TopicNotifications    = "retail.notifications"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
