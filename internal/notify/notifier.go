package notify

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-retail-settlement.git/internal/events"
	kafkax "github.com/ariefcatur/go-retail-settlement.git/internal/kafka"
)

// Notifier = kolaborator eksternal (email/push/socket di service lain).
// Semua panggilan best-effort: tidak boleh blok atau menggagalkan mutasi.
type Notifier interface {
	LowStock(vendorID, skuID string, quantity int64)
	NewOrder(vendorID string, order events.OrderCreatedPayload)
}

// KafkaNotifier menerbitkan event notifikasi; delivery (email dsb.)
// urusan consumer di service notifikasi.
type KafkaNotifier struct {
	Producer *kafkax.Producer
	Service  string
}

func (n *KafkaNotifier) LowStock(vendorID, skuID string, quantity int64) {
	n.publish(events.EventLowStock, vendorID, events.LowStockPayload{
		VendorID: vendorID,
		SKUID:    skuID,
		Quantity: quantity,
	})
}

func (n *KafkaNotifier) NewOrder(vendorID string, order events.OrderCreatedPayload) {
	n.publish(events.EventOrderCreated, order.OrderID, order)
}

func (n *KafkaNotifier) publish(eventType, correlationID string, payload any) {
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
	n.Producer.Publish(events.PartitionKey(correlationID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// Noop dipakai di test dan tooling.
type Noop struct{}

func (Noop) LowStock(string, string, int64) {}

func (Noop) NewOrder(string, events.OrderCreatedPayload) {}
