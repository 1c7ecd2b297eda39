package orders

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-retail-settlement.git/internal/events"
	kafkax "github.com/ariefcatur/go-retail-settlement.git/internal/kafka"
)

// KafkaEmitter menerbitkan event lifecycle order. OrderCreated punya
// topic sendiri; sisanya masuk topic status. Fire-and-forget lewat
// inbox producer; gagal kirim cuma ke-log.
type KafkaEmitter struct {
	Created *kafkax.Producer
	Status  *kafkax.Producer
	Service string
}

func (e *KafkaEmitter) Emit(eventType, orderID string, payload any) {
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p := e.Status
	if eventType == events.EventOrderCreated {
		p = e.Created
	}
	p.Publish(events.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// NoopEmitter dipakai di test.
type NoopEmitter struct{}

func (NoopEmitter) Emit(string, string, any) {}
