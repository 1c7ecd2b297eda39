package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ariefcatur/go-retail-settlement.git/internal/events"
)

func TestEnvelopeUnwrapPayload(t *testing.T) {
	env := events.Envelope{
		EventID:       "evt-1",
		EventType:     events.EventPaymentSucceeded,
		EventVersion:  1,
		OccurredAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Producer:      "payment-gateway",
		CorrelationID: "ord-1",
		Payload: MustMarshal(events.PaymentSucceededPayload{
			PaymentRef:  "pay_abc",
			OrderID:     "ord-1",
			AmountPaise: 12_500,
		}),
	}

	var got events.Envelope
	if err := json.Unmarshal(MustMarshal(env), &got); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if got.EventType != events.EventPaymentSucceeded {
		t.Fatalf("event_type = %q", got.EventType)
	}

	p, err := UnwrapPayload[events.PaymentSucceededPayload](got.Payload)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if p.PaymentRef != "pay_abc" || p.OrderID != "ord-1" || p.AmountPaise != 12_500 {
		t.Fatalf("payload tidak utuh: %+v", p)
	}
}

func TestUnwrapPayloadCorrupt(t *testing.T) {
	if _, err := UnwrapPayload[events.OrderStatusPayload](json.RawMessage(`{"order_id":`)); err == nil {
		t.Fatal("payload korup harusnya error")
	}
}
