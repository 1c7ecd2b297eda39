package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-retail-settlement.git/internal/events"
	kafkax "github.com/ariefcatur/go-retail-settlement.git/internal/kafka"
	"github.com/ariefcatur/go-retail-settlement.git/internal/redisx"
)

// SettlementWorker memproses event payment.succeeded dari gateway:
// dedup by event id, lalu link payment + konsumsi promo via Service.
type SettlementWorker struct {
	Svc *Service
	Rdb *redis.Client
	Log *logrus.Logger
}

func (w *SettlementWorker) Handle(ctx context.Context, m kafkago.Message) error {
	var ev events.Envelope
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		// pesan korup tidak akan pernah sukses, commit saja
		w.Log.Warnf("settlement: bad envelope: %v", err)
		return nil
	}
	if ev.EventType != events.EventPaymentSucceeded {
		return nil
	}

	key := fmt.Sprintf(redisx.KeyDedup, "settlement", ev.EventID)
	seen, err := redisx.Exists(ctx, w.Rdb, key)
	if err != nil {
		return fmt.Errorf("dedup check: %w", err)
	}
	if seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[events.PaymentSucceededPayload](ev.Payload)
	if err != nil {
		w.Log.Warnf("settlement: bad payload: %v", err)
		return nil
	}

	if err := w.Svc.LinkPayment(ctx, p); err != nil {
		if errors.Is(err, ErrNotFound) {
			// order belum pernah kita lihat; kemungkinan event nyasar
			w.Log.WithField("order_id", p.OrderID).Warn("settlement: payment for unknown order")
			return nil
		}
		return err
	}

	if err := w.Rdb.Set(ctx, key, time.Now().Unix(), redisx.TTLDedup).Err(); err != nil {
		// dedup gagal tidak fatal: replay aman karena provider_ref unik
		w.Log.Warnf("settlement: dedup set: %v", err)
	}
	w.Log.WithFields(logrus.Fields{"order_id": p.OrderID, "payment_ref": p.PaymentRef}).
		Info("payment linked")
	return nil
}
