package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-retail-settlement.git/internal/checkout"
	"github.com/ariefcatur/go-retail-settlement.git/internal/events"
	"github.com/ariefcatur/go-retail-settlement.git/internal/notify"
	"github.com/ariefcatur/go-retail-settlement.git/internal/postgres"
	"github.com/ariefcatur/go-retail-settlement.git/internal/promo"
)

var ErrNotWalkIn = errors.New("generate bill only applies to walk-in orders")

// Kolaborator dipersempit jadi interface kecil supaya service bisa dites
// dengan fake in-memory tanpa database.

type Inventory interface {
	Reserve(ctx context.Context, sku, vendor string, qty int64) error
	Release(ctx context.Context, sku, vendor string, qty int64) error
	Deduct(ctx context.Context, sku, vendor string, qty int64, refID, reason string) error
}

type PromoCodes interface {
	Consume(ctx context.Context, codeID, buyer string) error
}

type CashLedger interface {
	Credit(ctx context.Context, vendor string, amount int64, orderID string) error
}

type Store interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, id string) (*Order, error)
	ByVerificationCode(ctx context.Context, code string) (*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	UpdateVendor(ctx context.Context, id, vendorID, pickupAddress string) error
	InsertPayment(ctx context.Context, p Payment) (inserted bool, err error)
}

type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Emitter interface {
	Emit(eventType, orderID string, payload any)
}

type Service struct {
	Store    Store
	Stock    Inventory
	Promo    PromoCodes
	Cash     CashLedger
	Tx       Runner
	Notifier notify.Notifier
	Events   Emitter
	Log      *logrus.Logger
}

type CreateInput struct {
	BuyerID       string
	OrderType     string
	PickupAddress string
	Summary       *checkout.Summary
	Promo         *promo.Result // nil kalau tidak pakai kode
}

// Create membuat order baru: reservasi semua komponen + insert dokumen
// order dalam satu tx. Promo hanya dicatat, konsumsi terjadi saat
// payment.succeeded masuk. Notifikasi & event dikirim setelah commit.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	var o *Order
	var err error
	// Verification code punya partial unique index; tabrakan sangat
	// jarang tapi murah di-retry dengan kode baru.
	for attempt := 0; attempt < 3; attempt++ {
		o, err = s.createOnce(ctx, in)
		if err == nil || !postgres.IsUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	payload := createdPayload(o)
	s.Notifier.NewOrder(o.VendorID, payload)
	s.Events.Emit(events.EventOrderCreated, o.ID, payload)
	s.Log.WithFields(logrus.Fields{"order_id": o.ID, "order_code": o.OrderCode,
		"vendor_id": o.VendorID, "total_paise": o.TotalPaise}).Info("order created")
	return o, nil
}

func (s *Service) createOnce(ctx context.Context, in CreateInput) (*Order, error) {
	now := time.Now()
	o := &Order{
		ID:               uuid.NewString(),
		OrderCode:        newOrderCode(now),
		VerificationCode: newVerificationCode(),
		BuyerID:          in.BuyerID,
		VendorID:         in.Summary.Vendor,
		OrderType:        in.OrderType,
		Status:           StatusPendingVerification,
		PickupAddress:    in.PickupAddress,
		SubtotalPaise:    in.Summary.SubtotalPaise,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, it := range in.Summary.Items {
		for _, c := range it.Components {
			o.Items = append(o.Items, Item{
				ID:             uuid.NewString(),
				OrderID:        o.ID,
				ProductID:      it.ProductID,
				SKUID:          c.SKU,
				Quantity:       it.Qty * c.PerBundle,
				UnitPricePaise: c.UnitPricePaise,
			})
		}
	}
	if in.Promo != nil {
		o.PromoCodeID = in.Promo.Code.ID
		o.DiscountPaise = in.Promo.DiscountPaise
	}
	o.TotalPaise = o.SubtotalPaise - o.DiscountPaise
	if o.TotalPaise < 0 {
		o.TotalPaise = 0
	}

	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		for _, it := range o.Items {
			if err := s.Stock.Reserve(ctx, it.SKUID, o.VendorID, it.Quantity); err != nil {
				return err
			}
		}
		return s.Store.Insert(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Verify cuma lookup, tidak mengubah apa pun. Partial index di DB
// menjamin kode aktif unik di antara order pending.
func (s *Service) Verify(ctx context.Context, code string) (*Order, error) {
	o, err := s.Store.ByVerificationCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPendingVerification {
		return nil, ErrNotVerifiable
	}
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.Store.Get(ctx, id)
}

// Confirm konversi reservasi jadi pengurangan permanen. Kalau satu
// deduct gagal (mis. stok kena damage duluan) seluruh tx batal dan
// order tetap pending.
func (s *Service) Confirm(ctx context.Context, orderID string) (*Order, error) {
	var o *Order
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.Store.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := transition(o.Status, StatusConfirmed); err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := s.Stock.Deduct(ctx, it.SKUID, o.VendorID, it.Quantity, o.ID, "order sale"); err != nil {
				return err
			}
		}
		if err := s.Store.UpdateStatus(ctx, o.ID, StatusConfirmed); err != nil {
			return err
		}
		o.Status = StatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitStatus(o, "")
	return o, nil
}

func (s *Service) PartialReject(ctx context.Context, orderID, reason string) (*Order, error) {
	o, err := s.releaseAndFlip(ctx, orderID, StatusPartiallyRejected)
	if err != nil {
		return nil, err
	}
	s.emitStatus(o, reason)
	return o, nil
}

func (s *Service) Cancel(ctx context.Context, orderID string) (*Order, error) {
	var o *Order
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.Store.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		if o.Status != StatusPendingVerification {
			return &StateError{From: o.Status, To: StatusCancelled}
		}
		return s.releaseLocked(ctx, o, StatusCancelled)
	})
	if err != nil {
		return nil, err
	}
	s.emitStatus(o, "")
	return o, nil
}

func (s *Service) releaseAndFlip(ctx context.Context, orderID string, to Status) (*Order, error) {
	var o *Order
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.Store.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := transition(o.Status, to); err != nil {
			return err
		}
		return s.releaseLocked(ctx, o, to)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) releaseLocked(ctx context.Context, o *Order, to Status) error {
	for _, it := range o.Items {
		if err := s.Stock.Release(ctx, it.SKUID, o.VendorID, it.Quantity); err != nil {
			return err
		}
	}
	if err := s.Store.UpdateStatus(ctx, o.ID, to); err != nil {
		return err
	}
	o.Status = to
	return nil
}

// Reassign hanya mengganti vendor & lokasi pickup di dokumen order.
// Alokasi stok TIDAK diulang: caller diharapkan bikin order baru ke
// vendor pengganti.
func (s *Service) Reassign(ctx context.Context, orderID, vendorID, pickupAddress string) (*Order, error) {
	var o *Order
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.Store.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusPartiallyRejected {
			return &StateError{From: o.Status, To: StatusPartiallyRejected}
		}
		if err := s.Store.UpdateVendor(ctx, o.ID, vendorID, pickupAddress); err != nil {
			return err
		}
		o.VendorID = vendorID
		o.PickupAddress = pickupAddress
		return nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// GenerateBill utk order walk-in: deduct seperti confirm, kredit kas
// vendor, lalu confirmed. Satu tx, gagal di mana pun = order tetap
// pending.
func (s *Service) GenerateBill(ctx context.Context, orderID string, cashTenderedPaise int64) (*Order, error) {
	var o *Order
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.Store.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.OrderType != TypeWalkIn {
			return ErrNotWalkIn
		}
		if err := transition(o.Status, StatusConfirmed); err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := s.Stock.Deduct(ctx, it.SKUID, o.VendorID, it.Quantity, o.ID, "walk-in sale"); err != nil {
				return err
			}
		}
		if err := s.Cash.Credit(ctx, o.VendorID, cashTenderedPaise, o.ID); err != nil {
			return err
		}
		if err := s.Store.UpdateStatus(ctx, o.ID, StatusConfirmed); err != nil {
			return err
		}
		o.Status = StatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Events.Emit(events.EventBillGenerated, o.ID, events.BillGeneratedPayload{
		OrderID:           o.ID,
		VendorID:          o.VendorID,
		CashTenderedPaise: cashTenderedPaise,
	})
	s.emitStatus(o, "")
	return o, nil
}

func (s *Service) Complete(ctx context.Context, orderID string) (*Order, error) {
	var o *Order
	err := s.Tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.Store.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := transition(o.Status, StatusCompleted); err != nil {
			return err
		}
		if err := s.Store.UpdateStatus(ctx, o.ID, StatusCompleted); err != nil {
			return err
		}
		o.Status = StatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emitStatus(o, "")
	return o, nil
}

// LinkPayment dipanggil consumer payment.succeeded. Payment dicatat
// dulu; kalau order bawa promo, kode baru dikonsumsi di sini, setelah
// order terbukti dibayar.
func (s *Service) LinkPayment(ctx context.Context, p events.PaymentSucceededPayload) error {
	return s.Tx.InTx(ctx, func(ctx context.Context) error {
		o, err := s.Store.GetForUpdate(ctx, p.OrderID)
		if err != nil {
			return err
		}
		inserted, err := s.Store.InsertPayment(ctx, Payment{
			ID:          uuid.NewString(),
			OrderID:     o.ID,
			BuyerID:     o.BuyerID,
			ProviderRef: p.PaymentRef,
			AmountPaise: p.AmountPaise,
		})
		if err != nil {
			return err
		}
		if !inserted {
			// provider_ref sudah tercatat: event duplikat yang lolos
			// dedup redis, promo sudah diurus saat pencatatan pertama.
			return nil
		}
		if o.PromoCodeID == "" {
			return nil
		}
		if err := s.Promo.Consume(ctx, o.PromoCodeID, o.BuyerID); err != nil {
			var rej *promo.RejectError
			if errors.As(err, &rej) {
				// Pembayaran tetap dicatat; kalah race utk kode promo
				// cukup dicatat buat rekonsiliasi manual.
				s.Log.WithFields(logrus.Fields{"order_id": o.ID,
					"promo_code_id": o.PromoCodeID, "reason": string(rej.Reason)}).
					Warn("promo consume rejected after payment")
				return nil
			}
			return fmt.Errorf("consume promo: %w", err)
		}
		return nil
	})
}

func (s *Service) emitStatus(o *Order, reason string) {
	eventType := events.EventOrderConfirmed
	switch o.Status {
	case StatusPartiallyRejected:
		eventType = events.EventOrderRejected
	case StatusCancelled:
		eventType = events.EventOrderCancelled
	case StatusCompleted:
		eventType = events.EventOrderCompleted
	}
	s.Events.Emit(eventType, o.ID, events.OrderStatusPayload{
		OrderID: o.ID,
		Status:  string(o.Status),
		Reason:  reason,
	})
	s.Log.WithFields(logrus.Fields{"order_id": o.ID, "status": o.Status}).Info("order status changed")
}

func createdPayload(o *Order) events.OrderCreatedPayload {
	p := events.OrderCreatedPayload{
		OrderID:       o.ID,
		OrderCode:     o.OrderCode,
		BuyerID:       o.BuyerID,
		VendorID:      o.VendorID,
		OrderType:     o.OrderType,
		SubtotalPaise: o.SubtotalPaise,
		DiscountPaise: o.DiscountPaise,
		TotalPaise:    o.TotalPaise,
	}
	for _, it := range o.Items {
		p.Items = append(p.Items, events.OrderItemSummary{
			ProductID:      it.ProductID,
			SKUID:          it.SKUID,
			Qty:            it.Quantity,
			UnitPricePaise: it.UnitPricePaise,
		})
	}
	return p
}
