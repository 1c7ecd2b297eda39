package orders

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-retail-settlement.git/internal/checkout"
	"github.com/ariefcatur/go-retail-settlement.git/internal/events"
	"github.com/ariefcatur/go-retail-settlement.git/internal/ledger"
	"github.com/ariefcatur/go-retail-settlement.git/internal/notify"
	"github.com/ariefcatur/go-retail-settlement.git/internal/promo"
)

// ---- fakes ----

type fakeStore struct {
	orders   map[string]*Order
	payments []Payment
}

func newFakeStore() *fakeStore { return &fakeStore{orders: map[string]*Order{}} }

func (f *fakeStore) Insert(_ context.Context, o *Order) error {
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeStore) Get(_ context.Context, id string) (*Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, id string) (*Order, error) {
	return f.Get(ctx, id)
}

func (f *fakeStore) ByVerificationCode(_ context.Context, code string) (*Order, error) {
	for _, o := range f.orders {
		if o.VerificationCode == code {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, status Status) error {
	o, ok := f.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (f *fakeStore) UpdateVendor(_ context.Context, id, vendorID, pickup string) error {
	o, ok := f.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.VendorID = vendorID
	o.PickupAddress = pickup
	return nil
}

func (f *fakeStore) InsertPayment(_ context.Context, p Payment) (bool, error) {
	for _, got := range f.payments {
		if got.ProviderRef == p.ProviderRef {
			return false, nil
		}
	}
	f.payments = append(f.payments, p)
	return true, nil
}

type stockOp struct {
	op, sku, vendor string
	qty             int64
}

type fakeStock struct {
	ops        []stockOp
	failSKU    string // Deduct utk sku ini gagal
	reserveErr error
}

func (f *fakeStock) Reserve(_ context.Context, sku, vendor string, qty int64) error {
	if f.reserveErr != nil {
		return f.reserveErr
	}
	f.ops = append(f.ops, stockOp{"reserve", sku, vendor, qty})
	return nil
}

func (f *fakeStock) Release(_ context.Context, sku, vendor string, qty int64) error {
	f.ops = append(f.ops, stockOp{"release", sku, vendor, qty})
	return nil
}

func (f *fakeStock) Deduct(_ context.Context, sku, vendor string, qty int64, _, _ string) error {
	if sku == f.failSKU {
		return &ledger.InsufficientStockError{Shortfalls: []ledger.Shortfall{{SKU: sku, Requested: qty}}}
	}
	f.ops = append(f.ops, stockOp{"deduct", sku, vendor, qty})
	return nil
}

type fakePromo struct {
	consumed [][2]string
	err      error
}

func (f *fakePromo) Consume(_ context.Context, codeID, buyer string) error {
	if f.err != nil {
		return f.err
	}
	f.consumed = append(f.consumed, [2]string{codeID, buyer})
	return nil
}

type fakeCash struct {
	credits []int64
	vendors []string
}

func (f *fakeCash) Credit(_ context.Context, vendor string, amount int64, _ string) error {
	f.vendors = append(f.vendors, vendor)
	f.credits = append(f.credits, amount)
	return nil
}

type fakeTx struct{}

func (fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type recEmitter struct {
	types []string
}

func (r *recEmitter) Emit(eventType, _ string, _ any) { r.types = append(r.types, eventType) }

func quietLog() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestService() (*Service, *fakeStore, *fakeStock, *fakePromo, *fakeCash, *recEmitter) {
	store := newFakeStore()
	stock := &fakeStock{}
	pc := &fakePromo{}
	cash := &fakeCash{}
	em := &recEmitter{}
	svc := &Service{
		Store:    store,
		Stock:    stock,
		Promo:    pc,
		Cash:     cash,
		Tx:       fakeTx{},
		Notifier: notify.Noop{},
		Events:   em,
		Log:      quietLog(),
	}
	return svc, store, stock, pc, cash, em
}

func bundleSummary() *checkout.Summary {
	return &checkout.Summary{
		Vendor:        "vendor-1",
		SubtotalPaise: 50_000,
		Items: []checkout.Item{
			{
				ProductID:     "prod-1",
				Qty:           2,
				SubtotalPaise: 50_000,
				IsBundle:      true,
				Components: []checkout.Component{
					{SKU: "sku-a", PerBundle: 1, UnitPricePaise: 15_000},
					{SKU: "sku-b", PerBundle: 1, UnitPricePaise: 10_000},
				},
			},
		},
	}
}

// ---- tests ----

func TestCreateReservesAndStaysPending(t *testing.T) {
	svc, store, stock, pc, _, em := newTestService()

	res := &promo.Result{
		Code:          promo.Code{ID: "code-1"},
		DiscountPaise: 5_000,
	}
	o, err := svc.Create(context.Background(), CreateInput{
		BuyerID:   "buyer-1",
		OrderType: TypeOnline,
		Summary:   bundleSummary(),
		Promo:     res,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if o.Status != StatusPendingVerification {
		t.Errorf("status = %s, want pending_verification", o.Status)
	}
	if !regexp.MustCompile(`^\d{8}$`).MatchString(o.VerificationCode) {
		t.Errorf("verification code %q not 8 digits", o.VerificationCode)
	}
	if !strings.HasPrefix(o.OrderCode, "ORD-") {
		t.Errorf("order code %q missing ORD- prefix", o.OrderCode)
	}
	if o.TotalPaise != 45_000 {
		t.Errorf("total = %d, want 45000", o.TotalPaise)
	}
	if o.PromoCodeID != "code-1" {
		t.Errorf("promo code id = %q", o.PromoCodeID)
	}
	if len(pc.consumed) != 0 {
		t.Error("promo consumed at create; must wait for payment")
	}

	// bundle qty 2 x per_bundle 1 per komponen
	want := []stockOp{
		{"reserve", "sku-a", "vendor-1", 2},
		{"reserve", "sku-b", "vendor-1", 2},
	}
	if len(stock.ops) != len(want) {
		t.Fatalf("stock ops = %+v", stock.ops)
	}
	for i, w := range want {
		if stock.ops[i] != w {
			t.Errorf("op[%d] = %+v, want %+v", i, stock.ops[i], w)
		}
	}
	if _, ok := store.orders[o.ID]; !ok {
		t.Error("order not persisted")
	}
	if len(em.types) != 1 || em.types[0] != events.EventOrderCreated {
		t.Errorf("events = %v", em.types)
	}
}

func TestCreateFailsWhenReserveFails(t *testing.T) {
	svc, store, stock, _, _, em := newTestService()
	stock.reserveErr = &ledger.InsufficientStockError{
		Shortfalls: []ledger.Shortfall{{SKU: "sku-a", Requested: 2, Available: 1}},
	}

	_, err := svc.Create(context.Background(), CreateInput{
		BuyerID:   "buyer-1",
		OrderType: TypeOnline,
		Summary:   bundleSummary(),
	})
	var ise *ledger.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("want InsufficientStockError, got %v", err)
	}
	if len(store.orders) != 0 {
		t.Error("order persisted despite failed reservation")
	}
	if len(em.types) != 0 {
		t.Errorf("events emitted on failure: %v", em.types)
	}
}

func TestVerify(t *testing.T) {
	svc, store, _, _, _, _ := newTestService()
	store.orders["o1"] = &Order{ID: "o1", VerificationCode: "12345678", Status: StatusPendingVerification}

	o, err := svc.Verify(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if o.ID != "o1" {
		t.Errorf("got order %s", o.ID)
	}

	// kode dari order yang sudah confirmed = InvalidState, bukan NotFound
	store.orders["o1"].Status = StatusConfirmed
	if _, err := svc.Verify(context.Background(), "12345678"); !errors.Is(err, ErrNotVerifiable) {
		t.Errorf("want ErrNotVerifiable, got %v", err)
	}

	if _, err := svc.Verify(context.Background(), "00000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestConfirmDeductsEveryItem(t *testing.T) {
	svc, store, stock, _, _, em := newTestService()
	store.orders["o1"] = &Order{
		ID: "o1", VendorID: "vendor-1", Status: StatusPendingVerification,
		Items: []Item{
			{SKUID: "sku-a", Quantity: 2},
			{SKUID: "sku-b", Quantity: 3},
		},
	}

	o, err := svc.Confirm(context.Background(), "o1")
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if o.Status != StatusConfirmed {
		t.Errorf("status = %s", o.Status)
	}
	if len(stock.ops) != 2 || stock.ops[0].op != "deduct" || stock.ops[1].qty != 3 {
		t.Errorf("ops = %+v", stock.ops)
	}
	if len(em.types) != 1 || em.types[0] != events.EventOrderConfirmed {
		t.Errorf("events = %v", em.types)
	}
}

func TestConfirmRejectsWrongState(t *testing.T) {
	svc, store, _, _, _, _ := newTestService()
	store.orders["o1"] = &Order{ID: "o1", Status: StatusConfirmed}

	_, err := svc.Confirm(context.Background(), "o1")
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("want StateError, got %v", err)
	}
}

func TestConfirmAbortsWhenDeductFails(t *testing.T) {
	svc, store, stock, _, _, em := newTestService()
	// sku-b kena damage adjustment duluan
	stock.failSKU = "sku-b"
	store.orders["o1"] = &Order{
		ID: "o1", VendorID: "vendor-1", Status: StatusPendingVerification,
		Items: []Item{
			{SKUID: "sku-a", Quantity: 2},
			{SKUID: "sku-b", Quantity: 3},
		},
	}

	_, err := svc.Confirm(context.Background(), "o1")
	var ise *ledger.InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("want InsufficientStockError, got %v", err)
	}
	if got := store.orders["o1"].Status; got != StatusPendingVerification {
		t.Errorf("status = %s, want pending_verification", got)
	}
	if len(em.types) != 0 {
		t.Errorf("events emitted on failed confirm: %v", em.types)
	}
}

func TestPartialRejectReleasesAndReassign(t *testing.T) {
	svc, store, stock, _, _, em := newTestService()
	store.orders["o1"] = &Order{
		ID: "o1", VendorID: "vendor-1", Status: StatusPendingVerification,
		Items: []Item{{SKUID: "sku-a", Quantity: 4}},
	}

	o, err := svc.PartialReject(context.Background(), "o1", "stok rusak")
	if err != nil {
		t.Fatalf("PartialReject: %v", err)
	}
	if o.Status != StatusPartiallyRejected {
		t.Errorf("status = %s", o.Status)
	}
	if len(stock.ops) != 1 || stock.ops[0] != (stockOp{"release", "sku-a", "vendor-1", 4}) {
		t.Errorf("ops = %+v", stock.ops)
	}
	if len(em.types) != 1 || em.types[0] != events.EventOrderRejected {
		t.Errorf("events = %v", em.types)
	}

	// reassign tidak mengulang alokasi stok
	o, err = svc.Reassign(context.Background(), "o1", "vendor-2", "jl. baru 12")
	if err != nil {
		t.Fatalf("Reassign: %v", err)
	}
	if o.VendorID != "vendor-2" || o.PickupAddress != "jl. baru 12" {
		t.Errorf("reassign not applied: %+v", o)
	}
	if len(stock.ops) != 1 {
		t.Errorf("stock touched on reassign: %+v", stock.ops)
	}
}

func TestReassignRequiresPartiallyRejected(t *testing.T) {
	svc, store, _, _, _, _ := newTestService()
	store.orders["o1"] = &Order{ID: "o1", Status: StatusPendingVerification}

	_, err := svc.Reassign(context.Background(), "o1", "vendor-2", "")
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("want StateError, got %v", err)
	}
}

func TestCancelGuards(t *testing.T) {
	svc, store, stock, _, _, _ := newTestService()
	store.orders["o1"] = &Order{
		ID: "o1", VendorID: "vendor-1", Status: StatusPendingVerification,
		Items: []Item{{SKUID: "sku-a", Quantity: 1}},
	}

	if _, err := svc.Cancel(context.Background(), "o1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if len(stock.ops) != 1 || stock.ops[0].op != "release" {
		t.Errorf("ops = %+v", stock.ops)
	}

	// cancel kedua kali
	if _, err := svc.Cancel(context.Background(), "o1"); !errors.Is(err, ErrAlreadyCancelled) {
		t.Errorf("want ErrAlreadyCancelled, got %v", err)
	}

	// dari confirmed tidak boleh
	store.orders["o2"] = &Order{ID: "o2", Status: StatusConfirmed}
	_, err := svc.Cancel(context.Background(), "o2")
	var se *StateError
	if !errors.As(err, &se) {
		t.Errorf("want StateError, got %v", err)
	}
}

func TestGenerateBill(t *testing.T) {
	svc, store, stock, _, cash, em := newTestService()
	store.orders["o1"] = &Order{
		ID: "o1", VendorID: "vendor-1", OrderType: TypeWalkIn,
		Status: StatusPendingVerification,
		Items:  []Item{{SKUID: "sku-a", Quantity: 2}},
	}

	o, err := svc.GenerateBill(context.Background(), "o1", 30_000)
	if err != nil {
		t.Fatalf("GenerateBill: %v", err)
	}
	if o.Status != StatusConfirmed {
		t.Errorf("status = %s", o.Status)
	}
	if len(stock.ops) != 1 || stock.ops[0].op != "deduct" {
		t.Errorf("ops = %+v", stock.ops)
	}
	if len(cash.credits) != 1 || cash.credits[0] != 30_000 || cash.vendors[0] != "vendor-1" {
		t.Errorf("cash = %v %v", cash.vendors, cash.credits)
	}
	if len(em.types) != 2 || em.types[0] != events.EventBillGenerated {
		t.Errorf("events = %v", em.types)
	}

	// sudah confirmed, tidak boleh dobel
	_, err = svc.GenerateBill(context.Background(), "o1", 30_000)
	var se *StateError
	if !errors.As(err, &se) {
		t.Errorf("want StateError, got %v", err)
	}
}

func TestGenerateBillOnlineRejected(t *testing.T) {
	svc, store, _, _, cash, _ := newTestService()
	store.orders["o1"] = &Order{ID: "o1", OrderType: TypeOnline, Status: StatusPendingVerification}

	if _, err := svc.GenerateBill(context.Background(), "o1", 10_000); !errors.Is(err, ErrNotWalkIn) {
		t.Fatalf("want ErrNotWalkIn, got %v", err)
	}
	if len(cash.credits) != 0 {
		t.Error("cash credited for online order")
	}
}

func TestLinkPaymentConsumesPromo(t *testing.T) {
	svc, store, _, pc, _, _ := newTestService()
	store.orders["o1"] = &Order{
		ID: "o1", BuyerID: "buyer-1", PromoCodeID: "code-1",
		Status: StatusPendingVerification,
	}

	err := svc.LinkPayment(context.Background(), events.PaymentSucceededPayload{
		PaymentRef: "pi_123", OrderID: "o1", AmountPaise: 45_000,
	})
	if err != nil {
		t.Fatalf("LinkPayment: %v", err)
	}
	if len(store.payments) != 1 || store.payments[0].ProviderRef != "pi_123" {
		t.Errorf("payments = %+v", store.payments)
	}
	if len(pc.consumed) != 1 || pc.consumed[0] != ([2]string{"code-1", "buyer-1"}) {
		t.Errorf("consumed = %v", pc.consumed)
	}
}

func TestLinkPaymentReplayedEventIsIdempotent(t *testing.T) {
	svc, store, _, pc, _, _ := newTestService()
	store.orders["o1"] = &Order{
		ID: "o1", BuyerID: "buyer-1", PromoCodeID: "code-1",
		Status: StatusPendingVerification,
	}
	ev := events.PaymentSucceededPayload{
		PaymentRef: "pi_123", OrderID: "o1", AmountPaise: 45_000,
	}

	if err := svc.LinkPayment(context.Background(), ev); err != nil {
		t.Fatalf("LinkPayment pertama: %v", err)
	}
	// Event yang sama datang lagi (lolos dedup redis): tidak boleh error
	// supaya consumer bisa commit, dan promo tidak dikonsumsi dua kali.
	if err := svc.LinkPayment(context.Background(), ev); err != nil {
		t.Fatalf("LinkPayment ulang: %v", err)
	}
	if len(store.payments) != 1 {
		t.Errorf("payments = %+v", store.payments)
	}
	if len(pc.consumed) != 1 {
		t.Errorf("consumed = %v", pc.consumed)
	}
}

func TestLinkPaymentPromoRejectedStillLinks(t *testing.T) {
	svc, store, _, pc, _, _ := newTestService()
	pc.err = &promo.RejectError{Reason: promo.ReasonLimitReached}
	store.orders["o1"] = &Order{
		ID: "o1", BuyerID: "buyer-1", PromoCodeID: "code-1",
		Status: StatusPendingVerification,
	}

	err := svc.LinkPayment(context.Background(), events.PaymentSucceededPayload{
		PaymentRef: "pi_456", OrderID: "o1", AmountPaise: 45_000,
	})
	if err != nil {
		t.Fatalf("LinkPayment: %v", err)
	}
	if len(store.payments) != 1 {
		t.Errorf("payments = %+v", store.payments)
	}
}

func TestLinkPaymentWithoutPromo(t *testing.T) {
	svc, store, _, pc, _, _ := newTestService()
	store.orders["o1"] = &Order{ID: "o1", BuyerID: "buyer-1", Status: StatusPendingVerification}

	if err := svc.LinkPayment(context.Background(), events.PaymentSucceededPayload{
		PaymentRef: "pi_789", OrderID: "o1",
	}); err != nil {
		t.Fatalf("LinkPayment: %v", err)
	}
	if len(pc.consumed) != 0 {
		t.Error("consume called without promo on order")
	}
}
