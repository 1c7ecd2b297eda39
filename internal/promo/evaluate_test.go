package promo

import (
	"errors"
	"testing"
	"time"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func activeBatch() Batch {
	return Batch{
		ID:            "b1",
		UsageScope:    ScopeGlobal,
		DiscountType:  DiscountFlat,
		DiscountValue: 10000,
		StartDate:     now.Add(-24 * time.Hour),
		EndDate:       now.Add(24 * time.Hour),
		Products:      []string{"p1"},
		IsActive:      true,
	}
}

func unusedCode() Code {
	return Code{ID: "c1", BatchID: "b1", Code: "SALE-AB12", Status: StatusUnused, UsageLimit: 1}
}

func wantReason(t *testing.T, err error, want Reason) {
	t.Helper()
	var rej *RejectError
	if !errors.As(err, &rej) {
		t.Fatalf("expected RejectError, got %v", err)
	}
	if rej.Reason != want {
		t.Fatalf("reason = %s, want %s", rej.Reason, want)
	}
}

func TestEvaluate_ReasonPipeline(t *testing.T) {
	lines := []CheckoutLine{{ProductID: "p1", SubtotalPaise: 50000}}

	cases := []struct {
		name   string
		code   func() Code
		batch  func() Batch
		buyer  string
		lines  []CheckoutLine
		at     time.Time
		reason Reason
	}{
		{
			name:   "inactive batch",
			batch:  func() Batch { b := activeBatch(); b.IsActive = false; return b },
			reason: ReasonInactive,
		},
		{
			name:   "not yet active",
			at:     now.Add(-48 * time.Hour),
			reason: ReasonNotYetActive,
		},
		{
			name:   "window passed",
			at:     now.Add(48 * time.Hour),
			reason: ReasonExpired,
		},
		{
			name:   "end date exclusive",
			at:     activeBatch().EndDate,
			reason: ReasonExpired,
		},
		{
			name:   "code already marked expired",
			code:   func() Code { c := unusedCode(); c.Status = StatusExpired; return c },
			reason: ReasonExpired,
		},
		{
			name:   "deactivated code",
			code:   func() Code { c := unusedCode(); c.Status = StatusDeactivated; return c },
			reason: ReasonDeactivated,
		},
		{
			name:   "usage limit reached",
			code:   func() Code { c := unusedCode(); c.UsageCount = 1; return c },
			reason: ReasonLimitReached,
		},
		{
			name:   "no eligible product",
			lines:  []CheckoutLine{{ProductID: "p9", SubtotalPaise: 50000}},
			reason: ReasonNotApplicable,
		},
		{
			name: "already redeemed by buyer",
			code: func() Code {
				c := unusedCode()
				c.UsageLimit = 100
				c.UsedBy = []string{"u1"}
				return c
			},
			batch:  func() Batch { b := activeBatch(); b.UsageScope = ScopePerUser; return b },
			buyer:  "u1",
			reason: ReasonAlreadyRedeemed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code := unusedCode()
			if tc.code != nil {
				code = tc.code()
			}
			batch := activeBatch()
			if tc.batch != nil {
				batch = tc.batch()
			}
			at := now
			if !tc.at.IsZero() {
				at = tc.at
			}
			ls := lines
			if tc.lines != nil {
				ls = tc.lines
			}

			_, err := Evaluate(code, batch, tc.buyer, ls, at)
			wantReason(t, err, tc.reason)
		})
	}
}

// Skenario dari desain: subtotal 500, FLAT 100 hanya utk P1; P1=400,
// P2=100. Diskon dihitung dari subtotal eligible saja.
func TestEvaluate_FlatCappedAtEligibleSubtotal(t *testing.T) {
	batch := activeBatch()
	batch.DiscountValue = 10000 // 100 dalam paise x100

	res, err := Evaluate(unusedCode(), batch, "", []CheckoutLine{
		{ProductID: "p1", SubtotalPaise: 40000},
		{ProductID: "p2", SubtotalPaise: 10000},
	}, now)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.EligiblePaise != 40000 {
		t.Errorf("eligible = %d, want 40000", res.EligiblePaise)
	}
	if res.DiscountPaise != 10000 {
		t.Errorf("discount = %d, want 10000", res.DiscountPaise)
	}
}

func TestEvaluate_FlatNeverExceedsEligible(t *testing.T) {
	batch := activeBatch()
	batch.DiscountValue = 99999

	res, err := Evaluate(unusedCode(), batch, "", []CheckoutLine{
		{ProductID: "p1", SubtotalPaise: 40000},
	}, now)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.DiscountPaise != 40000 {
		t.Errorf("discount = %d, want capped 40000", res.DiscountPaise)
	}
}

func TestEvaluate_PercentageOnEligibleOnly(t *testing.T) {
	batch := activeBatch()
	batch.DiscountType = DiscountPercentage
	batch.DiscountValue = 25

	res, err := Evaluate(unusedCode(), batch, "", []CheckoutLine{
		{ProductID: "p1", SubtotalPaise: 40000},
		{ProductID: "p2", SubtotalPaise: 100000}, // tidak eligible
	}, now)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.DiscountPaise != 10000 {
		t.Errorf("discount = %d, want 25%% of 40000", res.DiscountPaise)
	}
}

func TestEvaluate_PerUserScopeAllowsDifferentBuyers(t *testing.T) {
	batch := activeBatch()
	batch.UsageScope = ScopePerUser
	code := unusedCode()
	code.UsageLimit = 100
	code.UsedBy = []string{"u1"}

	if _, err := Evaluate(code, batch, "u2", []CheckoutLine{{ProductID: "p1", SubtotalPaise: 50000}}, now); err != nil {
		t.Fatalf("expected different buyer to pass, got %v", err)
	}
}
