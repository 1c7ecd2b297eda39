package promo

import "time"

// CheckoutLine = potongan minimal dari checkout summary yang dibutuhkan
// promo: produk + subtotal line itu.
type CheckoutLine struct {
	ProductID     string
	SubtotalPaise int64
}

type Result struct {
	Code          Code
	Batch         Batch
	DiscountPaise int64
	EligiblePaise int64
}

// Evaluate menjalankan pipeline validasi. Urutan cek fix, tiap kegagalan
// alasan yang berbeda. Fungsi murni: clock disuntik biar gampang dites.
func Evaluate(code Code, batch Batch, buyer string, lines []CheckoutLine, now time.Time) (*Result, error) {
	if !batch.IsActive {
		return nil, reject(ReasonInactive)
	}
	if now.Before(batch.StartDate) {
		return nil, reject(ReasonNotYetActive)
	}
	if !now.Before(batch.EndDate) || code.Status == StatusExpired {
		return nil, reject(ReasonExpired)
	}
	if code.Status == StatusDeactivated {
		return nil, reject(ReasonDeactivated)
	}
	if code.UsageCount >= code.UsageLimit {
		return nil, reject(ReasonLimitReached)
	}

	// diskon hanya berlaku utk line yang produknya ada di batch
	eligible := eligibleSubtotal(batch, lines)
	if eligible <= 0 {
		return nil, reject(ReasonNotApplicable)
	}

	if batch.UsageScope == ScopePerUser {
		for _, u := range code.UsedBy {
			if u == buyer {
				return nil, reject(ReasonAlreadyRedeemed)
			}
		}
	}

	var discount int64
	switch batch.DiscountType {
	case DiscountPercentage:
		discount = eligible * batch.DiscountValue / 100
	default:
		discount = batch.DiscountValue
	}
	if discount > eligible {
		discount = eligible
	}
	if discount <= 0 {
		return nil, reject(ReasonNotApplicable)
	}

	return &Result{Code: code, Batch: batch, DiscountPaise: discount, EligiblePaise: eligible}, nil
}

func eligibleSubtotal(batch Batch, lines []CheckoutLine) int64 {
	inBatch := make(map[string]bool, len(batch.Products))
	for _, p := range batch.Products {
		inBatch[p] = true
	}
	var sum int64
	for _, l := range lines {
		if inBatch[l.ProductID] {
			sum += l.SubtotalPaise
		}
	}
	return sum
}
