package promo

import (
	"errors"
	"time"
)

var ErrBatchNotFound = errors.New("promo batch not found")

const (
	ScopePerUser = "PER_USER" // satu kode, banyak user, masing-masing sekali
	ScopeGlobal  = "GLOBAL"   // kuota pemakaian total utk kode itu

	DiscountPercentage = "PERCENTAGE"
	DiscountFlat       = "FLAT"

	StatusUnused      = "unused"
	StatusUsed        = "used"
	StatusExpired     = "expired"
	StatusDeactivated = "deactivated"
)

type Batch struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	BaseInput     string    `json:"base_input"`
	UsageScope    string    `json:"usage_scope"`
	DiscountType  string    `json:"discount_type"`
	DiscountValue int64     `json:"discount_value"` // persen atau paise, tergantung tipe
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Products      []string  `json:"products"`
	IsActive      bool      `json:"is_active"`
}

type Code struct {
	ID         string   `json:"id"`
	BatchID    string   `json:"batch_id"`
	Code       string   `json:"code"`
	Status     string   `json:"status"`
	UsageLimit int64    `json:"usage_limit"`
	UsageCount int64    `json:"usage_count"`
	UsedBy     []string `json:"-"`
}

// Reason = alasan spesifik penolakan promo; dipetakan apa adanya ke client.
type Reason string

const (
	ReasonNotFound        Reason = "NOT_FOUND"
	ReasonInactive        Reason = "INACTIVE"
	ReasonNotYetActive    Reason = "NOT_YET_ACTIVE"
	ReasonExpired         Reason = "EXPIRED"
	ReasonDeactivated     Reason = "DEACTIVATED"
	ReasonLimitReached    Reason = "LIMIT_REACHED"
	ReasonNotApplicable   Reason = "NOT_APPLICABLE"
	ReasonAlreadyRedeemed Reason = "ALREADY_REDEEMED"
)

type RejectError struct {
	Reason Reason
}

func (e *RejectError) Error() string { return "promo rejected: " + string(e.Reason) }

func reject(r Reason) error { return &RejectError{Reason: r} }
