package orders

import "fmt"

type Status string

const (
	// Online order yang masih menunggu konfirmasi gateway. Tidak
	// dimodelkan lebih jauh di core.
	StatusAwaitingPayment Status = "awaiting_payment"

	StatusPendingVerification Status = "pending_verification"
	StatusConfirmed           Status = "confirmed"
	StatusPartiallyRejected   Status = "partially_rejected"
	StatusCancelled           Status = "cancelled"
	StatusCompleted           Status = "completed"
)

// Tabel transisi eksplisit: satu tempat utk semua guard status, tidak ada
// lagi cek string tersebar di handler.
var validNext = map[Status]map[Status]bool{
	StatusAwaitingPayment:     {StatusPendingVerification: true, StatusCancelled: true},
	StatusPendingVerification: {StatusConfirmed: true, StatusPartiallyRejected: true, StatusCancelled: true},
	StatusConfirmed:           {StatusCompleted: true},
	StatusPartiallyRejected:   {},
	StatusCancelled:           {},
	StatusCompleted:           {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// StateError = transisi ilegal; membawa from/to biar pesan ke client jelas.
type StateError struct {
	From Status
	To   Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

func transition(from, to Status) error {
	if !CanTransition(from, to) {
		return &StateError{From: from, To: to}
	}
	return nil
}
