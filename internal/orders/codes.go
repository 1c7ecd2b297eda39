package orders

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// 8 digit numerik, gampang dibacakan pembeli di lokasi pickup.
func newVerificationCode() string {
	return fmt.Sprintf("%08d", rand.IntN(100_000_000))
}

func newOrderCode(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%04d", now.UnixMilli(), rand.IntN(10_000))
}
