package ledger

import (
	"errors"
	"testing"
	"time"
)

func lot(id string, qty, reserved int64, age time.Duration) Lot {
	return Lot{
		ID:        id,
		SKU:       "S",
		Vendor:    "V",
		Quantity:  qty,
		Reserved:  reserved,
		CreatedAt: time.Now().Add(-age),
	}
}

func applyReserve(lots []Lot, allocs []Alloc) []Lot {
	out := make([]Lot, len(lots))
	copy(out, lots)
	for _, a := range allocs {
		for i := range out {
			if out[i].ID == a.LotID {
				out[i].Reserved += a.Qty
			}
		}
	}
	return out
}

func applyRelease(lots []Lot, allocs []Alloc) []Lot {
	out := make([]Lot, len(lots))
	copy(out, lots)
	for _, a := range allocs {
		for i := range out {
			if out[i].ID == a.LotID {
				out[i].Reserved -= a.Qty
			}
		}
	}
	return out
}

func TestAvailable_ClampsNegativePerLot(t *testing.T) {
	// lot over-reserved tidak boleh mengurangi pool
	lots := []Lot{lot("a", 5, 8, time.Hour), lot("b", 10, 2, 0)}
	if got := Available(lots); got != 8 {
		t.Fatalf("available = %d, want 8", got)
	}
}

// Kebijakan alokasi: lot tertua dikonsumsi duluan. Bukan constraint DB,
// murni pilihan (FIFO), makanya dikunci lewat test.
func TestPlanReserve_OldestLotFirst(t *testing.T) {
	lots := []Lot{lot("old", 10, 0, time.Hour), lot("new", 5, 0, 0)}

	allocs, err := PlanReserve("S", lots, 12)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if len(allocs) != 2 {
		t.Fatalf("allocs = %v, want 2 entries", allocs)
	}
	if allocs[0].LotID != "old" || allocs[0].Qty != 10 {
		t.Errorf("first alloc = %+v, want old/10", allocs[0])
	}
	if allocs[1].LotID != "new" || allocs[1].Qty != 2 {
		t.Errorf("second alloc = %+v, want new/2", allocs[1])
	}
}

func TestPlanReserve_InsufficientLeavesNoPartial(t *testing.T) {
	lots := []Lot{lot("a", 10, 0, time.Hour), lot("b", 5, 0, 0)}

	allocs, err := PlanReserve("S", lots, 16)
	if allocs != nil {
		t.Fatalf("expected no allocs on failure, got %v", allocs)
	}
	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if len(ise.Shortfalls) != 1 || ise.Shortfalls[0].Requested != 16 || ise.Shortfalls[0].Available != 15 {
		t.Errorf("shortfall = %+v", ise.Shortfalls)
	}
}

func TestPlanReserve_SkipsFullyReservedLots(t *testing.T) {
	lots := []Lot{lot("full", 4, 4, time.Hour), lot("open", 6, 1, 0)}

	allocs, err := PlanReserve("S", lots, 5)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if len(allocs) != 1 || allocs[0].LotID != "open" || allocs[0].Qty != 5 {
		t.Fatalf("allocs = %+v, want single open/5", allocs)
	}
}

// Skenario dari desain: A(10,0) + B(5,0), reserve 12 lalu release 3.
// Release memakai urutan yang sama dengan reserve, jadi A turun duluan.
func TestReserveThenRelease_Scenario(t *testing.T) {
	lots := []Lot{lot("A", 10, 0, time.Hour), lot("B", 5, 0, 0)}

	allocs, err := PlanReserve("S", lots, 12)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	lots = applyReserve(lots, allocs)
	if lots[0].Reserved != 10 || lots[1].Reserved != 2 {
		t.Fatalf("after reserve: A=%d B=%d, want 10/2", lots[0].Reserved, lots[1].Reserved)
	}

	lots = applyRelease(lots, PlanRelease(lots, 3))
	if lots[0].Reserved != 7 || lots[1].Reserved != 2 {
		t.Fatalf("after release: A=%d B=%d, want 7/2", lots[0].Reserved, lots[1].Reserved)
	}
}

// Hukum round-trip: reserve qty lalu release qty mengembalikan reserved
// ke nilai awal, berapa pun jumlah lot-nya.
func TestReserveReleaseRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		lots []Lot
		qty  int64
	}{
		{"single lot", []Lot{lot("a", 20, 3, time.Hour)}, 7},
		{"two lots", []Lot{lot("a", 10, 0, time.Hour), lot("b", 5, 0, 0)}, 12},
		{"three lots partial", []Lot{lot("a", 4, 1, 3 * time.Hour), lot("b", 4, 0, 2 * time.Hour), lot("c", 4, 2, time.Hour)}, 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := make(map[string]int64)
			for _, l := range tc.lots {
				before[l.ID] = l.Reserved
			}

			allocs, err := PlanReserve("S", tc.lots, tc.qty)
			if err != nil {
				t.Fatalf("reserve: %v", err)
			}
			after := applyReserve(tc.lots, allocs)
			after = applyRelease(after, PlanRelease(after, tc.qty))

			for _, l := range after {
				if l.Reserved != before[l.ID] {
					t.Errorf("lot %s reserved = %d, want %d", l.ID, l.Reserved, before[l.ID])
				}
				if l.Reserved < 0 {
					t.Errorf("lot %s reserved negative", l.ID)
				}
			}
		})
	}
}

func TestPlanRelease_OverReleaseClampsAtZero(t *testing.T) {
	lots := []Lot{lot("a", 10, 2, time.Hour), lot("b", 5, 1, 0)}

	released := applyRelease(lots, PlanRelease(lots, 99))
	for _, l := range released {
		if l.Reserved != 0 {
			t.Errorf("lot %s reserved = %d, want 0", l.ID, l.Reserved)
		}
	}
}

func TestPlanDeduct_DropsQuantityAndReservedTogether(t *testing.T) {
	lots := []Lot{lot("a", 10, 10, time.Hour), lot("b", 5, 2, 0)}

	allocs, err := PlanDeduct("S", lots, 12)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if len(allocs) != 2 {
		t.Fatalf("allocs = %+v", allocs)
	}
	if allocs[0].Qty != 10 || allocs[0].ReservedDrop != 10 {
		t.Errorf("lot a alloc = %+v, want qty 10 drop 10", allocs[0])
	}
	// lot b cuma punya 2 reserved: drop <= reserved
	if allocs[1].Qty != 2 || allocs[1].ReservedDrop != 2 {
		t.Errorf("lot b alloc = %+v, want qty 2 drop 2", allocs[1])
	}
}

func TestPlanDeduct_ReservedDropNeverExceedsReserved(t *testing.T) {
	lots := []Lot{lot("a", 10, 3, time.Hour)}

	allocs, err := PlanDeduct("S", lots, 8)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if allocs[0].Qty != 8 || allocs[0].ReservedDrop != 3 {
		t.Fatalf("alloc = %+v, want qty 8 drop 3", allocs[0])
	}
}

// Damage ticket bisa memotong stok di bawah jumlah yang sudah di-reserve;
// deduct berikutnya harus gagal utuh, bukan parsial.
func TestPlanDeduct_FailsWhenQuantityBelowRequested(t *testing.T) {
	lots := []Lot{lot("a", 5, 8, time.Hour)}

	allocs, err := PlanDeduct("S", lots, 8)
	if allocs != nil {
		t.Fatalf("expected nil allocs, got %v", allocs)
	}
	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if ise.Shortfalls[0].Available != 5 {
		t.Errorf("available = %d, want 5", ise.Shortfalls[0].Available)
	}
}
