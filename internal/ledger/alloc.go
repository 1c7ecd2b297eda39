package ledger

// Planner murni di atas slice lot. Caller wajib mengirim lots yang sudah
// terurut dari yang tertua (ORDER BY created_at). Urutan itu sekaligus
// kebijakan alokasi: stok tertua dikonsumsi duluan, dan release memakai
// urutan yang sama dengan reserve.

type Alloc struct {
	LotID string
	Qty   int64
}

type DeductAlloc struct {
	LotID        string
	Qty          int64 // pengurangan quantity
	ReservedDrop int64 // pengurangan reserved, <= Qty dan <= reserved lot
}

// Available menjumlahkan (quantity - reserved) per lot, di-clamp ke 0
// sebelum dijumlah supaya lot yang over-reserved tidak mengurangi pool.
func Available(lots []Lot) int64 {
	var sum int64
	for _, l := range lots {
		if avail := l.Quantity - l.Reserved; avail > 0 {
			sum += avail
		}
	}
	return sum
}

// PlanReserve membagi qty ke lot-lot secara greedy. Gagal total kalau pool
// kurang: tidak ada alokasi parsial yang bocor ke caller.
func PlanReserve(sku string, lots []Lot, qty int64) ([]Alloc, error) {
	remaining := qty
	allocs := make([]Alloc, 0, len(lots))
	for _, l := range lots {
		if remaining == 0 {
			break
		}
		avail := l.Quantity - l.Reserved
		if avail <= 0 {
			continue
		}
		take := avail
		if take > remaining {
			take = remaining
		}
		allocs = append(allocs, Alloc{LotID: l.ID, Qty: take})
		remaining -= take
	}
	if remaining > 0 {
		return nil, &InsufficientStockError{Shortfalls: []Shortfall{
			{SKU: sku, Requested: qty, Available: qty - remaining},
		}}
	}
	return allocs, nil
}

// PlanRelease mengembalikan reservasi lot-per-lot, urutan sama dengan
// reserve. Over-release di-clamp: reserved tidak pernah jadi negatif.
func PlanRelease(lots []Lot, qty int64) []Alloc {
	remaining := qty
	allocs := make([]Alloc, 0, len(lots))
	for _, l := range lots {
		if remaining == 0 {
			break
		}
		if l.Reserved <= 0 {
			continue
		}
		take := l.Reserved
		if take > remaining {
			take = remaining
		}
		allocs = append(allocs, Alloc{LotID: l.ID, Qty: take})
		remaining -= take
	}
	return allocs
}

// PlanDeduct mengubah reservasi jadi pengurangan permanen: quantity turun
// sebesar take, reserved ikut turun sebesar min(take, reserved).
func PlanDeduct(sku string, lots []Lot, qty int64) ([]DeductAlloc, error) {
	var total int64
	for _, l := range lots {
		total += l.Quantity
	}
	if total < qty {
		return nil, &InsufficientStockError{Shortfalls: []Shortfall{
			{SKU: sku, Requested: qty, Available: total},
		}}
	}

	remaining := qty
	allocs := make([]DeductAlloc, 0, len(lots))
	for _, l := range lots {
		if remaining == 0 {
			break
		}
		if l.Quantity <= 0 {
			continue
		}
		take := l.Quantity
		if take > remaining {
			take = remaining
		}
		drop := take
		if drop > l.Reserved {
			drop = l.Reserved
		}
		allocs = append(allocs, DeductAlloc{LotID: l.ID, Qty: take, ReservedDrop: drop})
		remaining -= take
	}
	return allocs, nil
}
