package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-retail-settlement.git/internal/notify"
	"github.com/ariefcatur/go-retail-settlement.git/internal/postgres"
)

// Repo = Inventory Ledger. Semua mutasi multi-baris lewat scope TxRunner;
// kalau dipanggil dari scope order yang sudah jalan, otomatis bergabung.
type Repo struct {
	Pool              *pgxpool.Pool
	Tx                *postgres.TxRunner
	Notifier          notify.Notifier
	LowStockThreshold int64
}

const selectLotsForUpdate = `
	SELECT id, sku_id, COALESCE(vendor_id::text, ''), quantity, reserved, created_at
	FROM inventory_lots
	WHERE sku_id = $1 AND vendor_id IS NOT DISTINCT FROM NULLIF($2, '')::uuid
	ORDER BY created_at, id
	FOR UPDATE`

func (r *Repo) lotsForUpdate(ctx context.Context, sku, vendor string) ([]Lot, error) {
	q := postgres.Querier(ctx, r.Pool)
	rows, err := q.Query(ctx, selectLotsForUpdate, sku, vendor)
	if err != nil {
		return nil, fmt.Errorf("lock lots: %w", err)
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.ID, &l.SKU, &l.Vendor, &l.Quantity, &l.Reserved, &l.CreatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

// CheckAvailable: read-only, dipakai Checkout Assembler. Selalu menjumlah
// state lot hidup, tidak ada cache denormalisasi.
func (r *Repo) CheckAvailable(ctx context.Context, sku, vendor string, qty int64) (bool, int64, error) {
	q := postgres.Querier(ctx, r.Pool)
	rows, err := q.Query(ctx, `
		SELECT quantity, reserved FROM inventory_lots
		WHERE sku_id = $1 AND vendor_id IS NOT DISTINCT FROM NULLIF($2, '')::uuid`,
		sku, vendor)
	if err != nil {
		return false, 0, fmt.Errorf("query lots: %w", err)
	}
	defer rows.Close()

	var available int64
	for rows.Next() {
		var quantity, reserved int64
		if err := rows.Scan(&quantity, &reserved); err != nil {
			return false, 0, err
		}
		if avail := quantity - reserved; avail > 0 {
			available += avail
		}
	}
	if err := rows.Err(); err != nil {
		return false, 0, err
	}
	if available < qty {
		return false, qty - available, nil
	}
	return true, 0, nil
}

func (r *Repo) Reserve(ctx context.Context, sku, vendor string, qty int64) error {
	return r.Tx.InTx(ctx, func(ctx context.Context) error {
		lots, err := r.lotsForUpdate(ctx, sku, vendor)
		if err != nil {
			return err
		}
		allocs, err := PlanReserve(sku, lots, qty)
		if err != nil {
			return err
		}
		q := postgres.Querier(ctx, r.Pool)
		for _, a := range allocs {
			if _, err := q.Exec(ctx, `
				UPDATE inventory_lots SET reserved = reserved + $2, updated_at = now()
				WHERE id = $1`, a.LotID, a.Qty); err != nil {
				return fmt.Errorf("reserve lot %s: %w", a.LotID, err)
			}
		}
		return nil
	})
}

func (r *Repo) Release(ctx context.Context, sku, vendor string, qty int64) error {
	return r.Tx.InTx(ctx, func(ctx context.Context) error {
		lots, err := r.lotsForUpdate(ctx, sku, vendor)
		if err != nil {
			return err
		}
		q := postgres.Querier(ctx, r.Pool)
		for _, a := range PlanRelease(lots, qty) {
			if _, err := q.Exec(ctx, `
				UPDATE inventory_lots SET reserved = reserved - $2, updated_at = now()
				WHERE id = $1`, a.LotID, a.Qty); err != nil {
				return fmt.Errorf("release lot %s: %w", a.LotID, err)
			}
		}
		return nil
	})
}

// Deduct mengubah reservasi jadi pengurangan permanen + entri audit sale.
// refID biasanya order id.
func (r *Repo) Deduct(ctx context.Context, sku, vendor string, qty int64, refID, reason string) error {
	return r.Tx.InTx(ctx, func(ctx context.Context) error {
		lots, err := r.lotsForUpdate(ctx, sku, vendor)
		if err != nil {
			return err
		}
		allocs, err := PlanDeduct(sku, lots, qty)
		if err != nil {
			return err
		}
		q := postgres.Querier(ctx, r.Pool)
		for _, a := range allocs {
			var newQty int64
			err := q.QueryRow(ctx, `
				UPDATE inventory_lots
				SET quantity = quantity - $2, reserved = reserved - $3, updated_at = now()
				WHERE id = $1
				RETURNING quantity`, a.LotID, a.Qty, a.ReservedDrop).Scan(&newQty)
			if err != nil {
				return fmt.Errorf("deduct lot %s: %w", a.LotID, err)
			}
			if err := r.appendHistory(ctx, a.LotID, sku, vendor, a.Qty, EntrySale, reason, refID); err != nil {
				return err
			}
			r.queueLowStock(ctx, vendor, sku, newQty)
		}
		return nil
	})
}

// AddStock menambah stok platform (admin). Pakai lot platform tertua biar
// pool-nya tidak beranak tanpa perlu; kalau belum ada, buat lot baru.
func (r *Repo) AddStock(ctx context.Context, sku string, qty int64) (string, error) {
	var lotID string
	err := r.Tx.InTx(ctx, func(ctx context.Context) error {
		lots, err := r.lotsForUpdate(ctx, sku, "")
		if err != nil {
			return err
		}
		q := postgres.Querier(ctx, r.Pool)
		if len(lots) > 0 {
			lotID = lots[0].ID
			if _, err := q.Exec(ctx, `
				UPDATE inventory_lots SET quantity = quantity + $2, updated_at = now()
				WHERE id = $1`, lotID, qty); err != nil {
				return fmt.Errorf("add stock: %w", err)
			}
		} else {
			lotID = uuid.NewString()
			if _, err := q.Exec(ctx, `
				INSERT INTO inventory_lots (id, sku_id, vendor_id, quantity, reserved)
				VALUES ($1, $2, NULL, $3, 0)`, lotID, sku, qty); err != nil {
				return fmt.Errorf("create lot: %w", err)
			}
		}
		return r.appendHistory(ctx, lotID, sku, "", qty, EntryAdd, "stock added by admin", "")
	})
	return lotID, err
}

// Lots: read endpoint, tanpa lock.
func (r *Repo) Lots(ctx context.Context, sku, vendor string) ([]Lot, error) {
	q := postgres.Querier(ctx, r.Pool)
	rows, err := q.Query(ctx, `
		SELECT id, sku_id, COALESCE(vendor_id::text, ''), quantity, reserved, created_at
		FROM inventory_lots
		WHERE sku_id = $1 AND vendor_id IS NOT DISTINCT FROM NULLIF($2, '')::uuid
		ORDER BY created_at, id`, sku, vendor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.ID, &l.SKU, &l.Vendor, &l.Quantity, &l.Reserved, &l.CreatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (r *Repo) appendHistory(ctx context.Context, lotID, sku, vendor string, qty int64, entryType, reason, refID string) error {
	q := postgres.Querier(ctx, r.Pool)
	_, err := q.Exec(ctx, `
		INSERT INTO stock_history (id, lot_id, sku_id, vendor_id, quantity, entry_type, reason, ref_id)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, NULLIF($8, '')::uuid)`,
		uuid.NewString(), lotID, sku, vendor, qty, entryType, reason, refID)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// queueLowStock menjadwalkan notifikasi sesudah commit. Stok platform
// tidak dinotifikasi, hanya lot vendor.
func (r *Repo) queueLowStock(ctx context.Context, vendor, sku string, quantity int64) {
	if vendor == "" || quantity >= r.LowStockThreshold {
		return
	}
	postgres.AfterCommit(ctx, func() {
		r.Notifier.LowStock(vendor, sku, quantity)
	})
}
