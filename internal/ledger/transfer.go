package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-retail-settlement.git/internal/postgres"
)

// TransferToVendor memotong lot platform dan membuat PendingTransfer.
// Stok vendor baru dibuat saat vendor menerima.
func (r *Repo) TransferToVendor(ctx context.Context, sku, vendor string, qty int64) (string, error) {
	transferID := uuid.NewString()
	err := r.Tx.InTx(ctx, func(ctx context.Context) error {
		lots, err := r.lotsForUpdate(ctx, sku, "")
		if err != nil {
			return err
		}
		// transfer memotong stok on-hand platform, bukan reservasi
		var total int64
		for _, l := range lots {
			total += l.Quantity
		}
		if total < qty {
			return &InsufficientStockError{Shortfalls: []Shortfall{
				{SKU: sku, Requested: qty, Available: total},
			}}
		}

		q := postgres.Querier(ctx, r.Pool)
		remaining := qty
		for _, l := range lots {
			if remaining == 0 {
				break
			}
			take := l.Quantity
			if take > remaining {
				take = remaining
			}
			if take <= 0 {
				continue
			}
			if _, err := q.Exec(ctx, `
				UPDATE inventory_lots SET quantity = quantity - $2, updated_at = now()
				WHERE id = $1`, l.ID, take); err != nil {
				return fmt.Errorf("cut platform lot %s: %w", l.ID, err)
			}
			if err := r.appendHistory(ctx, l.ID, sku, "", take, EntryTransferInitiated,
				fmt.Sprintf("transfer %d units to vendor %s", take, vendor), transferID); err != nil {
				return err
			}
			remaining -= take
		}

		if _, err := q.Exec(ctx, `
			INSERT INTO pending_transfers (id, sku_id, vendor_id, quantity, status)
			VALUES ($1, $2, $3, $4, $5)`,
			transferID, sku, vendor, qty, TransferPending); err != nil {
			return fmt.Errorf("create pending transfer: %w", err)
		}
		return nil
	})
	return transferID, err
}

func (r *Repo) AcceptTransfer(ctx context.Context, transferID string) error {
	return r.Tx.InTx(ctx, func(ctx context.Context) error {
		t, err := r.transferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != TransferPending {
			return fmt.Errorf("transfer already %s: %w", t.Status, ErrInvalidState)
		}

		q := postgres.Querier(ctx, r.Pool)
		lots, err := r.lotsForUpdate(ctx, t.SKU, t.Vendor)
		if err != nil {
			return err
		}
		var lotID string
		var newQty int64
		if len(lots) > 0 {
			lotID = lots[0].ID
			if err := q.QueryRow(ctx, `
				UPDATE inventory_lots SET quantity = quantity + $2, updated_at = now()
				WHERE id = $1 RETURNING quantity`, lotID, t.Quantity).Scan(&newQty); err != nil {
				return fmt.Errorf("top up vendor lot: %w", err)
			}
		} else {
			lotID = uuid.NewString()
			newQty = t.Quantity
			if _, err := q.Exec(ctx, `
				INSERT INTO inventory_lots (id, sku_id, vendor_id, quantity, reserved)
				VALUES ($1, $2, $3, $4, 0)`, lotID, t.SKU, t.Vendor, t.Quantity); err != nil {
				return fmt.Errorf("create vendor lot: %w", err)
			}
		}

		if _, err := q.Exec(ctx, `
			UPDATE pending_transfers SET status = $2, responded_at = now()
			WHERE id = $1`, transferID, TransferAccepted); err != nil {
			return err
		}
		if err := r.appendHistory(ctx, lotID, t.SKU, t.Vendor, t.Quantity, EntryTransferAccepted,
			fmt.Sprintf("vendor accepted transfer of %d units", t.Quantity), transferID); err != nil {
			return err
		}
		r.queueLowStock(ctx, t.Vendor, t.SKU, newQty)
		return nil
	})
}

// RejectTransfer mengembalikan quantity ke lot platform asal.
func (r *Repo) RejectTransfer(ctx context.Context, transferID, reason string) error {
	if reason == "" {
		reason = "no reason provided"
	}
	return r.Tx.InTx(ctx, func(ctx context.Context) error {
		t, err := r.transferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.Status != TransferPending {
			return fmt.Errorf("transfer already %s: %w", t.Status, ErrInvalidState)
		}

		q := postgres.Querier(ctx, r.Pool)
		lots, err := r.lotsForUpdate(ctx, t.SKU, "")
		if err != nil {
			return err
		}
		var lotID string
		if len(lots) > 0 {
			lotID = lots[0].ID
			if _, err := q.Exec(ctx, `
				UPDATE inventory_lots SET quantity = quantity + $2, updated_at = now()
				WHERE id = $1`, lotID, t.Quantity); err != nil {
				return fmt.Errorf("restore platform lot: %w", err)
			}
		} else {
			lotID = uuid.NewString()
			if _, err := q.Exec(ctx, `
				INSERT INTO inventory_lots (id, sku_id, vendor_id, quantity, reserved)
				VALUES ($1, $2, NULL, $3, 0)`, lotID, t.SKU, t.Quantity); err != nil {
				return fmt.Errorf("recreate platform lot: %w", err)
			}
		}

		if _, err := q.Exec(ctx, `
			UPDATE pending_transfers SET status = $2, rejection_reason = $3, responded_at = now()
			WHERE id = $1`, transferID, TransferRejected, reason); err != nil {
			return err
		}
		return r.appendHistory(ctx, lotID, t.SKU, "", t.Quantity, EntryTransferRejected,
			"vendor rejected transfer: "+reason, transferID)
	})
}

func (r *Repo) transferForUpdate(ctx context.Context, transferID string) (Transfer, error) {
	q := postgres.Querier(ctx, r.Pool)
	var t Transfer
	err := q.QueryRow(ctx, `
		SELECT id, sku_id, vendor_id::text, quantity, status, rejection_reason, created_at
		FROM pending_transfers WHERE id = $1 FOR UPDATE`, transferID).
		Scan(&t.ID, &t.SKU, &t.Vendor, &t.Quantity, &t.Status, &t.RejectionReason, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, fmt.Errorf("transfer %s: %w", transferID, ErrNotFound)
	}
	return t, err
}

func (r *Repo) PendingTransfers(ctx context.Context, vendor string) ([]Transfer, error) {
	q := postgres.Querier(ctx, r.Pool)
	rows, err := q.Query(ctx, `
		SELECT id, sku_id, vendor_id::text, quantity, status, rejection_reason, created_at, responded_at
		FROM pending_transfers
		WHERE vendor_id = $1
		ORDER BY created_at DESC`, vendor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.SKU, &t.Vendor, &t.Quantity, &t.Status,
			&t.RejectionReason, &t.CreatedAt, &t.RespondedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
