package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-retail-settlement.git/internal/postgres"
)

func (r *Repo) CreateDamageTicket(ctx context.Context, lotID, ticketType, reason string, qty int64) (string, error) {
	if ticketType != "damage" && ticketType != "lost" {
		return "", fmt.Errorf("unknown ticket type %q", ticketType)
	}
	q := postgres.Querier(ctx, r.Pool)

	var sku, vendor string
	err := q.QueryRow(ctx, `
		SELECT sku_id, COALESCE(vendor_id::text, '') FROM inventory_lots WHERE id = $1`, lotID).
		Scan(&sku, &vendor)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("lot %s: %w", lotID, ErrNotFound)
	}
	if err != nil {
		return "", err
	}

	ticketID := uuid.NewString()
	_, err = q.Exec(ctx, `
		INSERT INTO damage_tickets (id, lot_id, sku_id, vendor_id, quantity, ticket_type, reason, status)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, $6, $7, $8)`,
		ticketID, lotID, sku, vendor, qty, ticketType, reason, TicketPending)
	if err != nil {
		return "", fmt.Errorf("create damage ticket: %w", err)
	}
	return ticketID, nil
}

// ApproveDamage memotong quantity lot (clamp di 0). Reservasi order yang
// sedang jalan tidak ikut diturunkan; confirm-nya nanti yang gagal
// InsufficientStock kalau stok sudah tidak cukup.
func (r *Repo) ApproveDamage(ctx context.Context, ticketID string) error {
	return r.Tx.InTx(ctx, func(ctx context.Context) error {
		q := postgres.Querier(ctx, r.Pool)

		var t DamageTicket
		err := q.QueryRow(ctx, `
			SELECT id, lot_id, sku_id, COALESCE(vendor_id::text, ''), quantity, ticket_type, status
			FROM damage_tickets WHERE id = $1 FOR UPDATE`, ticketID).
			Scan(&t.ID, &t.LotID, &t.SKU, &t.Vendor, &t.Quantity, &t.Type, &t.Status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("damage ticket %s: %w", ticketID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if t.Status != TicketPending {
			return fmt.Errorf("ticket already %s: %w", t.Status, ErrInvalidState)
		}

		var newQty int64
		err = q.QueryRow(ctx, `
			UPDATE inventory_lots
			SET quantity = GREATEST(0, quantity - $2), updated_at = now()
			WHERE id = $1
			RETURNING quantity`, t.LotID, t.Quantity).Scan(&newQty)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lot %s: %w", t.LotID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		if _, err := q.Exec(ctx, `
			UPDATE damage_tickets SET status = $2 WHERE id = $1`, ticketID, TicketApproved); err != nil {
			return err
		}
		if err := r.appendHistory(ctx, t.LotID, t.SKU, t.Vendor, t.Quantity, EntryDamage,
			fmt.Sprintf("%s ticket approved", t.Type), ticketID); err != nil {
			return err
		}
		r.queueLowStock(ctx, t.Vendor, t.SKU, newQty)
		return nil
	})
}
