package cash

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-retail-settlement.git/internal/postgres"
)

// Saldo kas berjalan per vendor. Credit dipanggil dari scope generate-bill
// (ikut transaksi order); Debit berdiri sendiri.

var (
	ErrNotFound            = errors.New("cash entry not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type Entry struct {
	VendorID      string    `json:"vendor_id"`
	CashPaise     int64     `json:"cash_paise"`
	LastOrderID   string    `json:"last_order_id,omitempty"`
	LastSettledAt time.Time `json:"last_settled_at"`
}

type Deduction struct {
	ID          string    `json:"id"`
	VendorID    string    `json:"vendor_id"`
	AmountPaise int64     `json:"amount_paise"`
	ActorID     string    `json:"actor_id"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

type Repo struct {
	Pool *pgxpool.Pool
	Tx   *postgres.TxRunner
}

// Credit: upsert saldo vendor. Single-row, aman dipanggil di dalam
// maupun di luar scope transaksi order.
func (r *Repo) Credit(ctx context.Context, vendor string, amount int64, orderID string) error {
	q := postgres.Querier(ctx, r.Pool)
	_, err := q.Exec(ctx, `
		INSERT INTO cash_ledger (vendor_id, cash_paise, last_order_id, last_settled_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, now())
		ON CONFLICT (vendor_id) DO UPDATE SET
			cash_paise = cash_ledger.cash_paise + EXCLUDED.cash_paise,
			last_order_id = EXCLUDED.last_order_id,
			last_settled_at = now()`,
		vendor, amount, orderID)
	if err != nil {
		return fmt.Errorf("credit vendor %s: %w", vendor, err)
	}
	return nil
}

// Debit gagal kalau saldo bakal negatif; guard di WHERE, bukan di aplikasi.
func (r *Repo) Debit(ctx context.Context, vendor string, amount int64, reason, actor string) error {
	if reason == "" {
		reason = "cash deduction by admin"
	}
	return r.Tx.InTx(ctx, func(ctx context.Context) error {
		q := postgres.Querier(ctx, r.Pool)

		tag, err := q.Exec(ctx, `
			UPDATE cash_ledger
			SET cash_paise = cash_paise - $2, last_settled_at = now()
			WHERE vendor_id = $1 AND cash_paise >= $2`, vendor, amount)
		if err != nil {
			return fmt.Errorf("debit vendor %s: %w", vendor, err)
		}
		if tag.RowsAffected() == 0 {
			if _, err := r.Balance(ctx, vendor); err != nil {
				return err
			}
			return ErrInsufficientBalance
		}

		_, err = q.Exec(ctx, `
			INSERT INTO cash_deductions (id, vendor_id, amount_paise, actor_id, reason)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), vendor, amount, actor, reason)
		return err
	})
}

func (r *Repo) Balance(ctx context.Context, vendor string) (*Entry, error) {
	q := postgres.Querier(ctx, r.Pool)
	var e Entry
	err := q.QueryRow(ctx, `
		SELECT vendor_id, cash_paise, COALESCE(last_order_id::text, ''), last_settled_at
		FROM cash_ledger WHERE vendor_id = $1`, vendor).
		Scan(&e.VendorID, &e.CashPaise, &e.LastOrderID, &e.LastSettledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("vendor %s: %w", vendor, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repo) Deductions(ctx context.Context, vendor string) ([]Deduction, error) {
	q := postgres.Querier(ctx, r.Pool)
	rows, err := q.Query(ctx, `
		SELECT id, vendor_id, amount_paise, actor_id, reason, created_at
		FROM cash_deductions WHERE vendor_id = $1
		ORDER BY created_at DESC`, vendor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Deduction
	for rows.Next() {
		var d Deduction
		if err := rows.Scan(&d.ID, &d.VendorID, &d.AmountPaise, &d.ActorID, &d.Reason, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
