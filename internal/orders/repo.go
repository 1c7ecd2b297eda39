package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-retail-settlement.git/internal/postgres"
)

type Repo struct {
	Pool *pgxpool.Pool
}

const orderCols = `id, order_code, COALESCE(verification_code, ''), buyer_id, vendor_id,
	order_type, status, COALESCE(pickup_address, ''), subtotal_paise, discount_paise,
	total_paise, COALESCE(promo_code_id::text, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderCode, &o.VerificationCode, &o.BuyerID, &o.VendorID,
		&o.OrderType, &o.Status, &o.PickupAddress, &o.SubtotalPaise, &o.DiscountPaise,
		&o.TotalPaise, &o.PromoCodeID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

func (r *Repo) Insert(ctx context.Context, o *Order) error {
	q := postgres.Querier(ctx, r.Pool)
	_, err := q.Exec(ctx, `
		INSERT INTO orders
			(id, order_code, verification_code, buyer_id, vendor_id, order_type,
			 status, pickup_address, subtotal_paise, discount_paise, total_paise, promo_code_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULLIF($12, '')::uuid)`,
		o.ID, o.OrderCode, o.VerificationCode, o.BuyerID, o.VendorID, o.OrderType,
		o.Status, o.PickupAddress, o.SubtotalPaise, o.DiscountPaise, o.TotalPaise, o.PromoCodeID)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	for _, it := range o.Items {
		_, err := q.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, sku_id, quantity, unit_price_paise)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, o.ID, it.ProductID, it.SKUID, it.Quantity, it.UnitPricePaise)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	q := postgres.Querier(ctx, r.Pool)
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetForUpdate kunci row order selama tx berjalan. Wajib dipanggil dari
// dalam scope TxRunner.
func (r *Repo) GetForUpdate(ctx context.Context, id string) (*Order, error) {
	q := postgres.Querier(ctx, r.Pool)
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ByVerificationCode ambil order terbaru dengan kode tsb; cek status
// dilakukan di service. Partial unique index menjamin maksimal satu
// yang masih pending.
func (r *Repo) ByVerificationCode(ctx context.Context, code string) (*Order, error) {
	q := postgres.Querier(ctx, r.Pool)
	o, err := scanOrder(q.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE verification_code = $1
		 ORDER BY created_at DESC LIMIT 1`, code))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) loadItems(ctx context.Context, o *Order) error {
	q := postgres.Querier(ctx, r.Pool)
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, sku_id, quantity, unit_price_paise
		FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.SKUID, &it.Quantity, &it.UnitPricePaise); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, status Status) error {
	q := postgres.Querier(ctx, r.Pool)
	tag, err := q.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) UpdateVendor(ctx context.Context, id, vendorID, pickupAddress string) error {
	q := postgres.Querier(ctx, r.Pool)
	tag, err := q.Exec(ctx, `
		UPDATE orders SET vendor_id = $2, pickup_address = NULLIF($3, ''), updated_at = now()
		WHERE id = $1`, id, vendorID, pickupAddress)
	if err != nil {
		return fmt.Errorf("update order vendor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertPayment mengembalikan false kalau provider_ref sudah tercatat.
// ON CONFLICT dipakai supaya duplikat tidak membatalkan transaksi yang
// sedang berjalan.
func (r *Repo) InsertPayment(ctx context.Context, p Payment) (bool, error) {
	q := postgres.Querier(ctx, r.Pool)
	tag, err := q.Exec(ctx, `
		INSERT INTO payments (id, order_id, buyer_id, provider_ref, amount_paise)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider_ref) DO NOTHING`,
		p.ID, p.OrderID, p.BuyerID, p.ProviderRef, p.AmountPaise)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
