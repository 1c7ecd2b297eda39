package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-retail-settlement.git/internal/postgres"
)

// Katalog = dependency read-only. Core tidak memiliki CRUD produk;
// cuma butuh resolve komposisi solo/bundle + harga list.

var ErrNotFound = errors.New("product not found")

type SKU struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	MRPPaise int64  `json:"mrp_paise"`
	Active   bool   `json:"active"`
}

type Product struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	PricePaise int64  `json:"price_paise"` // harga jual solo; 0 = pakai MRP varian
	IsBundle   bool   `json:"is_bundle"`
	Active     bool   `json:"active"`
	// Solo: daftar varian (user pilih satu). Bundle: komponen tetap,
	// masing-masing 1x per unit bundle.
	SKUs []SKU `json:"skus"`
}

type Lookup interface {
	Product(ctx context.Context, id string) (*Product, error)
}

type PGLookup struct {
	Pool *pgxpool.Pool
}

func (l *PGLookup) Product(ctx context.Context, id string) (*Product, error) {
	q := postgres.Querier(ctx, l.Pool)

	var p Product
	err := q.QueryRow(ctx, `
		SELECT id, title, price_paise, is_bundle, active FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &p.PricePaise, &p.IsBundle, &p.Active)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}

	rows, err := q.Query(ctx, `
		SELECT s.id, s.title, s.mrp_paise, s.active
		FROM product_skus ps JOIN skus s ON s.id = ps.sku_id
		WHERE ps.product_id = $1
		ORDER BY ps.position, s.id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s SKU
		if err := rows.Scan(&s.ID, &s.Title, &s.MRPPaise, &s.Active); err != nil {
			return nil, err
		}
		p.SKUs = append(p.SKUs, s)
	}
	return &p, rows.Err()
}
