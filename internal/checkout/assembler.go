package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-retail-settlement.git/internal/catalog"
	"github.com/ariefcatur/go-retail-settlement.git/internal/ledger"
)

// Assembler menyusun line item ber-harga + cek stok utk satu vendor.
// Murni read-side: tidak pernah menyentuh reservasi; reservasi baru
// terjadi saat order benar-benar dibuat.

var ErrInvalidItem = errors.New("invalid checkout item")

type ItemInput struct {
	ProductID string
	Qty       int64
	SKUID     string // opsional, utk produk solo pilih varian
}

type Component struct {
	SKU            string `json:"sku"`
	Title          string `json:"title"`
	PerBundle      int64  `json:"quantity_per_bundle"`
	UnitPricePaise int64  `json:"unit_price_paise"`
}

type Item struct {
	ProductID      string      `json:"product_id"`
	ProductTitle   string      `json:"product_title"`
	Qty            int64       `json:"quantity"`
	UnitPricePaise int64       `json:"unit_price_paise"`
	SubtotalPaise  int64       `json:"subtotal_paise"`
	IsBundle       bool        `json:"is_bundle"`
	Components     []Component `json:"components"`
}

type Summary struct {
	Vendor        string `json:"vendor"`
	Items         []Item `json:"items"`
	SubtotalPaise int64  `json:"subtotal_paise"`
}

type StockChecker interface {
	CheckAvailable(ctx context.Context, sku, vendor string, qty int64) (ok bool, shortfall int64, err error)
}

type Assembler struct {
	Catalog catalog.Lookup
	Stock   StockChecker
}

func (a *Assembler) Build(ctx context.Context, vendor string, items []ItemInput) (*Summary, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("at least one item is required: %w", ErrInvalidItem)
	}

	summary := &Summary{Vendor: vendor}
	var shortfalls []ledger.Shortfall

	for _, in := range items {
		if in.Qty <= 0 {
			return nil, fmt.Errorf("quantity must be positive for product %s: %w", in.ProductID, ErrInvalidItem)
		}

		p, err := a.Catalog.Product(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}
		if !p.Active {
			return nil, fmt.Errorf("product %s inactive: %w", p.Title, ErrInvalidItem)
		}
		if len(p.SKUs) == 0 {
			return nil, fmt.Errorf("product %s has no SKUs configured: %w", p.Title, ErrInvalidItem)
		}

		var components []Component
		if p.IsBundle {
			// bundle: semua komponen, 1x per unit bundle
			for _, s := range p.SKUs {
				components = append(components, Component{
					SKU:            s.ID,
					Title:          s.Title,
					PerBundle:      1,
					UnitPricePaise: s.MRPPaise,
				})
			}
		} else {
			s, err := selectVariant(p, in.SKUID)
			if err != nil {
				return nil, err
			}
			components = []Component{{
				SKU:            s.ID,
				Title:          s.Title,
				PerBundle:      1,
				UnitPricePaise: s.MRPPaise,
			}}
		}

		// cek ketersediaan per komponen; semua kekurangan dikumpulkan
		// jadi satu error, bukan gagal di komponen pertama
		for _, c := range components {
			need := in.Qty * c.PerBundle
			ok, shortfall, err := a.Stock.CheckAvailable(ctx, c.SKU, vendor, need)
			if err != nil {
				return nil, err
			}
			if !ok {
				shortfalls = append(shortfalls, ledger.Shortfall{
					SKU:       c.SKU,
					Requested: need,
					Available: need - shortfall,
				})
			}
		}

		unitPrice := unitPrice(p, components)
		summary.Items = append(summary.Items, Item{
			ProductID:      p.ID,
			ProductTitle:   p.Title,
			Qty:            in.Qty,
			UnitPricePaise: unitPrice,
			SubtotalPaise:  unitPrice * in.Qty,
			IsBundle:       p.IsBundle,
			Components:     components,
		})
	}

	if len(shortfalls) > 0 {
		return nil, &ledger.InsufficientStockError{Shortfalls: shortfalls}
	}

	for _, it := range summary.Items {
		summary.SubtotalPaise += it.SubtotalPaise
	}
	return summary, nil
}

// unitPrice: solo pakai harga produk kalau di-set (>0), kalau tidak MRP
// varian; bundle selalu jumlah MRP komponen.
func unitPrice(p *catalog.Product, components []Component) int64 {
	var sum int64
	for _, c := range components {
		sum += c.UnitPricePaise
	}
	if !p.IsBundle && p.PricePaise > 0 {
		return p.PricePaise
	}
	return sum
}

func selectVariant(p *catalog.Product, skuID string) (catalog.SKU, error) {
	if skuID == "" {
		return p.SKUs[0], nil
	}
	for _, s := range p.SKUs {
		if s.ID == skuID {
			return s, nil
		}
	}
	return catalog.SKU{}, fmt.Errorf("sku %s does not belong to product %s: %w", skuID, p.Title, ErrInvalidItem)
}
