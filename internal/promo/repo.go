package promo

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-retail-settlement.git/internal/postgres"
)

type Repo struct {
	Pool *pgxpool.Pool
	Tx   *postgres.TxRunner
}

const selectCodeWithBatch = `
	SELECT c.id, c.batch_id, c.code, c.status, c.usage_limit, c.usage_count, c.used_by::text[],
	       b.id, b.title, b.base_input, b.usage_scope, b.discount_type, b.discount_value,
	       b.start_date, b.end_date, b.is_active,
	       COALESCE((SELECT array_agg(product_id::text) FROM promo_batch_products WHERE batch_id = b.id), '{}')
	FROM promo_codes c
	JOIN promo_batches b ON b.id = c.batch_id
	WHERE c.code = $1`

// Validate menjalankan pipeline Evaluate terhadap state tersimpan.
// Read-only kecuali flip oportunistik unused -> expired.
func (r *Repo) Validate(ctx context.Context, rawCode, buyer string, lines []CheckoutLine) (*Result, error) {
	normalized := strings.ToUpper(strings.TrimSpace(rawCode))
	if normalized == "" {
		return nil, reject(ReasonNotFound)
	}

	q := postgres.Querier(ctx, r.Pool)
	var code Code
	var batch Batch
	err := q.QueryRow(ctx, selectCodeWithBatch, normalized).Scan(
		&code.ID, &code.BatchID, &code.Code, &code.Status, &code.UsageLimit, &code.UsageCount, &code.UsedBy,
		&batch.ID, &batch.Title, &batch.BaseInput, &batch.UsageScope, &batch.DiscountType, &batch.DiscountValue,
		&batch.StartDate, &batch.EndDate, &batch.IsActive, &batch.Products)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, reject(ReasonNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load promo code: %w", err)
	}

	res, err := Evaluate(code, batch, buyer, lines, time.Now())
	if err != nil {
		var rej *RejectError
		if errors.As(err, &rej) && rej.Reason == ReasonExpired && code.Status == StatusUnused {
			// flip oportunistik; best-effort, error diabaikan
			_, _ = q.Exec(ctx, `
				UPDATE promo_codes SET status = $2 WHERE id = $1 AND status = $3`,
				code.ID, StatusExpired, StatusUnused)
		}
		return nil, err
	}
	return res, nil
}

// Consume menaikkan usage_count secara atomik. Guard `usage_count <
// usage_limit` di WHERE menutup race antara Validate dan Consume: kalau
// kuota keburu habis, update kena 0 baris dan kita tolak, bukan no-op.
func (r *Repo) Consume(ctx context.Context, codeID, buyer string) error {
	return r.Tx.InTx(ctx, func(ctx context.Context) error {
		q := postgres.Querier(ctx, r.Pool)

		var scope string
		err := q.QueryRow(ctx, `
			SELECT b.usage_scope
			FROM promo_codes c JOIN promo_batches b ON b.id = c.batch_id
			WHERE c.id = $1 FOR UPDATE OF c`, codeID).Scan(&scope)
		if errors.Is(err, pgx.ErrNoRows) {
			return reject(ReasonNotFound)
		}
		if err != nil {
			return err
		}
		perUser := scope == ScopePerUser && buyer != ""

		tag, err := q.Exec(ctx, `
			UPDATE promo_codes SET
				usage_count = usage_count + 1,
				used_at = now(),
				status = CASE WHEN usage_count + 1 >= usage_limit THEN 'used' ELSE status END,
				used_by = CASE WHEN $3 THEN array_append(used_by, $2::uuid) ELSE used_by END
			WHERE id = $1
			  AND usage_count < usage_limit
			  AND (NOT $3 OR NOT (used_by @> ARRAY[$2]::uuid[]))`,
			codeID, nullIfEmpty(buyer), perUser)
		if err != nil {
			return fmt.Errorf("consume promo: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var count, limit int64
			if err := q.QueryRow(ctx, `
				SELECT usage_count, usage_limit FROM promo_codes WHERE id = $1`, codeID).
				Scan(&count, &limit); err == nil && count < limit {
				return reject(ReasonAlreadyRedeemed)
			}
			return reject(ReasonLimitReached)
		}
		return nil
	})
}

type NewBatch struct {
	Title         string
	BaseInput     string
	UsageScope    string
	DiscountType  string
	DiscountValue int64
	StartDate     time.Time
	EndDate       time.Time
	Products      []string
	Count         int
	UsageLimit    int64 // per kode; PER_USER biasanya di-set tinggi
}

// CreateBatch menyimpan batch + generate `count` kode dari seed baseInput.
func (r *Repo) CreateBatch(ctx context.Context, in NewBatch) (*Batch, []string, error) {
	if in.Count <= 0 {
		in.Count = 1
	}
	if in.UsageLimit <= 0 {
		in.UsageLimit = 1
	}
	base := strings.ToUpper(strings.TrimSpace(in.BaseInput))

	batch := &Batch{
		ID:            uuid.NewString(),
		Title:         in.Title,
		BaseInput:     base,
		UsageScope:    in.UsageScope,
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		Products:      in.Products,
		IsActive:      true,
	}

	var codes []string
	err := r.Tx.InTx(ctx, func(ctx context.Context) error {
		q := postgres.Querier(ctx, r.Pool)
		if _, err := q.Exec(ctx, `
			INSERT INTO promo_batches (id, title, base_input, usage_scope, discount_type, discount_value, start_date, end_date, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)`,
			batch.ID, batch.Title, batch.BaseInput, batch.UsageScope, batch.DiscountType,
			batch.DiscountValue, batch.StartDate, batch.EndDate); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		for _, p := range in.Products {
			if _, err := q.Exec(ctx, `
				INSERT INTO promo_batch_products (batch_id, product_id) VALUES ($1, $2)`,
				batch.ID, p); err != nil {
				return fmt.Errorf("link product %s: %w", p, err)
			}
		}

		for i := 0; i < in.Count; i++ {
			code, err := insertCodeWithRetry(ctx, q, batch.ID, base, in.UsageLimit)
			if err != nil {
				return err
			}
			codes = append(codes, code)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return batch, codes, nil
}

func insertCodeWithRetry(ctx context.Context, q postgres.DBTX, batchID, base string, usageLimit int64) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := base + "-" + randSuffix(4)
		_, err := q.Exec(ctx, `
			INSERT INTO promo_codes (id, batch_id, code, status, usage_limit)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), batchID, code, StatusUnused, usageLimit)
		if err == nil {
			return code, nil
		}
		if !postgres.IsUniqueViolation(err) {
			return "", fmt.Errorf("insert code: %w", err)
		}
	}
	return "", fmt.Errorf("could not generate unique code for batch %s", batchID)
}

const suffixAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = suffixAlphabet[rand.IntN(len(suffixAlphabet))]
	}
	return string(b)
}

// DeactivateBatch terminal: batch mati + cascade ke kode yang belum dipakai.
func (r *Repo) DeactivateBatch(ctx context.Context, batchID string) error {
	return r.Tx.InTx(ctx, func(ctx context.Context) error {
		q := postgres.Querier(ctx, r.Pool)
		tag, err := q.Exec(ctx, `
			UPDATE promo_batches SET is_active = FALSE WHERE id = $1`, batchID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrBatchNotFound
		}
		_, err = q.Exec(ctx, `
			UPDATE promo_codes SET status = $2 WHERE batch_id = $1 AND status = $3`,
			batchID, StatusDeactivated, StatusUnused)
		return err
	})
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
