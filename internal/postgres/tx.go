package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrWriteConflict dikembalikan kalau retry habis dan commit tetap kalah
// dari writer lain.
var ErrWriteConflict = errors.New("write conflict")

// DBTX dipegang repo: bisa pool (auto-commit) atau tx aktif dari ctx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}
type hookKey struct{}

type hookList struct{ fns []func() }

// TxRunner menjalankan fn dalam satu scope atomik. Semua repo yang membaca
// DBTX lewat Querier otomatis ikut scope yang sama.
type TxRunner struct {
	Pool  *pgxpool.Pool
	Retry int // jumlah retry saat serialization failure
}

func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// nested: gabung ke scope yang sudah jalan
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	retry := r.Retry
	if retry < 1 {
		retry = 1
	}

	var lastErr error
	for attempt := 0; attempt < retry; attempt++ {
		hooks := &hookList{}
		err := r.runOnce(ctx, fn, hooks)
		if err == nil {
			// post-commit: best-effort, tidak boleh menggagalkan mutasi
			for _, h := range hooks.fns {
				h()
			}
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}
		lastErr = err
		time.Sleep(time.Duration(attempt+1) * 25 * time.Millisecond)
	}
	return errors.Join(ErrWriteConflict, lastErr)
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(ctx context.Context) error, hooks *hookList) error {
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txCtx := context.WithValue(ctx, txKey{}, tx)
	txCtx = context.WithValue(txCtx, hookKey{}, hooks)
	if err := fn(txCtx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Querier mengembalikan tx aktif dari ctx, atau fallback ke pool.
func Querier(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// AfterCommit mendaftarkan side effect yang baru boleh jalan setelah commit
// (notifikasi, event). Di luar tx langsung dieksekusi.
func AfterCommit(ctx context.Context, fn func()) {
	if hooks, ok := ctx.Value(hookKey{}).(*hookList); ok {
		hooks.fns = append(hooks.fns, fn)
		return
	}
	fn()
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// IsUniqueViolation dipakai saat generate kode unik (order code, VFC).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
