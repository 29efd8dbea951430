package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/roach88/recon/internal/ids"
)

// ReadTx is a read-scoped transaction handle.
// All read accessors hang off ReadTx; WriteTx embeds it.
type ReadTx struct {
	tx *sql.Tx
}

// WriteTx is a write-scoped transaction handle.
// Every mutation of the store goes through a WriteTx, so a merge and its
// whole cascade commit or roll back together.
type WriteTx struct {
	ReadTx
	commitHooks   []func()
	rollbackHooks []func()
}

// Reader returns the read view of this write transaction.
func (w *WriteTx) Reader() *ReadTx {
	return &w.ReadTx
}

// AddCommitHook registers fn to run after a successful commit.
// Hooks do not run if the transaction rolls back.
func (w *WriteTx) AddCommitHook(fn func()) {
	w.commitHooks = append(w.commitHooks, fn)
}

// AddRollbackHook registers fn to run if the transaction does not commit.
// In-memory caches use it to drop state derived from discarded writes.
func (w *WriteTx) AddRollbackHook(fn func()) {
	w.rollbackHooks = append(w.rollbackHooks, fn)
}

func (r *ReadTx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.tx.QueryRowContext(ctx, query, args...)
}

func (r *ReadTx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.tx.QueryContext(ctx, query, args...)
}

func (w *WriteTx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return w.tx.ExecContext(ctx, query, args...)
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullAci(a *ids.Aci) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*a), Valid: true}
}

func nullE164(p *ids.E164) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func nullPni(p *ids.Pni) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

func aciFromNull(ns sql.NullString) *ids.Aci {
	if !ns.Valid {
		return nil
	}
	a := ids.Aci(ns.String)
	return &a
}

func e164FromNull(ns sql.NullString) *ids.E164 {
	if !ns.Valid {
		return nil
	}
	p := ids.E164(ns.String)
	return &p
}

func pniFromNull(ns sql.NullString) *ids.Pni {
	if !ns.Valid {
		return nil
	}
	p := ids.Pni(ns.String)
	return &p
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timeFromNull(ni sql.NullInt64) *time.Time {
	if !ni.Valid {
		return nil
	}
	t := time.UnixMilli(ni.Int64)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func blobOrNull(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
