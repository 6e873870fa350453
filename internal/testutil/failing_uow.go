package testutil

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/alexanderramin/studygen/internal/db"
)

// FailOnNthExecUoW is a unit of work whose FailOn-th write (1-based) returns
// Err. Reads pass through uncounted. Results cache tests use it to prove a
// partial replace never becomes visible.
type FailOnNthExecUoW struct {
	DB     *sql.DB
	FailOn int32
	Err    error
}

func (u *FailOnNthExecUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	inner := db.NewSQLiteUnitOfWork(u.DB)
	return inner.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, &writeTrap{DBTX: tx, failOn: u.FailOn, err: u.Err})
	})
}

type writeTrap struct {
	db.DBTX
	writes atomic.Int32
	failOn int32
	err    error
}

func (w *writeTrap) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if w.writes.Add(1) == w.failOn {
		return nil, w.err
	}
	return w.DBTX.ExecContext(ctx, query, args...)
}
