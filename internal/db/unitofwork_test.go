package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/alexanderramin/studygen/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openUoW(t *testing.T) (*sql.DB, *db.SQLiteUnitOfWork) {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database, db.NewSQLiteUnitOfWork(database)
}

func insertCached(ctx context.Context, tx db.DBTX, testID string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO result_cache (account_id, position, test_id, score, fetched_at)
		VALUES ('u1', (SELECT COUNT(*) FROM result_cache), ?, 50, '2026-01-01T00:00:00Z')`, testID)
	return err
}

func countCached(t *testing.T, database *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM result_cache`).Scan(&n))
	return n
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	database, uow := openUoW(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertCached(ctx, tx, "t1"); err != nil {
			return err
		}
		return insertCached(ctx, tx, "t2")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, countCached(t, database))
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	database, uow := openUoW(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		if err := insertCached(ctx, tx, "t1"); err != nil {
			return err
		}
		return errors.New("deliberate failure")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliberate failure")
	assert.Zero(t, countCached(t, database))
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	database, uow := openUoW(t)

	assert.Panics(t, func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_ = insertCached(ctx, tx, "t1")
			panic("boom")
		})
	})
	assert.Zero(t, countCached(t, database))
}
