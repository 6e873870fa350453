package testutil

import (
	"database/sql"
	"testing"

	"github.com/alexanderramin/studygen/internal/db"
	"github.com/stretchr/testify/require"
)

// NewTestDB returns a private, fully migrated in-memory store for one test.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err, "opening in-memory store")
	t.Cleanup(func() { _ = database.Close() })
	return database
}

// NewTestUoW is the production unit of work over a test database.
func NewTestUoW(database *sql.DB) db.UnitOfWork {
	return db.NewSQLiteUnitOfWork(database)
}
