package db

import (
	"database/sql"
	"fmt"
)

// schemaVersion is written to PRAGMA user_version after a successful migration.
const schemaVersion = 1

var migrations = []string{
	// Session credential persisted between invocations.
	`CREATE TABLE IF NOT EXISTS cookies (
		origin     TEXT NOT NULL,
		name       TEXT NOT NULL,
		path       TEXT NOT NULL DEFAULT '/',
		value      TEXT NOT NULL,
		domain     TEXT NOT NULL DEFAULT '',
		expires_at TEXT,
		secure     INTEGER NOT NULL DEFAULT 0,
		http_only  INTEGER NOT NULL DEFAULT 0,
		same_site  INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (origin, name, path)
	)`,

	// Last results history fetched from the backend, per account. Replaced
	// wholesale on every successful fetch.
	`CREATE TABLE IF NOT EXISTS result_cache (
		account_id   TEXT NOT NULL,
		position     INTEGER NOT NULL CHECK(position >= 0),
		test_id      TEXT NOT NULL,
		test_name    TEXT NOT NULL DEFAULT '',
		score        REAL NOT NULL,
		correctness  TEXT,
		submitted_at TEXT,
		fetched_at   TEXT NOT NULL,
		PRIMARY KEY (account_id, position)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_result_cache_test ON result_cache(account_id, test_id)`,
}

// Migrate applies the schema. Every statement is idempotent, so Migrate is
// safe to run on each start.
func Migrate(db *sql.DB) error {
	var current int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if current > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, schemaVersion)
	}

	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("writing schema version: %w", err)
	}
	return nil
}
