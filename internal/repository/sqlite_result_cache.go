package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/studygen/internal/db"
	"github.com/alexanderramin/studygen/internal/domain"
)

// SQLiteResultCacheRepo implements ResultCacheRepo using a SQLite database.
// ReplaceAll issues several statements; run it inside a unit of work.
type SQLiteResultCacheRepo struct {
	db db.DBTX
}

func NewSQLiteResultCacheRepo(conn db.DBTX) *SQLiteResultCacheRepo {
	return &SQLiteResultCacheRepo{db: conn}
}

func (r *SQLiteResultCacheRepo) ReplaceAll(ctx context.Context, accountID string, results []domain.SubmissionResult, fetchedAt time.Time) error {
	if err := r.Clear(ctx, accountID); err != nil {
		return err
	}

	query := `INSERT INTO result_cache (account_id, position, test_id, test_name, score, correctness, submitted_at, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	fetched := storedTime(&fetchedAt)
	for i, res := range results {
		correctness, err := encodeCorrectness(res.Correctness)
		if err != nil {
			return fmt.Errorf("encoding correctness for %s: %w", res.TestID, err)
		}
		_, err = r.db.ExecContext(ctx, query,
			accountID,
			i,
			res.TestID,
			res.TestName,
			res.Score,
			correctness,
			storedTime(res.SubmittedAt),
			fetched,
		)
		if err != nil {
			return fmt.Errorf("caching result %d: %w", i, err)
		}
	}
	return nil
}

func (r *SQLiteResultCacheRepo) List(ctx context.Context, accountID string) (*CachedResults, error) {
	query := `SELECT test_id, test_name, score, correctness, submitted_at, fetched_at
		FROM result_cache WHERE account_id = ? ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing cached results: %w", err)
	}
	defer rows.Close()

	out := &CachedResults{AccountID: accountID, Results: []domain.SubmissionResult{}}
	found := false
	for rows.Next() {
		var (
			res         domain.SubmissionResult
			correctness sql.NullString
			submittedAt sql.NullString
			fetchedAt   sql.NullString
		)
		if err := rows.Scan(&res.TestID, &res.TestName, &res.Score, &correctness, &submittedAt, &fetchedAt); err != nil {
			return nil, fmt.Errorf("scanning cached result: %w", err)
		}
		if res.Correctness, err = decodeCorrectness(correctness); err != nil {
			return nil, fmt.Errorf("decoding correctness for %s: %w", res.TestID, err)
		}
		res.SubmittedAt = parseStoredTime(submittedAt)
		if t := parseStoredTime(fetchedAt); t != nil {
			out.FetchedAt = *t
		}
		out.Results = append(out.Results, res)
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cached results: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("cached results for %s: %w", accountID, ErrNotFound)
	}
	return out, nil
}

func (r *SQLiteResultCacheRepo) Clear(ctx context.Context, accountID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM result_cache WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("clearing cached results: %w", err)
	}
	return nil
}
