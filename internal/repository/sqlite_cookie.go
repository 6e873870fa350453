package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/alexanderramin/studygen/internal/db"
)

// SQLiteCookieRepo implements CookieRepo using a SQLite database.
type SQLiteCookieRepo struct {
	db db.DBTX
}

func NewSQLiteCookieRepo(conn db.DBTX) *SQLiteCookieRepo {
	return &SQLiteCookieRepo{db: conn}
}

// LoadCookies returns every unexpired cookie grouped by origin.
func (r *SQLiteCookieRepo) LoadCookies(ctx context.Context) (map[string][]*http.Cookie, error) {
	query := `SELECT origin, name, path, value, domain, expires_at, secure, http_only, same_site
		FROM cookies
		WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY origin, name, path`
	rows, err := r.db.QueryContext(ctx, query, nowStored())
	if err != nil {
		return nil, fmt.Errorf("listing cookies: %w", err)
	}
	defer rows.Close()

	out := map[string][]*http.Cookie{}
	for rows.Next() {
		var (
			origin           string
			c                http.Cookie
			expires          sql.NullString
			secure, httpOnly int
			sameSite         int
		)
		if err := rows.Scan(&origin, &c.Name, &c.Path, &c.Value, &c.Domain, &expires, &secure, &httpOnly, &sameSite); err != nil {
			return nil, fmt.Errorf("scanning cookie: %w", err)
		}
		if t := parseStoredTime(expires); t != nil {
			c.Expires = *t
		}
		c.Secure = secure != 0
		c.HttpOnly = httpOnly != 0
		c.SameSite = http.SameSite(sameSite)
		out[origin] = append(out[origin], &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cookies: %w", err)
	}
	return out, nil
}

func (r *SQLiteCookieRepo) SaveCookie(ctx context.Context, origin string, c *http.Cookie) error {
	path := c.Path
	if path == "" {
		path = "/"
	}
	var expires *time.Time
	if !c.Expires.IsZero() {
		expires = &c.Expires
	}
	query := `INSERT INTO cookies (origin, name, path, value, domain, expires_at, secure, http_only, same_site, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(origin, name, path) DO UPDATE SET
			value = excluded.value,
			domain = excluded.domain,
			expires_at = excluded.expires_at,
			secure = excluded.secure,
			http_only = excluded.http_only,
			same_site = excluded.same_site,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		origin,
		c.Name,
		path,
		c.Value,
		c.Domain,
		storedTime(expires),
		boolToInt(c.Secure),
		boolToInt(c.HttpOnly),
		int(c.SameSite),
		nowStored(),
	)
	if err != nil {
		return fmt.Errorf("saving cookie %s: %w", c.Name, err)
	}
	return nil
}

func (r *SQLiteCookieRepo) DeleteCookie(ctx context.Context, origin, name, path string) error {
	if path == "" {
		path = "/"
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM cookies WHERE origin = ? AND name = ? AND path = ?`, origin, name, path)
	if err != nil {
		return fmt.Errorf("deleting cookie %s: %w", name, err)
	}
	return nil
}

func (r *SQLiteCookieRepo) ClearCookies(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cookies`); err != nil {
		return fmt.Errorf("clearing cookies: %w", err)
	}
	return nil
}
