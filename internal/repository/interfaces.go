package repository

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alexanderramin/studygen/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CookieRepo persists the HTTP cookies that carry the session credential.
// It satisfies gateway.CookieStore.
type CookieRepo interface {
	LoadCookies(ctx context.Context) (map[string][]*http.Cookie, error)
	SaveCookie(ctx context.Context, origin string, c *http.Cookie) error
	DeleteCookie(ctx context.Context, origin, name, path string) error
	ClearCookies(ctx context.Context) error
}

// CachedResults is the last results history fetched for an account.
type CachedResults struct {
	AccountID string
	Results   []domain.SubmissionResult
	FetchedAt time.Time
}

type ResultCacheRepo interface {
	// ReplaceAll drops the account's cached history and stores results in order.
	ReplaceAll(ctx context.Context, accountID string, results []domain.SubmissionResult, fetchedAt time.Time) error
	// List returns ErrNotFound when nothing has been cached for the account.
	List(ctx context.Context, accountID string) (*CachedResults, error)
	Clear(ctx context.Context, accountID string) error
}
