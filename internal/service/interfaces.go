package service

import (
	"context"
	"io"
	"time"

	"github.com/alexanderramin/studygen/internal/domain"
)

// History is a results history as shown to the user. Stale is set when the
// backend could not be reached and the local cache was served instead.
type History struct {
	AccountID string
	Results   []domain.SubmissionResult
	FetchedAt time.Time
	Stale     bool
	// FetchErr is the network failure that made the history stale.
	FetchErr error
}

type ResultsService interface {
	// History fetches the account's results and replaces the local cache.
	History(ctx context.Context) (*History, error)
	// Cached returns the last fetched history without calling the backend's
	// results endpoint.
	Cached(ctx context.Context) (*History, error)
	// Export writes h as an .xlsx workbook.
	Export(ctx context.Context, h *History, w io.Writer) error
}

// ResultsFetcher is the backend call behind History.
type ResultsFetcher interface {
	Results(ctx context.Context) ([]domain.SubmissionResult, error)
}

// Gatekeeper resolves the signed-in member or refuses.
type Gatekeeper interface {
	Require(ctx context.Context, required ...domain.Role) (domain.Session, error)
}
