package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alexanderramin/studygen/internal/access"
	"github.com/alexanderramin/studygen/internal/db"
	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/repository"
	"github.com/xuri/excelize/v2"
)

type resultsService struct {
	backend  ResultsFetcher
	gate     Gatekeeper
	cache    repository.ResultCacheRepo
	uow      db.UnitOfWork
	observer UseCaseObserver
	now      func() time.Time
}

func NewResultsService(
	backend ResultsFetcher,
	gate Gatekeeper,
	cache repository.ResultCacheRepo,
	uow db.UnitOfWork,
	observers ...UseCaseObserver,
) ResultsService {
	return &resultsService{
		backend:  backend,
		gate:     gate,
		cache:    cache,
		uow:      uow,
		observer: firstObserver(observers),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *resultsService) History(ctx context.Context) (h *History, err error) {
	fields := map[string]any{}
	done := track(ctx, s.observer, "results-history", fields)
	defer func() { done(err) }()

	var sess domain.Session
	sess, err = s.gate.Require(ctx, access.Members...)
	if err != nil {
		return nil, err
	}
	fields["account_id"] = sess.UserID

	results, fetchErr := s.backend.Results(ctx)
	if fetchErr != nil {
		if gateway.KindOf(fetchErr) != gateway.KindNetwork {
			err = fmt.Errorf("fetching results: %w", fetchErr)
			return nil, err
		}
		cached, cacheErr := s.cache.List(ctx, sess.UserID)
		if cacheErr != nil {
			if !errors.Is(cacheErr, repository.ErrNotFound) {
				fetchErr = errors.Join(fetchErr, cacheErr)
			}
			err = fmt.Errorf("fetching results: %w", fetchErr)
			return nil, err
		}
		fields["stale"] = true
		fields["count"] = len(cached.Results)
		return &History{
			AccountID: sess.UserID,
			Results:   cached.Results,
			FetchedAt: cached.FetchedAt,
			Stale:     true,
			FetchErr:  fetchErr,
		}, nil
	}

	fetchedAt := s.now()
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return repository.NewSQLiteResultCacheRepo(tx).ReplaceAll(ctx, sess.UserID, results, fetchedAt)
	})
	if err != nil {
		err = fmt.Errorf("caching results: %w", err)
		return nil, err
	}

	fields["count"] = len(results)
	return &History{AccountID: sess.UserID, Results: results, FetchedAt: fetchedAt}, nil
}

func (s *resultsService) Cached(ctx context.Context) (*History, error) {
	sess, err := s.gate.Require(ctx, access.Members...)
	if err != nil {
		return nil, err
	}
	cached, err := s.cache.List(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("reading cached results: %w", err)
	}
	return &History{AccountID: sess.UserID, Results: cached.Results, FetchedAt: cached.FetchedAt, Stale: true}, nil
}

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
	passMark     = 50.0
)

func (s *resultsService) Export(ctx context.Context, h *History, w io.Writer) (err error) {
	done := track(ctx, s.observer, "results-export", map[string]any{"count": len(h.Results)})
	defer func() { done(err) }()

	f := excelize.NewFile()
	defer f.Close()

	if err = f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err = writeResultsSheet(f, h.Results); err != nil {
		return err
	}
	if _, err = f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	if err = writeSummarySheet(f, h); err != nil {
		return err
	}

	if err = f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeResultsSheet(f *excelize.File, results []domain.SubmissionResult) error {
	header := []any{"Test ID", "Test", "Score (%)", "Correct", "Questions", "Passed", "Submitted At"}
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetCellStyle(resultsSheet, "A1", "G1", bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var correct, questions any = "", ""
		if n := r.CorrectCount(); n >= 0 {
			correct, questions = n, len(r.Correctness)
		}
		submitted := ""
		if r.SubmittedAt != nil {
			submitted = r.SubmittedAt.UTC().Format("2006-01-02 15:04")
		}
		row := []any{r.TestID, r.TestName, r.Score, correct, questions, yesNo(r.Passed(passMark)), submitted}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return fmt.Errorf("writing result %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(resultsSheet, "B", "B", 32); err != nil {
		return err
	}
	return f.SetColWidth(resultsSheet, "G", "G", 18)
}

func writeSummarySheet(f *excelize.File, h *History) error {
	var total, best float64
	passed := 0
	for _, r := range h.Results {
		total += r.Score
		if r.Score > best {
			best = r.Score
		}
		if r.Passed(passMark) {
			passed++
		}
	}
	avg := 0.0
	if len(h.Results) > 0 {
		avg = total / float64(len(h.Results))
	}

	rows := [][]any{
		{"Account", h.AccountID},
		{"Tests taken", len(h.Results)},
		{"Passed", passed},
		{"Average score (%)", avg},
		{"Best score (%)", best},
		{"Fetched at", h.FetchedAt.UTC().Format("2006-01-02 15:04")},
		{"Offline copy", yesNo(h.Stale)},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 20)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
