// Package executor implements the Scrape-Run Executor (C6): one page
// fetch + extract + dedupe + persist, generalized from
// internal/scheduler/scheduler.go's runScraperQuery. The executor never
// retries; retry policy is entirely the worker's concern (spec.md §4.6).
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/learnbot/autoscraper/internal/dedup"
	"github.com/learnbot/autoscraper/internal/extract"
	"github.com/learnbot/autoscraper/internal/fetcher"
	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/ratelimit"
	"github.com/learnbot/autoscraper/internal/robots"
	"github.com/learnbot/autoscraper/internal/store"
)

// Executor runs a single ScrapeRun: rate-limit acquire, fetch, extract,
// dedupe, persist.
type Executor struct {
	Fetcher fetcher.Fetcher
	Limiter *ratelimit.Limiter
	Dedup   *dedup.Deduper
	Store   store.Store
	// Robots is optional; when set, pages disallowed by the domain's
	// robots.txt fail the run with reason=robots instead of fetching.
	Robots *robots.Checker
}

// New builds an Executor from its four core collaborators. Set the
// Robots field directly to enable robots.txt compliance checking.
func New(f fetcher.Fetcher, l *ratelimit.Limiter, d *dedup.Deduper, s store.Store) *Executor {
	return &Executor{Fetcher: f, Limiter: l, Dedup: d, Store: s}
}

// Run executes one page of one job against pageURL, returning the
// persisted ScrapeRun. A nil error with run.ItemsFound == 0 signals
// "no more results" to the worker.
func (e *Executor) Run(ctx context.Context, job model.ScrapeJob, board model.JobBoard, pageURL string, pageNumber int) (model.ScrapeRun, error) {
	run := model.ScrapeRun{
		JobID:      job.ID,
		RunType:    runTypeForBoard(board.Type),
		URL:        pageURL,
		PageNumber: pageNumber,
		StartedAt:  sqlNullTimeNow(),
	}
	started := time.Now()

	domain, err := ratelimit.Domain(pageURL)
	if err != nil {
		run.CompletedAt = sqlNullTimeNow()
		run.ErrorMessage = sqlNullStringOf(err.Error())
		run.ErrorDetails = errDetails("config", err.Error())
		_ = e.Store.CreateScrapeRun(ctx, &run)
		return run, fmt.Errorf("executor: %w", err)
	}

	rlCfg := ratelimit.Config{
		BaseDelay:         time.Duration(board.RateLimitDelayS) * time.Second,
		MaxDelay:          2 * time.Minute,
		RequestsPerMinute: requestsPerMinute(board.RateLimitDelayS),
		BackoffMultiplier: 2.0,
		RecoveryWindow:    300 * time.Second,
	}
	release, err := e.Limiter.Acquire(ctx, domain, rlCfg)
	if err != nil {
		run.CompletedAt = sqlNullTimeNow()
		run.ErrorMessage = sqlNullStringOf(err.Error())
		run.ErrorDetails = errDetails("rate_limit", err.Error())
		_ = e.Store.CreateScrapeRun(ctx, &run)
		return run, fmt.Errorf("executor: %w", err)
	}
	defer release()

	if e.Robots != nil && !e.Robots.Allowed(ctx, pageURL) {
		run.CompletedAt = sqlNullTimeNow()
		run.ErrorMessage = sqlNullStringOf("disallowed by robots.txt")
		run.ErrorDetails = errDetails("robots", pageURL)
		_ = e.Store.CreateScrapeRun(ctx, &run)
		return run, nil
	}

	timeout := time.Duration(board.RequestTimeoutS) * time.Second
	result, err := e.Fetcher.Fetch(ctx, pageURL, board.Headers, timeout)
	if err != nil {
		run.CompletedAt = sqlNullTimeNow()
		run.DurationMs = sqlNullInt32(int32(time.Since(started).Milliseconds()))
		run.ErrorMessage = sqlNullStringOf(err.Error())
		run.ErrorDetails = errDetails("network", err.Error())
		_ = e.Store.CreateScrapeRun(ctx, &run)
		return run, fmt.Errorf("executor: %w", err)
	}
	e.Limiter.ReportStatus(domain, result.StatusCode)
	run.HTTPStatusCode = sqlNullInt32(int32(result.StatusCode))
	run.ResponseSizeBytes = sqlNullInt32(int32(len(result.Body)))
	run.DurationMs = sqlNullInt32(int32(time.Since(started).Milliseconds()))

	if result.StatusCode < 200 || result.StatusCode >= 300 {
		run.CompletedAt = sqlNullTimeNow()
		run.ErrorMessage = sqlNullStringOf(fmt.Sprintf("http status %d", result.StatusCode))
		run.ErrorDetails = errDetails("http_status", fmt.Sprintf("%d", result.StatusCode))
		if err := e.Store.CreateScrapeRun(ctx, &run); err != nil {
			return run, fmt.Errorf("executor: persist run: %w", err)
		}
		return run, nil
	}

	ext, err := extract.ForBoardType(board.Type)
	if err != nil {
		run.CompletedAt = sqlNullTimeNow()
		run.ErrorMessage = sqlNullStringOf(err.Error())
		run.ErrorDetails = errDetails("config", err.Error())
		_ = e.Store.CreateScrapeRun(ctx, &run)
		return run, fmt.Errorf("executor: %w", err)
	}
	records, err := ext.Extract(result.Body, board, pageURL)
	if err != nil {
		run.CompletedAt = sqlNullTimeNow()
		run.ErrorMessage = sqlNullStringOf(err.Error())
		run.ErrorDetails = errDetails("parse", err.Error())
		if perr := e.Store.CreateScrapeRun(ctx, &run); perr != nil {
			return run, fmt.Errorf("executor: persist run: %w", perr)
		}
		return run, nil // parse errors fail the run, not the executor call
	}

	raws := make([]model.RawJob, 0, len(records))
	for _, rec := range records {
		checksum := dedup.Checksum(rec.Title, rec.Company, rec.Location, rec.Description)
		isDup := false
		if rec.URL != "" && e.Dedup.SeenURL(rec.URL) {
			isDup = true
		}
		if e.Dedup.SeenContent(checksum) {
			isDup = true
		}
		rawData, _ := json.Marshal(rec.RawData)
		raws = append(raws, model.RawJob{
			RunID:          run.ID,
			JobBoardID:     board.ID,
			Title:          rec.Title,
			Company:        rec.Company,
			Location:       rec.Location,
			Description:    rec.Description,
			URL:            rec.URL,
			SalaryText:     rec.SalaryText,
			JobTypeText:    rec.JobTypeText,
			PostedDateText: rec.PostedDateText,
			RawData:        rawData,
			IsDuplicate:    isDup,
			Checksum:       checksum,
		})
	}

	run.ItemsFound = len(records)
	for _, r := range raws {
		if !r.IsDuplicate {
			run.ItemsProcessed++
		} else {
			run.ItemsSkipped++
		}
	}
	run.CompletedAt = sqlNullTimeNow()

	return run, e.Store.Transaction(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateScrapeRun(ctx, &run); err != nil {
			return fmt.Errorf("persist run: %w", err)
		}
		if len(raws) == 0 {
			return nil
		}
		for i := range raws {
			raws[i].RunID = run.ID
		}
		if err := tx.BulkUpsertRawJobs(ctx, raws); err != nil {
			return fmt.Errorf("bulk upsert raws: %w", err)
		}
		return nil
	})
}

func runTypeForBoard(t model.BoardType) model.RunType {
	switch t {
	case model.BoardRSS:
		return model.RunRSS
	case model.BoardAPI:
		return model.RunAPI
	default:
		return model.RunHTML
	}
}

func requestsPerMinute(delaySeconds int) int {
	if delaySeconds <= 0 {
		return 10
	}
	rpm := 60 / delaySeconds
	if rpm < 1 {
		rpm = 1
	}
	return rpm
}
