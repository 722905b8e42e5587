package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/engine"
	"github.com/learnbot/autoscraper/internal/executor"
	"github.com/learnbot/autoscraper/internal/logbuf"
	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/store"
)

// Worker drives a single claimed ScrapeJob to a terminal state, paginating
// through board URLs and handling retry/backoff itself (the executor never
// retries on its own, per spec.md §4.6/§4.7).
type Worker struct {
	ID       string
	Store    store.Store
	Executor *executor.Executor
	// Engine is optional; when set, every terminal job transition is
	// recorded against EngineState counters and the Prometheus job
	// metrics via Engine.RecordJobCompletion.
	Engine *engine.State
	// Logs is optional; when set, job lifecycle events are written as
	// job-scoped entries queryable via GET /logs?job_id=.
	Logs *logbuf.Ring
}

// New builds a Worker with a stable identity, used as the claim owner in
// store.Store.ClaimPendingJob. Set Engine/Logs directly to enable
// engine-state recording and job-scoped logging.
func New(id string, s store.Store, e *executor.Executor) *Worker {
	return &Worker{ID: id, Store: s, Executor: e}
}

// Run claims job, drives its page loop to completion, and persists the
// final state transition. It never returns an error for expected job
// failures (those are recorded on the job itself); only unexpected
// infrastructure failures (e.g. claim conflicts, store outages) are
// returned.
func (w *Worker) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := w.Store.ClaimPendingJob(ctx, jobID, w.ID)
	if err != nil {
		return fmt.Errorf("worker: claim job %s: %w", jobID, err)
	}

	board, err := w.Store.GetJobBoard(ctx, job.JobBoardID)
	if err != nil {
		return w.failJob(ctx, job, "", "internal", fmt.Sprintf("load board: %v", err))
	}

	if w.Logs != nil {
		w.Logs.InfofJob(job.ID, "worker %s started job for board %q", w.ID, board.Name)
	}

	if board.Type == model.BoardHTML && board.Selectors["listing"] == "" {
		return w.failJob(ctx, job, board.Name, "config", "board missing required 'listing' selector")
	}

	maxPages := board.MaxPages
	if job.MaxPages.Valid && int(job.MaxPages.Int32) > 0 {
		maxPages = int(job.MaxPages.Int32)
	}
	if maxPages <= 0 {
		maxPages = 1
	}

	page := job.PageCursor
	if page == 0 {
		page = 1
	}
	consecutiveEmpty := job.ConsecutiveEmptyPages

	defer func() {
		if r := recover(); r != nil {
			_ = w.failJob(ctx, job, board.Name, "internal", fmt.Sprintf("panic: %v", r))
		}
	}()

	for page <= maxPages {
		select {
		case <-ctx.Done():
			return w.pauseJob(ctx, job, page, consecutiveEmpty)
		default:
		}

		status, err := w.runPageWithRetry(ctx, job, board, page)
		if err != nil {
			return w.failJob(ctx, job, board.Name, "internal", err.Error())
		}

		job.ItemsFound += status.run.ItemsFound
		job.ItemsCreated += status.run.ItemsProcessed
		job.ItemsSkipped += status.run.ItemsSkipped
		job.PageCursor = page

		switch {
		case status.terminalFail:
			return w.failJob(ctx, job, board.Name, status.reason, status.message)
		case status.run.ItemsFound == 0:
			consecutiveEmpty++
		default:
			consecutiveEmpty = 0
		}
		job.ConsecutiveEmptyPages = consecutiveEmpty

		if _, err := w.Store.UpdateScrapeJob(ctx, job.ID, func(j *model.ScrapeJob) error {
			*j = *job
			return nil
		}); err != nil {
			return fmt.Errorf("worker: persist job progress: %w", err)
		}

		if consecutiveEmpty >= 2 {
			break
		}
		page++
	}

	return w.completeJob(ctx, job, board.Name)
}

type pageOutcome struct {
	run          model.ScrapeRun
	terminalFail bool
	reason       string
	message      string
}

// runPageWithRetry retries a single page on retryable failures up to the
// board's retry_attempts, sleeping the configured backoff between tries.
func (w *Worker) runPageWithRetry(ctx context.Context, job *model.ScrapeJob, board *model.JobBoard, page int) (pageOutcome, error) {
	pageURL := buildPageURL(*board, page)
	attempts := 0
	maxAttempts := board.RetryAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for {
		run, err := w.Executor.Run(ctx, *job, *board, pageURL, page)
		// A recorded run error (e.g. reason=network) is classified below;
		// only an error with no recorded run error ends the job outright.
		if err != nil && !run.ErrorMessage.Valid {
			return pageOutcome{run: run, terminalFail: true, reason: "internal", message: err.Error()}, nil
		}
		if !run.ErrorMessage.Valid {
			return pageOutcome{run: run}, nil
		}

		class := Classify(run)
		switch class {
		case ClassFatal:
			return pageOutcome{run: run, terminalFail: true, reason: "config", message: run.ErrorMessage.String}, nil
		case ClassNonRetryable:
			// The run stays FAILED; the job moves on to the next page.
			return pageOutcome{run: run}, nil
		default: // ClassRetryable
			attempts++
			if attempts >= maxAttempts {
				return pageOutcome{run: run, terminalFail: true, reason: "network", message: run.ErrorMessage.String}, nil
			}
			updated, err := w.Store.UpdateScrapeJob(ctx, job.ID, func(j *model.ScrapeJob) error {
				j.RetryCount++
				return nil
			})
			if err != nil {
				return pageOutcome{}, fmt.Errorf("persist retry count: %w", err)
			}
			*job = *updated
			select {
			case <-ctx.Done():
				return pageOutcome{run: run, terminalFail: true, reason: "internal", message: "cancelled during backoff"}, nil
			case <-time.After(backoffFor(board, attempts)):
			}
		}
	}
}

func backoffFor(board *model.JobBoard, attempt int) time.Duration {
	base := time.Duration(board.RateLimitDelayS) * time.Second
	if base <= 0 {
		base = time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	if cap := 2 * time.Minute; delay > cap {
		delay = cap
	}
	return delay
}

func buildPageURL(board model.JobBoard, page int) string {
	switch board.Type {
	case model.BoardRSS:
		return board.RSSURL.String
	default:
		if strings.Contains(board.BaseURL, "{page}") {
			return strings.ReplaceAll(board.BaseURL, "{page}", fmt.Sprintf("%d", page))
		}
		sep := "?"
		if strings.Contains(board.BaseURL, "?") {
			sep = "&"
		}
		return fmt.Sprintf("%s%spage=%d", board.BaseURL, sep, page)
	}
}

func (w *Worker) completeJob(ctx context.Context, job *model.ScrapeJob, boardName string) error {
	updated, err := w.Store.UpdateScrapeJob(ctx, job.ID, func(j *model.ScrapeJob) error {
		j.Status = model.JobCompleted
		j.CompletedAt = nowValid()
		j.SuccessRate = successRate(j.ItemsCreated, j.ItemsFound)
		return nil
	})
	if err != nil {
		return err
	}
	if w.Logs != nil {
		w.Logs.InfofJob(job.ID, "job completed: %d items created of %d found", updated.ItemsCreated, updated.ItemsFound)
	}
	if w.Engine != nil {
		w.Engine.RecordJobCompletion(ctx, boardName, *updated)
	}
	return nil
}

func (w *Worker) failJob(ctx context.Context, job *model.ScrapeJob, boardName, reason, message string) error {
	updated, err := w.Store.UpdateScrapeJob(ctx, job.ID, func(j *model.ScrapeJob) error {
		j.Status = model.JobFailed
		j.CompletedAt = nowValid()
		j.ErrorMessage = sqlNullStringOf(message)
		j.ErrorDetails = errDetailsJSON(reason, message)
		j.SuccessRate = successRate(j.ItemsCreated, j.ItemsFound)
		return nil
	})
	if err != nil {
		return err
	}
	if w.Logs != nil {
		w.Logs.ErrorfJob(job.ID, "job failed (%s): %s", reason, message)
	}
	if w.Engine != nil {
		w.Engine.RecordJobCompletion(ctx, boardName, *updated)
	}
	return nil
}

func (w *Worker) pauseJob(ctx context.Context, job *model.ScrapeJob, page, consecutiveEmpty int) error {
	_, err := w.Store.UpdateScrapeJob(ctx, job.ID, func(j *model.ScrapeJob) error {
		j.Status = model.JobPaused
		j.PageCursor = page
		j.ConsecutiveEmptyPages = consecutiveEmpty
		return nil
	})
	if err == nil && w.Logs != nil {
		w.Logs.WarnfJob(job.ID, "job paused at page %d", page)
	}
	return err
}

func successRate(created, found int) float64 {
	if found <= 0 {
		return 0
	}
	return float64(created) / float64(found)
}
