package worker

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/dedup"
	"github.com/learnbot/autoscraper/internal/executor"
	"github.com/learnbot/autoscraper/internal/fetcher"
	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/ratelimit"
	"github.com/learnbot/autoscraper/internal/store"
)

// pagedFetcher returns a different body per page, keyed by a counter, so
// tests can script "2 items then empty" sequences.
type pagedFetcher struct {
	bodies []string
	calls  int
}

func (p *pagedFetcher) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (fetcher.Result, error) {
	idx := p.calls
	if idx >= len(p.bodies) {
		idx = len(p.bodies) - 1
	}
	p.calls++
	return fetcher.Result{StatusCode: 200, Body: []byte(p.bodies[idx]), Headers: http.Header{}}, nil
}

func job(page string) string {
	return `<html><body><div class="job"><h2 class="t">` + page + `</h2><span class="c">Acme</span></div></body></html>`
}

func emptyPage() string {
	return `<html><body></body></html>`
}

func TestWorkerCompletesOnConsecutiveEmptyPages(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	board := &model.JobBoard{
		Name: "demo", Type: model.BoardHTML, BaseURL: "https://jobs.example.com/?page={page}",
		Selectors:       map[string]string{"listing": "div.job", "title": "h2.t", "company": "span.c"},
		MaxPages:        5,
		RequestTimeoutS: 5,
		RetryAttempts:   1,
	}
	if err := mem.CreateJobBoard(ctx, board); err != nil {
		t.Fatalf("create board: %v", err)
	}
	j := &model.ScrapeJob{JobBoardID: board.ID, Mode: model.ModeManual, Priority: 1}
	if err := mem.CreateScrapeJob(ctx, j); err != nil {
		t.Fatalf("create job: %v", err)
	}

	pf := &pagedFetcher{bodies: []string{job("Engineer"), emptyPage(), emptyPage()}}
	exec := executor.New(pf, ratelimit.New(10), dedup.New(), mem)
	w := New("worker-1", mem, exec)

	if err := w.Run(ctx, j.ID); err != nil {
		t.Fatalf("run: %v", err)
	}

	final, err := mem.GetScrapeJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if final.Status != model.JobCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if final.ItemsFound != 1 {
		t.Fatalf("expected 1 item found across pages, got %d", final.ItemsFound)
	}
}

func TestWorkerFailsOnMissingSelectors(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	board := &model.JobBoard{Name: "broken", Type: model.BoardHTML, BaseURL: "https://jobs.example.com", MaxPages: 1}
	_ = mem.CreateJobBoard(ctx, board)
	j := &model.ScrapeJob{JobBoardID: board.ID, Mode: model.ModeManual}
	_ = mem.CreateScrapeJob(ctx, j)

	exec := executor.New(&pagedFetcher{bodies: []string{emptyPage()}}, ratelimit.New(10), dedup.New(), mem)
	w := New("worker-1", mem, exec)

	if err := w.Run(ctx, j.ID); err != nil {
		t.Fatalf("run should complete with a failed job, not a worker error: %v", err)
	}
	final, _ := mem.GetScrapeJob(ctx, j.ID)
	if final.Status != model.JobFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
}

func TestWorkerClaimConflictSurfacesAsError(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	board := &model.JobBoard{Name: "demo2", Type: model.BoardHTML, BaseURL: "https://jobs.example.com", MaxPages: 1}
	_ = mem.CreateJobBoard(ctx, board)
	j := &model.ScrapeJob{JobBoardID: board.ID, Mode: model.ModeManual}
	_ = mem.CreateScrapeJob(ctx, j)

	// Pre-claim the job to simulate another worker racing for it.
	if _, err := mem.ClaimPendingJob(ctx, j.ID, "other-worker"); err != nil {
		t.Fatalf("pre-claim: %v", err)
	}

	exec := executor.New(&pagedFetcher{bodies: []string{emptyPage()}}, ratelimit.New(10), dedup.New(), mem)
	w := New("worker-1", mem, exec)
	if err := w.Run(ctx, j.ID); err == nil {
		t.Fatal("expected claim conflict error")
	}
}

func TestWorkerRejectsUnknownJob(t *testing.T) {
	mem := store.NewMemory()
	exec := executor.New(&pagedFetcher{bodies: []string{emptyPage()}}, ratelimit.New(10), dedup.New(), mem)
	w := New("worker-1", mem, exec)
	if err := w.Run(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown job")
	}
}
