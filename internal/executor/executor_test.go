package executor

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/learnbot/autoscraper/internal/dedup"
	"github.com/learnbot/autoscraper/internal/fetcher"
	"github.com/learnbot/autoscraper/internal/model"
	"github.com/learnbot/autoscraper/internal/ratelimit"
	"github.com/learnbot/autoscraper/internal/store"
)

type stubFetcher struct {
	statusCode int
	body       []byte
	err        error
}

func (s stubFetcher) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (fetcher.Result, error) {
	if s.err != nil {
		return fetcher.Result{}, s.err
	}
	return fetcher.Result{StatusCode: s.statusCode, Body: s.body, Headers: http.Header{}}, nil
}

func TestExecutorRunPersistsRawsOnSuccess(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	board := model.JobBoard{
		ID:      uuid.New(),
		Name:    "demo",
		Type:    model.BoardHTML,
		BaseURL: "https://jobs.example.com",
		Selectors: map[string]string{
			"listing": "div.job",
			"title":   "h2.t",
			"company": "span.c",
		},
		RequestTimeoutS: 5,
	}
	job := model.ScrapeJob{ID: uuid.New(), JobBoardID: board.ID}

	html := `<html><body><div class="job"><h2 class="t">Engineer</h2><span class="c">Acme</span></div></body></html>`
	exec := New(stubFetcher{statusCode: 200, body: []byte(html)}, ratelimit.New(10), dedup.New(), mem)

	run, err := exec.Run(ctx, job, board, "https://jobs.example.com/page/1", 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.ItemsFound != 1 {
		t.Fatalf("expected 1 item found, got %d", run.ItemsFound)
	}

	raws, err := mem.ListUnprocessedRawJobs(ctx, 10)
	if err != nil {
		t.Fatalf("list raws: %v", err)
	}
	if len(raws) != 1 || raws[0].Title != "Engineer" {
		t.Fatalf("unexpected raws: %+v", raws)
	}
}

func TestExecutorRunRecordsFailedRunOnNon2xx(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	board := model.JobBoard{ID: uuid.New(), Name: "demo", Type: model.BoardHTML, BaseURL: "https://jobs.example.com"}
	job := model.ScrapeJob{ID: uuid.New(), JobBoardID: board.ID}

	exec := New(stubFetcher{statusCode: 500}, ratelimit.New(10), dedup.New(), mem)
	run, err := exec.Run(ctx, job, board, "https://jobs.example.com/page/1", 1)
	if err != nil {
		t.Fatalf("run should not error on http failure status, got %v", err)
	}
	if !run.ErrorMessage.Valid {
		t.Fatal("expected error message to be set")
	}
}

func TestExecutorRunEmptyPageSignalsNoMoreResults(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	board := model.JobBoard{
		ID: uuid.New(), Name: "demo", Type: model.BoardHTML, BaseURL: "https://jobs.example.com",
		Selectors: map[string]string{"listing": "div.job"},
	}
	job := model.ScrapeJob{ID: uuid.New(), JobBoardID: board.ID}

	exec := New(stubFetcher{statusCode: 200, body: []byte(`<html><body></body></html>`)}, ratelimit.New(10), dedup.New(), mem)
	run, err := exec.Run(ctx, job, board, "https://jobs.example.com/page/2", 2)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.ItemsFound != 0 {
		t.Fatalf("expected zero items to signal no-more-results, got %d", run.ItemsFound)
	}
}
