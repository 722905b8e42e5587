package robots

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/learnbot/autoscraper/internal/fetcher"
)

type stubFetcher struct{ body string }

func (s stubFetcher) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (fetcher.Result, error) {
	return fetcher.Result{StatusCode: 200, Body: []byte(s.body), Headers: http.Header{}}, nil
}

func TestAllowedBlocksDisallowedPath(t *testing.T) {
	c := New(stubFetcher{body: "User-agent: *\nDisallow: /private\n"}, "testbot")
	if c.Allowed(context.Background(), "https://jobs.example.com/private/listing") {
		t.Fatal("expected /private to be disallowed")
	}
	if !c.Allowed(context.Background(), "https://jobs.example.com/public/listing") {
		t.Fatal("expected /public to be allowed")
	}
}

func TestAllowedDefaultsTrueOnUnreachableRobots(t *testing.T) {
	c := New(stubFetcher{body: ""}, "testbot")
	if !c.Allowed(context.Background(), "https://jobs.example.com/anything") {
		t.Fatal("expected allow when robots.txt is empty/unreachable")
	}
}

func TestAllowedCachesPerDomain(t *testing.T) {
	f := &countingFetcher{body: "User-agent: *\nDisallow: /x\n"}
	c := New(f, "testbot")
	c.Allowed(context.Background(), "https://jobs.example.com/a")
	c.Allowed(context.Background(), "https://jobs.example.com/b")
	if f.calls != 1 {
		t.Fatalf("expected robots.txt fetched once per domain, got %d calls", f.calls)
	}
}

type countingFetcher struct {
	body  string
	calls int
}

func (f *countingFetcher) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (fetcher.Result, error) {
	f.calls++
	return fetcher.Result{StatusCode: 200, Body: []byte(f.body), Headers: http.Header{}}, nil
}
