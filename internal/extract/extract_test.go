package extract

import (
	"testing"

	"github.com/learnbot/autoscraper/internal/model"
)

func TestRSSExtractorParsesItems(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<rss><channel>
<item><title>Go Engineer</title><link>https://example.com/1</link><description>Build things</description><author>Acme</author></item>
<item><title>Data Scientist</title><link>https://example.com/2</link></item>
</channel></rss>`)

	recs, err := RSSExtractor{}.Extract(body, model.JobBoard{}, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Title != "Go Engineer" || recs[0].Company != "Acme" {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
}

func TestRSSExtractorEmptyFeedSignalsNoMoreResults(t *testing.T) {
	body := []byte(`<?xml version="1.0"?><rss><channel></channel></rss>`)
	recs, err := RSSExtractor{}.Extract(body, model.JobBoard{}, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected zero records, got %d", len(recs))
	}
}

func TestAPIExtractorFindsJobsArray(t *testing.T) {
	body := []byte(`{"jobs":[{"title":"Backend Engineer","company_name":"Acme","job_location":"Remote"}]}`)
	recs, err := APIExtractor{}.Extract(body, model.JobBoard{}, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(recs) != 1 || recs[0].Title != "Backend Engineer" || recs[0].Company != "Acme" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestHTMLExtractorWalksSelectors(t *testing.T) {
	body := []byte(`
<html><body>
<div class="job"><h2 class="t">Senior Engineer</h2><span class="c">Acme</span><a class="link" href="/jobs/1">Apply</a></div>
<div class="job"><h2 class="t">Staff Engineer</h2><span class="c">Acme</span><a class="link" href="/jobs/2">Apply</a></div>
</body></html>`)
	board := model.JobBoard{
		BaseURL: "https://example.com",
		Selectors: map[string]string{
			"listing": "div.job",
			"title":   "h2.t",
			"company": "span.c",
			"link":    "a.link",
		},
	}
	recs, err := HTMLExtractor{}.Extract(body, board, "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Title != "Senior Engineer" || recs[0].URL != "https://example.com/jobs/1" {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
}

func TestHTMLExtractorRequiresListingSelector(t *testing.T) {
	_, err := HTMLExtractor{}.Extract([]byte("<html></html>"), model.JobBoard{Name: "x"}, "")
	if err == nil {
		t.Fatal("expected error for missing listing selector")
	}
}
