package normalize

import (
	"testing"

	"github.com/learnbot/autoscraper/internal/model"
)

func TestParseSalaryRange(t *testing.T) {
	min, max, currency, period, ok := ParseSalary("$80k - $120k")
	if !ok {
		t.Fatal("expected salary to parse")
	}
	if min != 80000 || max != 120000 {
		t.Fatalf("expected 80000-120000, got %d-%d", min, max)
	}
	if currency != "USD" || period != "yearly" {
		t.Fatalf("expected USD/yearly, got %s/%s", currency, period)
	}
}

func TestParseSalaryHourly(t *testing.T) {
	min, max, _, period, ok := ParseSalary("$45/hr - $60/hr")
	if !ok {
		t.Fatal("expected salary to parse")
	}
	if period != "hourly" {
		t.Fatalf("expected hourly period, got %s", period)
	}
	if min != 45*40*52 || max != 60*40*52 {
		t.Fatalf("expected annualized hourly values, got %d-%d", min, max)
	}
}

func TestParseSalaryNoMatch(t *testing.T) {
	if _, _, _, _, ok := ParseSalary("competitive"); ok {
		t.Fatal("expected no salary match")
	}
}

func TestExtractEmploymentTypeDefaultsFullTime(t *testing.T) {
	if got := ExtractEmploymentType("Great team, flexible hours"); got != model.EmploymentFullTime {
		t.Fatalf("expected full_time default, got %s", got)
	}
	if got := ExtractEmploymentType("This is a contract position"); got != model.EmploymentContract {
		t.Fatalf("expected contract, got %s", got)
	}
}

func TestExtractExperienceLevelPrefersMostSenior(t *testing.T) {
	got := ExtractExperienceLevel("Senior Staff Engineer, entry level mentoring available")
	if got != model.LevelLead {
		t.Fatalf("expected lead (staff), got %s", got)
	}
}

func TestParseRelativeDateDaysAgo(t *testing.T) {
	tm, ok := ParseRelativeDate("Posted 2 days ago")
	if !ok {
		t.Fatal("expected date to parse")
	}
	if tm.IsZero() {
		t.Fatal("expected non-zero time")
	}
}

func TestParseRelativeDateISO(t *testing.T) {
	tm, ok := ParseRelativeDate("2026-01-15")
	if !ok {
		t.Fatal("expected ISO date to parse")
	}
	if tm.Year() != 2026 || tm.Month() != 1 || tm.Day() != 15 {
		t.Fatalf("unexpected parsed date: %v", tm)
	}
}

func TestExtractSkillsFromTextDedupesAndSorts(t *testing.T) {
	skills := ExtractSkillsFromText("We use Go, Golang tooling, and some Python.", []string{"go", "golang", "python"})
	if len(skills) != 3 {
		t.Fatalf("expected 3 skills, got %v", skills)
	}
}

func TestCleanTextStripsTagsAndWhitespace(t *testing.T) {
	got := CleanText("<p>Hello   <b>world</b></p>\n\n")
	if got != "Hello world" {
		t.Fatalf("expected 'Hello world', got %q", got)
	}
}

func TestQualityScoreWeighting(t *testing.T) {
	n := model.NormalizedJob{Title: "Eng", Company: "Acme", Description: "desc"}
	got := QualityScore(n)
	if got != 0.6 {
		t.Fatalf("expected 0.6 for required-only fields, got %v", got)
	}
}

func TestRuleBasedNormalizeIsIdempotent(t *testing.T) {
	backend := NewRuleBased(nil)
	raw := model.RawJob{
		Title:          "Senior Go Engineer",
		Company:        "Acme Corp",
		Location:       "San Francisco, CA, United States",
		Description:    "Build distributed systems in Go and Kubernetes.",
		SalaryText:     "$150k - $180k",
		JobTypeText:    "full-time",
		PostedDateText: "2026-01-01",
	}
	first := backend.Normalize(raw)
	second := backend.Normalize(raw)
	if first.Title != second.Title || first.QualityScore != second.QualityScore {
		t.Fatal("expected normalize to be deterministic over the same raw input")
	}
}
