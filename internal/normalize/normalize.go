// Package normalize turns a RawJob into a NormalizedJob, generalizing the
// teacher's scraper.ParseSalary / ExtractEmploymentType / ParseRelativeDate
// / ExtractSkillsFromText helpers into a pluggable Backend, per spec.md
// §4.5 and §9's resolution of the normalizer-ML open question.
package normalize

import (
	"database/sql"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/learnbot/autoscraper/internal/model"
)

func nullInt32(v int) sql.NullInt32 {
	return sql.NullInt32{Int32: int32(v), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

// Backend turns a raw record into a normalized one. RuleBased is the sole
// required implementation; an ML-backed implementation may be plugged in
// without touching callers.
type Backend interface {
	Normalize(raw model.RawJob) model.NormalizedJob
}

// RuleBased implements Backend using regex/keyword extraction, the same
// approach as the teacher's scraper.go helpers.
type RuleBased struct {
	skillVocabulary []string
}

// NewRuleBased builds a RuleBased backend with the given skill vocabulary;
// a nil/empty slice falls back to defaultSkillVocabulary.
func NewRuleBased(skillVocabulary []string) *RuleBased {
	if len(skillVocabulary) == 0 {
		skillVocabulary = defaultSkillVocabulary
	}
	return &RuleBased{skillVocabulary: skillVocabulary}
}

var defaultSkillVocabulary = []string{
	"go", "golang", "python", "java", "javascript", "typescript", "rust", "c++", "c#",
	"react", "vue", "angular", "node.js", "django", "flask", "spring", "kubernetes",
	"docker", "aws", "gcp", "azure", "terraform", "postgresql", "mysql", "redis",
	"kafka", "rabbitmq", "graphql", "rest", "grpc", "ci/cd", "sql", "nosql",
}

func (b *RuleBased) Normalize(raw model.RawJob) model.NormalizedJob {
	n := model.NormalizedJob{
		RawJobID:            raw.ID,
		Title:               strings.TrimSpace(raw.Title),
		Company:             strings.TrimSpace(raw.Company),
		Location:            strings.TrimSpace(raw.Location),
		Description:         CleanText(raw.Description),
		SalaryCurrency:      "USD",
		NormalizationMethod: model.MethodRuleBased,
	}

	if min, max, currency, period, ok := ParseSalary(raw.SalaryText); ok {
		n.SalaryMin = nullInt32(min)
		n.SalaryMax = nullInt32(max)
		n.SalaryCurrency = currency
		n.SalaryPeriod = period
	}

	n.JobType = ExtractEmploymentType(raw.JobTypeText + " " + raw.Description)
	n.ExperienceLevel = ExtractExperienceLevel(raw.Title + " " + raw.Description)
	n.RemoteAllowed = ExtractRemoteAllowed(raw.Location + " " + raw.Description)

	city, state, country, confidence := ParseLocation(raw.Location)
	if confidence >= 0.5 {
		n.City = nullString(city)
		n.State = nullString(state)
		n.Country = nullString(country)
	}

	if t, ok := ParseRelativeDate(raw.PostedDateText); ok {
		n.PostedDate = nullTime(t)
	}

	n.Skills = ExtractSkillsFromText(raw.Description, b.skillVocabulary)
	n.NormalizationConfidence = confidence

	n.QualityScore = QualityScore(n)
	n.IsPublished = true // caller clamps against the board's quality_threshold
	return n
}

// QualityScore is spec.md §4.5's weighted-completeness formula: 0.6 over
// required fields (title, company, description), 0.4 over optional
// fields (location, salary, job_type, experience_level, posted_date).
func QualityScore(n model.NormalizedJob) float64 {
	required := 0.0
	requiredTotal := 3.0
	if n.Title != "" {
		required++
	}
	if n.Company != "" {
		required++
	}
	if n.Description != "" {
		required++
	}

	optional := 0.0
	optionalTotal := 5.0
	if n.Location != "" {
		optional++
	}
	if n.SalaryMin.Valid || n.SalaryMax.Valid {
		optional++
	}
	if n.JobType != "" {
		optional++
	}
	if n.ExperienceLevel != "" && n.ExperienceLevel != model.LevelUnknown {
		optional++
	}
	if n.PostedDate.Valid {
		optional++
	}

	return 0.6*(required/requiredTotal) + 0.4*(optional/optionalTotal)
}

// ── Salary parsing ──────────────────────────────────────────────────────

var (
	salaryRangeRe = regexp.MustCompile(`(?i)[\$₹£€]?\s*([\d.,]+)\s*(k)?(?:\s*/\s*[a-z]+)?\s*(?:-|–|to)\s*[\$₹£€]?\s*([\d.,]+)\s*(k)?`)
	salarySingleRe = regexp.MustCompile(`(?i)[\$₹£€]\s*([\d.,]+)\s*(k)?`)
	currencySymbols = map[string]string{"$": "USD", "₹": "INR", "£": "GBP", "€": "EUR"}
)

// ParseSalary extracts (min, max, currency, period) from free text such as
// "$80k-120k", "80,000 - 120,000 USD", "₹12 LPA", returning ok=false when
// nothing resembling a salary is found.
func ParseSalary(text string) (min, max int, currency, period string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, 0, "", "", false
	}
	currency = detectCurrency(text)
	period = detectPeriod(text)

	if m := salaryRangeRe.FindStringSubmatch(text); m != nil {
		lo := parseSalaryValue(m[1], m[2] != "")
		hi := parseSalaryValue(m[3], m[4] != "")
		if lo > 0 && hi > 0 {
			if lo > hi {
				lo, hi = hi, lo
			}
			return applyPeriod(lo, period), applyPeriod(hi, period), currency, period, true
		}
	}
	if m := salarySingleRe.FindStringSubmatch(text); m != nil {
		v := parseSalaryValue(m[1], m[2] != "")
		if v > 0 {
			v = applyPeriod(v, period)
			return v, v, currency, period, true
		}
	}
	return 0, 0, "", "", false
}

func detectCurrency(text string) string {
	for sym, code := range currencySymbols {
		if strings.Contains(text, sym) {
			return code
		}
	}
	if strings.Contains(strings.ToUpper(text), "LPA") {
		return "INR"
	}
	return "USD"
}

func detectPeriod(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "/hr") || strings.Contains(lower, "hour"):
		return "hourly"
	case strings.Contains(lower, "/mo") || strings.Contains(lower, "month") || strings.Contains(lower, "lpa"):
		return "monthly"
	default:
		return "yearly"
	}
}

// applyPeriod converts an hourly/monthly figure to its annual equivalent,
// matching the teacher's parseSalaryValue hourly->annual conversion.
func applyPeriod(v int, period string) int {
	switch period {
	case "hourly":
		return v * 40 * 52
	case "monthly":
		return v * 12
	default:
		return v
	}
}

func parseSalaryValue(raw string, isK bool) int {
	cleaned := strings.ReplaceAll(raw, ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	if isK {
		f *= 1000
	}
	return int(math.Round(f))
}

// ── Employment type / experience level ──────────────────────────────────

var employmentKeywords = map[model.EmploymentType][]string{
	model.EmploymentFullTime:   {"full-time", "full time", "permanent"},
	model.EmploymentPartTime:   {"part-time", "part time"},
	model.EmploymentContract:   {"contract", "contractor", "c2c", "1099"},
	model.EmploymentTemporary:  {"temporary", "temp", "seasonal"},
	model.EmploymentInternship: {"internship", "intern"},
}

// ExtractEmploymentType canonicalizes free text to one of the five
// employment-type enum values, defaulting to full-time when unspecified
// (the common case across job boards).
func ExtractEmploymentType(text string) model.EmploymentType {
	lower := strings.ToLower(text)
	for t, keywords := range employmentKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return t
			}
		}
	}
	return model.EmploymentFullTime
}

var experienceKeywords = map[model.ExperienceLevel][]string{
	model.LevelInternship: {"intern", "internship"},
	model.LevelEntry:      {"entry level", "entry-level", "junior", "graduate", "new grad"},
	model.LevelMid:        {"mid level", "mid-level", "intermediate"},
	model.LevelSenior:     {"senior", "sr.", "sr "},
	model.LevelLead:       {"lead", "principal", "staff"},
	model.LevelExecutive:  {"director", "vp", "vice president", "executive", "head of", "chief"},
}

// ExtractExperienceLevel maps free text to the seniority enum, preferring
// the most specific (highest-ranked) match found.
func ExtractExperienceLevel(text string) model.ExperienceLevel {
	lower := strings.ToLower(text)
	order := []model.ExperienceLevel{
		model.LevelExecutive, model.LevelLead, model.LevelSenior,
		model.LevelMid, model.LevelEntry, model.LevelInternship,
	}
	for _, level := range order {
		for _, kw := range experienceKeywords[level] {
			if strings.Contains(lower, kw) {
				return level
			}
		}
	}
	return model.LevelUnknown
}

// ExtractRemoteAllowed reports whether the text indicates a remote-friendly
// role.
func ExtractRemoteAllowed(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range []string{"remote", "work from home", "wfh", "distributed team"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ── Location parsing ─────────────────────────────────────────────────────

var knownCountries = map[string]string{
	"usa": "United States", "united states": "United States", "us": "United States",
	"uk": "United Kingdom", "united kingdom": "United Kingdom",
	"canada": "Canada", "india": "India", "germany": "Germany", "france": "France",
	"australia": "Australia", "remote": "",
}

// ParseLocation splits "City, State, Country"-style strings, preserving
// the original when confidence is below 0.5 per spec.md §4.5.
func ParseLocation(raw string) (city, state, country string, confidence float64) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", "", 0
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 1:
		if c, ok := knownCountries[strings.ToLower(parts[0])]; ok {
			return "", "", c, 0.6
		}
		return parts[0], "", "", 0.3
	case 2:
		return parts[0], parts[1], "", 0.6
	default:
		last := parts[len(parts)-1]
		if c, ok := knownCountries[strings.ToLower(last)]; ok {
			return parts[0], parts[1], c, 0.9
		}
		return parts[0], parts[1], last, 0.7
	}
}

// ── Date parsing ──────────────────────────────────────────────────────────

var relativeDaysRe = regexp.MustCompile(`(?i)(\d+)\s*day`)
var relativeWeeksRe = regexp.MustCompile(`(?i)(\d+)\s*week`)
var relativeMonthsRe = regexp.MustCompile(`(?i)(\d+)\s*month`)

// ParseRelativeDate parses ISO-8601, "today"/"yesterday"/"N days ago", and
// "posted on <date>" forms, generalizing scraper.ParseRelativeDate.
func ParseRelativeDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", text); err == nil {
		return t, true
	}

	lower := strings.ToLower(text)
	now := time.Now().UTC()
	if strings.HasPrefix(lower, "posted on ") {
		rest := strings.TrimSpace(text[len("posted on "):])
		for _, layout := range []string{"Jan 2, 2006", "January 2, 2006", "Jan 2", "January 2", "2006-01-02"} {
			if t, err := time.Parse(layout, rest); err == nil {
				if t.Year() == 0 {
					t = t.AddDate(now.Year(), 0, 0)
					if t.After(now) {
						t = t.AddDate(-1, 0, 0)
					}
				}
				return t, true
			}
		}
	}
	switch {
	case strings.Contains(lower, "today"):
		return now, true
	case strings.Contains(lower, "yesterday"):
		return now.AddDate(0, 0, -1), true
	}
	if m := relativeDaysRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -n), true
	}
	if m := relativeWeeksRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, 0, -7*n), true
	}
	if m := relativeMonthsRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return now.AddDate(0, -n, 0), true
	}
	return time.Time{}, false
}

// ── Skills extraction ────────────────────────────────────────────────────

// ExtractSkillsFromText matches the skill vocabulary against text,
// longest-match first, suppressing duplicates, mirroring
// scraper.ExtractSkillsFromText.
func ExtractSkillsFromText(text string, vocabulary []string) []string {
	lower := strings.ToLower(text)
	sorted := append([]string(nil), vocabulary...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	seen := map[string]bool{}
	var out []string
	for _, skill := range sorted {
		if strings.Contains(lower, strings.ToLower(skill)) && !seen[skill] {
			seen[skill] = true
			out = append(out, skill)
		}
	}
	sort.Strings(out)
	return out
}

// ── Text cleanup ─────────────────────────────────────────────────────────

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanText strips HTML tags and normalizes whitespace, mirroring
// scraper.CleanText.
func CleanText(raw string) string {
	stripped := tagRe.ReplaceAllString(raw, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(stripped, " "))
}
