// Package extract turns one fetched page into candidate ExtractedRecords,
// generalizing internal/scraper/career_page.go's selector-driven HTML
// extraction plus new RSS/API extractors for the other two board types.
package extract

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/learnbot/autoscraper/internal/model"
)

// Extractor turns a fetched page body into zero or more candidate records.
// A nil error with zero records means "no more results" for RSS/paginated
// HTML boards, which the worker interprets as an early-completion signal
// per spec.md §4.7.
type Extractor interface {
	Extract(body []byte, board model.JobBoard, pageURL string) ([]model.ExtractedRecord, error)
}

// ForBoardType returns the Extractor appropriate for a board's type.
func ForBoardType(t model.BoardType) (Extractor, error) {
	switch t {
	case model.BoardRSS:
		return RSSExtractor{}, nil
	case model.BoardHTML:
		return HTMLExtractor{}, nil
	case model.BoardAPI:
		return APIExtractor{}, nil
	case model.BoardHybrid:
		return HTMLExtractor{}, nil
	default:
		return nil, fmt.Errorf("extract: unknown board type %q", t)
	}
}

// ── RSS ──────────────────────────────────────────────────────────────────

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Author      string `xml:"author"`
}

// RSSExtractor parses a standard RSS 2.0 feed body.
type RSSExtractor struct{}

func (RSSExtractor) Extract(body []byte, board model.JobBoard, pageURL string) ([]model.ExtractedRecord, error) {
	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("extract: parse rss: %w", err)
	}
	var out []model.ExtractedRecord
	for _, item := range feed.Channel.Items {
		out = append(out, model.ExtractedRecord{
			Title:          strings.TrimSpace(item.Title),
			Company:        strings.TrimSpace(item.Author),
			Description:    strings.TrimSpace(item.Description),
			URL:            strings.TrimSpace(item.Link),
			PostedDateText: strings.TrimSpace(item.PubDate),
		})
	}
	return out, nil
}

// ── API (JSON) ───────────────────────────────────────────────────────────

// APIExtractor walks a JSON response looking for an array of job objects
// (at the board's "results_path" selector when set) and reads each field
// from a fixed table of common field-name aliases, mirroring
// career_page.go's extractAPIJob.
type APIExtractor struct{}

var apiFieldAliases = map[string][]string{
	"title":       {"title", "job_title", "position", "name"},
	"company":     {"company", "company_name", "employer"},
	"location":    {"location", "job_location", "city"},
	"description": {"description", "job_description", "summary"},
	"url":         {"url", "link", "apply_url", "job_url"},
	"salary":      {"salary", "salary_range", "compensation"},
	"job_type":    {"job_type", "employment_type", "type"},
	"posted_date": {"posted_date", "date_posted", "created_at", "published_at"},
}

func (APIExtractor) Extract(body []byte, board model.JobBoard, pageURL string) ([]model.ExtractedRecord, error) {
	var root interface{}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("extract: parse json: %w", err)
	}

	items := findJobArray(root, board.Selectors["results_path"])
	var out []model.ExtractedRecord
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, model.ExtractedRecord{
			Title:          firstString(obj, apiFieldAliases["title"]),
			Company:        firstString(obj, apiFieldAliases["company"]),
			Location:       firstString(obj, apiFieldAliases["location"]),
			Description:    firstString(obj, apiFieldAliases["description"]),
			URL:            firstString(obj, apiFieldAliases["url"]),
			SalaryText:     firstString(obj, apiFieldAliases["salary"]),
			JobTypeText:    firstString(obj, apiFieldAliases["job_type"]),
			PostedDateText: firstString(obj, apiFieldAliases["posted_date"]),
			RawData:        obj,
		})
	}
	return out, nil
}

// findJobArray locates the job-listing array, either at an explicit
// board-configured path or by scanning top-level keys for the first array
// of objects found.
func findJobArray(root interface{}, path string) []interface{} {
	if path != "" {
		cur := root
		for _, key := range strings.Split(path, ".") {
			obj, ok := cur.(map[string]interface{})
			if !ok {
				return nil
			}
			cur = obj[key]
		}
		if arr, ok := cur.([]interface{}); ok {
			return arr
		}
		return nil
	}
	switch v := root.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		for _, key := range []string{"jobs", "results", "data", "items"} {
			if arr, ok := v[key].([]interface{}); ok {
				return arr
			}
		}
	}
	return nil
}

func firstString(obj map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

// ── HTML (selector-driven) ───────────────────────────────────────────────

// HTMLExtractor walks the parsed DOM using the board's CSS-subset
// selectors, generalizing career_page.go's parseCareerPageHTML /
// findBySelector / matchesSelector.
type HTMLExtractor struct{}

func (HTMLExtractor) Extract(body []byte, board model.JobBoard, pageURL string) ([]model.ExtractedRecord, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}

	listingSel := board.Selectors["listing"]
	if listingSel == "" {
		return nil, fmt.Errorf("extract: board %s missing required 'listing' selector", board.Name)
	}
	nodes := findBySelector(doc, listingSel)

	var out []model.ExtractedRecord
	for _, node := range nodes {
		rec := model.ExtractedRecord{
			Title:       textOf(findBySelector(node, board.Selectors["title"])),
			Company:     textOf(findBySelector(node, board.Selectors["company"])),
			Location:    textOf(findBySelector(node, board.Selectors["location"])),
			Description: textOf(findBySelector(node, board.Selectors["description"])),
			SalaryText:  textOf(findBySelector(node, board.Selectors["salary"])),
			JobTypeText: textOf(findBySelector(node, board.Selectors["job_type"])),
		}
		if href := attrOf(findBySelector(node, board.Selectors["link"]), "href"); href != "" {
			rec.URL = resolveURL(board.BaseURL, href)
		}
		if rec.Title != "" {
			out = append(out, rec)
		}
	}
	return out, nil
}

func textOf(nodes []*html.Node) string {
	if len(nodes) == 0 {
		return ""
	}
	return strings.TrimSpace(collectText(nodes[0]))
}

func attrOf(nodes []*html.Node, attr string) string {
	if len(nodes) == 0 {
		return ""
	}
	for _, a := range nodes[0].Attr {
		if a.Key == attr {
			return a.Val
		}
	}
	return ""
}

func collectText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(collectText(c))
		sb.WriteString(" ")
	}
	return sb.String()
}

// findBySelector supports ".class", "#id", "element.class" and bare
// element selectors, the same subset career_page.go's matchesSelector
// implements.
func findBySelector(n *html.Node, selector string) []*html.Node {
	if selector == "" {
		return nil
	}
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && matchesSelector(node, selector) {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func matchesSelector(n *html.Node, selector string) bool {
	switch {
	case strings.HasPrefix(selector, "#"):
		return attrEquals(n, "id", selector[1:])
	case strings.HasPrefix(selector, "."):
		return hasClass(n, selector[1:])
	case strings.Contains(selector, "."):
		parts := strings.SplitN(selector, ".", 2)
		return n.Data == parts[0] && hasClass(n, parts[1])
	default:
		return n.Data == selector
	}
}

func attrEquals(n *html.Node, key, want string) bool {
	for _, a := range n.Attr {
		if a.Key == key && a.Val == want {
			return true
		}
	}
	return false
}

func hasClass(n *html.Node, want string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, cls := range strings.Fields(a.Val) {
			if cls == want {
				return true
			}
		}
	}
	return false
}

func resolveURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
