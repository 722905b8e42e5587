// Package robots implements robots.txt compliance checking, adapted from
// the teacher's internal/httpclient.RobotsChecker — generalized to use
// the fetcher.Fetcher port instead of its own bespoke HTTP client, so the
// engine's user-agent policy stays centralized in internal/fetcher.
// robots.txt fetches do not pass through internal/ratelimit.
package robots

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/learnbot/autoscraper/internal/fetcher"
)

// Checker caches robots.txt content per domain and answers whether a
// given path is allowed for a user agent.
type Checker struct {
	fetcher   fetcher.Fetcher
	userAgent string

	mu    sync.Mutex
	cache map[string]string // domain -> robots.txt content ("" = unreachable)
}

// New builds a Checker that fetches robots.txt through f, identifying
// itself as userAgent both in the request and when matching rule blocks.
func New(f fetcher.Fetcher, userAgent string) *Checker {
	return &Checker{fetcher: f, userAgent: userAgent, cache: make(map[string]string)}
}

// Allowed reports whether rawURL may be fetched, defaulting to true when
// robots.txt is unparseable or unreachable — scraping proceeds rather
// than silently stalling a board on a transient robots.txt fetch failure.
func (c *Checker) Allowed(ctx context.Context, rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	domain := parsed.Scheme + "://" + parsed.Host

	c.mu.Lock()
	content, cached := c.cache[domain]
	c.mu.Unlock()

	if !cached {
		content = c.fetchRobots(ctx, domain)
		c.mu.Lock()
		c.cache[domain] = content
		c.mu.Unlock()
	}
	if content == "" {
		return true
	}
	return isPathAllowed(content, c.userAgent, parsed.Path)
}

func (c *Checker) fetchRobots(ctx context.Context, domain string) string {
	res, err := c.fetcher.Fetch(ctx, domain+"/robots.txt", nil, 10*time.Second)
	if err != nil || res.StatusCode != 200 {
		return ""
	}
	return string(res.Body)
}

// isPathAllowed parses robots.txt content and checks whether path is
// disallowed for userAgent (exact match or "*" wildcard blocks).
func isPathAllowed(robotsTxt, userAgent, path string) bool {
	type block struct {
		agents    []string
		disallows []string
	}

	var blocks []block
	var current *block

	for _, line := range strings.Split(robotsTxt, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "user-agent:"):
			agent := strings.TrimSpace(line[len("user-agent:"):])
			if current == nil || len(current.disallows) > 0 {
				if current != nil {
					blocks = append(blocks, *current)
				}
				current = &block{}
			}
			current.agents = append(current.agents, agent)
		case strings.HasPrefix(lower, "disallow:"):
			if current != nil {
				if d := strings.TrimSpace(line[len("disallow:"):]); d != "" {
					current.disallows = append(current.disallows, d)
				}
			}
		case line == "" && current != nil && len(current.disallows) > 0:
			blocks = append(blocks, *current)
			current = nil
		}
	}
	if current != nil {
		blocks = append(blocks, *current)
	}

	for _, b := range blocks {
		applies := false
		for _, agent := range b.agents {
			if agent == "*" || strings.EqualFold(agent, userAgent) {
				applies = true
				break
			}
		}
		if !applies {
			continue
		}
		for _, d := range b.disallows {
			if strings.HasPrefix(path, d) {
				return false
			}
		}
	}
	return true
}
