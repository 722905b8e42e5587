// Package ratelimit enforces a per-domain token bucket with adaptive
// backoff on top of golang.org/x/time/rate, plus a global concurrency cap,
// generalizing the teacher's httpclient.Client rate limiting and
// api-gateway's per-key token bucket into a single reusable component.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config parameterizes one domain's limiter, mirroring the per-board
// fields in spec.md §4.3.
type Config struct {
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RequestsPerMinute int
	BackoffMultiplier float64
	RecoveryWindow    time.Duration
}

// DefaultConfig matches httpclient.DefaultConfig's numbers, expanded with
// the backoff/recovery knobs spec.md §4.3 calls out by name.
func DefaultConfig() Config {
	return Config{
		BaseDelay:         6 * time.Second, // 10 req/min
		MaxDelay:          2 * time.Minute,
		RequestsPerMinute: 10,
		BackoffMultiplier: 2.0,
		RecoveryWindow:    300 * time.Second,
	}
}

type domainBucket struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	cfg          Config
	effectiveDly time.Duration
	backedOffAt  time.Time
}

// Limiter is the process-wide rate limiter: one token bucket per
// hostname, and one global semaphore bounding total in-flight
// fetches across every domain.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*domainBucket
	global  *semaphore.Weighted
}

// New creates a Limiter whose global concurrency cap is maxConcurrentRequests.
func New(maxConcurrentRequests int64) *Limiter {
	if maxConcurrentRequests <= 0 {
		maxConcurrentRequests = 50
	}
	return &Limiter{
		buckets: make(map[string]*domainBucket),
		global:  semaphore.NewWeighted(maxConcurrentRequests),
	}
}

// Domain extracts the bucket key from a URL: its hostname with any port
// stripped, the same truncation idea as the teacher's RobotsChecker domain
// cache. Subdomains are not merged into their registrable domain, so
// jobs.example.com and www.example.com get separate buckets.
func Domain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("ratelimit: parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("ratelimit: url %q has no host", rawURL)
	}
	return host, nil
}

func (l *Limiter) bucketFor(domain string, cfg Config) *domainBucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[domain]
	if ok {
		return b
	}
	tokensPerSecond := float64(cfg.RequestsPerMinute) / 60.0
	b = &domainBucket{
		limiter:      rate.NewLimiter(rate.Limit(tokensPerSecond), 1),
		cfg:          cfg,
		effectiveDly: cfg.BaseDelay,
	}
	l.buckets[domain] = b
	return b
}

// Acquire blocks, respecting ctx, until a token is available for the
// domain and a global concurrency slot is free. The returned release func
// must be called exactly once to give back the global slot.
func (l *Limiter) Acquire(ctx context.Context, domain string, cfg Config) (release func(), err error) {
	if err := l.global.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("ratelimit: acquire global slot: %w", err)
	}
	b := l.bucketFor(domain, cfg)
	if err := b.limiter.Wait(ctx); err != nil {
		l.global.Release(1)
		return nil, fmt.Errorf("ratelimit: wait for domain %s: %w", domain, err)
	}
	return func() { l.global.Release(1) }, nil
}

// ReportStatus adapts the domain's effective delay after an HTTP response:
// 429/5xx doubles (capped at MaxDelay); a 2xx after a prior backoff halves
// back toward BaseDelay, gated by RecoveryWindow, per spec.md §4.3.
func (l *Limiter) ReportStatus(domain string, statusCode int) {
	l.mu.Lock()
	b, ok := l.buckets[domain]
	l.mu.Unlock()
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case statusCode == 429 || statusCode >= 500:
		b.effectiveDly = time.Duration(float64(b.effectiveDly) * b.cfg.BackoffMultiplier)
		if b.effectiveDly > b.cfg.MaxDelay {
			b.effectiveDly = b.cfg.MaxDelay
		}
		b.backedOffAt = time.Now()
		b.applyLocked()
	case statusCode >= 200 && statusCode < 300:
		if b.effectiveDly <= b.cfg.BaseDelay {
			return
		}
		if time.Since(b.backedOffAt) < b.cfg.RecoveryWindow {
			return
		}
		b.effectiveDly /= 2
		if b.effectiveDly < b.cfg.BaseDelay {
			b.effectiveDly = b.cfg.BaseDelay
		}
		b.backedOffAt = time.Now()
		b.applyLocked()
	}
}

// applyLocked recomputes the bucket's rate.Limiter from the (possibly
// backed-off) effective delay. Caller holds b.mu.
func (b *domainBucket) applyLocked() {
	if b.effectiveDly <= 0 {
		return
	}
	b.limiter.SetLimit(rate.Every(b.effectiveDly))
}

// EffectiveDelay reports the domain's current inter-request delay, used by
// tests to observe backoff state.
func (l *Limiter) EffectiveDelay(domain string) time.Duration {
	l.mu.Lock()
	b, ok := l.buckets[domain]
	l.mu.Unlock()
	if !ok {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.effectiveDly
}
