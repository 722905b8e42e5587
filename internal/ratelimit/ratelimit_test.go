package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAcquireReturnsReleaseForDomain(t *testing.T) {
	l := New(10)
	cfg := Config{BaseDelay: 10 * time.Millisecond, MaxDelay: time.Second, RequestsPerMinute: 6000, BackoffMultiplier: 2, RecoveryWindow: time.Second}

	release, err := l.Acquire(context.Background(), "example.com", cfg)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()
}

func TestReportStatusDoublesDelayOnServerError(t *testing.T) {
	l := New(10)
	cfg := Config{BaseDelay: time.Second, MaxDelay: 10 * time.Second, RequestsPerMinute: 10, BackoffMultiplier: 2, RecoveryWindow: time.Minute}

	release, err := l.Acquire(context.Background(), "slow.example.com", cfg)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	release()

	l.ReportStatus("slow.example.com", 503)
	if got := l.EffectiveDelay("slow.example.com"); got != 2*time.Second {
		t.Fatalf("expected delay doubled to 2s, got %v", got)
	}

	l.ReportStatus("slow.example.com", 503)
	if got := l.EffectiveDelay("slow.example.com"); got != 4*time.Second {
		t.Fatalf("expected delay doubled to 4s, got %v", got)
	}
}

func TestReportStatusCapsAtMaxDelay(t *testing.T) {
	l := New(10)
	cfg := Config{BaseDelay: 8 * time.Second, MaxDelay: 10 * time.Second, RequestsPerMinute: 10, BackoffMultiplier: 2, RecoveryWindow: time.Minute}
	release, _ := l.Acquire(context.Background(), "cap.example.com", cfg)
	release()

	l.ReportStatus("cap.example.com", 429)
	if got := l.EffectiveDelay("cap.example.com"); got != cfg.MaxDelay {
		t.Fatalf("expected delay capped at %v, got %v", cfg.MaxDelay, got)
	}
}

func TestDomainExtractsHostname(t *testing.T) {
	d, err := Domain("https://jobs.example.com:8443/api?x=1")
	if err != nil {
		t.Fatalf("domain: %v", err)
	}
	if d != "jobs.example.com" {
		t.Fatalf("expected jobs.example.com, got %s", d)
	}
}

func TestDomainRejectsInvalidURL(t *testing.T) {
	if _, err := Domain("not a url \x7f"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
