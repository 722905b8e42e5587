package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPoolDispatchesJobExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	seen := map[uuid.UUID]int{}

	p := New(Config{Workers: 2, HighWaterMark: 10, LowWaterMark: 5, GracefulTimeout: time.Second}, func(ctx context.Context, id uuid.UUID) error {
		mu.Lock()
		seen[id]++
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		if err := p.Submit(ctx, id, 1); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == len(ids)
	})

	mu.Lock()
	for _, id := range ids {
		if seen[id] != 1 {
			t.Fatalf("expected job %s dispatched exactly once, got %d", id, seen[id])
		}
	}
	mu.Unlock()

	cancel()
	p.Shutdown()
}

func TestPoolOrdersByPriorityThenAge(t *testing.T) {
	var mu sync.Mutex
	var order []uuid.UUID

	p := New(Config{Workers: 1, HighWaterMark: 10, LowWaterMark: 5, GracefulTimeout: time.Second}, func(ctx context.Context, id uuid.UUID) error {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
		return nil
	})

	low := uuid.New()
	high := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	// Submit before Start so both are queued before any worker drains them.
	if err := p.Submit(ctx, low, 1); err != nil {
		t.Fatalf("submit low: %v", err)
	}
	if err := p.Submit(ctx, high, 9); err != nil {
		t.Fatalf("submit high: %v", err)
	}
	p.Start(ctx)

	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if order[0] != high {
		t.Fatalf("expected higher-priority job dispatched first, got order %v", order)
	}
	cancel()
	p.Shutdown()
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
