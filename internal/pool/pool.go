// Package pool implements the Worker Pool (C8): a fixed-parallelism
// dispatcher over a priority queue of PENDING jobs, generalizing the
// teacher's per-query sync.WaitGroup fan-out in
// internal/scheduler/scheduler.go into a long-lived worker set with
// backpressure, per spec.md §4.8.
package pool

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config parameterizes the pool, with defaults matching spec.md §4.8.
type Config struct {
	Workers         int
	HighWaterMark   int
	LowWaterMark    int
	GracefulTimeout time.Duration
}

// DefaultConfig returns the spec's named defaults: W=5, high=1000, low=800,
// graceful_timeout=30s.
func DefaultConfig() Config {
	return Config{Workers: 5, HighWaterMark: 1000, LowWaterMark: 800, GracefulTimeout: 30 * time.Second}
}

// Handler runs one job to completion. Implemented by worker.Worker.Run in
// production and by a stub in tests.
type Handler func(ctx context.Context, jobID uuid.UUID) error

type item struct {
	jobID     uuid.UUID
	priority  int
	createdAt time.Time
	index     int
}

// priorityQueue orders items by (priority desc, createdAt asc), the
// ordering spec.md's invariant 5 requires for dispatch.
type priorityQueue []*item

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].createdAt.Before(q[j].createdAt)
}
func (q priorityQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *priorityQueue) Push(x interface{}) {
	n := len(*q)
	it := x.(*item)
	it.index = n
	*q = append(*q, it)
}
func (q *priorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}

// Pool dispatches queued jobs to a fixed set of workers.
type Pool struct {
	cfg     Config
	handler Handler

	mu       sync.Mutex
	cond     *sync.Cond
	queue    priorityQueue
	draining chan struct{}
	closed   bool

	wg sync.WaitGroup
}

// New builds a Pool; call Start to begin dispatching.
func New(cfg Config, handler Handler) *Pool {
	if cfg.Workers <= 0 {
		cfg = DefaultConfig()
	}
	p := &Pool{cfg: cfg, handler: handler, draining: make(chan struct{})}
	p.cond = sync.NewCond(&p.mu)
	heap.Init(&p.queue)
	return p
}

// Start launches cfg.Workers goroutines consuming the queue until ctx is
// cancelled or Shutdown is called.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx)
	}
}

func (p *Pool) runWorker(ctx context.Context) {
	defer p.wg.Done()
	for {
		jobID, ok := p.dequeue(ctx)
		if !ok {
			return
		}
		_ = p.handler(ctx, jobID)
	}
}

func (p *Pool) dequeue(ctx context.Context) (uuid.UUID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.queue.Len() == 0 && !p.closed {
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				p.cond.Broadcast()
			case <-done:
			}
		}()
		p.cond.Wait()
		close(done)
		select {
		case <-ctx.Done():
			return uuid.Nil, false
		default:
		}
	}
	if p.queue.Len() == 0 {
		return uuid.Nil, false
	}
	it := heap.Pop(&p.queue).(*item)
	return it.jobID, true
}

// Submit enqueues a job at the given priority. Submit blocks (respecting
// ctx) while the queue is at or above the high-water mark, until it drains
// below the low-water mark, per spec.md §4.8's backpressure policy.
func (p *Pool) Submit(ctx context.Context, jobID uuid.UUID, priority int) error {
	p.mu.Lock()
	if p.queue.Len() >= p.cfg.HighWaterMark {
		for !p.drainedBelowLowWaterLocked() {
			p.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(50 * time.Millisecond):
			}
			p.mu.Lock()
		}
	}
	if p.closed {
		p.mu.Unlock()
		return context.Canceled
	}
	heap.Push(&p.queue, &item{jobID: jobID, priority: priority, createdAt: time.Now()})
	p.mu.Unlock()
	p.cond.Broadcast()
	return nil
}

func (p *Pool) drainedBelowLowWaterLocked() bool {
	return p.queue.Len() < p.cfg.LowWaterMark
}

// QueueDepth reports the current number of PENDING jobs waiting in the
// pool's queue, backing the EngineState queued_jobs_count gauge.
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Shutdown stops accepting new jobs, wakes blocked workers, and waits up
// to cfg.GracefulTimeout for in-flight work to finish (the caller's ctx
// cancellation is what actually interrupts a running handler).
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.cfg.GracefulTimeout):
	}
}
