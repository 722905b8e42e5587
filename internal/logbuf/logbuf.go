// Package logbuf implements an in-memory ring buffer of structured log
// entries backing the Control API's GET /logs endpoint, grounded on the
// teacher's log.Printf("[admin] ...") call sites in internal/admin/handler.go
// — generalized into a queryable store instead of stdout-only logging.
package logbuf

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is a log severity, ordered low to high.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a level string, defaulting to LevelInfo on unknown input.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Entry is one log record.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
	JobID   uuid.NullUUID
	Fields  map[string]interface{}
}

// Ring is a fixed-capacity circular buffer of Entry, overwriting the
// oldest entry once full.
type Ring struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	next     int
	full     bool
}

// New builds a Ring holding at most capacity entries (10,000 per
// spec.md §7's default).
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 10_000
	}
	return &Ring{entries: make([]Entry, capacity), capacity: capacity}
}

// Write appends an entry, evicting the oldest if the ring is full.
func (r *Ring) Write(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[r.next] = e
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
}

// Debugf/Infof/Warnf/Errorf are convenience writers matching the
// teacher's log.Printf-style call sites.
func (r *Ring) Debugf(format string, args ...interface{}) { r.logf(LevelDebug, format, args...) }
func (r *Ring) Infof(format string, args ...interface{})  { r.logf(LevelInfo, format, args...) }
func (r *Ring) Warnf(format string, args ...interface{})  { r.logf(LevelWarn, format, args...) }
func (r *Ring) Errorf(format string, args ...interface{}) { r.logf(LevelError, format, args...) }

func (r *Ring) logf(level Level, format string, args ...interface{}) {
	r.Write(Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

// InfofJob/WarnfJob/ErrorfJob write an entry scoped to a ScrapeJob,
// letting internal/worker make a job's history queryable via GET
// /logs?job_id=.
func (r *Ring) InfofJob(jobID uuid.UUID, format string, args ...interface{}) {
	r.logfJob(LevelInfo, jobID, format, args...)
}
func (r *Ring) WarnfJob(jobID uuid.UUID, format string, args ...interface{}) {
	r.logfJob(LevelWarn, jobID, format, args...)
}
func (r *Ring) ErrorfJob(jobID uuid.UUID, format string, args ...interface{}) {
	r.logfJob(LevelError, jobID, format, args...)
}

func (r *Ring) logfJob(level Level, jobID uuid.UUID, format string, args ...interface{}) {
	r.Write(Entry{Level: level, Message: fmt.Sprintf(format, args...), JobID: uuid.NullUUID{UUID: jobID, Valid: true}})
}

// Query filters, most-recent first. A zero minLevel returns all levels.
// An empty jobID filters by nothing.
func (r *Ring) Query(minLevel Level, jobID uuid.NullUUID, limit int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	if !r.full {
		n = r.next
	}

	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.entries)) % len(r.entries)
		e := r.entries[idx]
		if e.Message == "" && e.Time.IsZero() {
			continue
		}
		if e.Level < minLevel {
			continue
		}
		if jobID.Valid && (!e.JobID.Valid || e.JobID.UUID != jobID.UUID) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
