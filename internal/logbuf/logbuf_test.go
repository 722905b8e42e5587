package logbuf

import (
	"testing"

	"github.com/google/uuid"
)

func TestRingEvictsOldestWhenFull(t *testing.T) {
	r := New(3)
	r.Infof("one")
	r.Infof("two")
	r.Infof("three")
	r.Infof("four")

	entries := r.Query(LevelDebug, uuid.NullUUID{}, 10)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "four" {
		t.Fatalf("expected most recent first, got %q", entries[0].Message)
	}
	for _, e := range entries {
		if e.Message == "one" {
			t.Fatal("oldest entry should have been evicted")
		}
	}
}

func TestQueryFiltersByMinLevel(t *testing.T) {
	r := New(10)
	r.Debugf("d")
	r.Warnf("w")
	r.Errorf("e")

	entries := r.Query(LevelWarn, uuid.NullUUID{}, 10)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries at warn+, got %d", len(entries))
	}
}

func TestQueryFiltersByJobID(t *testing.T) {
	r := New(10)
	job := uuid.New()
	other := uuid.New()

	r.InfofJob(job, "started")
	r.InfofJob(other, "unrelated")
	r.ErrorfJob(job, "failed")
	r.Infof("no job at all")

	entries := r.Query(LevelDebug, uuid.NullUUID{UUID: job, Valid: true}, 10)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for job, got %d", len(entries))
	}
	for _, e := range entries {
		if !e.JobID.Valid || e.JobID.UUID != job {
			t.Fatalf("expected every returned entry scoped to job %s, got %+v", job, e)
		}
	}
}
