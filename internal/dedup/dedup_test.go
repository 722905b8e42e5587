package dedup

import "testing"

func TestSeenURLMarksOnFirstSight(t *testing.T) {
	d := New()
	if d.SeenURL("https://example.com/jobs/1") {
		t.Fatal("expected first sight to report unseen")
	}
	if !d.SeenURL("https://example.com/jobs/1") {
		t.Fatal("expected second sight to report seen")
	}
}

func TestChecksumStableAcrossWhitespaceAndCase(t *testing.T) {
	a := Checksum("Senior  Engineer", "Acme Corp", "Remote", "Build cool things.   Ship fast.")
	b := Checksum("senior engineer", "acme corp", "remote", "build cool things. ship fast.")
	if a != b {
		t.Fatalf("expected stable checksum, got %q != %q", a, b)
	}
}

func TestChecksumDiffersOnTitle(t *testing.T) {
	a := Checksum("Senior Engineer", "Acme", "Remote", "desc")
	b := Checksum("Staff Engineer", "Acme", "Remote", "desc")
	if a == b {
		t.Fatal("expected different checksums for different titles")
	}
}

func TestChecksumRespectsPrefixTruncation(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	a := Checksum("T", "C", "L", string(long))
	longer := append(long, 'b', 'b', 'b')
	b := Checksum("T", "C", "L", string(longer))
	if a != b {
		t.Fatal("expected identical checksum when divergence is past the 500-char prefix")
	}
}
