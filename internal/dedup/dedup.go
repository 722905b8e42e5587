// Package dedup provides process-local URL and content-hash
// deduplication, generalizing storage.ComputeDedupHash's SHA-256 idiom
// behind two bounded hashicorp/golang-lru/v2 caches: a size-bounded
// lru.Cache for URLs and a TTL-bounded expirable.LRU for content hashes.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultURLCapacity     = 10_000
	defaultContentCapacity = 10_000
	defaultContentTTL      = 3600 * time.Second
	descriptionPrefixLen   = 500
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// Deduper tracks URLs and content hashes seen during the current process
// lifetime, backing the in-run half of spec.md §4.4 (the other half, the
// cross-run (board_id, checksum) unique index, lives in the store).
type Deduper struct {
	urls    *lru.Cache[string, struct{}]
	content *expirable.LRU[string, struct{}]
}

// New builds a Deduper with the capacities spec.md §4.4 names as defaults.
func New() *Deduper {
	urls, err := lru.New[string, struct{}](defaultURLCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which never
		// happens with the constant above.
		panic(err)
	}
	content := expirable.NewLRU[string, struct{}](defaultContentCapacity, nil, defaultContentTTL)
	return &Deduper{urls: urls, content: content}
}

// SeenURL reports whether url has already been recorded, recording it as a
// side effect so the second call for the same URL returns true.
func (d *Deduper) SeenURL(url string) bool {
	_, seen := d.urls.Get(url)
	if !seen {
		d.urls.Add(url, struct{}{})
	}
	return seen
}

// SeenContent reports whether the content hash has already been recorded
// this run, recording it as a side effect.
func (d *Deduper) SeenContent(hash string) bool {
	_, seen := d.content.Get(hash)
	if !seen {
		d.content.Add(hash, struct{}{})
	}
	return seen
}

// Checksum computes the spec.md §4.4 content hash: SHA-256 over
// lower(title) | lower(company) | lower(location) | first 500 chars of the
// description, with every field whitespace-normalized first.
func Checksum(title, company, location, description string) string {
	norm := func(s string) string { return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ") }
	desc := norm(description)
	if len(desc) > descriptionPrefixLen {
		desc = desc[:descriptionPrefixLen]
	}
	tuple := strings.ToLower(norm(title)) + "|" + strings.ToLower(norm(company)) + "|" +
		strings.ToLower(norm(location)) + "|" + strings.ToLower(desc)
	sum := sha256.Sum256([]byte(tuple))
	return hex.EncodeToString(sum[:])
}
