// Package discovery enumerates candidate pages: record detail links from
// paginated category listings and general pages from the site's sitemap.
package discovery

import (
	"maps"
	"slices"

	"github.com/jonesrussell/north-cloud/shelter-sync/internal/domain"
)

// Candidate is a discovered page not yet persisted.
type Candidate struct {
	URL      string
	Category string
	Kind     domain.URLKind
	Hint     domain.ListingHint
}

// Result is the outcome of one discovery pass. Candidates are deduplicated
// by exact URL string and the first occurrence wins.
type Result struct {
	Candidates []Candidate
	// Failed holds the error for each source that could not be enumerated,
	// keyed by listing URL or SitemapSource.
	Failed map[string]error
	// complete is false for a category once any of its sources failed.
	complete  map[string]bool
	succeeded int
	seen      map[string]bool
}

func newResult() *Result {
	return &Result{
		Failed:   make(map[string]error),
		complete: make(map[string]bool),
		seen:     make(map[string]bool),
	}
}

// add appends c unless its URL is already present.
func (r *Result) add(c Candidate) bool {
	if r.seen[c.URL] {
		return false
	}
	r.seen[c.URL] = true
	r.Candidates = append(r.Candidates, c)
	return true
}

func (r *Result) markComplete(category string) {
	r.succeeded++
	if _, ok := r.complete[category]; !ok {
		r.complete[category] = true
	}
}

// markFailed records a source failure. The category, when given, stays
// incomplete even if another of its sources succeeds.
func (r *Result) markFailed(source, category string, err error) {
	r.Failed[source] = err
	if category != "" {
		r.complete[category] = false
	}
}

// Complete reports whether category was fully enumerated. Only complete
// categories may have their missing URLs tombstoned.
func (r *Result) Complete(category string) bool {
	return r.complete[category]
}

// CompleteCategories returns the fully enumerated categories, sorted.
func (r *Result) CompleteCategories() []string {
	out := make([]string, 0, len(r.complete))
	for category, ok := range r.complete {
		if ok {
			out = append(out, category)
		}
	}
	slices.Sort(out)
	return out
}

// AllFailed reports whether every attempted source failed.
func (r *Result) AllFailed() bool {
	return r.succeeded == 0 && len(r.Failed) > 0
}

// Merge appends other's candidates and outcomes. Candidates already present
// are kept.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	for _, c := range other.Candidates {
		r.add(c)
	}
	maps.Copy(r.Failed, other.Failed)
	for category, ok := range other.complete {
		if prev, seen := r.complete[category]; !seen || prev {
			r.complete[category] = ok
		}
	}
	r.succeeded += other.succeeded
}

// Count returns the number of candidates of the given kind.
func (r *Result) Count(kind domain.URLKind) int {
	n := 0
	for _, c := range r.Candidates {
		if c.Kind == kind {
			n++
		}
	}
	return n
}
