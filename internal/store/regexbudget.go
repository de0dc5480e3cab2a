package store

import (
	"regexp"
	"time"

	"github.com/marmos91/idhost/internal/model"
)

// regexBudget tracks the per-query regex time budget (1s total) and
// enforces the per-match budget (25ms) by running each match in a
// goroutine and abandoning, never blocking on, a match that overruns.
// Go's regexp engine is already linear-time
// (RE2-derived) and cannot catastrophically backtrack, but a pathological
// ExtraData value could still be large enough to blow the per-match
// budget on a slow match; abandoning it skips the row rather than
// blocking the whole query.
type regexBudget struct {
	deadline time.Time
	spent    time.Duration
}

func newRegexBudget() *regexBudget {
	return &regexBudget{deadline: time.Now().Add(model.RegexPerQueryBudget)}
}

// exhausted reports whether the per-query budget has been spent;
// exceeding it terminates the query.
func (b *regexBudget) exhausted() bool {
	return time.Now().After(b.deadline)
}

// matchResult carries a bounded match outcome: matched is only valid when
// ok is true; ok is false when the per-match budget was exceeded and the
// row should be skipped without affecting the rest of the query.
type matchResult struct {
	matched bool
	ok      bool
}

// match runs re against subject under the per-match budget, returning
// ok=false (skip this row) if the match does not complete in time.
func (b *regexBudget) match(re *regexp.Regexp, subject string) matchResult {
	start := time.Now()
	done := make(chan bool, 1)
	go func() {
		done <- re.MatchString(subject)
	}()

	select {
	case matched := <-done:
		b.spent += time.Since(start)
		return matchResult{matched: matched, ok: true}
	case <-time.After(model.RegexPerMatchBudget):
		// The goroutine above is abandoned, not leaked in any unsafe
		// sense: it still runs to completion and is garbage collected
		// once done. Keeps regex matching from pinning a connection
		// goroutine without needing a custom regex engine.
		return matchResult{ok: false}
	}
}
