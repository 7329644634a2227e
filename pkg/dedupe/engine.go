package dedupe

import (
	"time"

	"github.com/feedrelay/feedrelay/pkg/domain"
)

// Engine runs the dedupe and filter pass for one feed. It is pure with
// respect to external state: the caller supplies the seen set and owns the
// commit of newly accepted fingerprints, which keeps the engine deterministic
// and independently testable.
type Engine struct {
	now func() time.Time // injectable for tests
}

// NewEngine creates an engine using wall-clock time for recency checks.
func NewEngine() *Engine {
	return &Engine{now: time.Now}
}

// Result holds the outcome of a single Process pass.
type Result struct {
	Survivors       []domain.FeedItem
	NewFingerprints []string // aligned with Survivors, one per accepted item
	Duplicates      int
	Stale           int
	Filtered        int
	Capped          bool // accepting stopped at the maxItems cap
}

// Process filters items in input order. Per item: already-seen fingerprints
// are dropped as duplicates, items older than maxAge are dropped as stale
// (items without a date are always fresh; maxAge 0 disables the age check),
// items rejected by rules are dropped as filtered, and the rest are accepted
// until maxItems survivors exist (maxItems <= 0 removes the cap). Items past
// the cap are neither accepted nor fingerprinted, so they stay eligible for a
// future run. The caller's seen set is never mutated.
func (e *Engine) Process(items []domain.FeedItem, seen map[string]struct{}, rules domain.RuleSet, maxAge time.Duration, maxItems int) Result {
	res := Result{}
	accepted := make(map[string]struct{}) // fingerprints accepted this pass

	var cutoff time.Time
	if maxAge > 0 {
		cutoff = e.now().Add(-maxAge)
	}

	for _, item := range items {
		fp := Fingerprint(item)

		if _, ok := seen[fp]; ok {
			res.Duplicates++
			continue
		}
		if _, ok := accepted[fp]; ok { // repeated within the same document
			res.Duplicates++
			continue
		}

		if maxAge > 0 && item.HasPublished() && item.Published.Before(cutoff) {
			res.Stale++
			continue
		}

		if !rules.Empty() && !Match(item, rules) {
			res.Filtered++
			continue
		}

		if maxItems > 0 && len(res.Survivors) >= maxItems {
			res.Capped = true
			break
		}

		accepted[fp] = struct{}{}
		res.Survivors = append(res.Survivors, item)
		res.NewFingerprints = append(res.NewFingerprints, fp)
	}

	return res
}
