package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/feedrelay/feedrelay/pkg/domain"
)

// report sends the run summary to the admin channel. Admin reporting is best
// effort: a failure is logged, never escalated.
func (s *Scheduler) report(ctx context.Context, result *domain.RunResult) {
	if s.cfg.AdminChannel == "" || s.cfg.DryRun {
		return
	}
	if err := s.notifier.SendAdmin(ctx, s.cfg.AdminChannel, formatSummary(result)); err != nil {
		lgr.Printf("[WARN] admin report failed: %v", err)
	}
}

// formatSummary renders a run result as a compact admin message
func formatSummary(result *domain.RunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run finished: %d sent, %d/%d feeds failed, took %v",
		result.TotalSent(), result.FailedFeeds(), len(result.Feeds),
		result.Finished.Sub(result.Started).Round(time.Millisecond))

	for _, f := range result.Feeds {
		switch {
		case f.Error != "":
			fmt.Fprintf(&b, "\n✗ %s: %s", f.FeedURL, f.Error)
		case f.Capped:
			fmt.Fprintf(&b, "\n⚠ %s: overflow, sent %d and capped, backlog drains next run", f.FeedURL, f.Sent)
		}
		if f.StateReset {
			fmt.Fprintf(&b, "\n⚠ %s: seen state unavailable, ran with empty set", f.FeedURL)
		}
	}

	if result.Degraded {
		fmt.Fprintf(&b, "\n⚠ state commit failed, delivered items may repeat next run: %s", result.CommitErr)
	}
	return b.String()
}
