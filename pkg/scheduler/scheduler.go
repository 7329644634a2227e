// Package scheduler coordinates runs: it fans out fetch+dedupe across feeds,
// delivers survivors in strict order through the rate-limited notifier,
// commits the seen state once per run, and reports the outcome to the admin
// channel. A single feed's failure never aborts the run.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/feedrelay/feedrelay/pkg/dedupe"
	"github.com/feedrelay/feedrelay/pkg/domain"
	"github.com/feedrelay/feedrelay/pkg/feed"
)

// Parser fetches and parses one feed into ordered items
type Parser interface {
	Parse(ctx context.Context, feedURL string) ([]domain.FeedItem, error)
}

// Store is the durable seen-state contract
type Store interface {
	Load(ctx context.Context, feedURL string) (map[string]struct{}, error)
	MarkSeen(feedURL, fingerprint string)
	Commit(ctx context.Context) error
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Notifier delivers items and admin reports
type Notifier interface {
	SendItem(ctx context.Context, chatID string, item domain.FeedItem) error
	SendAdmin(ctx context.Context, chatID, text string) error
}

// Config holds scheduler configuration. Channel ids are pre-resolved; the
// scheduler never touches the environment.
type Config struct {
	Topics       []domain.Topic
	Channels     map[string]string // topic name -> chat id
	AdminChannel string
	DryRun       bool // log survivors instead of sending, mark nothing

	Interval     time.Duration // 0 = single run
	FetchTimeout time.Duration
	MaxAge       time.Duration // 0 disables age filtering
	MaxItems     int           // per feed per run, <=0 = no cap
	Concurrency  int
	Retention    time.Duration // 0 disables pruning
}

// Scheduler runs the fetch-dedupe-deliver-commit cycle
type Scheduler struct {
	parser   Parser
	store    Store
	notifier Notifier
	engine   *dedupe.Engine
	cfg      Config

	mu   sync.Mutex
	last *domain.RunResult
}

// New creates a scheduler instance.
func New(parser Parser, store Store, notifier Notifier, cfg Config) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Scheduler{
		parser:   parser,
		store:    store,
		notifier: notifier,
		engine:   dedupe.NewEngine(),
		cfg:      cfg,
	}
}

// Run executes runs until the context is canceled: one immediately, then one
// per interval. A zero interval performs a single run and returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.RunOnce(ctx)

	if s.cfg.Interval == 0 {
		return nil
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// feedOutcome is the per-feed result of the concurrent fetch+dedupe stage
type feedOutcome struct {
	topic        string
	chatID       string
	feedURL      string
	survivors    []domain.FeedItem
	fingerprints []string
	report       domain.FeedReport
}

// RunOnce performs one complete run across all topics and feeds.
func (s *Scheduler) RunOnce(ctx context.Context) *domain.RunResult {
	result := &domain.RunResult{Started: time.Now()}
	lgr.Printf("[INFO] run started, %d topics", len(s.cfg.Topics))

	outcomes := s.collect(ctx)
	s.deliver(ctx, outcomes, result)

	// commit always runs, even after feed or delivery failures: fingerprints
	// marked for delivered items must survive the run
	if err := s.store.Commit(ctx); err != nil {
		lgr.Printf("[ERROR] seen-state commit failed, delivered items may repeat next run: %v", err)
		result.Degraded = true
		result.CommitErr = err.Error()
	}

	if s.cfg.Retention > 0 {
		if n, err := s.store.Prune(ctx, s.cfg.Retention); err != nil {
			lgr.Printf("[WARN] seen-state prune failed: %v", err)
		} else if n > 0 {
			lgr.Printf("[DEBUG] pruned %d seen entries", n)
		}
	}

	result.Finished = time.Now()
	s.report(ctx, result)

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	lgr.Printf("[INFO] run finished: %d sent, %d feeds failed, took %v",
		result.TotalSent(), result.FailedFeeds(), result.Finished.Sub(result.Started).Round(time.Millisecond))
	return result
}

// collect fetches and dedupes all feeds concurrently. Each feed works on its
// own loaded seen set; outcomes keep configuration order so delivery order is
// deterministic regardless of completion order.
func (s *Scheduler) collect(ctx context.Context) []*feedOutcome {
	var outcomes []*feedOutcome
	for _, topic := range s.cfg.Topics {
		for _, entry := range topic.Feeds {
			outcomes = append(outcomes, &feedOutcome{
				topic:   topic.Name,
				chatID:  s.cfg.Channels[topic.Name],
				feedURL: entry.URL,
				report:  domain.FeedReport{Topic: topic.Name, FeedURL: entry.URL},
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	idx := 0
	for _, topic := range s.cfg.Topics {
		for _, entry := range topic.Feeds {
			outcome := outcomes[idx]
			idx++
			rules := entry.Rules
			g.Go(func() error {
				s.processFeed(gctx, outcome, rules)
				return nil
			})
		}
	}
	_ = g.Wait() // feed errors are recorded per outcome, never propagated

	return outcomes
}

// processFeed runs fetch, state load and the dedupe engine for one feed
func (s *Scheduler) processFeed(ctx context.Context, outcome *feedOutcome, rules domain.RuleSet) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	items, err := s.parser.Parse(fctx, outcome.feedURL)
	if err != nil {
		lgr.Printf("[WARN] fetch failed for %s: %v", outcome.feedURL, err)
		outcome.report.Error = err.Error()
		var fe *feed.FetchError
		if errors.As(err, &fe) {
			outcome.report.ErrorKind = string(fe.Kind)
		}
		return
	}
	outcome.report.Fetched = len(items)

	seen, err := s.store.Load(ctx, outcome.feedURL)
	if err != nil {
		// fail open: run with an empty set, risking re-delivery, and record
		// the degradation in the feed's report
		lgr.Printf("[WARN] seen-state load failed for %s, running with empty set: %v", outcome.feedURL, err)
		outcome.report.StateReset = true
		seen = map[string]struct{}{}
	}

	res := s.engine.Process(items, seen, rules, s.cfg.MaxAge, s.cfg.MaxItems)
	outcome.survivors = res.Survivors
	outcome.fingerprints = res.NewFingerprints
	outcome.report.Duplicates = res.Duplicates
	outcome.report.Stale = res.Stale
	outcome.report.Filtered = res.Filtered
	outcome.report.Capped = res.Capped

	lgr.Printf("[DEBUG] %s: %d fetched, %d survived (%d dup, %d stale, %d filtered)",
		outcome.feedURL, len(items), len(res.Survivors), res.Duplicates, res.Stale, res.Filtered)
}

// deliver sends survivors in configuration order. A fingerprint is marked
// seen only after its item is delivered, so undelivered survivors stay
// eligible for the next run. The first send failure stops further deliveries
// for this run; already-marked fingerprints still commit.
func (s *Scheduler) deliver(ctx context.Context, outcomes []*feedOutcome, result *domain.RunResult) {
	sendFailed := false
	for _, outcome := range outcomes {
		func() {
			defer func() { result.Feeds = append(result.Feeds, outcome.report) }()

			if len(outcome.survivors) == 0 || outcome.report.Error != "" {
				return
			}

			if s.cfg.DryRun {
				for _, item := range outcome.survivors {
					lgr.Printf("[INFO] dry-run: would send %q from %s", item.Title, outcome.feedURL)
				}
				return
			}

			if outcome.chatID == "" {
				lgr.Printf("[WARN] no channel resolved for topic %q, skipping %d items", outcome.topic, len(outcome.survivors))
				outcome.report.Error = "channel not resolved"
				return
			}
			if sendFailed {
				outcome.report.Error = "skipped, delivery failed earlier in run"
				return
			}

			for i, item := range outcome.survivors {
				if err := s.notifier.SendItem(ctx, outcome.chatID, item); err != nil {
					lgr.Printf("[ERROR] delivery failed for %s, stopping sends this run: %v", outcome.feedURL, err)
					outcome.report.Error = err.Error()
					sendFailed = true
					return
				}
				s.store.MarkSeen(outcome.feedURL, outcome.fingerprints[i])
				outcome.report.Sent++
			}
		}()
	}
}

// LastResult returns the most recent run result, nil before the first run.
func (s *Scheduler) LastResult() *domain.RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
