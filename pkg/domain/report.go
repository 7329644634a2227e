package domain

import "time"

// FeedReport holds per-feed counters for a single run.
type FeedReport struct {
	Topic      string `json:"topic"`
	FeedURL    string `json:"feed_url"`
	Fetched    int    `json:"fetched"`
	Duplicates int    `json:"duplicates"`
	Stale      int    `json:"stale"`
	Filtered   int    `json:"filtered"`
	Sent       int    `json:"sent"`
	Capped     bool   `json:"capped,omitempty"`      // per-feed cap was hit
	StateReset bool   `json:"state_reset,omitempty"` // seen state failed to load, ran with empty set
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"` // timeout / network / http / malformed
}

// RunResult aggregates one complete run across all feeds. Created fresh each
// run and discarded after reporting.
type RunResult struct {
	Started   time.Time    `json:"started"`
	Finished  time.Time    `json:"finished"`
	Feeds     []FeedReport `json:"feeds"`
	Degraded  bool         `json:"degraded"` // state commit failed, duplicates possible next run
	CommitErr string       `json:"commit_error,omitempty"`
}

// TotalSent returns the number of items delivered across all feeds.
func (r *RunResult) TotalSent() int {
	n := 0
	for _, f := range r.Feeds {
		n += f.Sent
	}
	return n
}

// FailedFeeds returns the number of feeds that ended with an error.
func (r *RunResult) FailedFeeds() int {
	n := 0
	for _, f := range r.Feeds {
		if f.Error != "" {
			n++
		}
	}
	return n
}
