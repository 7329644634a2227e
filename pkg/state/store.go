// Package state persists the per-feed record of already-delivered item
// fingerprints across runs. The store is loaded per feed at the start of a
// run, collects newly seen fingerprints in memory, and commits them in a
// single transaction at the end of the run.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS seen (
	feed_url    TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (feed_url, fingerprint)
);
CREATE INDEX IF NOT EXISTS idx_seen_created ON seen (created_at);
`

// Store keeps seen fingerprints in SQLite, keyed by feed URL only. Moving a
// feed between topics or channels never resets its history.
type Store struct {
	db *sqlx.DB

	mu      sync.Mutex
	pending map[string][]string // feed URL -> fingerprints awaiting commit
}

// Config represents store configuration.
type Config struct {
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// New opens the backing database, applies pragmas and initializes the schema.
func New(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		cfg.DSN = "file:feedrelay.db?cache=shared&mode=rwc"
	}

	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db, pending: make(map[string][]string)}, nil
}

// Close closes the backing database.
func (s *Store) Close() error { return s.db.Close() }

// Load returns the committed fingerprints for a feed. A feed without history
// yields an empty set. Read failures are surfaced to the caller; whether to
// proceed with an empty set or abort is the caller's policy decision.
func (s *Store) Load(ctx context.Context, feedURL string) (map[string]struct{}, error) {
	var fps []string
	err := s.db.SelectContext(ctx, &fps, "SELECT fingerprint FROM seen WHERE feed_url = ?", feedURL)
	if err != nil {
		return nil, fmt.Errorf("load seen state for %s: %w", feedURL, err)
	}

	set := make(map[string]struct{}, len(fps))
	for _, fp := range fps {
		set[fp] = struct{}{}
	}
	return set, nil
}

// MarkSeen records a fingerprint for eventual commit. Safe for concurrent use.
func (s *Store) MarkSeen(feedURL, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[feedURL] = append(s.pending[feedURL], fingerprint)
}

// Pending returns the number of fingerprints awaiting commit.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, fps := range s.pending {
		n += len(fps)
	}
	return n
}

// Commit persists all pending fingerprints in one transaction, all or
// nothing. On success the pending set is cleared; on failure it is kept so
// the caller may retry or report the run as degraded. Transient failures are
// retried with backoff before the error is returned.
func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	batch := s.pending
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		now := time.Now().UTC()
		for feedURL, fps := range batch {
			for _, fp := range fps {
				_, err := tx.ExecContext(ctx,
					"INSERT OR IGNORE INTO seen (feed_url, fingerprint, created_at) VALUES (?, ?, ?)", feedURL, fp, now)
				if err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("insert fingerprint: %w", err)
				}
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit seen state: %w", err)
	}

	s.mu.Lock()
	s.pending = make(map[string][]string)
	s.mu.Unlock()
	return nil
}

// Prune removes fingerprints older than the retention window so the table
// does not grow without bound. Retention must stay well above the max-age
// filter or pruned items could be re-delivered.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC()
	res, err := s.db.ExecContext(ctx, "DELETE FROM seen WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune seen state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
