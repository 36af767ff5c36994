/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package sqlstore provides a persistent ratelimit.AtomicStore backed by SQLite (modernc.org/sqlite, pure Go).
//
// Counters survive process restarts and can be shared by several processes using the same database file.
// A hit is a single UPSERT ... RETURNING statement. Expired rows are ignored on read and
// purged lazily every PurgeEvery hits.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/atomic"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/retry"
)

// DriverName is the database/sql driver name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Default values for Opts.
const (
	DefaultTableName  = "rate_limit_counters"
	DefaultPurgeEvery = 1000
)

// DefaultRetryPolicy is used to retry statements that failed because the database was busy or locked.
var DefaultRetryPolicy retry.Policy = retry.NewExponentialBackoffPolicy(5*time.Millisecond, 10)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Opts represents options for the Store.
type Opts struct {
	// TableName is the name of the table with counters. DefaultTableName is used if empty.
	TableName string

	// Clock is used to evaluate expiration. ratelimit.SystemClock is used if nil.
	Clock ratelimit.Clock

	// PurgeEvery is the number of hits between purges of expired rows.
	// DefaultPurgeEvery is used if zero, negative value disables purging.
	PurgeEvery int

	// RetryPolicy is used for statements failed with SQLITE_BUSY or SQLITE_LOCKED. DefaultRetryPolicy is used if nil.
	RetryPolicy retry.Policy

	// Logger is used for logging retries and purge failures. Logging is disabled if nil.
	Logger log.FieldLogger
}

// Store keeps window counters in an SQLite table.
type Store struct {
	db         *sql.DB
	ownsDB     bool
	clock      ratelimit.Clock
	purgeEvery int64
	hits       *atomic.Int64
	policy     retry.Policy
	logger     log.FieldLogger

	getQuery   string
	setQuery   string
	hitQuery   string
	purgeQuery string
}

var _ ratelimit.AtomicStore = (*Store)(nil)

// Open opens the SQLite database specified by dsn (e.g. "file:/var/lib/fwlimit/counters.db"
// or ":memory:") and creates the counters table if necessary.
func Open(ctx context.Context, dsn string, opts Opts) (*Store, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if isInMemory(dsn) {
		// Every connection to an in-memory database gets its own empty database.
		db.SetMaxOpenConns(1)
	}
	s, err := NewWithOpts(ctx, db, opts)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

// NewWithOpts creates a Store over an already opened database and creates the counters table if necessary.
func NewWithOpts(ctx context.Context, db *sql.DB, opts Opts) (*Store, error) {
	tableName := opts.TableName
	if tableName == "" {
		tableName = DefaultTableName
	}
	if !tableNameRe.MatchString(tableName) {
		return nil, fmt.Errorf("invalid table name %q", tableName)
	}
	purgeEvery := opts.PurgeEvery
	if purgeEvery == 0 {
		purgeEvery = DefaultPurgeEvery
	}
	s := &Store{
		db:         db,
		clock:      opts.Clock,
		purgeEvery: int64(purgeEvery),
		hits:       atomic.NewInt64(0),
		policy:     opts.RetryPolicy,
		logger:     opts.Logger,
	}
	if s.clock == nil {
		s.clock = ratelimit.SystemClock
	}
	if s.policy == nil {
		s.policy = DefaultRetryPolicy
	}
	if s.logger == nil {
		s.logger = log.NewDisabledLogger()
	}
	s.buildQueries(tableName)

	if err := s.migrate(ctx, tableName); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context, tableName string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + tableName + ` (
			key        TEXT PRIMARY KEY,
			current    INTEGER NOT NULL,
			reset_time INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		) WITHOUT ROWID`,
		`CREATE INDEX IF NOT EXISTS ` + tableName + `_expires_at_idx ON ` + tableName + ` (expires_at)`,
	}
	for _, stmt := range stmts {
		if err := s.exec(ctx, stmt); err != nil {
			return fmt.Errorf("create counters table: %w", err)
		}
	}
	return nil
}

func (s *Store) buildQueries(t string) {
	s.getQuery = `SELECT current, reset_time FROM ` + t + ` WHERE key = ?1 AND expires_at > ?2`
	s.setQuery = `INSERT INTO ` + t + ` (key, current, reset_time, expires_at) VALUES (?1, ?2, ?3, ?4)
		ON CONFLICT (key) DO UPDATE SET
			current = excluded.current, reset_time = excluded.reset_time, expires_at = excluded.expires_at`
	// Right-hand sides of SET are evaluated against the row as it was before the update.
	s.hitQuery = `INSERT INTO ` + t + ` AS c (key, current, reset_time, expires_at) VALUES (?1, 1, ?2, ?3)
		ON CONFLICT (key) DO UPDATE SET
			current = CASE WHEN c.expires_at <= ?4 THEN 1 WHEN c.current <= ?5 THEN c.current + 1 ELSE c.current END,
			reset_time = CASE WHEN c.expires_at <= ?4 THEN excluded.reset_time ELSE c.reset_time END,
			expires_at = CASE WHEN c.expires_at <= ?4 THEN excluded.expires_at ELSE c.expires_at END
		RETURNING current, reset_time`
	s.purgeQuery = `DELETE FROM ` + t + ` WHERE expires_at <= ?1`
}

// Get returns the entry stored under the key.
func (s *Store) Get(ctx context.Context, key string) (entry ratelimit.Entry, found bool, err error) {
	now := s.clock.Now().UnixMilli()
	err = s.withRetry(ctx, func(ctx context.Context) error {
		scanErr := s.db.QueryRowContext(ctx, s.getQuery, key, now).Scan(&entry.Current, &entry.ResetTime)
		if errors.Is(scanErr, sql.ErrNoRows) {
			found = false
			return nil
		}
		found = scanErr == nil
		return scanErr
	})
	if err != nil {
		return ratelimit.Entry{}, false, err
	}
	return entry, found, nil
}

// Set stores the entry under the key for ttl.
func (s *Store) Set(ctx context.Context, key string, entry ratelimit.Entry, ttl time.Duration) error {
	expiresAt := s.clock.Now().Add(ttl).UnixMilli()
	return s.exec(ctx, s.setQuery, key, entry.Current, entry.ResetTime, expiresAt)
}

// Hit atomically creates or increments the counter stored under the key.
func (s *Store) Hit(ctx context.Context, key string, limit int, resetTime int64, ttl time.Duration) (ratelimit.Entry, error) {
	now := s.clock.Now()
	expiresAt := now.Add(ttl).UnixMilli()

	var entry ratelimit.Entry
	err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.db.QueryRowContext(ctx, s.hitQuery, key, resetTime, expiresAt, now.UnixMilli(), limit).
			Scan(&entry.Current, &entry.ResetTime)
	})
	if err != nil {
		return ratelimit.Entry{}, err
	}

	if s.purgeEvery > 0 && s.hits.Inc()%s.purgeEvery == 0 {
		if _, purgeErr := s.Purge(ctx); purgeErr != nil {
			s.logger.Warn("failed to purge expired rate limit counters", log.Error(purgeErr))
		}
	}
	return entry, nil
}

// Purge deletes expired rows and returns their number.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.withRetry(ctx, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, s.purgeQuery, s.clock.Now().UnixMilli())
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database if it was opened by Open.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) error {
	return s.withRetry(ctx, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func (s *Store) withRetry(ctx context.Context, fn retry.RetryableFunc) error {
	return retry.DoWithRetry(ctx, s.policy, IsBusyError, func(err error, delay time.Duration) {
		s.logger.Debug("sqlite database is busy, retrying", log.Error(err), log.Duration("delay", delay))
	}, fn)
}

// IsBusyError reports whether err is SQLITE_BUSY or SQLITE_LOCKED (including extended codes).
func IsBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func isInMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}
