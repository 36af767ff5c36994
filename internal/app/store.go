/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package app

import (
	"context"
	"fmt"

	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/lrucache"
	"github.com/acronis/go-ratelimit/ratelimit"
	"github.com/acronis/go-ratelimit/ratelimit/lrustore"
	"github.com/acronis/go-ratelimit/ratelimit/memstore"
	"github.com/acronis/go-ratelimit/ratelimit/redisstore"
	"github.com/acronis/go-ratelimit/ratelimit/sqlstore"
	"github.com/acronis/go-ratelimit/ratelimit/throttledstore"
)

// Store is a counters store created from StoreConfig together with its lifecycle hooks.
// Backend is passed to the limiter as is, so its atomic hit and reserved characters are detected.
type Store struct {
	Backend ratelimit.Store
	Type    StoreType

	pingFn  func(ctx context.Context) error
	purgeFn func(ctx context.Context) (int64, error)
	closeFn func() error
}

// StoreOpts represents options for NewStore.
type StoreOpts struct {
	Clock  ratelimit.Clock
	Logger log.FieldLogger

	// LRUMetrics collects cache statistics of the lru store.
	LRUMetrics lrucache.MetricsCollector
}

// NewStore creates the store described by the configuration.
// Remote and persistent stores are connected (and migrated) immediately.
func NewStore(ctx context.Context, cfg *StoreConfig, opts StoreOpts) (*Store, error) {
	switch cfg.Type {
	case StoreTypeMemory:
		return &Store{Backend: memstore.NewWithOpts(memstore.Opts{Clock: opts.Clock}), Type: cfg.Type}, nil

	case StoreTypeLRU:
		s, err := lrustore.NewWithOpts(lrustore.Opts{MaxKeys: cfg.MaxKeys, Clock: opts.Clock, MetricsCollector: opts.LRUMetrics})
		if err != nil {
			return nil, fmt.Errorf("create lru store: %w", err)
		}
		return &Store{Backend: s, Type: cfg.Type}, nil

	case StoreTypeThrottled:
		s, err := throttledstore.New(cfg.MaxKeys)
		if err != nil {
			return nil, fmt.Errorf("create throttled store: %w", err)
		}
		return &Store{Backend: s, Type: cfg.Type}, nil

	case StoreTypeSQL:
		s, err := sqlstore.Open(ctx, cfg.SQL.DSN, sqlstore.Opts{
			TableName: cfg.SQL.TableName,
			Clock:     opts.Clock,
			Logger:    opts.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("open sql store: %w", err)
		}
		return &Store{Backend: s, Type: cfg.Type, pingFn: s.Ping, purgeFn: s.Purge, closeFn: s.Close}, nil

	case StoreTypeRedis:
		s, err := redisstore.Open(ctx, cfg.Redis.URL, redisstore.Opts{KeyPrefix: cfg.Redis.KeyPrefix})
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return &Store{Backend: s, Type: cfg.Type, pingFn: s.Ping, closeFn: s.Close}, nil
	}
	return nil, fmt.Errorf("unknown store type %q", cfg.Type)
}

// Ping checks that the store is reachable. In-process stores are always reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.pingFn == nil {
		return nil
	}
	return s.pingFn(ctx)
}

// Purgeable reports whether expired counters have to be removed from the store explicitly.
func (s *Store) Purgeable() bool {
	return s.purgeFn != nil
}

// Purge removes expired counters and returns their number.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	if s.purgeFn == nil {
		return 0, nil
	}
	return s.purgeFn(ctx)
}

// Close releases connections held by the store.
func (s *Store) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}
