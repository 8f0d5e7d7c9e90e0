// Package dedup implements the duplicate gate: a two-tier existence check
// over content hashes. The first tier is a bounded in-process LRU cache, the
// second a durable Redis record with a 24-hour expiry. The durable record
// (or its absence) is authoritative within the TTL window; the LRU only
// short-circuits repeat lookups. After TTL expiry an item can legitimately
// reappear as new.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "github.com/pulsewire/newsplatform/pkg/errors"
	"github.com/pulsewire/newsplatform/pkg/logger"
	"github.com/pulsewire/newsplatform/pkg/metrics"
)

const keyPrefix = "news:"

// KV is the durable tier of the gate. pkg/redis.Client satisfies it.
type KV interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Gate is the two-tier duplicate check. Construct once at process start and
// share the handle; all counters and the cache live on the instance.
type Gate struct {
	kv       KV
	cache    *lru.Cache[string, bool]
	capacity int
	ttl      time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	hits         atomic.Int64
	misses       atomic.Int64
	storeQueries atomic.Int64
}

// Stats is a point-in-time snapshot of the gate's cache behaviour.
type Stats struct {
	Size         int     `json:"size"`
	Capacity     int     `json:"capacity"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	StoreQueries int64   `json:"store_queries"`
	HitRate      float64 `json:"hit_rate"`
}

// New creates a Gate with an LRU cache of the given capacity and the given
// durable-record TTL. The metrics argument may be nil (tests).
func New(kv KV, capacity int, ttl time.Duration, m *metrics.Metrics) (*Gate, error) {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	cache, err := lru.New[string, bool](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating dedup cache: %w", err)
	}
	return &Gate{
		kv:       kv,
		cache:    cache,
		capacity: capacity,
		ttl:      ttl,
		logger:   logger.WithComponent("dedup-gate"),
		metrics:  m,
	}, nil
}

// IsDuplicate reports whether the hash has been seen within the TTL window.
// The in-memory cache is consulted first; on a miss the durable store is
// queried and its answer cached. A durable-store failure is surfaced to the
// caller rather than being mapped to a yes/no answer: a silently wrong
// answer here either drops items or stores duplicates.
func (g *Gate) IsDuplicate(ctx context.Context, hash string) (bool, error) {
	if dup, ok := g.cache.Get(hash); ok {
		g.hits.Add(1)
		if g.metrics != nil {
			g.metrics.DedupCacheHits.Inc()
		}
		return dup, nil
	}
	g.misses.Add(1)
	if g.metrics != nil {
		g.metrics.DedupCacheMisses.Inc()
	}

	g.storeQueries.Add(1)
	if g.metrics != nil {
		g.metrics.DedupStoreQueries.Inc()
	}
	exists, err := g.kv.Exists(ctx, keyPrefix+hash)
	if err != nil {
		g.logger.Error("durable dedup lookup failed", "hash", hash, "error", err)
		return false, fmt.Errorf("%w: %v", apperrors.ErrDedupUnavailable, err)
	}
	g.cache.Add(hash, exists)
	return exists, nil
}

// MarkProcessed records the hash in the durable store with the gate's TTL
// and unconditionally caches it as a duplicate, so the very next lookup for
// the same hash short-circuits in memory.
func (g *Gate) MarkProcessed(ctx context.Context, hash string) error {
	if err := g.kv.Set(ctx, keyPrefix+hash, "1", g.ttl); err != nil {
		g.logger.Error("marking hash processed failed", "hash", hash, "error", err)
		return fmt.Errorf("%w: %v", apperrors.ErrDedupUnavailable, err)
	}
	g.cache.Add(hash, true)
	return nil
}

// Stats returns a snapshot of cache size and hit/miss counters.
func (g *Gate) Stats() Stats {
	hits := g.hits.Load()
	misses := g.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return Stats{
		Size:         g.cache.Len(),
		Capacity:     g.capacity,
		Hits:         hits,
		Misses:       misses,
		StoreQueries: g.storeQueries.Load(),
		HitRate:      rate,
	}
}

// Reset purges the in-memory cache and zeroes the counters. Intended for
// tests; the durable tier is untouched.
func (g *Gate) Reset() {
	g.cache.Purge()
	g.hits.Store(0)
	g.misses.Store(0)
	g.storeQueries.Store(0)
}
