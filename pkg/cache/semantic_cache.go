// Package cache implements a semantic query cache for BI-reporting
// pipelines: lookups match by embedding similarity rather than exact text,
// gated by an adaptive threshold and ranked by recency, usage, and length
// proximity.
package cache

import (
	"context"
	"time"

	"github.com/reportwise/semcache/pkg/config"
	"github.com/reportwise/semcache/pkg/embedding"
	"github.com/reportwise/semcache/pkg/observability/logging"
	"github.com/reportwise/semcache/pkg/observability/metrics"
	"github.com/reportwise/semcache/pkg/similarity"
)

// Embedder produces embedding vectors for query text. The embedding call is
// the only blocking I/O on the lookup path.
type Embedder interface {
	Embed(ctx context.Context, text string) (embedding.Result, error)
}

// SimilarResult is one row of a FindSimilar listing.
type SimilarResult struct {
	Query      string
	Similarity float32
	LastUsed   time.Time
	UsageCount int64
}

// Analytics is the aggregate view returned by SemanticCache.Analytics.
type Analytics struct {
	Period            time.Duration
	TotalQueries      int64
	Hits              int64
	Misses            int64
	HitRate           float64
	AverageSimilarity float64
	Entries           int
	StorageBytes      int64
	Threshold         float32
}

// SemanticCache is the public facade composing the embedding provider, the
// store, the ranker, and the administrator. Cache failures never propagate to
// callers except dimension mismatches, which indicate corrupted state:
// lookups degrade to misses and writes to no-ops.
type SemanticCache struct {
	store      *Store
	embedder   Embedder
	ranker     Ranker
	stats      *Statistics
	threshold  *AdaptiveThreshold
	admin      *Administrator
	evict      EvictionPolicy
	enabled    bool
	maxEntries int
	defaultTTL time.Duration
}

// New builds a SemanticCache from configuration and an embedder.
func New(cfg config.CacheConfig, embedder Embedder) *SemanticCache {
	stats := NewStatistics()
	store := NewStore()
	threshold := NewAdaptiveThreshold(cfg.SimilarityThreshold, cfg.ThresholdFloor, cfg.ThresholdCeiling)

	c := &SemanticCache{
		store:      store,
		embedder:   embedder,
		stats:      stats,
		threshold:  threshold,
		admin:      NewAdministrator(store, stats, threshold, cfg.TTL(), cfg.MaxEntries),
		evict:      PolicyFromName(cfg.EvictionPolicy),
		enabled:    cfg.Enabled,
		maxEntries: cfg.MaxEntries,
		defaultTTL: cfg.TTL(),
	}
	logging.Debugf("semantic cache initialized: enabled=%t maxEntries=%d ttl=%s threshold=%.3f",
		c.enabled, c.maxEntries, c.defaultTTL, threshold.Value())
	return c
}

// IsEnabled reports whether caching is active.
func (c *SemanticCache) IsEnabled() bool { return c.enabled }

// Threshold returns the current adaptive similarity cutoff.
func (c *SemanticCache) Threshold() float32 { return c.threshold.Value() }

// Get looks up a semantically similar cached payload for query, scoped to
// ownerID when non-empty. A returned error always indicates an embedding
// dimension mismatch; every other internal failure is logged and surfaces as
// a miss.
func (c *SemanticCache) Get(ctx context.Context, query, ownerID string) ([]byte, bool, error) {
	start := time.Now()
	if !c.enabled {
		return nil, false, nil
	}
	now := time.Now()

	// Exact-match fast path: identical normalized text needs no embedding.
	if e := c.store.ExactMatch(NormalizeQuery(query), ownerID); e != nil && !c.expired(e, now) {
		c.acceptHit(e, 1.0, now)
		metrics.RecordCacheOperation("get", "hit", time.Since(start).Seconds())
		return e.Payload, true, nil
	}

	result, err := c.embedder.Embed(ctx, query)
	if err != nil {
		logging.Warnf("cache lookup degraded to miss, embedding failed: %v", err)
		c.stats.RecordMiss()
		metrics.RecordCacheMiss()
		metrics.RecordCacheOperation("get", "error", time.Since(start).Seconds())
		return nil, false, nil
	}

	candidates, err := c.collectCandidates(result.Vector, ownerID, now)
	if err != nil {
		// Dimension mismatches are corrupted state and must never be
		// swallowed.
		metrics.RecordCacheOperation("get", "error", time.Since(start).Seconds())
		return nil, false, err
	}

	best := c.ranker.SelectBest(query, candidates, c.threshold.Value(), now)
	if best == nil {
		c.stats.RecordMiss()
		metrics.RecordCacheMiss()
		metrics.RecordCacheOperation("get", "miss", time.Since(start).Seconds())
		logging.LogEvent("cache_miss", map[string]interface{}{
			"owner":      ownerID,
			"candidates": len(candidates),
			"threshold":  c.threshold.Value(),
		})
		return nil, false, nil
	}

	c.acceptHit(best.Entry, best.Similarity, now)
	metrics.RecordCacheOperation("get", "hit", time.Since(start).Seconds())
	return best.Entry.Payload, true, nil
}

// Set stores a new entry for query. Every call creates a new entry; near
// duplicates are not deduplicated at write time, eviction and ranking handle
// them lazily. ttl 0 uses the cache default. Internal failures degrade to a
// logged no-op: the caller's computed result is simply not cached this time.
func (c *SemanticCache) Set(ctx context.Context, query, ownerID string, payload []byte, ttl time.Duration) {
	start := time.Now()
	if !c.enabled {
		return
	}

	result, err := c.embedder.Embed(ctx, query)
	if err != nil {
		logging.Warnf("cache set skipped, embedding failed: %v", err)
		metrics.RecordCacheOperation("set", "error", time.Since(start).Seconds())
		return
	}

	now := time.Now()
	entry := NewEntry(query, ownerID, result.Vector, payload, ttl, now, Metadata{
		QueryLength: len(query),
		Fallback:    result.Fallback,
	})

	// Evict one entry up front when at capacity, per the configured policy;
	// bulk pruning happens in Optimize.
	if c.maxEntries > 0 && c.store.Len() >= c.maxEntries {
		all := c.store.All()
		if idx := c.evict.SelectVictim(all); idx >= 0 {
			victim := all[idx]
			c.store.Remove(victim.ID)
			metrics.RecordCacheEviction("capacity", 1)
			logging.LogEvent("cache_evicted", map[string]interface{}{
				"id":          victim.ID,
				"max_entries": c.maxEntries,
			})
		}
	}

	c.store.Insert(entry)
	metrics.UpdateCacheEntries(c.store.Len())
	metrics.RecordCacheOperation("set", "success", time.Since(start).Seconds())
	logging.LogEvent("cache_entry_added", map[string]interface{}{
		"id":       entry.ID,
		"owner":    ownerID,
		"fallback": result.Fallback,
	})
}

// FindSimilar returns up to maxResults cached queries ranked by similarity to
// query. Internal failures yield an empty list; only dimension mismatches
// return an error.
func (c *SemanticCache) FindSimilar(ctx context.Context, query string, maxResults int) ([]SimilarResult, error) {
	start := time.Now()
	if !c.enabled {
		return nil, nil
	}

	result, err := c.embedder.Embed(ctx, query)
	if err != nil {
		logging.Warnf("find similar degraded to empty, embedding failed: %v", err)
		metrics.RecordCacheOperation("find_similar", "error", time.Since(start).Seconds())
		return nil, nil
	}

	now := time.Now()
	entries := c.store.EntriesFor("", c.scanLimit())
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		vectors[i] = e.Embedding
	}

	scored, err := similarity.FindMostSimilar(result.Vector, vectors, 0, maxResults)
	if err != nil {
		metrics.RecordCacheOperation("find_similar", "error", time.Since(start).Seconds())
		return nil, err
	}

	out := make([]SimilarResult, 0, len(scored))
	for _, s := range scored {
		e := entries[s.Index]
		if c.expired(e, now) {
			continue
		}
		out = append(out, SimilarResult{
			Query:      e.Query,
			Similarity: s.Score,
			LastUsed:   e.LastAccessedAt(),
			UsageCount: e.AccessCount(),
		})
	}
	metrics.RecordCacheOperation("find_similar", "success", time.Since(start).Seconds())
	return out, nil
}

// Analytics reports aggregate cache effectiveness over the trailing window.
func (c *SemanticCache) Analytics(period time.Duration) Analytics {
	snap := c.stats.Snapshot()
	return Analytics{
		Period:            period,
		TotalQueries:      snap.TotalQueries,
		Hits:              snap.Hits,
		Misses:            snap.Misses,
		HitRate:           snap.HitRate,
		AverageSimilarity: snap.AverageSimilarity,
		Entries:           c.store.Len(),
		StorageBytes:      c.store.SizeEstimate(),
		Threshold:         c.threshold.Value(),
	}
}

// Optimize runs maintenance: expiry, capacity pruning, threshold adaptation,
// and re-indexing. Callers drive it from their own scheduler.
func (c *SemanticCache) Optimize() {
	c.admin.Optimize()
}

// Clear removes entries matching a substring pattern and/or owner scope;
// with no arguments it removes everything. It returns the number removed.
func (c *SemanticCache) Clear(pattern, ownerID string) int {
	removed := c.store.Clear(pattern, ownerID)
	if removed > 0 {
		metrics.RecordCacheEviction("clear", removed)
		metrics.UpdateCacheEntries(c.store.Len())
		logging.LogEvent("cache_cleared", map[string]interface{}{
			"pattern": pattern,
			"owner":   ownerID,
			"removed": removed,
		})
	}
	return removed
}

// Len returns the current number of stored entries.
func (c *SemanticCache) Len() int { return c.store.Len() }

// collectCandidates scores the owner-scoped (or global) candidate set
// against the query vector. Expired entries are skipped; a dimension
// mismatch aborts the scan.
func (c *SemanticCache) collectCandidates(vector []float32, ownerID string, now time.Time) ([]CandidateMatch, error) {
	entries := c.store.EntriesFor(ownerID, c.scanLimit())
	matches := make([]CandidateMatch, 0, len(entries))
	for _, e := range entries {
		if c.expired(e, now) {
			continue
		}
		score, err := similarity.CosineSimilarity(vector, e.Embedding)
		if err != nil {
			return nil, err
		}
		matches = append(matches, CandidateMatch{Entry: e, Similarity: score})
	}
	return matches, nil
}

func (c *SemanticCache) acceptHit(e *CacheEntry, score float32, now time.Time) {
	e.Touch(now)
	c.stats.RecordHit(score)
	metrics.RecordCacheHit()
	logging.LogEvent("cache_hit", map[string]interface{}{
		"id":         e.ID,
		"similarity": score,
		"threshold":  c.threshold.Value(),
	})
}

func (c *SemanticCache) expired(e *CacheEntry, now time.Time) bool {
	deadline := e.ExpiresAt(c.defaultTTL)
	return !deadline.IsZero() && now.After(deadline)
}

func (c *SemanticCache) scanLimit() int {
	if c.maxEntries > 0 {
		return c.maxEntries
	}
	return 0
}
