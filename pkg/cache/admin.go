package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/reportwise/semcache/pkg/observability/logging"
	"github.com/reportwise/semcache/pkg/observability/metrics"
)

// Threshold adaptation tuning. Adaptation only triggers once the trailing
// window holds enough samples to avoid noisy small-sample swings.
const (
	adaptMinSamples = 100
	lowHitRate      = 0.3
	highHitRate     = 0.8
	lowerStep       = 0.05
	raiseStep       = 0.02
)

// AdaptiveThreshold is the similarity acceptance cutoff, retuned from
// observed hit-rate statistics within configured bounds.
type AdaptiveThreshold struct {
	mu      sync.RWMutex
	value   float32
	floor   float32
	ceiling float32
}

// NewAdaptiveThreshold builds a threshold clamped to [floor, ceiling].
func NewAdaptiveThreshold(value, floor, ceiling float32) *AdaptiveThreshold {
	t := &AdaptiveThreshold{floor: floor, ceiling: ceiling}
	t.set(value)
	return t
}

// Value returns the current cutoff.
func (t *AdaptiveThreshold) Value() float32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

func (t *AdaptiveThreshold) set(v float32) {
	if v < t.floor {
		v = t.floor
	}
	if v > t.ceiling {
		v = t.ceiling
	}
	t.mu.Lock()
	t.value = v
	t.mu.Unlock()
	metrics.UpdateAdaptiveThreshold(float64(v))
}

// Administrator performs cache maintenance: expiry, capacity pruning,
// threshold adaptation, and re-indexing. It runs only when Optimize is
// invoked by an external scheduler or owner; there are no hidden background
// timers, which keeps maintenance deterministically testable.
type Administrator struct {
	store      *Store
	stats      *Statistics
	threshold  *AdaptiveThreshold
	defaultTTL time.Duration
	maxEntries int
}

// NewAdministrator wires the maintenance state machine.
func NewAdministrator(store *Store, stats *Statistics, threshold *AdaptiveThreshold, defaultTTL time.Duration, maxEntries int) *Administrator {
	return &Administrator{
		store:      store,
		stats:      stats,
		threshold:  threshold,
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
	}
}

// Optimize runs every maintenance step. Steps are independent and
// idempotent; one step's outcome never blocks the others.
func (a *Administrator) Optimize() {
	now := time.Now()
	expired := a.ExpireStale(now)
	pruned := a.PruneToCapacity()
	adapted := a.AdaptThreshold()
	a.Reindex()

	metrics.UpdateCacheEntries(a.store.Len())
	fields := map[string]interface{}{
		"expired":           expired,
		"pruned":            pruned,
		"threshold_changed": adapted,
		"threshold":         a.threshold.Value(),
		"entries":           a.store.Len(),
	}
	if oldest := a.store.OldestCreation(); !oldest.IsZero() {
		fields["oldest_entry_age"] = now.Sub(oldest).Round(time.Second).String()
	}
	logging.LogEvent("cache_optimized", fields)
}

// ExpireStale removes every entry past its TTL deadline and returns the
// number removed.
func (a *Administrator) ExpireStale(now time.Time) int {
	removed := 0
	for _, e := range a.store.All() {
		deadline := e.ExpiresAt(a.defaultTTL)
		if !deadline.IsZero() && now.After(deadline) {
			if a.store.Remove(e.ID) {
				removed++
			}
		}
	}
	if removed > 0 {
		metrics.RecordCacheEviction("expired", removed)
		logging.LogEvent("cache_cleanup", map[string]interface{}{
			"expired_count":   removed,
			"remaining_count": a.store.Len(),
		})
	}
	return removed
}

// PruneToCapacity removes the lowest-value entries, ordered by access count
// then last access time, until the store is back at capacity. It returns the
// number removed.
func (a *Administrator) PruneToCapacity() int {
	if a.maxEntries <= 0 {
		return 0
	}
	excess := a.store.Len() - a.maxEntries
	if excess <= 0 {
		return 0
	}

	entries := a.store.All()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AccessCount() != entries[j].AccessCount() {
			return entries[i].AccessCount() < entries[j].AccessCount()
		}
		return entries[i].LastAccessedAt().Before(entries[j].LastAccessedAt())
	})

	removed := 0
	for _, e := range entries {
		if removed >= excess {
			break
		}
		if a.store.Remove(e.ID) {
			removed++
		}
	}
	if removed > 0 {
		metrics.RecordCacheEviction("capacity", removed)
		logging.LogEvent("cache_pruned", map[string]interface{}{
			"pruned_count": removed,
			"max_entries":  a.maxEntries,
		})
	}
	return removed
}

// AdaptThreshold retunes the similarity cutoff from the trailing hit rate:
// a low hit rate trades precision for recall by lowering the cutoff, a high
// one does the reverse. On a change the trailing window restarts. It reports
// whether the threshold moved.
func (a *Administrator) AdaptThreshold() bool {
	snap := a.stats.Snapshot()
	if snap.TotalQueries <= adaptMinSamples {
		return false
	}

	current := a.threshold.Value()
	next := current
	switch {
	case snap.HitRate < lowHitRate:
		next = current - lowerStep
	case snap.HitRate > highHitRate:
		next = current + raiseStep
	}

	a.threshold.set(next)
	changed := a.threshold.Value() != current
	if changed {
		logging.LogEvent("threshold_adapted", map[string]interface{}{
			"hit_rate":  snap.HitRate,
			"queries":   snap.TotalQueries,
			"old_value": current,
			"new_value": a.threshold.Value(),
		})
		a.stats.Reset()
	}
	return changed
}

// Reindex is a placeholder: candidate search is a bounded linear scan, so
// there is no index to rebuild yet.
func (a *Administrator) Reindex() {
	logging.Debugf("reindex requested: linear scan backend, nothing to rebuild")
}
