package cache

import "sync/atomic"

// similarityScale converts similarity scores to integers so the running sum
// can live in an atomic counter.
const similarityScale = 1e6

// Statistics accumulates lookup outcomes over a trailing window. It is
// injected into the components that need it rather than held as package
// state, so tests and multiple cache instances stay isolated.
type Statistics struct {
	totalQueries atomic.Int64
	hits         atomic.Int64
	misses       atomic.Int64
	simSum       atomic.Int64 // hit similarities scaled by similarityScale
}

// NewStatistics returns an empty statistics window.
func NewStatistics() *Statistics {
	return &Statistics{}
}

// RecordHit counts an accepted lookup with its similarity score.
func (s *Statistics) RecordHit(similarity float32) {
	s.totalQueries.Add(1)
	s.hits.Add(1)
	s.simSum.Add(int64(float64(similarity) * similarityScale))
}

// RecordMiss counts a rejected or empty lookup.
func (s *Statistics) RecordMiss() {
	s.totalQueries.Add(1)
	s.misses.Add(1)
}

// Reset starts a new trailing window.
func (s *Statistics) Reset() {
	s.totalQueries.Store(0)
	s.hits.Store(0)
	s.misses.Store(0)
	s.simSum.Store(0)
}

// StatisticsSnapshot is a consistent-enough view of the window for
// analytics and threshold adaptation.
type StatisticsSnapshot struct {
	TotalQueries      int64
	Hits              int64
	Misses            int64
	HitRate           float64
	AverageSimilarity float64
}

// Snapshot reads the current counters.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	snap := StatisticsSnapshot{
		TotalQueries: s.totalQueries.Load(),
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
	}
	if snap.TotalQueries > 0 {
		snap.HitRate = float64(snap.Hits) / float64(snap.TotalQueries)
	}
	if snap.Hits > 0 {
		snap.AverageSimilarity = float64(s.simSum.Load()) / similarityScale / float64(snap.Hits)
	}
	return snap
}
