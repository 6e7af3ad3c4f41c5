package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportwise/semcache/pkg/cache"
)

func TestRankerScoreWeights(t *testing.T) {
	now := time.Now()
	var r cache.Ranker

	// Fresh entry, single access, identical length: recency 1.0, usage 0.1,
	// length 1.0 yields aux 0.3*1 + 0.4*0.1 + 0.3*1 = 0.64.
	entry := cache.NewEntry("show revenue", "", []float32{1, 0}, []byte("r"), 0, now, cache.Metadata{})
	m := cache.CandidateMatch{Entry: entry, Similarity: 0.9}

	score := r.Score("show revenue", &m, now)
	assert.InDelta(t, 0.7*0.9+0.3*0.64, score, 1e-6)
}

func TestRankerScoreIsDeterministic(t *testing.T) {
	now := time.Now()
	var r cache.Ranker

	entry := cache.NewEntry("list customers by region", "", []float32{1, 0}, []byte("r"), 0, now.Add(-12*time.Hour), cache.Metadata{})
	m := cache.CandidateMatch{Entry: entry, Similarity: 0.88}

	first := r.Score("list customers", &m, now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, r.Score("list customers", &m, now))
	}
}

func TestRankerRecencyDecay(t *testing.T) {
	now := time.Now()
	var r cache.Ranker

	fresh := cache.NewEntry("q", "", nil, nil, 0, now, cache.Metadata{})
	stale := cache.NewEntry("q", "", nil, nil, 0, now.Add(-45*24*time.Hour), cache.Metadata{})

	freshScore := r.Score("q", &cache.CandidateMatch{Entry: fresh, Similarity: 0.9}, now)
	staleScore := r.Score("q", &cache.CandidateMatch{Entry: stale, Similarity: 0.9}, now)
	assert.Greater(t, freshScore, staleScore)

	// Beyond the horizon the recency component bottoms out at zero, so two
	// equally ancient entries score the same.
	ancient := cache.NewEntry("q", "", nil, nil, 0, now.Add(-90*24*time.Hour), cache.Metadata{})
	ancientScore := r.Score("q", &cache.CandidateMatch{Entry: ancient, Similarity: 0.9}, now)
	assert.InDelta(t, staleScore, ancientScore, 1e-9)
}

func TestRankerUsageSaturates(t *testing.T) {
	now := time.Now()
	var r cache.Ranker

	hot := cache.NewEntry("q", "", nil, nil, 0, now, cache.Metadata{})
	for i := 0; i < 20; i++ {
		hot.Touch(now)
	}
	hotter := cache.NewEntry("q", "", nil, nil, 0, now, cache.Metadata{})
	for i := 0; i < 100; i++ {
		hotter.Touch(now)
	}

	a := r.Score("q", &cache.CandidateMatch{Entry: hot, Similarity: 0.9}, now)
	b := r.Score("q", &cache.CandidateMatch{Entry: hotter, Similarity: 0.9}, now)
	assert.InDelta(t, a, b, 1e-9)
}

func TestSelectBestGatesOnSimilarity(t *testing.T) {
	now := time.Now()
	var r cache.Ranker

	candidates := []cache.CandidateMatch{
		{Entry: cache.NewEntry("a", "", nil, nil, 0, now, cache.Metadata{}), Similarity: 0.60},
		{Entry: cache.NewEntry("b", "", nil, nil, 0, now, cache.Metadata{}), Similarity: 0.84},
	}
	assert.Nil(t, r.SelectBest("q", candidates, 0.85, now))
}

func TestSelectBestPicksHighestRankingScore(t *testing.T) {
	now := time.Now()
	var r cache.Ranker

	// Lower similarity but far more usage and freshness can outrank a
	// slightly more similar stale entry.
	stale := cache.NewEntry("show revenue", "", nil, nil, 0, now.Add(-25*24*time.Hour), cache.Metadata{})
	busy := cache.NewEntry("show revenue", "", nil, nil, 0, now, cache.Metadata{})
	for i := 0; i < 15; i++ {
		busy.Touch(now)
	}

	candidates := []cache.CandidateMatch{
		{Entry: stale, Similarity: 0.92},
		{Entry: busy, Similarity: 0.90},
	}
	best := r.SelectBest("show revenue", candidates, 0.85, now)
	require.NotNil(t, best)
	assert.Equal(t, busy.ID, best.Entry.ID)
}

func TestSelectBestTieBreaks(t *testing.T) {
	now := time.Now()
	var r cache.Ranker

	// Identical entries except access count: the busier one wins the tie on
	// ranking score via its usage component, and when even that is equal the
	// lower id is chosen so repeated lookups stay stable.
	a := cache.NewEntry("q", "", nil, nil, 0, now, cache.Metadata{})
	b := cache.NewEntry("q", "", nil, nil, 0, now, cache.Metadata{})

	candidates := []cache.CandidateMatch{
		{Entry: a, Similarity: 0.9},
		{Entry: b, Similarity: 0.9},
	}
	best := r.SelectBest("q", candidates, 0.85, now)
	require.NotNil(t, best)
	lower := a.ID
	if b.ID < lower {
		lower = b.ID
	}
	assert.Equal(t, lower, best.Entry.ID)
}

func TestSelectBestEmptyCandidates(t *testing.T) {
	var r cache.Ranker
	assert.Nil(t, r.SelectBest("q", nil, 0.85, time.Now()))
}
