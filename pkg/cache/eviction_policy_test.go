package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/reportwise/semcache/pkg/cache"
)

func policyEntries(now time.Time) []*cache.CacheEntry {
	// e0: oldest creation, recently touched, busy
	// e1: newest creation, least recently touched
	// e2: middle creation, single access
	e0 := cache.NewEntry("q0", "", nil, nil, 0, now.Add(-3*time.Hour), cache.Metadata{})
	e0.Touch(now.Add(-time.Minute))
	e0.Touch(now.Add(-time.Minute))

	e1 := cache.NewEntry("q1", "", nil, nil, 0, now.Add(-time.Hour), cache.Metadata{})
	e1.Touch(now.Add(-50 * time.Minute))

	e2 := cache.NewEntry("q2", "", nil, nil, 0, now.Add(-2*time.Hour), cache.Metadata{})

	// creation order differs from access order so the policies disagree
	e2.Touch(now.Add(-30 * time.Minute))
	return []*cache.CacheEntry{e0, e1, e2}
}

func TestFIFOPolicySelectsOldestCreation(t *testing.T) {
	entries := policyEntries(time.Now())
	p := &cache.FIFOPolicy{}
	assert.Equal(t, 0, p.SelectVictim(entries))
}

func TestLRUPolicySelectsLeastRecentlyAccessed(t *testing.T) {
	entries := policyEntries(time.Now())
	p := &cache.LRUPolicy{}
	assert.Equal(t, 1, p.SelectVictim(entries))
}

func TestLowValuePolicySelectsLowestAccessCount(t *testing.T) {
	entries := policyEntries(time.Now())
	// e1 and e2 both have access count 2; e1 was touched longer ago and
	// loses the tie-break.
	p := &cache.LowValuePolicy{}
	assert.Equal(t, 1, p.SelectVictim(entries))
}

func TestLowValuePolicyPrefersColdEntries(t *testing.T) {
	now := time.Now()
	hot := cache.NewEntry("hot", "", nil, nil, 0, now.Add(-5*time.Hour), cache.Metadata{})
	for i := 0; i < 9; i++ {
		hot.Touch(now)
	}
	cold := cache.NewEntry("cold", "", nil, nil, 0, now, cache.Metadata{})

	p := &cache.LowValuePolicy{}
	assert.Equal(t, 1, p.SelectVictim([]*cache.CacheEntry{hot, cold}))
}

func TestPoliciesHandleEmptySlice(t *testing.T) {
	policies := []cache.EvictionPolicy{&cache.FIFOPolicy{}, &cache.LRUPolicy{}, &cache.LowValuePolicy{}}
	for _, p := range policies {
		assert.Equal(t, -1, p.SelectVictim(nil))
	}
}

func TestPolicyFromName(t *testing.T) {
	assert.IsType(t, &cache.FIFOPolicy{}, cache.PolicyFromName("fifo"))
	assert.IsType(t, &cache.LRUPolicy{}, cache.PolicyFromName("lru"))
	assert.IsType(t, &cache.LowValuePolicy{}, cache.PolicyFromName("low_value"))
	assert.IsType(t, &cache.LowValuePolicy{}, cache.PolicyFromName(""))
	assert.IsType(t, &cache.LowValuePolicy{}, cache.PolicyFromName("unknown"))
}
