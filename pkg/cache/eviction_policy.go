package cache

// EvictionPolicy selects which entry to evict when the cache is over
// capacity at insert time.
type EvictionPolicy interface {
	SelectVictim(entries []*CacheEntry) int
}

// FIFOPolicy evicts the oldest entry by creation time.
type FIFOPolicy struct{}

func (p *FIFOPolicy) SelectVictim(entries []*CacheEntry) int {
	if len(entries) == 0 {
		return -1
	}

	oldestIdx := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].CreatedAt.Before(entries[oldestIdx].CreatedAt) {
			oldestIdx = i
		}
	}
	return oldestIdx
}

// LRUPolicy evicts the entry with the oldest access time.
type LRUPolicy struct{}

func (p *LRUPolicy) SelectVictim(entries []*CacheEntry) int {
	if len(entries) == 0 {
		return -1
	}

	oldestIdx := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].LastAccessedAt().Before(entries[oldestIdx].LastAccessedAt()) {
			oldestIdx = i
		}
	}
	return oldestIdx
}

// LowValuePolicy evicts the entry with the lowest access count, breaking ties
// by oldest access time. Capacity pruning uses the same ordering.
type LowValuePolicy struct{}

func (p *LowValuePolicy) SelectVictim(entries []*CacheEntry) int {
	if len(entries) == 0 {
		return -1
	}

	victimIdx := 0
	for i := 1; i < len(entries); i++ {
		a, b := entries[i], entries[victimIdx]
		if a.AccessCount() < b.AccessCount() {
			victimIdx = i
		} else if a.AccessCount() == b.AccessCount() && a.LastAccessedAt().Before(b.LastAccessedAt()) {
			victimIdx = i
		}
	}
	return victimIdx
}

// PolicyFromName maps a config name to a policy; low-value is the default.
func PolicyFromName(name string) EvictionPolicy {
	switch name {
	case "fifo":
		return &FIFOPolicy{}
	case "lru":
		return &LRUPolicy{}
	default:
		return &LowValuePolicy{}
	}
}
