package cache

import (
	"strings"
	"sync"
	"time"
)

// Store owns entry storage and its indices: a global insertion-order id list,
// a per-owner id list, and a normalized-query index for the exact-match fast
// path. Index structures are guarded by a read-write mutex; per-entry access
// bookkeeping is atomic on the entry itself, so different entries mutate in
// parallel and readers observe either the pre- or post-mutation index state,
// never a torn entry.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*CacheEntry
	globalIDs []string
	byOwner   map[string][]string
	byNorm    map[string][]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*CacheEntry),
		byOwner: make(map[string][]string),
		byNorm:  make(map[string][]string),
	}
}

// Insert adds the entry to the primary map and every relevant index.
func (s *Store) Insert(e *CacheEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.ID] = e
	s.globalIDs = append(s.globalIDs, e.ID)
	if e.OwnerID != "" {
		s.byOwner[e.OwnerID] = append(s.byOwner[e.OwnerID], e.ID)
	}
	if e.NormalizedQuery != "" {
		s.byNorm[e.NormalizedQuery] = append(s.byNorm[e.NormalizedQuery], e.ID)
	}
}

// ByID returns the entry with the given id, if present.
func (s *Store) ByID(id string) (*CacheEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Remove deletes the entry and drops it from all indices. Removing a missing
// id is a no-op.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	delete(s.entries, id)
	s.globalIDs = removeID(s.globalIDs, id)
	if e.OwnerID != "" {
		s.byOwner[e.OwnerID] = removeID(s.byOwner[e.OwnerID], id)
		if len(s.byOwner[e.OwnerID]) == 0 {
			delete(s.byOwner, e.OwnerID)
		}
	}
	if e.NormalizedQuery != "" {
		s.byNorm[e.NormalizedQuery] = removeID(s.byNorm[e.NormalizedQuery], id)
		if len(s.byNorm[e.NormalizedQuery]) == 0 {
			delete(s.byNorm, e.NormalizedQuery)
		}
	}
	return true
}

// EntriesFor snapshots the candidate set for a lookup: all entries when
// ownerID is empty, the owner-scoped slice otherwise. limit > 0 bounds the
// result for similarity scans.
func (s *Store) EntriesFor(ownerID string, limit int) []*CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.globalIDs
	if ownerID != "" {
		ids = s.byOwner[ownerID]
	}
	if limit <= 0 || limit > len(ids) {
		limit = len(ids)
	}

	out := make([]*CacheEntry, 0, limit)
	for _, id := range ids[:limit] {
		if e, ok := s.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// ExactMatch returns the newest entry whose normalized query equals norm,
// scoped to ownerID when non-empty.
func (s *Store) ExactMatch(norm, ownerID string) *CacheEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *CacheEntry
	for _, id := range s.byNorm[norm] {
		e, ok := s.entries[id]
		if !ok {
			continue
		}
		if ownerID != "" && e.OwnerID != ownerID {
			continue
		}
		if best == nil || e.CreatedAt.After(best.CreatedAt) {
			best = e
		}
	}
	return best
}

// All snapshots every stored entry.
func (s *Store) All() []*CacheEntry {
	return s.EntriesFor("", 0)
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes entries matching a substring pattern on the normalized query
// and/or an owner scope. Empty pattern and owner remove everything. It
// returns the number of entries removed.
func (s *Store) Clear(pattern, ownerID string) int {
	pattern = strings.ToLower(pattern)

	var victims []string
	s.mu.RLock()
	for id, e := range s.entries {
		if ownerID != "" && e.OwnerID != ownerID {
			continue
		}
		if pattern != "" && !strings.Contains(e.NormalizedQuery, pattern) {
			continue
		}
		victims = append(victims, id)
	}
	s.mu.RUnlock()

	for _, id := range victims {
		s.Remove(id)
	}
	return len(victims)
}

// SizeEstimate approximates the total in-memory footprint in bytes.
func (s *Store) SizeEstimate() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, e := range s.entries {
		total += e.SizeEstimate()
	}
	return total
}

// OldestCreation is a helper for maintenance decisions; the zero time means
// the store is empty.
func (s *Store) OldestCreation() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var oldest time.Time
	for _, e := range s.entries {
		if oldest.IsZero() || e.CreatedAt.Before(oldest) {
			oldest = e.CreatedAt
		}
	}
	return oldest
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
