package embedding

import (
	"context"
	"sync"
	"time"
)

// Store caches embeddings by content hash, independent of the semantic cache
// entries, so repeated identical texts never re-invoke the remote call.
type Store interface {
	// Get returns the cached vector for key, if present and unexpired.
	Get(ctx context.Context, key string) ([]float32, bool, error)

	// Set stores a vector under key for the given TTL.
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration) error
}

type memoryEntry struct {
	vector    []float32
	expiresAt time.Time
}

// MemoryStore is the default in-process Store, a concurrent map with lazy
// expiry on read.
type MemoryStore struct {
	entries sync.Map // key -> memoryEntry
}

// NewMemoryStore creates an empty in-memory embedding store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]float32, bool, error) {
	v, ok := s.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	entry := v.(memoryEntry)
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		s.entries.Delete(key)
		return nil, false, nil
	}
	return entry.vector, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, vector []float32, ttl time.Duration) error {
	entry := memoryEntry{vector: vector}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	s.entries.Store(key, entry)
	return nil
}

// Purge removes expired entries. Callers may invoke it from their maintenance
// schedule; reads already skip expired values.
func (s *MemoryStore) Purge() int {
	now := time.Now()
	removed := 0
	s.entries.Range(func(k, v any) bool {
		entry := v.(memoryEntry)
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			s.entries.Delete(k)
			removed++
		}
		return true
	})
	return removed
}
