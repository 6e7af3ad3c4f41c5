package cache

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Metadata carries per-entry analytics hints. It is never used for
// correctness, only for ranking and observability.
type Metadata struct {
	// QueryLength is the character length of the original query
	QueryLength int
	// Complexity is an optional caller-supplied complexity score
	Complexity float64
	// Fallback marks entries embedded with a deterministic pseudo-vector
	Fallback bool
	// Extra holds forward-compatible string attributes
	Extra map[string]string
}

// CacheEntry is one cached query-result pair with its embedding. The
// embedding and payload are immutable after creation; only access bookkeeping
// changes, and it changes atomically so concurrent readers never see torn
// state.
type CacheEntry struct {
	ID              string
	Query           string
	NormalizedQuery string
	Embedding       []float32
	Payload         []byte
	OwnerID         string
	CreatedAt       time.Time
	TTL             time.Duration // 0 means use the cache default
	Metadata        Metadata

	accessCount atomic.Int64
	lastAccess  atomic.Int64 // unix nanoseconds
}

// NewEntry constructs an entry created at now with access count 1.
func NewEntry(query, ownerID string, embedding []float32, payload []byte, ttl time.Duration, now time.Time, md Metadata) *CacheEntry {
	e := &CacheEntry{
		ID:              uuid.NewString(),
		Query:           query,
		NormalizedQuery: NormalizeQuery(query),
		Embedding:       embedding,
		Payload:         payload,
		OwnerID:         ownerID,
		CreatedAt:       now,
		TTL:             ttl,
		Metadata:        md,
	}
	e.accessCount.Store(1)
	e.lastAccess.Store(now.UnixNano())
	return e
}

// Touch records a hit on the entry.
func (e *CacheEntry) Touch(now time.Time) {
	e.accessCount.Add(1)
	e.lastAccess.Store(now.UnixNano())
}

// AccessCount returns the number of times the entry has been served,
// including its creation.
func (e *CacheEntry) AccessCount() int64 {
	return e.accessCount.Load()
}

// LastAccessedAt returns the time of the most recent hit.
func (e *CacheEntry) LastAccessedAt() time.Time {
	return time.Unix(0, e.lastAccess.Load())
}

// ExpiresAt computes the expiry deadline given the cache default TTL.
// The zero time means the entry never expires.
func (e *CacheEntry) ExpiresAt(defaultTTL time.Duration) time.Time {
	ttl := e.TTL
	if ttl == 0 {
		ttl = defaultTTL
	}
	if ttl <= 0 {
		return time.Time{}
	}
	return e.CreatedAt.Add(ttl)
}

// SizeEstimate approximates the entry's in-memory footprint in bytes.
func (e *CacheEntry) SizeEstimate() int64 {
	size := int64(len(e.ID) + len(e.Query) + len(e.NormalizedQuery) + len(e.OwnerID))
	size += int64(len(e.Embedding) * 4)
	size += int64(len(e.Payload))
	for k, v := range e.Metadata.Extra {
		size += int64(len(k) + len(v))
	}
	size += 128 // struct and bookkeeping overhead
	return size
}

// NormalizeQuery lowercases and collapses whitespace so trivially different
// spellings of the same query compare equal.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
