package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks accepted similarity lookups
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semcache_hits_total",
			Help: "The total number of semantic cache hits",
		},
	)

	// CacheMisses tracks rejected or empty similarity lookups
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semcache_misses_total",
			Help: "The total number of semantic cache misses",
		},
	)

	// CacheOperationDuration tracks latency per cache operation
	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semcache_operation_duration_seconds",
			Help:    "Duration of semantic cache operations",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)

	// CacheOperationTotal counts cache operations by outcome
	CacheOperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semcache_operations_total",
			Help: "Total semantic cache operations by status",
		},
		[]string{"operation", "status"},
	)

	// CacheEntriesTotal tracks the current number of stored entries
	CacheEntriesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "semcache_entries",
			Help: "Current number of entries held in the semantic cache",
		},
	)

	// CacheEvictions counts removed entries by reason
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "semcache_evictions_total",
			Help: "Total entries removed from the cache by reason",
		},
		[]string{"reason"},
	)

	// AdaptiveThreshold tracks the current similarity acceptance threshold
	AdaptiveThreshold = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "semcache_similarity_threshold",
			Help: "Current adaptive similarity threshold",
		},
	)

	// EmbeddingRequestDuration tracks remote embedding call latency
	EmbeddingRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "semcache_embedding_request_duration_seconds",
			Help:    "Duration of remote embedding provider calls",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)

	// EmbeddingFallbacks counts deterministic fallback vectors handed out
	EmbeddingFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semcache_embedding_fallbacks_total",
			Help: "Total embedding requests served by the deterministic fallback",
		},
	)

	// EmbeddingCacheHits counts embedding-level content-hash cache hits
	EmbeddingCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "semcache_embedding_cache_hits_total",
			Help: "Total embedding requests served from the embedding cache",
		},
	)
)

// RecordCacheHit records an accepted similarity lookup
func RecordCacheHit() {
	CacheHits.Inc()
}

// RecordCacheMiss records a rejected or empty similarity lookup
func RecordCacheMiss() {
	CacheMisses.Inc()
}

// RecordCacheOperation records a cache operation with duration and status
func RecordCacheOperation(operation, status string, seconds float64) {
	CacheOperationDuration.WithLabelValues(operation).Observe(seconds)
	CacheOperationTotal.WithLabelValues(operation, status).Inc()
}

// UpdateCacheEntries updates the current number of cache entries
func UpdateCacheEntries(count int) {
	CacheEntriesTotal.Set(float64(count))
}

// RecordCacheEviction records entries removed for the given reason
// (expired, capacity, clear)
func RecordCacheEviction(reason string, count int) {
	if count <= 0 {
		return
	}
	CacheEvictions.WithLabelValues(reason).Add(float64(count))
}

// UpdateAdaptiveThreshold publishes the current similarity threshold
func UpdateAdaptiveThreshold(value float64) {
	AdaptiveThreshold.Set(value)
}

// RecordEmbeddingRequest records one remote embedding call
func RecordEmbeddingRequest(status string, seconds float64) {
	EmbeddingRequestDuration.WithLabelValues(status).Observe(seconds)
}

// RecordEmbeddingFallback records a request served by the deterministic fallback
func RecordEmbeddingFallback() {
	EmbeddingFallbacks.Inc()
}

// RecordEmbeddingCacheHit records a request served from the embedding cache
func RecordEmbeddingCacheHit() {
	EmbeddingCacheHits.Inc()
}
