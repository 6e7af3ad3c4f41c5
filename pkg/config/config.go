package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the semantic cache subsystem.
type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// CacheConfig controls entry storage, similarity acceptance, and maintenance.
type CacheConfig struct {
	// Enabled controls whether semantic caching is active
	Enabled bool `yaml:"enabled"`

	// SimilarityThreshold is the initial minimum similarity for cache hits (0.0-1.0)
	SimilarityThreshold float32 `yaml:"similarity_threshold"`

	// ThresholdFloor and ThresholdCeiling bound adaptive threshold tuning
	ThresholdFloor   float32 `yaml:"threshold_floor"`
	ThresholdCeiling float32 `yaml:"threshold_ceiling"`

	// MaxEntries limits the number of cached entries
	MaxEntries int `yaml:"max_entries"`

	// TTLSeconds sets default entry expiration time (0 disables expiration)
	TTLSeconds int `yaml:"ttl_seconds"`

	// EvictionPolicy selects the insert-time eviction policy
	// ("fifo", "lru", "low_value")
	EvictionPolicy string `yaml:"eviction_policy,omitempty"`
}

// EmbeddingConfig controls the remote embedding provider and its local cache.
type EmbeddingConfig struct {
	// BaseURL of the OpenAI-compatible embeddings endpoint
	BaseURL string `yaml:"base_url"`

	// APIKey for the provider, sent as a bearer token when non-empty
	APIKey string `yaml:"api_key,omitempty"`

	// Model is the embedding model name, part of the embedding cache key
	Model string `yaml:"model"`

	// Dimension is the expected embedding vector length
	Dimension int `yaml:"dimension"`

	// MaxRetries bounds retry attempts for transient provider failures
	MaxRetries int `yaml:"max_retries"`

	// RetryBaseDelayMS is the first backoff delay; doubles per attempt
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms"`

	// BatchSize caps texts per remote batch call
	BatchSize int `yaml:"batch_size"`

	// BatchDelayMS is the pause between batch chunks to avoid rate limiting
	BatchDelayMS int `yaml:"batch_delay_ms"`

	// CacheTTLSeconds is the TTL of the content-hash embedding cache
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`

	// Redis optionally backs the embedding cache with Redis
	Redis *RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig holds connection settings for a Redis-backed embedding cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

// Defaults recognized across the subsystem.
const (
	DefaultSimilarityThreshold = 0.85
	DefaultThresholdFloor      = 0.70
	DefaultThresholdCeiling    = 0.95
	DefaultMaxEntries          = 10000
	DefaultTTLSeconds          = 86400
	DefaultDimension           = 384
	DefaultMaxRetries          = 3
	DefaultRetryBaseDelayMS    = 1000
	DefaultBatchSize           = 16
	DefaultBatchDelayMS        = 100
	DefaultCacheTTLSeconds     = 86400
)

// applyDefaults fills zero values with subsystem defaults.
func (c *Config) applyDefaults() {
	if c.Cache.SimilarityThreshold == 0 {
		c.Cache.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.Cache.ThresholdFloor == 0 {
		c.Cache.ThresholdFloor = DefaultThresholdFloor
	}
	if c.Cache.ThresholdCeiling == 0 {
		c.Cache.ThresholdCeiling = DefaultThresholdCeiling
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = DefaultMaxEntries
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = DefaultTTLSeconds
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = DefaultDimension
	}
	if c.Embedding.MaxRetries == 0 {
		c.Embedding.MaxRetries = DefaultMaxRetries
	}
	if c.Embedding.RetryBaseDelayMS == 0 {
		c.Embedding.RetryBaseDelayMS = DefaultRetryBaseDelayMS
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = DefaultBatchSize
	}
	if c.Embedding.BatchDelayMS == 0 {
		c.Embedding.BatchDelayMS = DefaultBatchDelayMS
	}
	if c.Embedding.CacheTTLSeconds == 0 {
		c.Embedding.CacheTTLSeconds = DefaultCacheTTLSeconds
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("cache.similarity_threshold must be in [0,1], got %.3f", c.Cache.SimilarityThreshold)
	}
	if c.Cache.ThresholdFloor > c.Cache.ThresholdCeiling {
		return fmt.Errorf("cache.threshold_floor %.3f exceeds threshold_ceiling %.3f",
			c.Cache.ThresholdFloor, c.Cache.ThresholdCeiling)
	}
	if c.Cache.SimilarityThreshold < c.Cache.ThresholdFloor || c.Cache.SimilarityThreshold > c.Cache.ThresholdCeiling {
		return fmt.Errorf("cache.similarity_threshold %.3f outside adaptive bounds [%.2f, %.2f]",
			c.Cache.SimilarityThreshold, c.Cache.ThresholdFloor, c.Cache.ThresholdCeiling)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("cache.max_entries must be non-negative, got %d", c.Cache.MaxEntries)
	}
	switch c.Cache.EvictionPolicy {
	case "", "fifo", "lru", "low_value":
	default:
		return fmt.Errorf("cache.eviction_policy must be one of fifo, lru, low_value; got %q", c.Cache.EvictionPolicy)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.MaxRetries < 0 {
		return fmt.Errorf("embedding.max_retries must be non-negative, got %d", c.Embedding.MaxRetries)
	}
	return nil
}

// TTL returns the default entry TTL as a duration.
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RetryBaseDelay returns the first backoff delay as a duration.
func (c *EmbeddingConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// BatchDelay returns the inter-chunk delay as a duration.
func (c *EmbeddingConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMS) * time.Millisecond
}

// CacheTTL returns the embedding cache TTL as a duration.
func (c *EmbeddingConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
