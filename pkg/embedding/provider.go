// Package embedding wraps a remote OpenAI-compatible embedding API with
// retries, a content-hash cache, single-flight request coalescing, and a
// deterministic fallback for when the provider is unreachable.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/reportwise/semcache/pkg/config"
	"github.com/reportwise/semcache/pkg/observability/logging"
	"github.com/reportwise/semcache/pkg/observability/metrics"
)

// remote is the underlying transport to the embedding API.
type remote interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Result is one produced embedding. Fallback marks vectors synthesized
// locally after the provider failed; they carry no semantic meaning and
// downstream ranking may discount them.
type Result struct {
	Vector   []float32
	Fallback bool
}

// Stats is a snapshot of provider call counters.
type Stats struct {
	Calls          int64
	Errors         int64
	AverageLatency time.Duration
}

// Provider generates fixed-dimension embedding vectors for text.
type Provider struct {
	remote     remote
	store      Store
	flight     singleflight.Group
	model      string
	dimension  int
	maxRetries int
	baseDelay  time.Duration
	batchSize  int
	batchDelay time.Duration
	cacheTTL   time.Duration

	calls     atomic.Int64
	errCount  atomic.Int64
	latencyNS atomic.Int64
}

// Option customizes a Provider.
type Option func(*Provider)

// WithStore replaces the default in-memory embedding cache, for example with
// a RedisStore.
func WithStore(s Store) Option {
	return func(p *Provider) { p.store = s }
}

// WithRemote replaces the HTTP client, used by tests and local benchmarks.
func WithRemote(r remote) Option {
	return func(p *Provider) { p.remote = r }
}

// NewProvider builds a Provider from configuration.
func NewProvider(cfg config.EmbeddingConfig, opts ...Option) *Provider {
	p := &Provider{
		remote:     NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model),
		store:      NewMemoryStore(),
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay(),
		batchSize:  cfg.BatchSize,
		batchDelay: cfg.BatchDelay(),
		cacheTTL:   cfg.CacheTTL(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxRetries < 1 {
		p.maxRetries = 1
	}
	if p.batchSize < 1 {
		p.batchSize = 1
	}
	return p
}

// NewProviderFromConfig builds a Provider with the store the configuration
// asks for: Redis-backed when an address is configured, in-memory otherwise.
func NewProviderFromConfig(ctx context.Context, cfg config.EmbeddingConfig, opts ...Option) (*Provider, error) {
	if cfg.Redis != nil {
		rs, err := NewRedisStore(ctx, RedisStoreOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		opts = append([]Option{WithStore(rs)}, opts...)
	}
	return NewProvider(cfg, opts...), nil
}

// Dimension returns the configured embedding vector length.
func (p *Provider) Dimension() int { return p.dimension }

// cacheKey is a stable hash of (model, text); identical texts map to the same
// cached embedding regardless of which caller asks.
func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// Embed returns the embedding vector for text. Empty or whitespace-only input
// yields a zero vector without touching the remote API. Concurrent calls for
// identical text are coalesced into one in-flight request. After exhausted
// retries or a fatal provider error the deterministic fallback is returned
// with Fallback set; context cancellation is the one failure that propagates
// as an error, with no cache mutation.
func (p *Provider) Embed(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{Vector: make([]float32, p.dimension)}, nil
	}

	key := cacheKey(p.model, text)
	vec, ok, err := p.store.Get(ctx, key)
	if err != nil {
		logging.Warnf("embedding cache read failed: %v", err)
	} else if ok {
		metrics.RecordEmbeddingCacheHit()
		return Result{Vector: vec}, nil
	}

	v, err, _ := p.flight.Do(key, func() (interface{}, error) {
		vectors, err := p.embedRemote(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if err := p.store.Set(ctx, key, vectors[0], p.cacheTTL); err != nil {
			logging.Warnf("embedding cache write failed: %v", err)
		}
		return vectors[0], nil
	})
	if err == nil {
		return Result{Vector: v.([]float32)}, nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	logging.LogEvent("embedding_fallback", map[string]interface{}{
		"error": err.Error(),
	})
	metrics.RecordEmbeddingFallback()
	return Result{Vector: FallbackVector(text, p.dimension), Fallback: true}, nil
}

// EmbedBatch embeds texts preserving input order and length. Cached and empty
// inputs are served locally; the rest are sent in provider-sized chunks with
// a small delay between chunks to avoid rate limiting. A chunk that fails
// after retries falls back per text rather than failing the whole batch.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([]Result, error) {
	results := make([]Result, len(texts))

	var pendingIdx []int
	var pendingTexts []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = Result{Vector: make([]float32, p.dimension)}
			continue
		}
		if vec, ok, err := p.store.Get(ctx, cacheKey(p.model, text)); err == nil && ok {
			metrics.RecordEmbeddingCacheHit()
			results[i] = Result{Vector: vec}
			continue
		}
		pendingIdx = append(pendingIdx, i)
		pendingTexts = append(pendingTexts, text)
	}

	for offset := 0; offset < len(pendingTexts); offset += p.batchSize {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		end := offset + p.batchSize
		if end > len(pendingTexts) {
			end = len(pendingTexts)
		}
		chunk := pendingTexts[offset:end]

		vectors, err := p.embedRemote(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logging.LogEvent("embedding_batch_fallback", map[string]interface{}{
				"chunk_size": len(chunk),
				"error":      err.Error(),
			})
			for j, text := range chunk {
				metrics.RecordEmbeddingFallback()
				results[pendingIdx[offset+j]] = Result{Vector: FallbackVector(text, p.dimension), Fallback: true}
			}
		} else {
			for j, vec := range vectors {
				results[pendingIdx[offset+j]] = Result{Vector: vec}
				if err := p.store.Set(ctx, cacheKey(p.model, chunk[j]), vec, p.cacheTTL); err != nil {
					logging.Warnf("embedding cache write failed: %v", err)
				}
			}
		}

		if end < len(pendingTexts) && p.batchDelay > 0 {
			timer := time.NewTimer(p.batchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return results, nil
}

// embedRemote calls the remote API with exponential backoff on transient
// failures: base_delay * 2^(attempt-1) between attempts, up to maxRetries
// attempts total.
func (p *Provider) embedRemote(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		start := time.Now()
		vectors, err := p.remote.Embed(ctx, texts)
		elapsed := time.Since(start)
		p.calls.Add(1)
		p.latencyNS.Add(elapsed.Nanoseconds())

		if err == nil {
			for _, vec := range vectors {
				if len(vec) != p.dimension {
					p.errCount.Add(1)
					metrics.RecordEmbeddingRequest("error", elapsed.Seconds())
					return nil, &ProviderError{
						Kind:    KindFatal,
						Message: fmt.Sprintf("provider returned dimension %d, expected %d", len(vec), p.dimension),
					}
				}
			}
			metrics.RecordEmbeddingRequest("success", elapsed.Seconds())
			return vectors, nil
		}

		p.errCount.Add(1)
		metrics.RecordEmbeddingRequest("error", elapsed.Seconds())
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) || attempt == p.maxRetries {
			return nil, lastErr
		}

		delay := p.baseDelay << (attempt - 1)
		logging.Debugf("embedding attempt %d/%d failed, retrying in %s: %v",
			attempt, p.maxRetries, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// Stats returns a snapshot of remote call counters.
func (p *Provider) Stats() Stats {
	calls := p.calls.Load()
	stats := Stats{
		Calls:  calls,
		Errors: p.errCount.Load(),
	}
	if calls > 0 {
		stats.AverageLatency = time.Duration(p.latencyNS.Load() / calls)
	}
	return stats
}
