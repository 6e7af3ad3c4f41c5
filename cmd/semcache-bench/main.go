// semcache-bench measures latency and throughput of semantic cache lookups
// under configurable cache sizes, concurrency levels, and hit ratios. It uses
// a synthetic deterministic embedder so runs need no embedding endpoint and
// are reproducible.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/reportwise/semcache/pkg/cache"
	"github.com/reportwise/semcache/pkg/config"
	"github.com/reportwise/semcache/pkg/embedding"
	"github.com/reportwise/semcache/pkg/observability/logging"
	"github.com/reportwise/semcache/pkg/similarity"
)

const banner = `
╔══════════════════════════════════════════════════════════════════╗
║               SEMANTIC CACHE PERFORMANCE BENCHMARK               ║
║                                                                  ║
║  Measures lookup latency, throughput, and hit rate across cache  ║
║  sizes and concurrency levels with a synthetic embedder.         ║
╚══════════════════════════════════════════════════════════════════╝
`

type benchConfig struct {
	CacheSizes        []int
	ConcurrencyLevels []int
	RequestsPerLevel  int

	SimilarityThreshold float64
	Dimension           int
	HitRatio            float64

	OutputJSON bool
	OutputFile string

	CPUProfile string
	MemProfile string
}

type benchResult struct {
	CacheSize     int     `json:"cache_size"`
	Concurrency   int     `json:"concurrency"`
	Requests      int     `json:"requests"`
	Hits          int64   `json:"hits"`
	HitRate       float64 `json:"hit_rate"`
	ThroughputQPS float64 `json:"throughput_qps"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
	P50LatencyMS  float64 `json:"p50_latency_ms"`
	P95LatencyMS  float64 `json:"p95_latency_ms"`
	P99LatencyMS  float64 `json:"p99_latency_ms"`
}

func main() {
	fmt.Print(banner)

	cfg := parseFlags()
	if _, err := logging.InitLogger(logging.Config{Level: "warn"}); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()

	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			fmt.Printf("Error creating CPU profile: %v\n", err)
			return
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Printf("Error starting CPU profile: %v\n", err)
			return
		}
		defer pprof.StopCPUProfile()
		fmt.Printf("CPU profiling enabled, writing to: %s\n", cfg.CPUProfile)
	}

	results := runBenchmarks(ctx, cfg)

	if cfg.MemProfile != "" {
		f, err := os.Create(cfg.MemProfile)
		if err != nil {
			fmt.Printf("Error creating memory profile: %v\n", err)
			return
		}
		defer f.Close()
		runtime.GC()
		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Printf("Error writing memory profile: %v\n", err)
			return
		}
		fmt.Printf("\nMemory profile written to: %s\n", cfg.MemProfile)
	}

	if cfg.OutputJSON {
		outputJSON(results, cfg.OutputFile)
	} else if len(results) > 0 {
		printResults(results)
	}

	fmt.Println("\n✓ Benchmark completed")
}

func parseFlags() benchConfig {
	cfg := benchConfig{}

	cacheSizesStr := flag.String("cache-sizes", "100,1000,10000", "Comma-separated list of cache sizes to test")
	concurrencyStr := flag.String("concurrency", "1,10,50", "Comma-separated list of concurrency levels to test")

	flag.IntVar(&cfg.RequestsPerLevel, "requests", 1000, "Number of lookups per test scenario")
	flag.Float64Var(&cfg.SimilarityThreshold, "threshold", 0.85, "Similarity threshold for cache hits")
	flag.IntVar(&cfg.Dimension, "dimension", 384, "Embedding vector dimension")
	flag.Float64Var(&cfg.HitRatio, "hit-ratio", 0.3, "Fraction of lookups phrased as near-duplicates of seeded queries (0.0-1.0)")

	flag.BoolVar(&cfg.OutputJSON, "json", false, "Output results in JSON format")
	flag.StringVar(&cfg.OutputFile, "output", "", "Output file path (default: stdout)")

	flag.StringVar(&cfg.CPUProfile, "cpuprofile", "", "Write CPU profile to file")
	flag.StringVar(&cfg.MemProfile, "memprofile", "", "Write memory profile to file")

	flag.Parse()

	cfg.CacheSizes = parseIntList(*cacheSizesStr, []int{1000})
	cfg.ConcurrencyLevels = parseIntList(*concurrencyStr, []int{10})
	return cfg
}

func parseIntList(s string, fallback []int) []int {
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// syntheticEmbedder derives unit vectors from text hashes. A query of the
// form "base|variant" embeds near the vector of its base text, which makes
// near-duplicate traffic land above the similarity threshold without any
// model or network dependency.
type syntheticEmbedder struct {
	dim int
}

func (s *syntheticEmbedder) Embed(_ context.Context, text string) (embedding.Result, error) {
	base, variant, found := strings.Cut(text, "|")
	v := embedding.FallbackVector(base, s.dim)
	if found && variant != "" {
		noise := embedding.FallbackVector(variant, s.dim)
		for i := range v {
			v[i] += 0.05 * noise[i]
		}
		similarity.Normalize(v)
	}
	return embedding.Result{Vector: v}, nil
}

func runBenchmarks(ctx context.Context, cfg benchConfig) []benchResult {
	fmt.Printf("\n📊 Benchmark Configuration:\n")
	fmt.Printf("   Cache Sizes: %v\n", cfg.CacheSizes)
	fmt.Printf("   Concurrency Levels: %v\n", cfg.ConcurrencyLevels)
	fmt.Printf("   Requests per Test: %d\n", cfg.RequestsPerLevel)
	fmt.Printf("   Similarity Threshold: %.2f\n", cfg.SimilarityThreshold)
	fmt.Printf("   Dimension: %d\n", cfg.Dimension)
	fmt.Printf("   Target Hit Ratio: %.0f%%\n\n", cfg.HitRatio*100)

	var results []benchResult
	for _, size := range cfg.CacheSizes {
		select {
		case <-ctx.Done():
			return results
		default:
		}

		fmt.Printf("🔬 Cache size %d\n", size)
		sc := seedCache(ctx, cfg, size)

		for _, concurrency := range cfg.ConcurrencyLevels {
			select {
			case <-ctx.Done():
				return results
			default:
			}
			r := runScenario(ctx, cfg, sc, size, concurrency)
			results = append(results, r)
			fmt.Printf("   concurrency %3d: %8.0f qps  avg %6.3fms  p99 %6.3fms  hit rate %5.1f%%\n",
				concurrency, r.ThroughputQPS, r.AvgLatencyMS, r.P99LatencyMS, r.HitRate*100)
		}
	}
	return results
}

func seedCache(ctx context.Context, cfg benchConfig, size int) *cache.SemanticCache {
	sc := cache.New(config.CacheConfig{
		Enabled:             true,
		SimilarityThreshold: float32(cfg.SimilarityThreshold),
		ThresholdFloor:      0.70,
		ThresholdCeiling:    0.95,
		MaxEntries:          size,
		TTLSeconds:          3600,
	}, &syntheticEmbedder{dim: cfg.Dimension})

	payload := []byte(`{"rows":[{"region":"emea","revenue":1250000}],"generated":"benchmark"}`)
	for i := 0; i < size; i++ {
		sc.Set(ctx, seededQuery(i), "", payload, 0)
	}
	return sc
}

func seededQuery(i int) string {
	return fmt.Sprintf("show report %d revenue by region", i)
}

func runScenario(ctx context.Context, cfg benchConfig, sc *cache.SemanticCache, size, concurrency int) benchResult {
	requests := cfg.RequestsPerLevel
	latencies := make([]time.Duration, requests)
	var hits int64
	var hitsMu sync.Mutex

	jobs := make(chan int)
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(worker)*7919 + int64(size)))
			localHits := int64(0)
			for i := range jobs {
				query := novelQuery(worker, i)
				if rng.Float64() < cfg.HitRatio {
					// Near-duplicate of a seeded query
					query = seededQuery(rng.Intn(size)) + "|v" + strconv.Itoa(i)
				}
				t0 := time.Now()
				_, hit, err := sc.Get(ctx, query, "")
				latencies[i] = time.Since(t0)
				if err == nil && hit {
					localHits++
				}
			}
			hitsMu.Lock()
			hits += localHits
			hitsMu.Unlock()
		}(w)
	}

	for i := 0; i < requests; i++ {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return summarize(size, concurrency, i, hits, latencies[:i], time.Since(start))
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	return summarize(size, concurrency, requests, hits, latencies, time.Since(start))
}

func novelQuery(worker, i int) string {
	return fmt.Sprintf("ad hoc analysis w%d q%d", worker, i)
}

func summarize(size, concurrency, requests int, hits int64, latencies []time.Duration, elapsed time.Duration) benchResult {
	r := benchResult{
		CacheSize:   size,
		Concurrency: concurrency,
		Requests:    requests,
		Hits:        hits,
	}
	if requests == 0 {
		return r
	}

	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	r.HitRate = float64(hits) / float64(requests)
	r.ThroughputQPS = float64(requests) / elapsed.Seconds()
	r.AvgLatencyMS = float64(total.Microseconds()) / float64(requests) / 1000
	r.P50LatencyMS = float64(percentile(sorted, 0.50).Microseconds()) / 1000
	r.P95LatencyMS = float64(percentile(sorted, 0.95).Microseconds()) / 1000
	r.P99LatencyMS = float64(percentile(sorted, 0.99).Microseconds()) / 1000
	return r
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func printResults(results []benchResult) {
	fmt.Println("\n" + strings.Repeat("=", 78))
	fmt.Println("BENCHMARK RESULTS")
	fmt.Println(strings.Repeat("=", 78))
	fmt.Printf("%-12s %-12s %-10s %-10s %-10s %-10s %-10s\n",
		"Cache Size", "Concurrency", "QPS", "Avg (ms)", "P95 (ms)", "P99 (ms)", "Hit Rate")
	for _, r := range results {
		fmt.Printf("%-12d %-12d %-10.0f %-10.3f %-10.3f %-10.3f %-10.1f%%\n",
			r.CacheSize, r.Concurrency, r.ThroughputQPS, r.AvgLatencyMS, r.P95LatencyMS, r.P99LatencyMS, r.HitRate*100)
	}
}

func outputJSON(results []benchResult, path string) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		fmt.Printf("Error encoding results: %v\n", err)
		return
	}
	if path == "" {
		fmt.Println(string(data))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Printf("Error writing results file: %v\n", err)
		return
	}
	fmt.Printf("\nResults written to: %s\n", path)
}
