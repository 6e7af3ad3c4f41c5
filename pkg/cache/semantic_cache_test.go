package cache_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/reportwise/semcache/pkg/cache"
	"github.com/reportwise/semcache/pkg/config"
	"github.com/reportwise/semcache/pkg/embedding"
	"github.com/reportwise/semcache/pkg/similarity"
)

// scriptedEmbedder returns canned vectors per query text; unknown texts get
// a deterministic pseudo-vector so every lookup has a well-defined result.
type scriptedEmbedder struct {
	vectors map[string][]float32
	dim     int
	err     error
	calls   int
}

func (s *scriptedEmbedder) Embed(_ context.Context, text string) (embedding.Result, error) {
	s.calls++
	if s.err != nil {
		return embedding.Result{}, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return embedding.Result{Vector: v}, nil
	}
	return embedding.Result{Vector: embedding.FallbackVector(text, s.dim), Fallback: true}, nil
}

var _ = Describe("SemanticCache", func() {
	var (
		ctx      context.Context
		embedder *scriptedEmbedder
		cfg      config.CacheConfig
		sc       *cache.SemanticCache
	)

	newCache := func() *cache.SemanticCache {
		return cache.New(cfg, embedder)
	}

	BeforeEach(func() {
		ctx = context.Background()
		embedder = &scriptedEmbedder{
			dim: 2,
			vectors: map[string][]float32{
				"show revenue":       {1, 0},
				"show total revenue": {0.91, 0.41461428},
				"unrelated query":    {0.6, 0.8},
			},
		}
		cfg = config.CacheConfig{
			Enabled:             true,
			SimilarityThreshold: 0.85,
			ThresholdFloor:      0.70,
			ThresholdCeiling:    0.95,
			MaxEntries:          100,
			TTLSeconds:          3600,
			EvictionPolicy:      "low_value",
		}
		sc = newCache()
	})

	Describe("Get and Set", func() {
		It("returns the stored payload for the identical query", func() {
			sc.Set(ctx, "show revenue", "", []byte("report-1"), 0)

			payload, hit, err := sc.Get(ctx, "show revenue", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
			Expect(payload).To(Equal([]byte("report-1")))
		})

		It("serves identical text through the exact-match fast path without embedding", func() {
			sc.Set(ctx, "show revenue", "", []byte("report-1"), 0)
			callsAfterSet := embedder.calls

			_, hit, err := sc.Get(ctx, "  Show   REVENUE ", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
			Expect(embedder.calls).To(Equal(callsAfterSet))
		})

		It("hits on a paraphrase above the threshold and records the access", func() {
			sc.Set(ctx, "show revenue", "", []byte("report-1"), 0)

			payload, hit, err := sc.Get(ctx, "show total revenue", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
			Expect(payload).To(Equal([]byte("report-1")))

			results, err := sc.FindSimilar(ctx, "show revenue", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].UsageCount).To(Equal(int64(2)))
		})

		It("misses below the threshold and counts the miss", func() {
			sc.Set(ctx, "show revenue", "", []byte("report-1"), 0)

			payload, hit, err := sc.Get(ctx, "unrelated query", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())
			Expect(payload).To(BeNil())

			a := sc.Analytics(time.Hour)
			Expect(a.Misses).To(Equal(int64(1)))
			Expect(a.Hits).To(BeZero())
		})

		It("misses on an empty cache", func() {
			_, hit, err := sc.Get(ctx, "show revenue", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())
		})
	})

	Describe("owner scoping", func() {
		It("isolates owner-scoped lookups from other owners", func() {
			sc.Set(ctx, "show revenue", "alice", []byte("alice-report"), 0)

			_, hit, err := sc.Get(ctx, "show revenue", "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())

			payload, hit, err := sc.Get(ctx, "show revenue", "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
			Expect(payload).To(Equal([]byte("alice-report")))
		})

		It("lets unscoped lookups see every entry", func() {
			sc.Set(ctx, "show revenue", "alice", []byte("alice-report"), 0)

			_, hit, err := sc.Get(ctx, "show revenue", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
		})
	})

	Describe("capacity eviction", func() {
		BeforeEach(func() {
			cfg.MaxEntries = 2
			sc = newCache()
		})

		It("never exceeds the configured entry limit", func() {
			for i := 0; i < 5; i++ {
				sc.Set(ctx, fmt.Sprintf("query %d", i), "", []byte("r"), 0)
			}
			Expect(sc.Len()).To(Equal(2))
		})

		It("evicts the lowest-value entry first", func() {
			sc.Set(ctx, "show revenue", "", []byte("busy"), 0)
			sc.Set(ctx, "unrelated query", "", []byte("cold"), 0)

			// Two extra hits make the first entry the more valuable one.
			for i := 0; i < 2; i++ {
				_, hit, err := sc.Get(ctx, "show revenue", "")
				Expect(err).NotTo(HaveOccurred())
				Expect(hit).To(BeTrue())
			}

			embedder.vectors["count orders"] = []float32{0, 1}
			sc.Set(ctx, "count orders", "", []byte("new"), 0)
			Expect(sc.Len()).To(Equal(2))

			_, hit, err := sc.Get(ctx, "show revenue", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeTrue())
			_, hit, err = sc.Get(ctx, "unrelated query", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())
		})
	})

	Describe("expiry", func() {
		It("treats entries past their TTL as absent and Optimize removes them", func() {
			sc.Set(ctx, "show revenue", "", []byte("report-1"), time.Nanosecond)
			time.Sleep(2 * time.Millisecond)

			_, hit, err := sc.Get(ctx, "show revenue", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())
			Expect(sc.Len()).To(Equal(1))

			sc.Optimize()
			Expect(sc.Len()).To(BeZero())
		})
	})

	Describe("FindSimilar", func() {
		It("ranks entries by similarity and respects the result limit", func() {
			sc.Set(ctx, "show revenue", "", []byte("r1"), 0)
			sc.Set(ctx, "unrelated query", "", []byte("r2"), 0)

			results, err := sc.FindSimilar(ctx, "show total revenue", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Query).To(Equal("show revenue"))
			Expect(results[0].Similarity).To(BeNumerically(">", results[1].Similarity))

			limited, err := sc.FindSimilar(ctx, "show total revenue", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(limited).To(HaveLen(1))
		})

		It("returns an empty list on an empty cache", func() {
			results, err := sc.FindSimilar(ctx, "show revenue", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("degradation", func() {
		It("turns embedding failures into misses on Get", func() {
			sc.Set(ctx, "show revenue", "", []byte("report-1"), 0)
			embedder.err = errors.New("provider down")

			_, hit, err := sc.Get(ctx, "show total revenue", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())
		})

		It("turns embedding failures into no-ops on Set", func() {
			embedder.err = errors.New("provider down")
			sc.Set(ctx, "show revenue", "", []byte("report-1"), 0)
			Expect(sc.Len()).To(BeZero())
		})

		It("surfaces dimension mismatches instead of swallowing them", func() {
			sc.Set(ctx, "show revenue", "", []byte("report-1"), 0)
			embedder.vectors["odd query"] = []float32{1, 0, 0}

			_, _, err := sc.Get(ctx, "odd query", "")
			var mismatch *similarity.DimensionMismatchError
			Expect(errors.As(err, &mismatch)).To(BeTrue())
		})
	})

	Describe("disabled cache", func() {
		BeforeEach(func() {
			cfg.Enabled = false
			sc = newCache()
		})

		It("misses every lookup and stores nothing", func() {
			sc.Set(ctx, "show revenue", "", []byte("report-1"), 0)
			Expect(sc.Len()).To(BeZero())

			_, hit, err := sc.Get(ctx, "show revenue", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(hit).To(BeFalse())

			results, err := sc.FindSimilar(ctx, "show revenue", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("Analytics", func() {
		It("reports counters, storage and the active threshold", func() {
			sc.Set(ctx, "show revenue", "", []byte("report-1"), 0)
			_, _, err := sc.Get(ctx, "show revenue", "")
			Expect(err).NotTo(HaveOccurred())
			_, _, err = sc.Get(ctx, "unrelated query", "")
			Expect(err).NotTo(HaveOccurred())

			a := sc.Analytics(time.Hour)
			Expect(a.Period).To(Equal(time.Hour))
			Expect(a.TotalQueries).To(Equal(int64(2)))
			Expect(a.Hits).To(Equal(int64(1)))
			Expect(a.Misses).To(Equal(int64(1)))
			Expect(a.HitRate).To(BeNumerically("~", 0.5, 1e-9))
			Expect(a.AverageSimilarity).To(BeNumerically("~", 1.0, 1e-3))
			Expect(a.Entries).To(Equal(1))
			Expect(a.StorageBytes).To(BeNumerically(">", 0))
			Expect(a.Threshold).To(BeNumerically("~", 0.85, 1e-6))
		})
	})

	Describe("Clear", func() {
		It("removes by pattern and by owner and reports the count", func() {
			sc.Set(ctx, "show revenue by region", "alice", []byte("r1"), 0)
			sc.Set(ctx, "show revenue by month", "bob", []byte("r2"), 0)
			sc.Set(ctx, "list customers", "alice", []byte("r3"), 0)

			Expect(sc.Clear("revenue", "")).To(Equal(2))
			Expect(sc.Clear("", "alice")).To(Equal(1))
			Expect(sc.Len()).To(BeZero())
			Expect(sc.Clear("", "")).To(BeZero())
		})
	})
})
