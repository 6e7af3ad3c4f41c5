// Package similarity provides the vector math used by the semantic cache:
// cosine similarity and linear-scan candidate search. Scores are clamped to
// [0,1]; relevance below orthogonal is never useful for cache lookups.
package similarity

import (
	"fmt"
	"math"
	"sort"
)

// DimensionMismatchError reports a comparison between vectors of unequal
// length. It indicates corrupted state (for example a provider model changed
// dimension without cache invalidation) and is never silently handled.
type DimensionMismatchError struct {
	LenA int
	LenB int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: %d vs %d", e.LenA, e.LenB)
}

// CosineSimilarity computes dot(a,b) / (|a|*|b|), clamped to [0,1].
// A zero-magnitude operand yields 0.
func CosineSimilarity(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{LenA: len(a), LenB: len(b)}
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score < 0 {
		score = 0
	} else if score > 1 {
		score = 1
	}
	return float32(score), nil
}

// Scored pairs a candidate index with its similarity score.
type Scored struct {
	Index int
	Score float32
}

// FindMostSimilar scores every candidate against the query vector, keeps those
// at or above minScore, and returns up to topK results sorted by descending
// score. Ties sort by ascending index for determinism. The scan is linear;
// the corpus is capped by the cache's max entry count so no ANN index is used.
func FindMostSimilar(query []float32, candidates [][]float32, minScore float32, topK int) ([]Scored, error) {
	scored := make([]Scored, 0, len(candidates))
	for i, cand := range candidates {
		score, err := CosineSimilarity(query, cand)
		if err != nil {
			return nil, err
		}
		if score >= minScore {
			scored = append(scored, Scored{Index: i, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Normalize scales v to unit magnitude in place and returns it.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
