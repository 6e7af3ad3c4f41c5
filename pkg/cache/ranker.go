package cache

import "time"

// Ranking combines similarity with recency, usage, and query-length
// proximity. Similarity is the acceptance gate; the auxiliary factors only
// order candidates that already qualify.
const (
	similarityWeight = 0.7
	auxiliaryWeight  = 0.3

	recencyWeight = 0.3
	usageWeight   = 0.4
	lengthWeight  = 0.3

	recencyHorizonDays = 30
	usageSaturation    = 10
)

// CandidateMatch is a transient lookup candidate; it is never persisted.
type CandidateMatch struct {
	Entry        *CacheEntry
	Similarity   float32
	RankingScore float64
}

// Ranker scores candidates and selects the best acceptable one.
type Ranker struct{}

// Score computes the ranking score for one candidate at the given time.
func (Ranker) Score(queryText string, m *CandidateMatch, now time.Time) float64 {
	ageDays := now.Sub(m.Entry.CreatedAt).Hours() / 24
	recency := 1 - ageDays/recencyHorizonDays
	if recency < 0 {
		recency = 0
	}

	usage := float64(m.Entry.AccessCount()) / usageSaturation
	if usage > 1 {
		usage = 1
	}

	lengthSim := 1.0
	ql, cl := len(queryText), len(m.Entry.Query)
	if ql != cl {
		longer := ql
		if cl > longer {
			longer = cl
		}
		diff := ql - cl
		if diff < 0 {
			diff = -diff
		}
		lengthSim = 1 - float64(diff)/float64(longer)
	}

	aux := recencyWeight*recency + usageWeight*usage + lengthWeight*lengthSim
	return similarityWeight*float64(m.Similarity) + auxiliaryWeight*aux
}

// SelectBest filters candidates by the similarity threshold, ranks the
// qualifiers, and returns the winner, or nil when nothing qualifies. Given
// identical inputs the result is reproducible: ties break by highest access
// count, then lowest id.
func (r Ranker) SelectBest(queryText string, candidates []CandidateMatch, threshold float32, now time.Time) *CandidateMatch {
	var best *CandidateMatch
	for i := range candidates {
		m := &candidates[i]
		if m.Similarity < threshold {
			continue
		}
		m.RankingScore = r.Score(queryText, m, now)

		switch {
		case best == nil:
			best = m
		case m.RankingScore > best.RankingScore:
			best = m
		case m.RankingScore == best.RankingScore:
			if m.Entry.AccessCount() > best.Entry.AccessCount() ||
				(m.Entry.AccessCount() == best.Entry.AccessCount() && m.Entry.ID < best.Entry.ID) {
				best = m
			}
		}
	}
	return best
}
