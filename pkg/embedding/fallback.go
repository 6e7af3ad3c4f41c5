package embedding

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"

	"github.com/reportwise/semcache/pkg/similarity"
)

// FallbackVector produces a deterministic unit-magnitude pseudo-embedding
// seeded from a hash of the text. The same text always yields the same vector,
// so identical queries still collide in the cache, but the vector carries no
// semantic meaning and callers must flag it so ranking can discount it.
func FallbackVector(text string, dimension int) []float32 {
	sum := sha256.Sum256([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))

	rng := rand.New(rand.NewSource(seed))
	vector := make([]float32, dimension)
	for i := range vector {
		vector[i] = float32(rng.Float64()*2 - 1)
	}
	return similarity.Normalize(vector)
}
