package similarity_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportwise/semcache/pkg/similarity"
)

func TestCosineSimilaritySelf(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0.5, 0.5, 0.5},
		{-0.3, 0.7, 0.1, 0.9},
	}

	for _, v := range vectors {
		score, err := similarity.CosineSimilarity(v, v)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, float64(score), 1e-6)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := similarity.CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0})
	require.Error(t, err)

	var dimErr *similarity.DimensionMismatchError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.LenA)
	assert.Equal(t, 3, dimErr.LenB)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	score, err := similarity.CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestCosineSimilarityClampsNegative(t *testing.T) {
	// Opposite directions: raw cosine is -1, clamped to 0
	score, err := similarity.CosineSimilarity([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	score, err := similarity.CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, float64(score), 1e-6)
}

func TestFindMostSimilar(t *testing.T) {
	query := []float32{1, 0}
	candidates := [][]float32{
		{0, 1},       // orthogonal, score 0
		{1, 0},       // identical, score 1
		{0.9, 0.44},  // close
		{-1, 0},      // opposite, clamped to 0
		{0.7, 0.72},  // further
	}

	results, err := similarity.FindMostSimilar(query, candidates, 0.5, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Index)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-6)
	assert.Equal(t, 2, results[1].Index)
	assert.Greater(t, results[1].Score, results[0].Score-1) // descending order held
	assert.GreaterOrEqual(t, results[1].Score, float32(0.5))
}

func TestFindMostSimilarPropagatesMismatch(t *testing.T) {
	_, err := similarity.FindMostSimilar([]float32{1, 0}, [][]float32{{1, 0, 0}}, 0, 5)
	var dimErr *similarity.DimensionMismatchError
	require.True(t, errors.As(err, &dimErr))
}

func TestNormalize(t *testing.T) {
	v := similarity.Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	self, err := similarity.CosineSimilarity(v, v)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(self), 1e-6)

	zero := similarity.Normalize([]float32{0, 0})
	assert.Equal(t, []float32{0, 0}, zero)
}
