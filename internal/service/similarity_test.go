package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/vcheck/internal/domain"
)

func TestCosineSimilarity_Symmetric(t *testing.T) {
	pairs := [][2][]float32{
		{{1, 2, 3}, {4, 5, 6}},
		{{0.3, -0.2, 0.9, 0.1}, {0.5, 0.5, -0.1, 0.7}},
		{{1, 0}, {0, 1}},
	}
	for _, p := range pairs {
		ab, err := CosineSimilarity(p[0], p[1])
		require.NoError(t, err)
		ba, err := CosineSimilarity(p[1], p[0])
		require.NoError(t, err)
		assert.Equal(t, ab, ba)
	}
}

func TestCosineSimilarity_SelfIsOne(t *testing.T) {
	for _, v := range [][]float32{{1, 2, 3}, {-0.5, 0.25}, {1e-3, 7, -2, 0}} {
		s, err := CosineSimilarity(v, v)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, s, 1e-9)
	}
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	zero := []float32{0, 0, 0}
	s, err := CosineSimilarity(zero, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	s, err = CosineSimilarity([]float32{1, 2, 3}, zero)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	s, err = CosineSimilarity(zero, zero)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)
}

func TestCosineSimilarity_DimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	s, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)
}

func TestSimilarityRank_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.SimilarityRank
	}{
		{1.0, domain.RankA},
		{0.85, domain.RankA},
		{0.8499999, domain.RankB},
		{0.70, domain.RankB},
		{0.6999999, domain.RankC},
		{0.50, domain.RankC},
		{0.4999999, domain.RankD},
		{0.0, domain.RankD},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SimilarityRank(tt.score), "score %v", tt.score)
	}
}

func TestSimilarityRank_TotalPartition(t *testing.T) {
	// every score in [0,1] lands in exactly one bucket and buckets never
	// go back up as the score falls
	prev := domain.RankA
	order := map[domain.SimilarityRank]int{domain.RankA: 0, domain.RankB: 1, domain.RankC: 2, domain.RankD: 3}
	for i := 1000; i >= 0; i-- {
		r := SimilarityRank(float64(i) / 1000)
		_, known := order[r]
		require.True(t, known)
		assert.GreaterOrEqual(t, order[r], order[prev])
		prev = r
	}
}

func TestImportanceWeight(t *testing.T) {
	assert.Equal(t, 1.5, ImportanceWeight(domain.ImportanceHigh))
	assert.Equal(t, 1.0, ImportanceWeight(domain.ImportanceMedium))
	assert.Equal(t, 0.5, ImportanceWeight(domain.ImportanceLow))
	assert.Equal(t, 1.0, ImportanceWeight(""))
}
