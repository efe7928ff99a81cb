package service

import (
	"fmt"
	"math"

	"github.com/timmy/vcheck/internal/domain"
)

// Rank boundaries. Persisted ranks depend on these exact values.
const (
	RankAThreshold = 0.85
	RankBThreshold = 0.70
	RankCThreshold = 0.50
)

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different length fail with domain.ErrDimensionMismatch; a zero
// vector on either side scores 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// SimilarityRank buckets a score into A-D.
func SimilarityRank(score float64) domain.SimilarityRank {
	switch {
	case score >= RankAThreshold:
		return domain.RankA
	case score >= RankBThreshold:
		return domain.RankB
	case score >= RankCThreshold:
		return domain.RankC
	default:
		return domain.RankD
	}
}

// ImportanceWeight scales a score by template importance for callers that
// want a single severity number.
func ImportanceWeight(importance domain.Importance) float64 {
	switch importance {
	case domain.ImportanceHigh:
		return 1.5
	case domain.ImportanceLow:
		return 0.5
	default:
		return 1.0
	}
}
