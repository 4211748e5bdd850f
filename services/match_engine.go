package services

import (
	"math"

	"github.com/Invictus108/NFT-Gift-Bot/models"
)

// MatchEngine ranks inventory candidates against an order's preference vector
// and picks the best affordable one.
type MatchEngine struct{}

func NewMatchEngine() *MatchEngine {
	return &MatchEngine{}
}

// SelectBest returns the affordable candidate with the strictly greatest
// similarity score, or nil when no candidate is affordable. Ties keep the
// first candidate encountered. A first-seen candidate scoring zero still wins
// when nothing better qualifies.
func (e *MatchEngine) SelectBest(order *models.Order, candidates []models.Candidate) *models.Candidate {
	budget := order.Budget()

	bestIndex := -1
	bestScore := math.Inf(-1)

	for i := range candidates {
		candidate := &candidates[i]
		if candidate.Price > budget {
			continue
		}

		score := e.Score(order.Preferences, candidate)
		if score > bestScore {
			bestIndex = i
			bestScore = score
		}
	}

	if bestIndex < 0 {
		return nil
	}
	return &candidates[bestIndex]
}

// Score combines the image and text similarity of one candidate. Only present
// embeddings participate in the mean; a candidate with neither scores zero.
func (e *MatchEngine) Score(preferences []float64, candidate *models.Candidate) float64 {
	var sum float64
	components := 0

	if len(candidate.ImageEmbedding) > 0 {
		sum += CosineSimilarity(preferences, candidate.ImageEmbedding)
		components++
	}
	if len(candidate.TextEmbedding) > 0 {
		sum += CosineSimilarity(preferences, candidate.TextEmbedding)
		components++
	}

	if components == 0 {
		return 0
	}
	return sum / float64(components)
}

// CosineSimilarity is dot(a,b) / (|a| * |b|). Embeddings are not guaranteed
// unit-length, so the norm denominator is required. Mismatched dimensions or
// a zero-norm vector score zero.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
