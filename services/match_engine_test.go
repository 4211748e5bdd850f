package services

import (
	"math"
	"testing"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func testOrder(funds, priceCap float64, preferences []float64) *models.Order {
	return &models.Order{
		Funds:       funds,
		PriceCap:    priceCap,
		Preferences: preferences,
	}
}

func TestCosineSimilarityProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	vectorGen := gen.SliceOfN(8, gen.Float64Range(-1.0, 1.0))

	properties.Property("invariant under positive scaling", prop.ForAll(
		func(a, b []float64, scale float64) bool {
			scaled := make([]float64, len(b))
			for i := range b {
				scaled[i] = b[i] * scale
			}
			return math.Abs(CosineSimilarity(a, b)-CosineSimilarity(a, scaled)) < 1e-9
		},
		vectorGen, vectorGen, gen.Float64Range(0.01, 100.0),
	))

	properties.Property("bounded in [-1, 1]", prop.ForAll(
		func(a, b []float64) bool {
			similarity := CosineSimilarity(a, b)
			return similarity >= -1.0-1e-9 && similarity <= 1.0+1e-9
		},
		vectorGen, vectorGen,
	))

	properties.Property("symmetric", prop.ForAll(
		func(a, b []float64) bool {
			return math.Abs(CosineSimilarity(a, b)-CosineSimilarity(b, a)) < 1e-12
		},
		vectorGen, vectorGen,
	))

	properties.TestingRun(t)
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	if got := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3}); got != 0 {
		t.Errorf("mismatched dimensions: expected 0, got %g", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty vectors: expected 0, got %g", got)
	}
	if got := CosineSimilarity([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Errorf("zero-norm vector: expected 0, got %g", got)
	}
	if got := CosineSimilarity([]float64{1, 0}, []float64{1, 0}); math.Abs(got-1) > 1e-12 {
		t.Errorf("identical vectors: expected 1, got %g", got)
	}
	if got := CosineSimilarity([]float64{1, 0}, []float64{-1, 0}); math.Abs(got+1) > 1e-12 {
		t.Errorf("opposite vectors: expected -1, got %g", got)
	}
}

func TestSelectBestAffordabilityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	engine := NewMatchEngine()

	properties.Property("selected candidate never exceeds the budget", prop.ForAll(
		func(prices []float64, funds, priceCap float64) bool {
			candidates := make([]models.Candidate, len(prices))
			for i, price := range prices {
				candidates[i] = models.Candidate{
					CollectionID:   "col",
					TokenID:        string(rune('a' + i%26)),
					Price:          price,
					ImageEmbedding: []float64{1, 0},
				}
			}

			order := testOrder(funds, priceCap, []float64{1, 0})
			best := engine.SelectBest(order, candidates)

			budget := order.Budget()
			if best == nil {
				for _, candidate := range candidates {
					if candidate.Price <= budget {
						return false
					}
				}
				return true
			}
			return best.Price <= budget
		},
		gen.SliceOf(gen.Float64Range(0.01, 10.0)),
		gen.Float64Range(0.01, 10.0),
		gen.Float64Range(0.01, 10.0),
	))

	properties.TestingRun(t)
}

func TestSelectBestPicksHighestScore(t *testing.T) {
	engine := NewMatchEngine()

	// Both affordable; the closer embedding must win even at a higher price
	candidates := []models.Candidate{
		{CollectionID: "col", TokenID: "1", Price: 30, ImageEmbedding: []float64{0, 1}},
		{CollectionID: "col", TokenID: "2", Price: 40, ImageEmbedding: []float64{1, 0}},
	}

	order := testOrder(100, 50, []float64{1, 0})
	best := engine.SelectBest(order, candidates)

	if best == nil {
		t.Fatal("expected a selection")
	}
	if best.TokenID != "2" {
		t.Errorf("expected token 2 (higher score), got %s", best.TokenID)
	}
}

func TestSelectBestTieKeepsFirstSeen(t *testing.T) {
	engine := NewMatchEngine()

	candidates := []models.Candidate{
		{CollectionID: "col", TokenID: "1", Price: 10, ImageEmbedding: []float64{1, 0}},
		{CollectionID: "col", TokenID: "2", Price: 5, ImageEmbedding: []float64{1, 0}},
	}

	best := engine.SelectBest(testOrder(100, 50, []float64{1, 0}), candidates)
	if best == nil || best.TokenID != "1" {
		t.Errorf("tie must keep the first candidate encountered, got %+v", best)
	}
}

func TestSelectBestZeroScoreStillWins(t *testing.T) {
	engine := NewMatchEngine()

	// No embeddings at all scores zero, which still beats -Inf
	candidates := []models.Candidate{
		{CollectionID: "col", TokenID: "1", Price: 10},
	}

	best := engine.SelectBest(testOrder(100, 50, []float64{1, 0}), candidates)
	if best == nil {
		t.Fatal("a zero-scoring affordable candidate must still be selected")
	}
}

func TestSelectBestReturnsNilWhenNothingAffordable(t *testing.T) {
	engine := NewMatchEngine()

	candidates := []models.Candidate{
		{CollectionID: "col", TokenID: "1", Price: 60, ImageEmbedding: []float64{1, 0}},
		{CollectionID: "col", TokenID: "2", Price: 70, ImageEmbedding: []float64{1, 0}},
	}

	if best := engine.SelectBest(testOrder(100, 50, []float64{1, 0}), candidates); best != nil {
		t.Errorf("expected nil when every candidate exceeds the budget, got %+v", best)
	}
}

func TestScoreExcludesMissingComponents(t *testing.T) {
	engine := NewMatchEngine()
	preferences := []float64{1, 0}

	// Text-only candidate: score is the text similarity alone, not halved
	textOnly := &models.Candidate{TextEmbedding: []float64{1, 0}}
	if got := engine.Score(preferences, textOnly); math.Abs(got-1) > 1e-12 {
		t.Errorf("text-only candidate: expected 1, got %g", got)
	}

	both := &models.Candidate{
		ImageEmbedding: []float64{1, 0},
		TextEmbedding:  []float64{0, 1},
	}
	if got := engine.Score(preferences, both); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("two-component candidate: expected 0.5, got %g", got)
	}

	neither := &models.Candidate{}
	if got := engine.Score(preferences, neither); got != 0 {
		t.Errorf("embedding-free candidate: expected 0, got %g", got)
	}
}
