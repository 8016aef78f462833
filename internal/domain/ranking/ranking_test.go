package ranking

import (
	"math"
	"testing"
	"time"

	"github.com/kailas-cloud/bbs/internal/domain/algorithm"
)

func TestScore_WeightedSum(t *testing.T) {
	weights := map[string]float64{
		algorithm.FactorSimilarity:      1.0,
		algorithm.FactorLikes:           0.3,
		algorithm.FactorRecencyDecay:    0.1,
		algorithm.ParamRecencyHalflifeH: 24,
	}
	ctx := Context{Similarity: 0.8, Likes: 10, MaxLikes: 10, Age: 24 * time.Hour}

	got := Score(weights, ctx)
	want := 1.0*0.8 + 0.3*1.0 + 0.1*0.5 // exact match on max likes, one halflife elapsed
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("score = %f, want %f", got, want)
	}
}

func TestScore_MissingWeightsContributeZero(t *testing.T) {
	ctx := Context{Similarity: 0.9, Likes: 100, MaxLikes: 100, Age: time.Hour}
	if got := Score(map[string]float64{}, ctx); got != 0 {
		t.Errorf("empty weight map must score 0, got %f", got)
	}
	got := Score(map[string]float64{algorithm.FactorSimilarity: 2}, ctx)
	if math.Abs(got-1.8) > 1e-9 {
		t.Errorf("similarity-only score = %f, want 1.8", got)
	}
}

func TestScore_HalflifeIsNotAFactor(t *testing.T) {
	// A halflife entry alone must not contribute to the score.
	weights := map[string]float64{algorithm.ParamRecencyHalflifeH: 24}
	if got := Score(weights, Context{Age: time.Hour}); got != 0 {
		t.Errorf("halflife parameter leaked into score: %f", got)
	}
}

func TestScore_CustomFactors(t *testing.T) {
	weights := map[string]float64{"novelty": 0.5, "absent": 3}
	ctx := Context{Custom: map[string]float64{"novelty": 0.4}}
	if got := Score(weights, ctx); math.Abs(got-0.2) > 1e-9 {
		t.Errorf("custom factor score = %f, want 0.2", got)
	}
}

func TestScore_MonotonicInWeights(t *testing.T) {
	ctx := Context{Similarity: 0.5, Likes: 3, MaxLikes: 9, Age: 2 * time.Hour,
		Custom: map[string]float64{"x": 0.25}}

	for _, factor := range []string{
		algorithm.FactorSimilarity, algorithm.FactorLikes,
		algorithm.FactorRecencyDecay, "x",
	} {
		low := Score(map[string]float64{factor: 0.1}, ctx)
		high := Score(map[string]float64{factor: 0.9}, ctx)
		if high < low {
			t.Errorf("factor %s: score decreased when weight grew (%f -> %f)",
				factor, low, high)
		}
	}
}

func TestScore_PopularRecentBeatsStaleUnliked(t *testing.T) {
	// Two equally similar candidates: 10 likes at 1h old vs 0 likes at 48h.
	weights := map[string]float64{
		algorithm.FactorSimilarity:      1.0,
		algorithm.FactorLikes:           0.3,
		algorithm.FactorRecencyDecay:    0.1,
		algorithm.ParamRecencyHalflifeH: 24,
	}
	fresh := Score(weights, Context{Similarity: 0.7, Likes: 10, MaxLikes: 10, Age: time.Hour})
	stale := Score(weights, Context{Similarity: 0.7, Likes: 0, MaxLikes: 10, Age: 48 * time.Hour})
	if fresh <= stale {
		t.Errorf("fresh popular post must rank strictly higher: %f vs %f", fresh, stale)
	}
}

func TestNormalizeLikes(t *testing.T) {
	if got := NormalizeLikes(0, 10); got != 0 {
		t.Errorf("zero likes = %f", got)
	}
	if got := NormalizeLikes(10, 10); math.Abs(got-1) > 1e-9 {
		t.Errorf("max likes = %f, want 1", got)
	}
	if got := NormalizeLikes(5, 0); got != 0 {
		t.Errorf("empty candidate set = %f", got)
	}

	// Monotonic non-decreasing in count.
	prev := -1.0
	for n := 0; n <= 20; n++ {
		cur := NormalizeLikes(n, 20)
		if cur < prev {
			t.Fatalf("normalization decreased at %d: %f < %f", n, cur, prev)
		}
		prev = cur
	}
}

func TestOrder_Deterministic(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cands := []Candidate{
		{ID: "c", CreatedAt: base, Score: 0.5},
		{ID: "a", CreatedAt: base, Score: 0.5},
		{ID: "b", CreatedAt: base.Add(time.Hour), Score: 0.5},
		{ID: "d", CreatedAt: base, Score: 0.9},
	}
	Order(cands)

	want := []string{"d", "b", "a", "c"} // score, then newer, then lower id
	for i, id := range want {
		if cands[i].ID != id {
			t.Fatalf("position %d: got %s, want %s (full: %+v)", i, cands[i].ID, id, cands)
		}
	}
}
