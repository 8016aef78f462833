// Package ranking is the stateless scoring engine behind search and feeds.
// It evaluates a weight map against per-post context; it never executes
// anything beyond a weighted sum.
package ranking

import (
	"math"
	"sort"
	"time"

	"github.com/kailas-cloud/bbs/internal/domain/algorithm"
)

// Context carries the per-post inputs for one scoring call.
type Context struct {
	// Similarity is the query-similarity score, 0 when ranking is not
	// similarity-driven.
	Similarity float64

	// Likes is the post's like count.
	Likes int

	// MaxLikes is the largest like count within the candidate set; the
	// normalization base. Zero disables the likes factor.
	MaxLikes int

	// Age is now minus the post's creation timestamp.
	Age time.Duration

	// Custom supplies values for any custom factors an algorithm weighs.
	Custom map[string]float64
}

// Score evaluates the weighted sum for one post. A factor absent from the
// weight map contributes 0; a weighted factor absent from the context
// contributes 0. The halflife entry is a decay parameter, never a factor.
func Score(weights map[string]float64, ctx Context) float64 {
	var score float64
	for name, w := range weights {
		switch name {
		case algorithm.FactorSimilarity:
			score += w * ctx.Similarity
		case algorithm.FactorLikes:
			score += w * NormalizeLikes(ctx.Likes, ctx.MaxLikes)
		case algorithm.FactorRecencyDecay:
			score += w * recency(ctx.Age, algorithm.Halflife(weights))
		case algorithm.ParamRecencyHalflifeH:
			// parameter, not a factor
		default:
			score += w * ctx.Custom[name]
		}
	}
	return score
}

// NormalizeLikes maps a raw like count onto [0, 1]: log1p ratio to the
// candidate-set maximum. Monotonic non-decreasing in count and
// deterministic for a fixed candidate set.
func NormalizeLikes(count, maxCount int) float64 {
	if maxCount <= 0 || count <= 0 {
		return 0
	}
	if count > maxCount {
		count = maxCount
	}
	return math.Log1p(float64(count)) / math.Log1p(float64(maxCount))
}

// recency is the half-life decay: 1 at age zero, halved every halflifeHours.
func recency(age time.Duration, halflifeHours float64) float64 {
	ageHours := age.Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	return math.Exp(-math.Ln2 * ageHours / halflifeHours)
}

// Candidate is one scored entry of a result set.
type Candidate struct {
	ID        string
	CreatedAt time.Time
	Score     float64
}

// Order sorts candidates for presentation: score descending, ties broken by
// newer creation timestamp, then lower id. The rule is shared board-wide so
// pagination stays reproducible.
func Order(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return Less(cands[i], cands[j])
	})
}

// Less reports whether a ranks before b.
func Less(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}
