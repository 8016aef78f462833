// Package algorithm treats ranking algorithms as inert data: a named map of
// factor weights. Weights are never executable: the recognized factor set
// is closed and anything else is a plain numeric custom factor.
package algorithm

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/bbs/internal/domain"
)

// Recognized factor keys. Any other key in a weight map is a custom factor.
const (
	FactorSimilarity      = "semantic_similarity"
	FactorLikes           = "likes"
	FactorRecencyDecay    = "recency_decay"
	ParamRecencyHalflifeH = "recency_halflife_hours"
)

// DefaultHalflifeHours applies when an algorithm weights recency_decay but
// omits the halflife parameter.
const DefaultHalflifeHours = 24.0

// Algorithm is a stored, shareable ranking definition.
type Algorithm struct {
	Name    string             `json:"name"`
	Owner   string             `json:"owner"`
	Weights map[string]float64 `json:"weights"`
}

// Default returns the board's stock ranking definition.
func Default() Algorithm {
	return Algorithm{
		Name: "default",
		Weights: map[string]float64{
			FactorSimilarity:      1.0,
			FactorLikes:           0.3,
			FactorRecencyDecay:    0.1,
			ParamRecencyHalflifeH: 24,
		},
	}
}

// ParseWeights converts a decoded weight map into numeric weights.
// Unknown factor names pass through (they address custom factors or are
// silently inert); a non-numeric value is malformed and rejects the map.
func ParseWeights(raw map[string]any) (map[string]float64, error) {
	weights := make(map[string]float64, len(raw))
	for name, v := range raw {
		switch n := v.(type) {
		case float64:
			weights[name] = n
		case float32:
			weights[name] = float64(n)
		case int:
			weights[name] = float64(n)
		case int64:
			weights[name] = float64(n)
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("weight %q is not numeric: %w", name, domain.ErrMalformedAlgorithm)
			}
			weights[name] = f
		default:
			return nil, fmt.Errorf("weight %q has type %T, want number: %w", name, v, domain.ErrMalformedAlgorithm)
		}
	}
	return weights, nil
}

// Halflife returns the recency halflife in hours, falling back to the
// default when the parameter is absent or non-positive.
func Halflife(weights map[string]float64) float64 {
	if h, ok := weights[ParamRecencyHalflifeH]; ok && h > 0 {
		return h
	}
	return DefaultHalflifeHours
}
