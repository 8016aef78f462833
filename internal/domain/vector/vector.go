// Package vector holds the similarity math shared by the index and the
// duplicate guard.
package vector

import (
	"github.com/viant/vec/search"

	"github.com/kailas-cloud/bbs/internal/domain"
)

// CheckDim validates that v has exactly dim elements.
func CheckDim(v []float32, dim int) error {
	if len(v) != dim {
		return domain.NewDimMismatch(len(v), dim)
	}
	return nil
}

// Magnitude returns the Euclidean norm of v.
func Magnitude(v []float32) float32 {
	return search.Float32s(v).Magnitude()
}

// Cosine returns the cosine similarity of two equal-length vectors,
// bounded in [-1, 1]. A zero-magnitude vector on either side yields 0:
// zero embeddings carry no meaning and must never look similar.
func Cosine(a, b []float32) float64 {
	return CosineWithMagnitude(a, b, Magnitude(a), Magnitude(b))
}

// CosineWithMagnitude is the scan fast path: magnitudes are precomputed
// once per stored vector instead of per comparison.
func CosineWithMagnitude(a, b []float32, ma, mb float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	if ma == 0 || mb == 0 {
		return 0
	}
	// On non-arm64 builds viant/vec exports this function under the
	// misspelled name CosineDistanceWithMagnitudesNeon (cosine_noasm.go);
	// the arm64 build spells it CosineDistanceWithMagnitude.
	sim := 1 - float64(search.Float32s(a).CosineDistanceWithMagnitudesNeon(b, ma, mb))
	// SIMD accumulation can drift a hair past the mathematical range.
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}
