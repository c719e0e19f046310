// Package vector provides vector math operations for shelfsort.
//
// This package consolidates the similarity and distance calculations used by
// the similarity graph builder and the k-means clusterer. Use these functions
// instead of implementing your own so both algorithms agree on the metric.
//
// Main Functions:
//   - CosineSimilarity: Normalized dot product, used for graph edge weights
//   - EuclideanDistance: Checked L2 distance between two vectors
//   - SquaredEuclidean: Unchecked squared L2 distance for hot loops
//   - NewSeededRandom: Deterministic Park-Miller generator
//
// None of the functions here allocate or keep state between calls.
package vector

import (
	"errors"
	"math"
)

// ErrDimensionMismatch is returned when two vectors that must share a
// dimensionality do not.
var ErrDimensionMismatch = errors.New("vector: dimension mismatch")

// CosineSimilarity calculates cosine similarity between two float32 vectors.
// Returns value in range [-1, 1] where 1 = identical, 0 = orthogonal, -1 = opposite.
//
// A zero-magnitude vector is treated as maximally dissimilar to everything,
// so the result is 0 when either input has no magnitude. Mismatched or empty
// inputs also return 0.
//
// Uses float64 accumulation for high precision, even with float32 inputs.
//
// Example:
//
//	a := []float32{1.0, 2.0, 3.0}
//	b := []float32{4.0, 5.0, 6.0}
//	sim := CosineSimilarity(a, b)  // Returns 0.9746318461970762
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProd, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dotProd += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProd / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EuclideanDistance returns the L2 distance between a and b.
//
// Returns ErrDimensionMismatch if the vectors differ in length.
//
// Example:
//
//	d, err := EuclideanDistance([]float32{0, 0}, []float32{3, 4})  // 5, nil
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	return math.Sqrt(SquaredEuclidean(a, b)), nil
}

// SquaredEuclidean computes squared Euclidean distance.
// Caller must guarantee len(a) == len(b).
// Uses 4-way loop unrolling for better instruction-level parallelism.
func SquaredEuclidean(a, b []float32) float64 {
	n := len(a)
	var sum0, sum1, sum2, sum3 float64

	i := 0
	for ; i <= n-4; i += 4 {
		d0 := float64(a[i]) - float64(b[i])
		d1 := float64(a[i+1]) - float64(b[i+1])
		d2 := float64(a[i+2]) - float64(b[i+2])
		d3 := float64(a[i+3]) - float64(b[i+3])
		sum0 += d0 * d0
		sum1 += d1 * d1
		sum2 += d2 * d2
		sum3 += d3 * d3
	}

	for ; i < n; i++ {
		diff := float64(a[i]) - float64(b[i])
		sum0 += diff * diff
	}

	return sum0 + sum1 + sum2 + sum3
}

// IsZero reports whether every component of v is zero. An empty vector is zero.
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
