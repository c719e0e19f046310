// Package kmeans implements deterministic k-means clustering with k-means++
// seeding for assigning documents to a bounded set of locations.
//
// Every random choice goes through vector.SeededRandom, so the same vectors,
// k and seed always produce the same centroids and assignments.
//
// Architecture:
//
//	Run(vectors, config)
//	    ├── validate          <- empty set, k range, dimensionality
//	    ├── initPlusPlus      <- k-means++ seeding (roulette over D(x)²)
//	    └── loop
//	          ├── assign      <- nearest centroid, lowest index on ties
//	          └── update      <- means, empty clusters repaired
//
// Usage:
//
//	model, err := kmeans.Run(vectors, kmeans.DefaultConfig(5))
//	if err != nil {
//		return err
//	}
//	for i, c := range model.Assignments {
//		fmt.Printf("point %d -> cluster %d\n", i, c)
//	}
package kmeans

import (
	"errors"
	"fmt"
	"math"

	"github.com/orneryd/shelfsort/pkg/math/vector"
)

// Defaults used when Config leaves a field unset.
const (
	DefaultMaxIterations = 100
	DefaultSeed          = 42
)

// Errors for k-means clustering. All of them match ErrInvalidInput with errors.Is.
var (
	ErrInvalidInput        = errors.New("kmeans: invalid input")
	ErrEmptyDataset        = fmt.Errorf("%w: empty dataset", ErrInvalidInput)
	ErrInvalidClusterCount = fmt.Errorf("%w: invalid number of clusters", ErrInvalidInput)
	ErrDimensionMismatch   = fmt.Errorf("%w: %w", ErrInvalidInput, vector.ErrDimensionMismatch)
)

// Config configures a k-means run.
//
// Example:
//
//	config := kmeans.Config{
//	    K:             8,
//	    MaxIterations: 50,
//	    Seed:          1234,
//	}
type Config struct {
	// K is the number of clusters, 1 <= K <= number of points.
	K int

	// MaxIterations caps assignment/update rounds (default: 100).
	MaxIterations int

	// Seed drives k-means++ seeding. Zero is a valid seed; use
	// DefaultConfig for the reference seed.
	Seed int64
}

// DefaultConfig returns a config for k clusters with the reference seed.
func DefaultConfig(k int) Config {
	return Config{
		K:             k,
		MaxIterations: DefaultMaxIterations,
		Seed:          DefaultSeed,
	}
}

// Model is the result of a k-means run.
type Model struct {
	// Centroids holds exactly K vectors of the input dimensionality.
	Centroids [][]float32

	// Assignments maps point index to centroid index in [0, K).
	Assignments []int

	// Iterations is the number of assignment steps executed.
	Iterations int

	// Converged is true when assignments reached a fixed point before the
	// iteration cap. Hitting the cap is not an error.
	Converged bool
}

// Run clusters vectors into cfg.K groups.
//
// Returns ErrEmptyDataset for no input, ErrInvalidClusterCount when K is
// outside [1, n], and ErrDimensionMismatch when vectors differ in length.
// Degenerate inputs (all points identical) are not errors: seeding falls back
// to uniform selection and every point lands in one cluster.
func Run(vectors [][]float32, cfg Config) (*Model, error) {
	n := len(vectors)
	if n == 0 {
		return nil, ErrEmptyDataset
	}

	dims := len(vectors[0])
	if dims == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional vectors", ErrInvalidInput)
	}
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: point %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(v), dims)
		}
	}

	k := cfg.K
	if k < 1 || k > n {
		return nil, fmt.Errorf("%w: k=%d with %d points", ErrInvalidClusterCount, k, n)
	}

	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	rng := vector.NewSeededRandom(cfg.Seed)
	c := &clusterer{
		vectors:     vectors,
		dims:        dims,
		centroids:   initPlusPlus(vectors, k, rng),
		assignments: make([]int, n),
		sums:        make([][]float64, k),
		counts:      make([]int, k),
	}
	for i := range c.assignments {
		c.assignments[i] = -1
	}
	for j := range c.sums {
		c.sums[j] = make([]float64, dims)
	}

	model := &Model{}
	for iter := 0; iter < maxIter; iter++ {
		changed := c.assign()
		model.Iterations++
		if changed == 0 {
			model.Converged = true
			break
		}
		c.update()
	}

	model.Centroids = c.centroids
	model.Assignments = c.assignments
	return model, nil
}

// clusterer holds the working buffers of one run.
type clusterer struct {
	vectors     [][]float32
	dims        int
	centroids   [][]float32
	assignments []int

	// Pre-allocated centroid update buffers, reused every round.
	sums   [][]float64
	counts []int
}

// initPlusPlus picks k initial centroids with k-means++.
//
// The first centroid is drawn uniformly. Each further centroid is drawn from
// the not-yet-selected points with probability proportional to the squared
// distance to their nearest chosen centroid. When every remaining point
// coincides with a centroid, the draw is uniform over the remaining points.
func initPlusPlus(vectors [][]float32, k int, rng *vector.SeededRandom) [][]float32 {
	n := len(vectors)
	centroids := make([][]float32, 0, k)
	selected := make([]bool, n)
	minDistances := make([]float64, n)

	choose := func(idx int) {
		selected[idx] = true
		centroid := make([]float32, len(vectors[idx]))
		copy(centroid, vectors[idx])
		centroids = append(centroids, centroid)
	}

	first := rng.Intn(n)
	choose(first)
	for i := range vectors {
		minDistances[i] = vector.SquaredEuclidean(vectors[i], centroids[0])
	}

	for len(centroids) < k {
		total := 0.0
		for i := 0; i < n; i++ {
			if !selected[i] {
				total += minDistances[i]
			}
		}

		pick := -1
		if total == 0 {
			remaining := make([]int, 0, n-len(centroids))
			for i := 0; i < n; i++ {
				if !selected[i] {
					remaining = append(remaining, i)
				}
			}
			pick = remaining[rng.Intn(len(remaining))]
		} else {
			target := rng.Float64() * total
			cumWeight := 0.0
			lastPositive := -1
			for i := 0; i < n; i++ {
				if selected[i] {
					continue
				}
				cumWeight += minDistances[i]
				if minDistances[i] > 0 {
					lastPositive = i
				}
				if cumWeight > target {
					pick = i
					break
				}
			}
			// Rounding can leave cumWeight a hair under target.
			if pick < 0 {
				pick = lastPositive
			}
		}

		choose(pick)
		newCentroid := centroids[len(centroids)-1]
		for i := range vectors {
			if d := vector.SquaredEuclidean(vectors[i], newCentroid); d < minDistances[i] {
				minDistances[i] = d
			}
		}
	}

	return centroids
}

// assign moves every point to its nearest centroid.
// Returns number of assignments that changed.
func (c *clusterer) assign() int {
	changed := 0
	for i, v := range c.vectors {
		nearest := nearestCentroid(v, c.centroids)
		if c.assignments[i] != nearest {
			c.assignments[i] = nearest
			changed++
		}
	}
	return changed
}

// update recomputes centroids as the mean of their points and repairs empty
// clusters.
func (c *clusterer) update() {
	k := len(c.centroids)
	for j := 0; j < k; j++ {
		c.counts[j] = 0
		for d := range c.sums[j] {
			c.sums[j][d] = 0
		}
	}

	for i, v := range c.vectors {
		cluster := c.assignments[i]
		c.counts[cluster]++
		sum := c.sums[cluster]
		for d, x := range v {
			sum[d] += float64(x)
		}
	}

	var empty []int
	for j := 0; j < k; j++ {
		if c.counts[j] == 0 {
			empty = append(empty, j)
			continue
		}
		inv := 1 / float64(c.counts[j])
		for d := 0; d < c.dims; d++ {
			c.centroids[j][d] = float32(c.sums[j][d] * inv)
		}
	}

	if len(empty) > 0 {
		c.repair(empty)
	}
}

// repair moves each empty cluster's centroid onto the point farthest from
// every populated centroid. A repaired centroid counts as populated for the
// next repair, so two empty clusters never land on the same point.
func (c *clusterer) repair(empty []int) {
	populated := make([]bool, len(c.centroids))
	for j := range populated {
		populated[j] = c.counts[j] > 0
	}

	for _, j := range empty {
		farthest := -1
		farthestDist := -1.0
		for i, v := range c.vectors {
			nearest := math.MaxFloat64
			for p, centroid := range c.centroids {
				if !populated[p] {
					continue
				}
				if d := vector.SquaredEuclidean(v, centroid); d < nearest {
					nearest = d
				}
			}
			if nearest > farthestDist {
				farthest, farthestDist = i, nearest
			}
		}
		copy(c.centroids[j], c.vectors[farthest])
		populated[j] = true
	}
}

// nearestCentroid returns the index of the closest centroid; ties go to the
// lowest index.
func nearestCentroid(v []float32, centroids [][]float32) int {
	minDist := math.MaxFloat64
	nearest := 0
	for j, centroid := range centroids {
		if d := vector.SquaredEuclidean(v, centroid); d < minDist {
			minDist = d
			nearest = j
		}
	}
	return nearest
}
