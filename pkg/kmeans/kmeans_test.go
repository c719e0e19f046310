package kmeans

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/shelfsort/pkg/math/vector"
)

// generateClusteredVectors returns clustersCount well separated blobs of
// pointsPerCluster points each, plus the true label of every point.
func generateClusteredVectors(clustersCount, pointsPerCluster, dims int, seed int64) ([][]float32, []int) {
	rng := vector.NewSeededRandom(seed)
	total := clustersCount * pointsPerCluster
	vectors := make([][]float32, 0, total)
	labels := make([]int, 0, total)

	for c := 0; c < clustersCount; c++ {
		for p := 0; p < pointsPerCluster; p++ {
			v := make([]float32, dims)
			for d := range v {
				// centers 100 apart, noise below 1
				v[d] = float32(c*100) + float32(rng.Float64())
			}
			vectors = append(vectors, v)
			labels = append(labels, c)
		}
	}
	return vectors, labels
}

// groups returns the assignment partition as sets of point indices keyed by
// the first member, which makes comparisons independent of cluster numbering.
func groups(assignments []int) map[int][]int {
	first := make(map[int]int)
	out := make(map[int][]int)
	for i, c := range assignments {
		if _, ok := first[c]; !ok {
			first[c] = i
		}
		out[first[c]] = append(out[first[c]], i)
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(4)
	assert.Equal(t, 4, cfg.K)
	assert.Equal(t, 100, cfg.MaxIterations)
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestRun_FourPointsTwoClusters(t *testing.T) {
	vectors := [][]float32{{0, 0}, {0, 1}, {10, 10}, {10, 11}}

	model, err := Run(vectors, DefaultConfig(2))
	require.NoError(t, err)

	assert.Equal(t, map[int][]int{0: {0, 1}, 2: {2, 3}}, groups(model.Assignments))
	assert.True(t, model.Converged)
	require.Len(t, model.Centroids, 2)

	near := model.Centroids[model.Assignments[0]]
	far := model.Centroids[model.Assignments[2]]
	assert.Equal(t, []float32{0, 0.5}, near)
	assert.Equal(t, []float32{10, 10.5}, far)
}

func TestRun_ShapeInvariants(t *testing.T) {
	vectors, _ := generateClusteredVectors(4, 10, 8, 5)

	for k := 1; k <= len(vectors); k += 3 {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			model, err := Run(vectors, DefaultConfig(k))
			require.NoError(t, err)

			require.Len(t, model.Centroids, k)
			require.Len(t, model.Assignments, len(vectors))
			for _, c := range model.Centroids {
				assert.Len(t, c, 8)
			}
			for i, a := range model.Assignments {
				assert.True(t, a >= 0 && a < k, "point %d assigned to %d", i, a)
			}
		})
	}
}

func TestRun_Deterministic(t *testing.T) {
	vectors, _ := generateClusteredVectors(5, 20, 16, 9)

	first, err := Run(vectors, Config{K: 5, Seed: 1234})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Run(vectors, Config{K: 5, Seed: 1234})
		require.NoError(t, err)
		require.Equal(t, first.Centroids, again.Centroids)
		require.Equal(t, first.Assignments, again.Assignments)
		require.Equal(t, first.Iterations, again.Iterations)
	}
}

func TestRun_RecoversSeparatedBlobs(t *testing.T) {
	vectors, labels := generateClusteredVectors(3, 15, 4, 21)

	model, err := Run(vectors, DefaultConfig(3))
	require.NoError(t, err)

	// Points sharing a true label must share a cluster.
	clusterOf := make(map[int]int)
	for i, label := range labels {
		if c, ok := clusterOf[label]; ok {
			assert.Equal(t, c, model.Assignments[i], "point %d split from its blob", i)
		} else {
			clusterOf[label] = model.Assignments[i]
		}
	}
	assert.Len(t, clusterOf, 3)

	stats := model.Stats()
	assert.Equal(t, []int{15, 15, 15}, stats.Sizes)
	assert.Equal(t, 15, stats.MinClusterSize)
	assert.Equal(t, 15, stats.MaxClusterSize)
	assert.InDelta(t, 15.0, stats.AvgClusterSize, 1e-9)
}

func TestRun_IdenticalPoints(t *testing.T) {
	vectors := [][]float32{{3, 3}, {3, 3}, {3, 3}, {3, 3}}

	model, err := Run(vectors, DefaultConfig(3))
	require.NoError(t, err)

	require.Len(t, model.Centroids, 3)
	for _, c := range model.Centroids {
		assert.Equal(t, []float32{3, 3}, c)
	}
	assert.Equal(t, []int{0, 0, 0, 0}, model.Assignments, "ties resolve to the lowest centroid")
	assert.True(t, model.Converged)
}

func TestRun_EmptyClusterRepaired(t *testing.T) {
	// Two distinct locations, three clusters: one cluster always loses its
	// points to a duplicate centroid and has to be repaired onto a data point.
	vectors := [][]float32{{1, 1}, {1, 1}, {5, 5}, {5, 5}}

	model, err := Run(vectors, Config{K: 3, Seed: 7})
	require.NoError(t, err)

	require.Len(t, model.Centroids, 3)
	for _, c := range model.Centroids {
		isDataPoint := (c[0] == 1 && c[1] == 1) || (c[0] == 5 && c[1] == 5)
		assert.True(t, isDataPoint, "centroid %v should sit on a data point", c)
	}
	assert.Equal(t, map[int][]int{0: {0, 1}, 2: {2, 3}}, groups(model.Assignments))
}

func TestRepair_FarthestPointSequential(t *testing.T) {
	line := func(xs ...float32) [][]float32 {
		out := make([][]float32, len(xs))
		for i, x := range xs {
			out[i] = []float32{x, 0}
		}
		return out
	}

	c := &clusterer{
		vectors: line(0, 1, 2, 10, 11, 20),
		dims:    2,
		// Clusters 1 and 3 lost all their points; their stale centroids must
		// not influence the repair.
		centroids: [][]float32{{1, 0}, {99, 99}, {19, 0}, {-99, -99}},
		counts:    []int{3, 0, 3, 0},
	}
	c.repair([]int{1, 3})

	// x=10 is 81 away from both populated centroids, farther than any other
	// point, so cluster 1 moves there first.
	assert.Equal(t, []float32{10, 0}, c.centroids[1])

	// With cluster 1 now populated at x=10, the largest nearest distance is 1,
	// shared by x=0, x=2, x=11 and x=20; the first such point wins.
	assert.Equal(t, []float32{0, 0}, c.centroids[3])

	// Populated centroids are untouched.
	assert.Equal(t, []float32{1, 0}, c.centroids[0])
	assert.Equal(t, []float32{19, 0}, c.centroids[2])
}

func TestRepair_TwoEmptyClustersNeverShareAPoint(t *testing.T) {
	c := &clusterer{
		vectors:   [][]float32{{0, 0}, {0, 10}, {10, 0}},
		dims:      2,
		centroids: [][]float32{{0, 0}, {0, 0}, {0, 0}},
		counts:    []int{3, 0, 0},
	}
	c.repair([]int{1, 2})

	// (0,10) and (10,0) are equally far from the populated centroid; the
	// first wins, and the second empty cluster takes the other one.
	assert.Equal(t, []float32{0, 10}, c.centroids[1])
	assert.Equal(t, []float32{10, 0}, c.centroids[2])
}

func TestRun_IterationCap(t *testing.T) {
	vectors, _ := generateClusteredVectors(3, 10, 2, 4)

	model, err := Run(vectors, Config{K: 3, MaxIterations: 1, Seed: 42})
	require.NoError(t, err)

	assert.Equal(t, 1, model.Iterations)
	assert.False(t, model.Converged, "first assignment always changes from unassigned")
	assert.Len(t, model.Assignments, 30)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
		k       int
		want    error
	}{
		{name: "empty dataset", vectors: nil, k: 1, want: ErrEmptyDataset},
		{name: "k zero", vectors: [][]float32{{1}}, k: 0, want: ErrInvalidClusterCount},
		{name: "k negative", vectors: [][]float32{{1}}, k: -2, want: ErrInvalidClusterCount},
		{name: "k above n", vectors: [][]float32{{1}, {2}}, k: 3, want: ErrInvalidClusterCount},
		{name: "dimension mismatch", vectors: [][]float32{{1, 2}, {1}}, k: 1, want: ErrDimensionMismatch},
		{name: "zero dimensions", vectors: [][]float32{{}, {}}, k: 1, want: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := Run(tt.vectors, DefaultConfig(tt.k))
			assert.Nil(t, model)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, errors.Is(err, ErrInvalidInput), "every failure is invalid input")
		})
	}

	_, err := Run([][]float32{{1, 2}, {1}}, DefaultConfig(1))
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)
}

func TestModel_Members(t *testing.T) {
	vectors := [][]float32{{0, 0}, {0, 1}, {10, 10}, {10, 11}}
	model, err := Run(vectors, DefaultConfig(2))
	require.NoError(t, err)

	low := model.Assignments[0]
	high := model.Assignments[3]
	assert.Equal(t, []int{0, 1}, model.Members(low))
	assert.Equal(t, []int{2, 3}, model.Members(high))
	assert.Empty(t, model.Members(5))
	assert.Equal(t, []int{2, 2}, model.Stats().Sizes)
}
