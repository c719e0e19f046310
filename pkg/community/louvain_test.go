package community

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/shelfsort/pkg/math/vector"
	"github.com/orneryd/shelfsort/pkg/simgraph"
)

// buildTwoCliques returns two triangles {a0,a1,a2} and {b0,b1,b2} joined by a
// weaker a2--b0 bridge.
func buildTwoCliques() *simgraph.Graph {
	return &simgraph.Graph{
		Nodes: []simgraph.Node{{ID: "a0"}, {ID: "a1"}, {ID: "a2"}, {ID: "b0"}, {ID: "b1"}, {ID: "b2"}},
		Edges: []simgraph.Edge{
			{Source: "a0", Target: "a1", Weight: 0.9},
			{Source: "a0", Target: "a2", Weight: 0.9},
			{Source: "a1", Target: "a2", Weight: 0.9},
			{Source: "b0", Target: "b1", Weight: 0.9},
			{Source: "b0", Target: "b2", Weight: 0.9},
			{Source: "b1", Target: "b2", Weight: 0.9},
			{Source: "a2", Target: "b0", Weight: 0.7},
		},
	}
}

// unit returns a 2-D unit vector at the given angle in radians.
func unit(rad float64) []float32 {
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

func TestDetect_NoEdgesGivesSingletons(t *testing.T) {
	g := &simgraph.Graph{Nodes: []simgraph.Node{{ID: "w"}, {ID: "x"}, {ID: "y"}, {ID: "z"}}}

	res, err := Detect(g, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, 0, res.Moves)

	clusters := Group(g, res.Partition)
	require.Len(t, clusters, 4)
	for _, c := range clusters {
		assert.Len(t, c.Members, 1)
	}
}

func TestDetect_EmptyGraph(t *testing.T) {
	res, err := Detect(&simgraph.Graph{}, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, res.Partition)
	assert.True(t, res.Converged)
	assert.Empty(t, Group(&simgraph.Graph{}, res.Partition))
}

func TestDetect_TwoCliques(t *testing.T) {
	g := buildTwoCliques()

	res, err := Detect(g, DefaultOptions())
	require.NoError(t, err)
	require.True(t, res.Converged)
	assert.Equal(t, 2, res.Iterations)

	clusters := Group(g, res.Partition)
	require.Len(t, clusters, 2)
	assert.Equal(t, "Cluster 1", clusters[0].Name)
	assert.Equal(t, []string{"a0", "a1", "a2"}, clusters[0].Members)
	assert.Equal(t, "Cluster 2", clusters[1].Name)
	assert.Equal(t, []string{"b0", "b1", "b2"}, clusters[1].Members)

	// Community ids follow the first node each group gravitated to.
	assert.Equal(t, 1, clusters[0].Community)
	assert.Equal(t, 4, clusters[1].Community)
}

// Two documents are close, the third is only just above threshold to one of
// them and far from the other. The weaker edge normalizes to 0 and carries no
// pull, so the third document stays alone.
func TestDetect_TwoCloseOneFar(t *testing.T) {
	items := []simgraph.Item{
		{ID: "close-1", Vector: unit(0)},
		{ID: "close-2", Vector: unit(math.Acos(0.95))},
		{ID: "far", Vector: unit(-math.Acos(0.75))},
	}

	g, err := simgraph.Build(context.Background(), items, simgraph.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, g.Edges, 2)

	res, err := Detect(g, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, res.Partition["close-1"], res.Partition["close-2"])
	assert.NotEqual(t, res.Partition["close-1"], res.Partition["far"])

	clusters := Group(g, res.Partition)
	require.Len(t, clusters, 2)
	assert.Equal(t, []string{"close-1", "close-2"}, clusters[0].Members)
	assert.Equal(t, []string{"far"}, clusters[1].Members)
}

// With equal weights every edge normalizes to 0.5, so a hub pulls both
// leaves into one community.
func TestDetect_EqualWeightsHub(t *testing.T) {
	g := &simgraph.Graph{
		Nodes: []simgraph.Node{{ID: "hub"}, {ID: "left"}, {ID: "right"}},
		Edges: []simgraph.Edge{
			{Source: "hub", Target: "left", Weight: 0.9},
			{Source: "hub", Target: "right", Weight: 0.9},
		},
	}

	res, err := Detect(g, DefaultOptions())
	require.NoError(t, err)

	clusters := Group(g, res.Partition)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"hub", "left", "right"}, clusters[0].Members)
}

func TestDetect_IdempotentOnConvergedPartition(t *testing.T) {
	graphs := map[string]*simgraph.Graph{
		"two cliques": buildTwoCliques(),
		"random":      randomGraph(t, 40, 6, 0.4),
	}

	for name, g := range graphs {
		t.Run(name, func(t *testing.T) {
			first, err := Detect(g, DefaultOptions())
			require.NoError(t, err)
			require.True(t, first.Converged)

			again, err := DetectFrom(g, first.Partition, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, 0, again.Moves)
			assert.Equal(t, 1, again.Iterations)
			assert.Equal(t, first.Partition, again.Partition)
		})
	}
}

func TestDetect_Deterministic(t *testing.T) {
	g := randomGraph(t, 50, 8, 0.3)

	first, err := Detect(g, DefaultOptions())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Detect(g, DefaultOptions())
		require.NoError(t, err)
		require.Equal(t, first.Partition, again.Partition)
	}
}

func TestDetect_IterationCap(t *testing.T) {
	res, err := Detect(buildTwoCliques(), Options{MaxIterations: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Iterations)
	assert.False(t, res.Converged, "the first pass always moves nodes here")
	assert.Len(t, res.Partition, 6, "a capped run still labels every node")
}

func TestDetect_EveryNodeHasOneCommunity(t *testing.T) {
	g := randomGraph(t, 30, 4, 0.5)
	res, err := Detect(g, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, res.Partition, len(g.Nodes))
	total := 0
	for _, c := range Group(g, res.Partition) {
		total += len(c.Members)
	}
	assert.Equal(t, len(g.Nodes), total)
}

func TestDetectFrom(t *testing.T) {
	t.Run("negative community rejected", func(t *testing.T) {
		_, err := DetectFrom(buildTwoCliques(), Partition{"a0": -1}, DefaultOptions())
		assert.ErrorIs(t, err, ErrNegativeCommunity)
	})

	t.Run("missing nodes do not collide with given ids", func(t *testing.T) {
		g := &simgraph.Graph{Nodes: []simgraph.Node{{ID: "p"}, {ID: "q"}}}
		res, err := DetectFrom(g, Partition{"q": 0}, DefaultOptions())
		require.NoError(t, err)
		assert.NotEqual(t, res.Partition["p"], res.Partition["q"])
	})
}

func TestDetect_UnknownNode(t *testing.T) {
	g := &simgraph.Graph{
		Nodes: []simgraph.Node{{ID: "a"}},
		Edges: []simgraph.Edge{{Source: "a", Target: "ghost", Weight: 1}},
	}
	_, err := Detect(g, DefaultOptions())
	assert.ErrorIs(t, err, simgraph.ErrUnknownNode)
}

func TestAssignments(t *testing.T) {
	clusters := []Cluster{
		{Community: 7, Members: []string{"x", "y"}},
		{Community: 9, Members: []string{"z"}},
	}
	assert.Equal(t, map[string]int{"x": 0, "y": 0, "z": 1}, Assignments(clusters))
}

func TestModularity(t *testing.T) {
	g := buildTwoCliques()

	singletons := Partition{}
	for i, n := range g.Nodes {
		singletons[n.ID] = i
	}
	res, err := Detect(g, DefaultOptions())
	require.NoError(t, err)

	detected := Modularity(g, res.Partition)
	assert.InDelta(t, 2*(2.7/6.1-0.25), detected, 1e-9)
	assert.Less(t, Modularity(g, singletons), 0.0)
	assert.Greater(t, detected, Modularity(g, singletons))

	assert.Equal(t, 0.0, Modularity(&simgraph.Graph{Nodes: g.Nodes}, singletons))
}

// randomGraph builds a similarity graph over seeded random vectors.
func randomGraph(t *testing.T, n, dims int, threshold float64) *simgraph.Graph {
	t.Helper()
	rng := vector.NewSeededRandom(int64(n*dims) + 11)
	items := make([]simgraph.Item, n)
	for i := range items {
		v := make([]float32, dims)
		for d := range v {
			v[d] = float32(rng.Float64()*2 - 1)
		}
		items[i] = simgraph.Item{ID: fmt.Sprintf("n%02d", i), Vector: v}
	}
	g, err := simgraph.Build(context.Background(), items, simgraph.Options{Threshold: threshold})
	require.NoError(t, err)
	return g
}
