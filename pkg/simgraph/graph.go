// Package simgraph builds weighted similarity graphs over document embeddings.
//
// Every unordered pair of documents is compared with cosine similarity and
// connected when the similarity reaches a threshold. The resulting graph is
// the input of the community detector in pkg/community.
//
// Usage Example:
//
//	items := []simgraph.Item{
//		{ID: "doc-1", Vector: emb1, Label: "Invoice March"},
//		{ID: "doc-2", Vector: emb2, Label: "Invoice April"},
//		{ID: "doc-3", Vector: emb3, Label: "Holiday photos"},
//	}
//
//	graph, err := simgraph.Build(ctx, items, simgraph.DefaultOptions())
//	if err != nil {
//		return err
//	}
//
//	for _, e := range graph.Edges {
//		fmt.Printf("%s -- %s (%.3f)\n", e.Source, e.Target, e.Weight)
//	}
//
// Complexity is O(n²·d). That is fine for the hundreds to low thousands of
// documents a library holds; there is no approximate index behind this.
//
// Building is deterministic: nodes keep input order and edges are ordered by
// (source index, target index) regardless of how many workers compute rows.
package simgraph

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/orneryd/shelfsort/pkg/math/vector"
)

// DefaultThreshold is the minimum cosine similarity for an edge.
const DefaultThreshold = 0.7

// Errors returned by Build.
var (
	ErrDuplicateNode = errors.New("simgraph: duplicate node id")
	ErrEmptyID       = errors.New("simgraph: empty node id")

	// ErrInvalidThreshold is returned for a negative or NaN threshold.
	// Edge weights are similarities at or above the threshold, so a
	// non-negative threshold keeps every weight non-negative.
	ErrInvalidThreshold = errors.New("simgraph: threshold must be non-negative")
)

// Item is one document entering the graph.
type Item struct {
	ID     string
	Vector []float32
	Label  string
}

// Node is a graph vertex. Its position in Graph.Nodes is its dense index.
type Node struct {
	ID    string
	Label string
}

// Edge is an undirected weighted edge. Source always precedes Target in
// Graph.Nodes.
type Edge struct {
	Source string
	Target string
	Weight float64
}

// Graph is a weighted undirected graph with nodes stored densely.
//
// Invariants:
//   - no self loops
//   - at most one edge per unordered pair
//   - every edge weight >= the threshold it was built with
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Options configures Build.
type Options struct {
	// Threshold is the minimum similarity for an edge (default: 0.7).
	Threshold float64

	// Workers bounds the goroutines computing similarity rows.
	// 0 uses GOMAXPROCS, 1 computes sequentially.
	Workers int
}

// DefaultOptions returns the reference threshold with automatic parallelism.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold}
}

// Build computes the similarity graph for items.
//
// Fewer than two items produce a graph without edges; that is not an error.
// A negative threshold is rejected with ErrInvalidThreshold.
// All vectors must share one dimensionality, otherwise the returned error
// wraps vector.ErrDimensionMismatch.
//
// The context is only consulted between rows, so cancellation is coarse.
func Build(ctx context.Context, items []Item, opts Options) (*Graph, error) {
	if !(opts.Threshold >= 0) {
		return nil, fmt.Errorf("%w: %g", ErrInvalidThreshold, opts.Threshold)
	}

	g := &Graph{Nodes: make([]Node, len(items))}

	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("%w at position %d", ErrEmptyID, i)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, it.ID)
		}
		seen[it.ID] = struct{}{}
		if len(it.Vector) != len(items[0].Vector) {
			return nil, fmt.Errorf("item %s has %d dimensions, expected %d: %w",
				it.ID, len(it.Vector), len(items[0].Vector), vector.ErrDimensionMismatch)
		}
		g.Nodes[i] = Node{ID: it.ID, Label: it.Label}
	}

	if len(items) < 2 {
		return g, nil
	}

	rows, err := similarityRows(ctx, items, opts)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		g.Edges = append(g.Edges, row...)
	}
	return g, nil
}

// similarityRows computes, for every i, the edges (i, j) with j > i.
// Rows are written into their own slots so the merge order never depends on
// scheduling.
func similarityRows(ctx context.Context, items []Item, opts Options) ([][]Edge, error) {
	n := len(items)
	rows := make([][]Edge, n)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n-1; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var row []Edge
			for j := i + 1; j < n; j++ {
				sim := vector.CosineSimilarity(items[i].Vector, items[j].Vector)
				if sim >= opts.Threshold {
					row = append(row, Edge{
						Source: items[i].ID,
						Target: items[j].ID,
						Weight: sim,
					})
				}
			}
			rows[i] = row
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.Edges)
}
