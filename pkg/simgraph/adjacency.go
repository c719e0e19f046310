package simgraph

import (
	"errors"
	"fmt"
)

// ErrUnknownNode is returned when an edge names a node that is not in the graph.
var ErrUnknownNode = errors.New("simgraph: edge references unknown node")

// Neighbor is one entry of a dense adjacency list.
type Neighbor struct {
	Index  int
	Weight float64
}

// Adjacency is the index-keyed form of a Graph: Lists[i] holds the neighbors
// of Graph.Nodes[i] in edge insertion order.
type Adjacency struct {
	Lists [][]Neighbor
	Index map[string]int
}

// Adjacency converts the graph into dense adjacency lists.
//
// Each undirected edge appears in both endpoint lists. Self loops are
// dropped. An edge naming an id outside Nodes yields ErrUnknownNode.
// Weights can be rewritten through fn (nil keeps them unchanged), which is how
// the community detector applies its normalization without copying edges.
func (g *Graph) Adjacency(fn func(w float64) float64) (*Adjacency, error) {
	adj := &Adjacency{
		Lists: make([][]Neighbor, len(g.Nodes)),
		Index: make(map[string]int, len(g.Nodes)),
	}
	for i, n := range g.Nodes {
		adj.Index[n.ID] = i
	}

	for _, e := range g.Edges {
		s, ok := adj.Index[e.Source]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, e.Source)
		}
		t, ok := adj.Index[e.Target]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, e.Target)
		}
		if s == t {
			continue
		}
		w := e.Weight
		if fn != nil {
			w = fn(w)
		}
		adj.Lists[s] = append(adj.Lists[s], Neighbor{Index: t, Weight: w})
		adj.Lists[t] = append(adj.Lists[t], Neighbor{Index: s, Weight: w})
	}
	return adj, nil
}

// Degree returns the summed weight of node i's incident edges.
func (a *Adjacency) Degree(i int) float64 {
	var sum float64
	for _, nb := range a.Lists[i] {
		sum += nb.Weight
	}
	return sum
}

// WeightRange returns the minimum and maximum edge weight in the graph.
// ok is false when the graph has no edges.
func (g *Graph) WeightRange() (lo, hi float64, ok bool) {
	if len(g.Edges) == 0 {
		return 0, 0, false
	}
	lo, hi = g.Edges[0].Weight, g.Edges[0].Weight
	for _, e := range g.Edges[1:] {
		if e.Weight < lo {
			lo = e.Weight
		}
		if e.Weight > hi {
			hi = e.Weight
		}
	}
	return lo, hi, true
}
