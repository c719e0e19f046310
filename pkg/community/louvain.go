// Package community detects communities of related documents in a
// similarity graph by greedy local modularity optimization.
//
// The detector is a single-level Louvain-style pass: every node starts in
// its own community and repeatedly moves to the neighboring community with
// the highest contribution score until a full pass moves nothing. There is
// no aggregation phase, so the result is the first local optimum reached.
//
// Usage Example:
//
//	graph, _ := simgraph.Build(ctx, items, simgraph.DefaultOptions())
//
//	result, err := community.Detect(graph, community.DefaultOptions())
//	if err != nil {
//		return err
//	}
//
//	for _, c := range community.Group(graph, result.Partition) {
//		fmt.Printf("%s: %v\n", c.Name, c.Members)
//	}
//	// Cluster 1: [doc-1 doc-2]
//	// Cluster 2: [doc-3]
//
// Ordering:
//
// Nodes are visited in Graph.Nodes order and node i starts in community i.
// Neighbor communities are scanned in adjacency insertion order (edge order)
// and the first strictly best score wins. Given the same graph the result is
// always the same partition with the same community ids.
//
// Scoring:
//
// Edge weights are min-max rescaled to [0, 1] first (all edges 0.5 when every
// weight is equal). The score for placing node u in community c is
//
//	Σ_{v ∈ N(u), comm(v) = c}  w(u,v) − tw(u)·w(u,v) / (2·tw(u))
//
// where tw(u) is u's total normalized incident weight. This is not the
// textbook modularity gain; it is kept as-is so partitions stay identical to
// the ones users already have on their shelves. When tw(u) is 0 the second
// term is 0.
package community

import (
	"errors"
	"fmt"

	"github.com/orneryd/shelfsort/pkg/simgraph"
)

// DefaultMaxIterations bounds the number of full passes.
const DefaultMaxIterations = 100

// ErrNegativeCommunity is returned when an initial partition carries a
// negative community id.
var ErrNegativeCommunity = errors.New("community: negative community id")

// Partition maps node id to community id. Ids are internal labels: only
// which nodes share an id matters.
type Partition map[string]int

// Options configures detection.
type Options struct {
	// MaxIterations caps the number of full passes over all nodes.
	// Reaching it is not an error; Result.Converged reports it.
	// Default: 100
	MaxIterations int
}

// DefaultOptions returns the default pass cap.
func DefaultOptions() Options {
	return Options{MaxIterations: DefaultMaxIterations}
}

// Result is the outcome of a detection run.
type Result struct {
	Partition Partition

	// Iterations is the number of full passes executed.
	Iterations int

	// Moves counts community changes over all passes.
	Moves int

	// Converged is true when the last pass moved no node.
	Converged bool
}

// Detect partitions g starting from singleton communities.
//
// A graph without nodes yields an empty partition. Disconnected components
// settle independently. The only errors come from malformed graphs (edges
// naming unknown nodes).
func Detect(g *simgraph.Graph, opts Options) (*Result, error) {
	return DetectFrom(g, nil, opts)
}

// DetectFrom runs detection starting from initial instead of singletons.
// Nodes missing from initial start in their own singleton community.
//
// Running DetectFrom on the partition of a converged run performs one pass
// and moves nothing.
func DetectFrom(g *simgraph.Graph, initial Partition, opts Options) (*Result, error) {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	n := g.NodeCount()
	if n == 0 {
		return &Result{Partition: Partition{}, Converged: true}, nil
	}

	adj, err := g.Adjacency(normalizer(g))
	if err != nil {
		return nil, err
	}

	// Singletons for nodes missing from initial are numbered past its largest
	// id so they cannot collide with an existing community.
	base := 0
	for _, node := range g.Nodes {
		c, ok := initial[node.ID]
		if !ok {
			continue
		}
		if c < 0 {
			return nil, fmt.Errorf("%w: %s -> %d", ErrNegativeCommunity, node.ID, c)
		}
		if c >= base {
			base = c + 1
		}
	}

	comm := make([]int, n)
	for i, node := range g.Nodes {
		if c, ok := initial[node.ID]; ok {
			comm[i] = c
		} else {
			comm[i] = base + i
		}
	}

	d := &detector{
		adj:    adj,
		comm:   comm,
		degree: make([]float64, n),
		seen:   make(map[int]struct{}),
	}
	for i := range d.degree {
		d.degree[i] = adj.Degree(i)
	}

	res := &Result{}
	for res.Iterations < maxIter {
		res.Iterations++
		moved := d.pass()
		res.Moves += moved
		if moved == 0 {
			res.Converged = true
			break
		}
	}

	res.Partition = make(Partition, n)
	for i, node := range g.Nodes {
		res.Partition[node.ID] = d.comm[i]
	}
	return res, nil
}

// detector holds the dense working state of one run.
type detector struct {
	adj    *simgraph.Adjacency
	comm   []int
	degree []float64
	seen   map[int]struct{}
}

// pass visits every node once and returns how many changed community.
func (d *detector) pass() int {
	moved := 0
	for u := range d.comm {
		current := d.comm[u]
		best := current
		bestScore := d.contribution(u, current)

		clear(d.seen)
		for _, nb := range d.adj.Lists[u] {
			c := d.comm[nb.Index]
			if c == current {
				continue
			}
			if _, dup := d.seen[c]; dup {
				continue
			}
			d.seen[c] = struct{}{}

			if score := d.contribution(u, c); score > bestScore {
				best, bestScore = c, score
			}
		}

		if best != current {
			d.comm[u] = best
			moved++
		}
	}
	return moved
}

// contribution scores node u as a member of community c.
func (d *detector) contribution(u, c int) float64 {
	tw := d.degree[u]
	var score float64
	for _, nb := range d.adj.Lists[u] {
		if d.comm[nb.Index] != c {
			continue
		}
		expected := 0.0
		if tw > 0 {
			expected = (tw * nb.Weight) / (2 * tw)
		}
		score += nb.Weight - expected
	}
	return score
}

// normalizer returns the min-max rescaling for g's edge weights.
func normalizer(g *simgraph.Graph) func(float64) float64 {
	lo, hi, ok := g.WeightRange()
	if !ok {
		return nil
	}
	if hi == lo {
		return func(float64) float64 { return 0.5 }
	}
	span := hi - lo
	return func(w float64) float64 { return (w - lo) / span }
}
