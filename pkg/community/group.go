package community

import (
	"fmt"
	"sort"

	"github.com/orneryd/shelfsort/pkg/simgraph"
)

// Cluster is a named, non-empty community.
type Cluster struct {
	// Community is the internal id the detector assigned.
	Community int
	// Name is "Cluster N", N counting from 1 in ascending community id order.
	Name string
	// Members are node ids in graph order.
	Members []string
}

// Group turns a partition into named clusters.
//
// Clusters are ordered by ascending community id and communities without
// members never appear. Nodes absent from p are left out.
func Group(g *simgraph.Graph, p Partition) []Cluster {
	members := make(map[int][]string)
	for _, node := range g.Nodes {
		c, ok := p[node.ID]
		if !ok {
			continue
		}
		members[c] = append(members[c], node.ID)
	}

	ids := make([]int, 0, len(members))
	for c := range members {
		ids = append(ids, c)
	}
	sort.Ints(ids)

	clusters := make([]Cluster, len(ids))
	for i, c := range ids {
		clusters[i] = Cluster{
			Community: c,
			Name:      fmt.Sprintf("Cluster %d", i+1),
			Members:   members[c],
		}
	}
	return clusters
}

// Assignments maps each member id to the position of its cluster, giving the
// dense [0, len(clusters)) index the organization planner expects.
func Assignments(clusters []Cluster) map[string]int {
	out := make(map[string]int)
	for i, c := range clusters {
		for _, id := range c.Members {
			out[id] = i
		}
	}
	return out
}

// Modularity returns the Newman modularity of p over g's raw edge weights,
//
//	Q = Σ_c [ L_c / m − (D_c / 2m)² ]
//
// where m is the total edge weight, L_c the weight inside c and D_c the summed
// degree of c. It is reported alongside results as a quality figure and is
// independent of the score the detector optimizes. A graph without edges has
// modularity 0.
func Modularity(g *simgraph.Graph, p Partition) float64 {
	var m float64
	inside := make(map[int]float64)
	degree := make(map[int]float64)

	for _, e := range g.Edges {
		if e.Source == e.Target {
			continue
		}
		cs, okS := p[e.Source]
		ct, okT := p[e.Target]
		if !okS || !okT {
			continue
		}
		m += e.Weight
		degree[cs] += e.Weight
		degree[ct] += e.Weight
		if cs == ct {
			inside[cs] += e.Weight
		}
	}
	if m == 0 {
		return 0
	}

	var q float64
	for c, d := range degree {
		frac := d / (2 * m)
		q += inside[c]/m - frac*frac
	}
	return q
}
