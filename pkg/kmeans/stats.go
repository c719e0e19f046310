package kmeans

import "math"

// ClusterStats summarizes a model.
type ClusterStats struct {
	Points         int
	NumClusters    int
	Sizes          []int
	AvgClusterSize float64
	MinClusterSize int
	MaxClusterSize int
	Iterations     int
	Converged      bool
}

// Stats returns cluster size statistics for m.
func (m *Model) Stats() ClusterStats {
	stats := ClusterStats{
		Points:      len(m.Assignments),
		NumClusters: len(m.Centroids),
		Sizes:       make([]int, len(m.Centroids)),
		Iterations:  m.Iterations,
		Converged:   m.Converged,
	}

	for _, c := range m.Assignments {
		stats.Sizes[c]++
	}

	if stats.NumClusters > 0 {
		stats.MinClusterSize = math.MaxInt32
		for _, size := range stats.Sizes {
			if size < stats.MinClusterSize {
				stats.MinClusterSize = size
			}
			if size > stats.MaxClusterSize {
				stats.MaxClusterSize = size
			}
		}
		stats.AvgClusterSize = float64(stats.Points) / float64(stats.NumClusters)
	}

	return stats
}

// Members returns the point indices assigned to cluster, in index order.
func (m *Model) Members(cluster int) []int {
	var members []int
	for i, c := range m.Assignments {
		if c == cluster {
			members = append(members, i)
		}
	}
	return members
}
