package taste

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"recommender-workers/internal/models"
)

// densityClusters runs DBSCAN-style density clustering over large histories.
// The neighborhood radius comes from the k-distance heuristic, core points
// need only two neighbors, and any cluster smaller than MinClusterSize is
// demoted to noise. Noise points are dropped from the profile; they represent
// one-off viewings that should not pull centroids around.
//
// Returns nil when every point ends up noise.
func (c *Clusterer) densityClusters(points []Point) []models.Cluster {
	const corePts = 2

	n := len(points)
	vectors := make([][]float64, n)
	for i, p := range points {
		vectors[i] = p.Vector
	}

	eps := c.epsHeuristic(vectors)

	// Standard DBSCAN sweep.
	const (
		unvisited = 0
		noise     = -1
	)
	labels := make([]int, n) // 0 = unvisited, -1 = noise, >0 = cluster id
	clusterID := 0

	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		neighbors := regionQuery(vectors, i, eps)
		if len(neighbors) < corePts {
			labels[i] = noise
			continue
		}

		clusterID++
		labels[i] = clusterID

		// Expand the cluster through density-reachable points.
		queue := append([]int(nil), neighbors...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if labels[j] == noise {
				labels[j] = clusterID
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = clusterID
			jNeighbors := regionQuery(vectors, j, eps)
			if len(jNeighbors) >= corePts {
				queue = append(queue, jNeighbors...)
			}
		}
	}

	// Demote undersized clusters to noise.
	sizes := make(map[int]int)
	for _, l := range labels {
		if l > 0 {
			sizes[l]++
		}
	}
	noiseCount := 0
	groups := make(map[int][]Point)
	for i, l := range labels {
		if l <= 0 || sizes[l] < c.opts.MinClusterSize {
			noiseCount++
			continue
		}
		groups[l] = append(groups[l], points[i])
	}

	c.logger.Info("Density clustering complete", map[string]interface{}{
		"points":   n,
		"clusters": len(groups),
		"noise":    noiseCount,
	})
	if noiseCount > n/2 && len(groups) > 0 {
		c.logger.Warn("Density clustering labeled most points noise", map[string]interface{}{
			"noiseRatio": float64(noiseCount) / float64(n),
		})
	}

	if len(groups) == 0 {
		return nil
	}

	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	clusters := make([]models.Cluster, 0, len(ids))
	for _, id := range ids {
		clusters = append(clusters, summarize(groups[id]))
	}
	return clusters
}

// epsHeuristic derives the DBSCAN radius from the k-distance curve: the
// median distance to each point's MinClusterSize-th nearest neighbor.
func (c *Clusterer) epsHeuristic(vectors [][]float64) float64 {
	n := len(vectors)
	k := c.opts.MinClusterSize
	if k >= n {
		k = n - 1
	}

	kDists := make([]float64, n)
	dists := make([]float64, n)
	for i := range vectors {
		for j := range vectors {
			dists[j] = floats.Distance(vectors[i], vectors[j], 2)
		}
		sort.Float64s(dists)
		kDists[i] = dists[k] // dists[0] is the self-distance
	}

	sort.Float64s(kDists)
	return kDists[n/2]
}

func regionQuery(vectors [][]float64, i int, eps float64) []int {
	var neighbors []int
	for j := range vectors {
		if j == i {
			continue
		}
		if floats.Distance(vectors[i], vectors[j], 2) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
