package taste

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"recommender-workers/internal/models"
)

// bestKMeans runs k-means for every k in [MinK, min(MaxK, n-1)], scores each
// partition by mean silhouette, and keeps the best. Ties go to the smaller k
// because candidates are tried in ascending order with a strict comparison.
func (c *Clusterer) bestKMeans(points []Point) []models.Cluster {
	n := len(points)
	maxK := c.opts.MaxK
	if maxK >= n {
		maxK = n - 1
	}

	vectors := make([][]float64, n)
	for i, p := range points {
		vectors[i] = p.Vector
	}

	bestScore := -1.0
	var bestLabels []int
	bestK := c.opts.MinK

	for k := c.opts.MinK; k <= maxK; k++ {
		labels := c.kmeans(vectors, k)
		score := meanSilhouette(vectors, labels, k)
		if score > bestScore {
			bestScore = score
			bestLabels = labels
			bestK = k
		}
	}

	c.logger.Debug("Selected k by silhouette", map[string]interface{}{
		"k":     bestK,
		"score": bestScore,
	})

	return groupByLabel(points, bestLabels, bestK)
}

// kmeans is Lloyd's algorithm with k-means++ seeding. Assignment uses plain
// euclidean distance; rating/recency weights only enter when the final
// centroids are rebuilt in groupByLabel.
func (c *Clusterer) kmeans(vectors [][]float64, k int) []int {
	const maxIterations = 100

	rng := rand.New(rand.NewSource(c.opts.Seed))
	centroids := seedPlusPlus(vectors, k, rng)
	labels := make([]int, len(vectors))

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(v, centroids)
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		// Recompute centroids as plain means of their members.
		dim := len(vectors[0])
		counts := make([]int, k)
		next := make([][]float64, k)
		for j := range next {
			next[j] = make([]float64, dim)
		}
		for i, v := range vectors {
			floats.Add(next[labels[i]], v)
			counts[labels[i]]++
		}
		for j := range next {
			if counts[j] == 0 {
				// Reseed an empty centroid from a random point.
				copy(next[j], vectors[rng.Intn(len(vectors))])
				continue
			}
			floats.Scale(1/float64(counts[j]), next[j])
		}
		centroids = next
	}

	return labels
}

// seedPlusPlus picks initial centroids with probability proportional to the
// squared distance from the ones already chosen.
func seedPlusPlus(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	first := vectors[rng.Intn(len(vectors))]
	centroids = append(centroids, append([]float64(nil), first...))

	dists := make([]float64, len(vectors))
	for len(centroids) < k {
		var total float64
		for i, v := range vectors {
			d := floats.Distance(v, centroids[len(centroids)-1], 2)
			d *= d
			if len(centroids) == 1 || d < dists[i] {
				dists[i] = d
			}
			total += dists[i]
		}

		if total == 0 {
			// All points coincide with chosen centroids; duplicate one.
			centroids = append(centroids, append([]float64(nil), vectors[0]...))
			continue
		}

		target := rng.Float64() * total
		var cum float64
		chosen := len(vectors) - 1
		for i := range vectors {
			cum += dists[i]
			if cum >= target {
				chosen = i
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), vectors[chosen]...))
	}

	return centroids
}

func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestDist := floats.Distance(v, centroids[0], 2)
	for j := 1; j < len(centroids); j++ {
		if d := floats.Distance(v, centroids[j], 2); d < bestDist {
			bestDist = d
			best = j
		}
	}
	return best
}

// groupByLabel builds the final clusters, applying the rating/recency weights
// to the centroid and average-rating computation.
func groupByLabel(points []Point, labels []int, k int) []models.Cluster {
	groups := make([][]Point, k)
	for i, p := range points {
		groups[labels[i]] = append(groups[labels[i]], p)
	}

	clusters := make([]models.Cluster, 0, k)
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		clusters = append(clusters, summarize(group))
	}
	return clusters
}
