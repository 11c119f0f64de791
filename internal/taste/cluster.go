package taste

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/models"
)

// Point is one watched movie prepared for clustering: its embedding, its
// combined rating/recency weight, and the metadata carried into cluster
// summaries.
type Point struct {
	Vector    []float64
	Weight    float64
	Rating    float64
	Title     string
	Genres    []string
	Countries []string
}

// Options control strategy selection and the individual algorithms.
type Options struct {
	SmallHistoryLimit int // below this: single cluster
	LargeHistoryLimit int // above this: density clustering
	MinClusterSize    int // density clusters smaller than this become noise
	MinK              int
	MaxK              int
	Seed              int64
}

// DefaultOptions mirror the production thresholds.
func DefaultOptions() Options {
	return Options{
		SmallHistoryLimit: 100,
		LargeHistoryLimit: 500,
		MinClusterSize:    10,
		MinK:              2,
		MaxK:              10,
		Seed:              1,
	}
}

// Clusterer groups an embedded watch history into taste clusters, dispatching
// on history size.
type Clusterer struct {
	opts   Options
	logger logger.Logger
}

func New(log logger.Logger, opts Options) *Clusterer {
	if opts.SmallHistoryLimit == 0 {
		opts = DefaultOptions()
	}
	return &Clusterer{opts: opts, logger: log}
}

// Cluster partitions the points and returns the resulting clusters along with
// the strategy that produced them. The input must be non-empty; callers
// reject empty histories before reaching here.
func (c *Clusterer) Cluster(points []Point) ([]models.Cluster, Strategy) {
	strategy := SelectStrategy(len(points), c.opts.SmallHistoryLimit, c.opts.LargeHistoryLimit)

	switch strategy {
	case StrategySingle:
		return []models.Cluster{summarize(points)}, strategy

	case StrategyKMeans:
		return c.bestKMeans(points), strategy

	default:
		clusters := c.densityClusters(points)
		if clusters == nil {
			// Every point was labeled noise; a single cluster over the full
			// set is still a usable profile.
			c.logger.Warn("Density clustering labeled all points noise, using single cluster", map[string]interface{}{
				"points": len(points),
			})
			return []models.Cluster{summarize(points)}, StrategySingle
		}
		return clusters, strategy
	}
}

// summarize collapses a group of points into one cluster with a weighted
// centroid and weighted average rating.
func summarize(points []Point) models.Cluster {
	dim := len(points[0].Vector)
	centroid := make([]float64, dim)
	var weightSum, ratingSum float64

	for _, p := range points {
		floats.AddScaled(centroid, p.Weight, p.Vector)
		weightSum += p.Weight
		ratingSum += p.Weight * p.Rating
	}
	if weightSum > 0 {
		floats.Scale(1/weightSum, centroid)
		ratingSum /= weightSum
	}

	genres := make([]string, 0, len(points))
	countries := make([]string, 0, len(points))
	titles := make([]string, 0, len(points))
	for _, p := range points {
		genres = append(genres, p.Genres...)
		countries = append(countries, p.Countries...)
		titles = append(titles, p.Title)
	}

	return models.Cluster{
		Centroid:      centroid,
		Size:          len(points),
		AverageRating: ratingSum,
		MemberTitles:  titles,
		TopGenres:     topCounts(genres, 2),
		TopCountries:  topCounts(countries, 2),
	}
}

// topCounts returns the k most frequent values, most frequent first, ties
// broken alphabetically.
func topCounts(values []string, k int) []string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}

	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	if len(keys) > k {
		keys = keys[:k]
	}
	return keys
}
