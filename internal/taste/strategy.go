package taste

// Strategy identifies which clustering algorithm a history size calls for.
type Strategy string

const (
	StrategySingle  Strategy = "single"
	StrategyKMeans  Strategy = "kmeans"
	StrategyDensity Strategy = "density"
)

// SelectStrategy picks the clustering algorithm purely from the history size.
// Small histories cannot support multiple clusters, mid-sized ones get
// silhouette-selected k-means, and large ones get density clustering.
func SelectStrategy(n, smallLimit, largeLimit int) Strategy {
	switch {
	case n < smallLimit:
		return StrategySingle
	case n <= largeLimit:
		return StrategyKMeans
	default:
		return StrategyDensity
	}
}
