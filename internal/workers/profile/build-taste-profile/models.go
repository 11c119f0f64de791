// internal/workers/profile/build-taste-profile/models.go
package buildtasteprofile

// Input carries the raw uploaded watch history. Rows arrive as loose maps
// because exports from different trackers name their columns differently;
// fields.go maps them onto the canonical movie shape.
type Input struct {
	UserID       string                   `json:"userId"`
	WatchHistory []map[string]interface{} `json:"watchHistory"`
}

type Output struct {
	UserID         string `json:"userId"`
	ProfileBuilt   bool   `json:"profileBuilt"`
	ClusterCount   int    `json:"clusterCount"`
	Strategy       string `json:"strategy"`
	MovieCount     int    `json:"movieCount"`
	HighRatedCount int    `json:"highRatedCount"`
	SkippedRows    int    `json:"skippedRows"`
}
