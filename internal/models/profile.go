// internal/models/profile.go
package models

import "time"

// Cluster is one facet of a user's taste: the weighted centroid of its
// members' embeddings plus summary data for downstream justification.
type Cluster struct {
	Centroid      []float64 `json:"centroid"`
	Size          int       `json:"size"`
	AverageRating float64   `json:"averageRating"`
	MemberTitles  []string  `json:"memberTitles,omitempty"`
	TopGenres     []string  `json:"topGenres,omitempty"`
	TopCountries  []string  `json:"topCountries,omitempty"`
}

// UserProfile is the persisted multi-cluster taste representation. It is
// replaced wholesale on re-upload, never patched in place. A profile with
// zero clusters is treated as absent.
type UserProfile struct {
	UserID     string    `json:"userId"`
	Clusters   []Cluster `json:"clusters"`
	MovieCount int       `json:"movieCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Dimension returns the embedding dimension of the profile's centroids, or 0
// for an absent/empty profile. All centroids share one dimension.
func (p *UserProfile) Dimension() int {
	if p == nil || len(p.Clusters) == 0 {
		return 0
	}
	return len(p.Clusters[0].Centroid)
}

// IsUsable reports whether the profile can back a ranking request.
func (p *UserProfile) IsUsable() bool {
	return p != nil && len(p.Clusters) > 0
}
