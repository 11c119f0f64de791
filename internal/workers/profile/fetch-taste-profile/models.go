// internal/workers/profile/fetch-taste-profile/models.go
package fetchtasteprofile

import "recommender-workers/internal/models"

type Input struct {
	UserID string `json:"userId"`
}

type Output struct {
	UserID       string              `json:"userId"`
	Profile      *models.UserProfile `json:"profile"`
	ClusterCount int                 `json:"clusterCount"`
	MovieCount   int                 `json:"movieCount"`
	DemoProfile  bool                `json:"demoProfile"`
}
