// internal/workers/recommendation/score-candidates/models.go
package scorecandidates

import "recommender-workers/internal/models"

// Input carries the taste profile and the filtered candidate pool. The
// profile may be inlined by an upstream fetch step; when absent it is loaded
// from the store.
type Input struct {
	UserID     string                  `json:"userId"`
	Profile    *models.UserProfile     `json:"profile,omitempty"`
	Candidates []models.CandidateMovie `json:"candidates"`
}

// RankedMovie is one recommendation at the output boundary; Score is rounded
// to 2 decimals here and nowhere earlier.
type RankedMovie struct {
	ID        string   `json:"id,omitempty"`
	Title     string   `json:"title"`
	Year      int      `json:"year"`
	Genres    []string `json:"genres,omitempty"`
	Countries []string `json:"countries,omitempty"`
	Duration  int      `json:"duration,omitempty"`
	Score     float64  `json:"score"`
}

type Output struct {
	UserID          string        `json:"userId"`
	Recommendations []RankedMovie `json:"recommendations"`
	CandidateCount  int           `json:"candidateCount"`
	DroppedNoVector int           `json:"droppedNoVector"`
}
