// internal/workers/recommendation/rerank-recommendations/models.go
package rerankrecommendations

import "recommender-workers/internal/models"

// RankedMovie mirrors the scorer's output boundary shape.
type RankedMovie struct {
	ID        string   `json:"id,omitempty"`
	Title     string   `json:"title"`
	Year      int      `json:"year"`
	Genres    []string `json:"genres,omitempty"`
	Countries []string `json:"countries,omitempty"`
	Duration  int      `json:"duration,omitempty"`
	Score     float64  `json:"score"`
}

// Input carries the scored shortlist and the profile whose cluster summaries
// feed the prompt. Raw embeddings never leave the core.
type Input struct {
	UserID          string              `json:"userId"`
	Profile         *models.UserProfile `json:"profile,omitempty"`
	Recommendations []RankedMovie       `json:"recommendations"`
}

type RerankedMovie struct {
	Position      int     `json:"position"`
	Title         string  `json:"title"`
	Year          int     `json:"year"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification,omitempty"`
}

type Output struct {
	UserID          string          `json:"userId"`
	Recommendations []RerankedMovie `json:"recommendations"`
	RerankApplied   bool            `json:"rerankApplied"`
}
