// internal/models/movie.go
package models

import "strings"

// RatedMovie is one entry of a user's uploaded watch history. Immutable once
// ingested; the clustering pipeline only reads it.
type RatedMovie struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	Countries   []string `json:"countries"`
	Year        int      `json:"year"`
	Duration    int      `json:"duration"` // minutes
	Rating      float64  `json:"rating"`   // 0..10
	WatchedAt   string   `json:"watchedAt,omitempty"`
}

// CandidateMovie is an unseen title from the candidate source. Embedding is
// attached once the scorer has processed it.
type CandidateMovie struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	Countries   []string `json:"countries"`
	Year        int      `json:"year"`
	Duration    int      `json:"duration"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// ScoredCandidate pairs a candidate with its relevance score. Score is kept
// unrounded internally; only the response boundary rounds to 2 decimals.
type ScoredCandidate struct {
	Candidate CandidateMovie `json:"candidate"`
	Score     float64        `json:"score"`
}

// EmbeddingText builds the text representation sent to the embedding
// provider: title, description, genres and countries joined by spaces.
func EmbeddingText(title, description string, genres, countries []string) string {
	parts := []string{title}
	if description != "" {
		parts = append(parts, description)
	}
	parts = append(parts, strings.Join(genres, " "), strings.Join(countries, " "))
	return strings.TrimSpace(strings.Join(parts, " "))
}

// EmbeddingTextForRated returns the embedding input for a watched movie.
func EmbeddingTextForRated(m RatedMovie) string {
	return EmbeddingText(m.Title, m.Description, m.Genres, m.Countries)
}

// EmbeddingTextForCandidate returns the embedding input for a candidate.
func EmbeddingTextForCandidate(m CandidateMovie) string {
	return EmbeddingText(m.Title, m.Description, m.Genres, m.Countries)
}
