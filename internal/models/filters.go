// internal/models/filters.go
package models

// CandidateFilters narrows the candidate pool before scoring. A nil/empty
// dimension imposes no constraint.
type CandidateFilters struct {
	Genres    []string `json:"genres,omitempty"`
	Countries []string `json:"countries,omitempty"`
	YearFrom  int      `json:"yearFrom,omitempty"`
	YearTo    int      `json:"yearTo,omitempty"`
	MinDuration int    `json:"minDuration,omitempty"`
	MaxDuration int    `json:"maxDuration,omitempty"`
}

// WatchedTitle identifies an already-seen movie for fuzzy exclusion.
type WatchedTitle struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
}
