// internal/workers/recommendation/filter-candidates/models.go
package filtercandidates

import "recommender-workers/internal/models"

// Input carries the watched list to exclude and the requested field filters.
// Candidates may be supplied inline; when absent the synced catalog is used.
type Input struct {
	UserID     string                  `json:"userId"`
	Candidates []models.CandidateMovie `json:"candidates,omitempty"`
	Watched    []models.WatchedTitle   `json:"watched"`
	Filters    models.CandidateFilters `json:"filters"`
}

type Output struct {
	UserID            string                  `json:"userId"`
	Candidates        []models.CandidateMovie `json:"candidates"`
	CandidateCount    int                     `json:"candidateCount"`
	RemovedWatched    int                     `json:"removedWatched"`
	RemovedByFilters  int                     `json:"removedByFilters"`
	RemovedDuplicates int                     `json:"removedDuplicates"`
}
