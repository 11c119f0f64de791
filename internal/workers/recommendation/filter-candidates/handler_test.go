// internal/workers/recommendation/filter-candidates/handler_test.go
package filtercandidates

import (
	"context"
	"testing"

	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	movies []models.CandidateMovie
	err    error
	calls  int
}

func (s *stubCatalog) FetchAll(_ context.Context) ([]models.CandidateMovie, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.movies, nil
}

func newTestHandler(t *testing.T, catalog *stubCatalog) *Handler {
	return NewHandler(LoadConfig(), catalog, logger.NewTestLogger(t))
}

func candidate(title string, year int, genres []string, countries []string, duration int) models.CandidateMovie {
	return models.CandidateMovie{
		ID:        title,
		Title:     title,
		Year:      year,
		Genres:    genres,
		Countries: countries,
		Duration:  duration,
	}
}

func TestExecute_ExcludesWatchedExactAndFuzzy(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{})

	input := &Input{
		UserID: "user-1",
		Candidates: []models.CandidateMovie{
			candidate("Inception", 2010, []string{"Sci-Fi"}, []string{"US"}, 148),
			candidate("INCEPTION ", 2010, []string{"Sci-Fi"}, []string{"US"}, 148), // exact after normalization
			candidate("Inceptio", 2011, []string{"Sci-Fi"}, []string{"US"}, 148),   // fuzzy, adjacent year
			candidate("The Matrix", 1999, []string{"Sci-Fi"}, []string{"US"}, 136),
		},
		Watched: []models.WatchedTitle{{Title: "Inception", Year: 2010}},
	}

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 3, output.RemovedWatched)
	require.Len(t, output.Candidates, 1)
	assert.Equal(t, "The Matrix", output.Candidates[0].Title)
}

func TestExecute_FieldFilters(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{})

	pool := []models.CandidateMovie{
		candidate("Heat", 1995, []string{"Crime", "Drama"}, []string{"US"}, 170),
		candidate("Oldboy", 2003, []string{"Thriller"}, []string{"KR"}, 120),
		candidate("Amelie", 2001, []string{"Comedy"}, []string{"FR"}, 122),
		candidate("The Host", 2006, []string{"Horror"}, []string{"KR"}, 119),
	}

	tests := []struct {
		name    string
		filters models.CandidateFilters
		want    []string
	}{
		{
			name:    "genre intersection",
			filters: models.CandidateFilters{Genres: []string{"Thriller", "Horror"}},
			want:    []string{"Oldboy", "The Host"},
		},
		{
			name:    "country intersection",
			filters: models.CandidateFilters{Countries: []string{"KR"}},
			want:    []string{"Oldboy", "The Host"},
		},
		{
			name:    "year range",
			filters: models.CandidateFilters{YearFrom: 2001, YearTo: 2003},
			want:    []string{"Oldboy", "Amelie"},
		},
		{
			name:    "duration range",
			filters: models.CandidateFilters{MinDuration: 120, MaxDuration: 130},
			want:    []string{"Oldboy", "Amelie"},
		},
		{
			name:    "unset filters keep everything",
			filters: models.CandidateFilters{},
			want:    []string{"Heat", "Oldboy", "Amelie", "The Host"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := h.Execute(context.Background(), &Input{Candidates: pool, Filters: tt.filters})
			require.NoError(t, err)

			got := make([]string, len(output.Candidates))
			for i, c := range output.Candidates {
				got[i] = c.Title
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecute_DeduplicatesByNormalizedTitleAndYear(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{})

	input := &Input{
		Candidates: []models.CandidateMovie{
			candidate("Solaris", 1972, nil, nil, 167),
			candidate("  SOLARIS ", 1972, nil, nil, 167), // duplicate after normalization
			candidate("Solaris", 2002, nil, nil, 99),     // different year, kept
		},
	}

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 1, output.RemovedDuplicates)
	require.Len(t, output.Candidates, 2)
	assert.Equal(t, "Solaris", output.Candidates[0].Title)
	assert.Equal(t, 1972, output.Candidates[0].Year)
	assert.Equal(t, 2002, output.Candidates[1].Year)
}

func TestExecute_Idempotent(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{})

	input := &Input{
		Candidates: []models.CandidateMovie{
			candidate("Heat", 1995, []string{"Crime"}, []string{"US"}, 170),
			candidate("Heat", 1995, []string{"Crime"}, []string{"US"}, 170),
			candidate("Ronin", 1998, []string{"Action"}, []string{"US"}, 122),
		},
		Watched: []models.WatchedTitle{{Title: "Thief", Year: 1981}},
	}

	first, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	second, err := h.Execute(context.Background(), &Input{
		Candidates: first.Candidates,
		Watched:    input.Watched,
	})
	require.NoError(t, err)

	assert.Equal(t, first.Candidates, second.Candidates)
	assert.Zero(t, second.RemovedWatched)
	assert.Zero(t, second.RemovedDuplicates)
}

func TestExecute_ZeroCandidatesAfterFiltering(t *testing.T) {
	h := newTestHandler(t, &stubCatalog{})

	input := &Input{
		Candidates: []models.CandidateMovie{
			candidate("Heat", 1995, []string{"Crime"}, []string{"US"}, 170),
		},
		Filters: models.CandidateFilters{Genres: []string{"Musical"}},
	}

	_, err := h.Execute(context.Background(), input)
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeNoCandidatesAfterFilter, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestExecute_FallsBackToSyncedCatalog(t *testing.T) {
	catalog := &stubCatalog{movies: []models.CandidateMovie{
		candidate("Heat", 1995, []string{"Crime"}, []string{"US"}, 170),
	}}
	h := newTestHandler(t, catalog)

	output, err := h.Execute(context.Background(), &Input{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.calls)
	assert.Equal(t, 1, output.CandidateCount)
}

func TestExecute_CatalogNotSynced(t *testing.T) {
	catalog := &stubCatalog{err: errors.NewCatalogNotSyncedError("movie-catalog")}
	h := newTestHandler(t, catalog)

	_, err := h.Execute(context.Background(), &Input{UserID: "user-1"})
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeCatalogNotSynced, stdErr.Code)
}
