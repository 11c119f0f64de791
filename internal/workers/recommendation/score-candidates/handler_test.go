// internal/workers/recommendation/score-candidates/handler_test.go
package scorecandidates

import (
	"context"
	"fmt"
	"testing"

	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	profiles map[string]*models.UserProfile
}

func (s *memoryStore) Save(_ context.Context, profile *models.UserProfile) error {
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *memoryStore) Get(_ context.Context, userID string) (*models.UserProfile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return nil, errors.NewProfileNotFoundError(userID)
	}
	return p, nil
}

func (s *memoryStore) Delete(_ context.Context, userID string) error {
	delete(s.profiles, userID)
	return nil
}

// stubEmbedder maps texts to fixed 2-dimensional vectors.
type stubEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   int
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = e.vectors[text]
	}
	return out, nil
}

func profileWithCentroids(centroids ...[]float64) *models.UserProfile {
	clusters := make([]models.Cluster, len(centroids))
	for i, c := range centroids {
		clusters[i] = models.Cluster{Centroid: c, Size: 5, AverageRating: 8}
	}
	return &models.UserProfile{UserID: "user-1", Clusters: clusters, MovieCount: 5 * len(centroids)}
}

func embedded(title string, vector []float64) models.CandidateMovie {
	return models.CandidateMovie{ID: title, Title: title, Year: 2020, Embedding: vector}
}

func newTestHandler(t *testing.T, st *memoryStore, emb *stubEmbedder) *Handler {
	if st == nil {
		st = &memoryStore{profiles: map[string]*models.UserProfile{}}
	}
	return NewHandler(LoadConfig(), st, emb, logger.NewTestLogger(t))
}

func TestExecute_RanksByScoreDescending(t *testing.T) {
	h := newTestHandler(t, nil, &stubEmbedder{})

	input := &Input{
		UserID:  "user-1",
		Profile: profileWithCentroids([]float64{1, 0}),
		Candidates: []models.CandidateMovie{
			embedded("Halfway", []float64{1, 1}),
			embedded("Perfect", []float64{2, 0}),
			embedded("Orthogonal", []float64{0, 1}),
		},
	}

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, output.Recommendations, 3)
	assert.Equal(t, "Perfect", output.Recommendations[0].Title)
	assert.Equal(t, 1.0, output.Recommendations[0].Score)
	assert.Equal(t, "Halfway", output.Recommendations[1].Title)
	assert.InDelta(t, 0.71, output.Recommendations[1].Score, 1e-9)
	assert.Equal(t, "Orthogonal", output.Recommendations[2].Title)
	assert.Equal(t, 0.0, output.Recommendations[2].Score)
}

func TestExecute_TiesBrokenByTitleAscending(t *testing.T) {
	h := newTestHandler(t, nil, &stubEmbedder{})

	input := &Input{
		UserID:  "user-1",
		Profile: profileWithCentroids([]float64{1, 0}),
		Candidates: []models.CandidateMovie{
			embedded("Zodiac", []float64{1, 0}),
			embedded("Amadeus", []float64{1, 0}),
			embedded("Memento", []float64{1, 0}),
		},
	}

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	titles := []string{
		output.Recommendations[0].Title,
		output.Recommendations[1].Title,
		output.Recommendations[2].Title,
	}
	assert.Equal(t, []string{"Amadeus", "Memento", "Zodiac"}, titles)
}

func TestExecute_SameTitleTiesBrokenByYear(t *testing.T) {
	h := newTestHandler(t, nil, &stubEmbedder{})

	// A remake shares title and score with the original; the older release
	// must rank first.
	remake := models.CandidateMovie{ID: "solaris-2002", Title: "Solaris", Year: 2002, Embedding: []float64{1, 0}}
	original := models.CandidateMovie{ID: "solaris-1972", Title: "Solaris", Year: 1972, Embedding: []float64{1, 0}}

	input := &Input{
		UserID:     "user-1",
		Profile:    profileWithCentroids([]float64{1, 0}),
		Candidates: []models.CandidateMovie{remake, original},
	}

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	require.Len(t, output.Recommendations, 2)
	assert.Equal(t, "solaris-1972", output.Recommendations[0].ID)
	assert.Equal(t, "solaris-2002", output.Recommendations[1].ID)
}

func TestExecute_ReturnsTopN(t *testing.T) {
	h := newTestHandler(t, nil, &stubEmbedder{})

	var candidates []models.CandidateMovie
	for i := 0; i < 25; i++ {
		candidates = append(candidates, embedded(fmt.Sprintf("Movie %02d", i), []float64{1, float64(i) / 25}))
	}

	output, err := h.Execute(context.Background(), &Input{
		UserID:     "user-1",
		Profile:    profileWithCentroids([]float64{1, 0}),
		Candidates: candidates,
	})
	require.NoError(t, err)
	assert.Len(t, output.Recommendations, 10)
	assert.Equal(t, 25, output.CandidateCount)
}

func TestExecute_EmbedsMissingVectors(t *testing.T) {
	movie := models.CandidateMovie{Title: "Heat", Year: 1995, Genres: []string{"Crime"}}
	emb := &stubEmbedder{vectors: map[string][]float64{
		models.EmbeddingTextForCandidate(movie): {1, 0},
	}}
	h := newTestHandler(t, nil, emb)

	output, err := h.Execute(context.Background(), &Input{
		UserID:     "user-1",
		Profile:    profileWithCentroids([]float64{1, 0}),
		Candidates: []models.CandidateMovie{movie},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, emb.calls)
	require.Len(t, output.Recommendations, 1)
	assert.Equal(t, 1.0, output.Recommendations[0].Score)
}

func TestExecute_DropsCandidatesWithoutVectors(t *testing.T) {
	known := models.CandidateMovie{Title: "Heat", Year: 1995}
	unknown := models.CandidateMovie{Title: "Obscure", Year: 1999}
	emb := &stubEmbedder{vectors: map[string][]float64{
		models.EmbeddingTextForCandidate(known): {1, 0},
	}}
	h := newTestHandler(t, nil, emb)

	output, err := h.Execute(context.Background(), &Input{
		UserID:     "user-1",
		Profile:    profileWithCentroids([]float64{1, 0}),
		Candidates: []models.CandidateMovie{known, unknown},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, output.DroppedNoVector)
	require.Len(t, output.Recommendations, 1)
	assert.Equal(t, "Heat", output.Recommendations[0].Title)
}

func TestExecute_DimensionMismatchIsFatal(t *testing.T) {
	h := newTestHandler(t, nil, &stubEmbedder{})

	_, err := h.Execute(context.Background(), &Input{
		UserID:     "user-1",
		Profile:    profileWithCentroids([]float64{1, 0}),
		Candidates: []models.CandidateMovie{embedded("Heat", []float64{1, 0, 0})},
	})
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeEmbeddingDimMismatch, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestExecute_LoadsProfileFromStore(t *testing.T) {
	st := &memoryStore{profiles: map[string]*models.UserProfile{
		"user-1": profileWithCentroids([]float64{1, 0}),
	}}
	h := newTestHandler(t, st, &stubEmbedder{})

	output, err := h.Execute(context.Background(), &Input{
		UserID:     "user-1",
		Candidates: []models.CandidateMovie{embedded("Heat", []float64{1, 0})},
	})
	require.NoError(t, err)
	require.Len(t, output.Recommendations, 1)
}

func TestExecute_ProfileNotFound(t *testing.T) {
	h := newTestHandler(t, nil, &stubEmbedder{})

	_, err := h.Execute(context.Background(), &Input{
		UserID:     "user-1",
		Candidates: []models.CandidateMovie{embedded("Heat", []float64{1, 0})},
	})
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeProfileNotFound, stdErr.Code)
}

func TestExecute_EmptyCandidates(t *testing.T) {
	h := newTestHandler(t, nil, &stubEmbedder{})

	_, err := h.Execute(context.Background(), &Input{
		UserID:  "user-1",
		Profile: profileWithCentroids([]float64{1, 0}),
	})
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeNoCandidatesAfterFilter, stdErr.Code)
}

func TestExecute_EmbeddingTimeoutFailsWholeRequest(t *testing.T) {
	emb := &stubEmbedder{err: errors.NewEmbeddingTimeoutError()}
	h := newTestHandler(t, nil, emb)

	_, err := h.Execute(context.Background(), &Input{
		UserID:     "user-1",
		Profile:    profileWithCentroids([]float64{1, 0}),
		Candidates: []models.CandidateMovie{{Title: "Heat", Year: 1995}},
	})
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeEmbeddingTimeout, stdErr.Code)
}
