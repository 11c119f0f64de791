// internal/workers/catalog/sync-movie-catalog/handler_test.go
package syncmoviecatalog

import (
	"context"
	"testing"

	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	cached     []models.CandidateMovie
	fetched    []models.CandidateMovie
	fetchErr   error
	fetchCalls int
}

func (s *stubSource) CachedCatalog(_ context.Context) ([]models.CandidateMovie, error) {
	return s.cached, nil
}

func (s *stubSource) FetchCatalog(_ context.Context) ([]models.CandidateMovie, error) {
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.fetched, nil
}

type stubWriter struct {
	replaced []models.CandidateMovie
	err      error
}

func (w *stubWriter) ReplaceAll(_ context.Context, movies []models.CandidateMovie) error {
	if w.err != nil {
		return w.err
	}
	w.replaced = movies
	return nil
}

func catalogOf(titles ...string) []models.CandidateMovie {
	movies := make([]models.CandidateMovie, len(titles))
	for i, title := range titles {
		movies[i] = models.CandidateMovie{ID: title, Title: title, Year: 2020}
	}
	return movies
}

func newTestHandler(t *testing.T, source *stubSource, writer *stubWriter) *Handler {
	return NewHandler(LoadConfig(), source, writer, logger.NewTestLogger(t))
}

func TestExecute_IndexesCachedCatalog(t *testing.T) {
	source := &stubSource{cached: catalogOf("Heat", "Ronin")}
	writer := &stubWriter{}
	h := newTestHandler(t, source, writer)

	output, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, 2, output.MoviesIndexed)
	assert.True(t, output.FromCache)
	assert.Equal(t, 0, source.fetchCalls)
	assert.Len(t, writer.replaced, 2)
}

func TestExecute_ColdCacheFetchesUpstream(t *testing.T) {
	source := &stubSource{fetched: catalogOf("Heat")}
	writer := &stubWriter{}
	h := newTestHandler(t, source, writer)

	output, err := h.Execute(context.Background(), &Input{})
	require.NoError(t, err)

	assert.Equal(t, 1, output.MoviesIndexed)
	assert.False(t, output.FromCache)
	assert.Equal(t, 1, source.fetchCalls)
}

func TestExecute_ForceRefreshBypassesCache(t *testing.T) {
	source := &stubSource{cached: catalogOf("Stale"), fetched: catalogOf("Heat", "Ronin", "Thief")}
	writer := &stubWriter{}
	h := newTestHandler(t, source, writer)

	output, err := h.Execute(context.Background(), &Input{ForceRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, 3, output.MoviesIndexed)
	assert.False(t, output.FromCache)
	assert.Equal(t, 1, source.fetchCalls)
}

func TestExecute_UpstreamFailurePropagated(t *testing.T) {
	source := &stubSource{fetchErr: errors.NewCandidateSourceError(assert.AnError)}
	h := newTestHandler(t, source, &stubWriter{})

	_, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeCandidateSourceUnavailable, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestExecute_EmptyUpstreamCatalog(t *testing.T) {
	h := newTestHandler(t, &stubSource{}, &stubWriter{})

	_, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeCandidateSourceUnavailable, stdErr.Code)
}

func TestExecute_IndexFailurePropagated(t *testing.T) {
	source := &stubSource{cached: catalogOf("Heat")}
	writer := &stubWriter{err: errors.NewCatalogIndexError(assert.AnError)}
	h := newTestHandler(t, source, writer)

	_, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeCatalogIndexFailed, stdErr.Code)
}
