// internal/workers/profile/fetch-taste-profile/handler_test.go
package fetchtasteprofile

import (
	"context"
	"testing"
	"time"

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

func profileFor(userID string) *models.UserProfile {
	return &models.UserProfile{
		UserID: userID,
		Clusters: []models.Cluster{
			{Centroid: []float64{0.1, 0.2, 0.3}, Size: 12, AverageRating: 8.1},
			{Centroid: []float64{0.9, 0.1, 0.0}, Size: 5, AverageRating: 7.2},
		},
		MovieCount: 17,
		CreatedAt:  time.Now().UTC(),
	}
}

func newTestHandler(t *testing.T, cfg *Config, st *memoryStore) *Handler {
	return NewHandler(cfg, st, logger.NewTestLogger(t))
}

func TestExecute_ReturnsProfile(t *testing.T) {
	st := &memoryStore{profiles: map[string]*models.UserProfile{"user-1": profileFor("user-1")}}
	h := newTestHandler(t, LoadConfig(), st)

	output, err := h.Execute(context.Background(), &Input{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, "user-1", output.UserID)
	assert.Equal(t, 2, output.ClusterCount)
	assert.Equal(t, 17, output.MovieCount)
	assert.False(t, output.DemoProfile)
	require.NotNil(t, output.Profile)
	assert.Equal(t, 3, output.Profile.Dimension())
}

func TestExecute_ProfileNotFound(t *testing.T) {
	st := &memoryStore{profiles: map[string]*models.UserProfile{}}
	h := newTestHandler(t, LoadConfig(), st)

	_, err := h.Execute(context.Background(), &Input{UserID: "user-1"})
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeProfileNotFound, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestExecute_DemoModeServesSeededProfile(t *testing.T) {
	st := &memoryStore{profiles: map[string]*models.UserProfile{DemoUserID: profileFor(DemoUserID)}}
	cfg := LoadConfig()
	cfg.DemoProfileEnabled = true
	h := newTestHandler(t, cfg, st)

	output, err := h.Execute(context.Background(), &Input{UserID: "user-1"})
	require.NoError(t, err)

	assert.Equal(t, "user-1", output.UserID)
	assert.True(t, output.DemoProfile)
	assert.Equal(t, 2, output.ClusterCount)
}

func TestExecute_DemoModeWithoutSeededProfile(t *testing.T) {
	st := &memoryStore{profiles: map[string]*models.UserProfile{}}
	cfg := LoadConfig()
	cfg.DemoProfileEnabled = true
	h := newTestHandler(t, cfg, st)

	_, err := h.Execute(context.Background(), &Input{UserID: "user-1"})
	require.Error(t, err)

	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeProfileNotFound, stdErr.Code)
}

func TestExecute_MissingUserID(t *testing.T) {
	st := &memoryStore{profiles: map[string]*models.UserProfile{}}
	h := newTestHandler(t, LoadConfig(), st)

	_, err := h.Execute(context.Background(), &Input{})
	require.Error(t, err)
}
