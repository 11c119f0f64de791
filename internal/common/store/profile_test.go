package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recommender-workers/internal/common/database"
	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/models"
)

func newMockStore(t *testing.T) (*PostgresProfileStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	client := &database.PostgresClient{DB: db}
	return NewPostgresProfileStore(client, logger.NewTestLogger(t)), mock
}

func sampleProfile() *models.UserProfile {
	return &models.UserProfile{
		UserID: "user-1",
		Clusters: []models.Cluster{
			{Centroid: []float64{0.1, 0.2}, Size: 6, AverageRating: 8.5},
		},
		MovieCount: 6,
		CreatedAt:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProfileStore_Save(t *testing.T) {
	store, mock := newMockStore(t)
	profile := sampleProfile()

	mock.ExpectExec("INSERT INTO user_profiles").
		WithArgs(profile.UserID, sqlmock.AnyArg(), profile.MovieCount, profile.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Save(context.Background(), profile)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileStore_SaveRejectsEmptyProfile(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.Save(context.Background(), &models.UserProfile{UserID: "user-1"})

	require.Error(t, err)
	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.False(t, stdErr.Retryable)
}

func TestProfileStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	profile := sampleProfile()
	clusters, err := json.Marshal(profile.Clusters)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT clusters, movie_count, created_at").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"clusters", "movie_count", "created_at"}).
			AddRow(clusters, profile.MovieCount, profile.CreatedAt))

	got, err := store.Get(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, profile.UserID, got.UserID)
	assert.Equal(t, profile.Clusters, got.Clusters)
	assert.Equal(t, 6, got.MovieCount)
}

func TestProfileStore_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT clusters, movie_count, created_at").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"clusters", "movie_count", "created_at"}))

	_, err := store.Get(context.Background(), "missing")

	require.Error(t, err)
	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeProfileNotFound, stdErr.Code)
}

func TestProfileStore_GetEmptyClustersTreatedAsAbsent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT clusters, movie_count, created_at").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"clusters", "movie_count", "created_at"}).
			AddRow([]byte("[]"), 0, time.Now()))

	_, err := store.Get(context.Background(), "user-1")

	require.Error(t, err)
	stdErr, ok := err.(*errors.StandardError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeProfileNotFound, stdErr.Code)
}

func TestProfileStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM user_profiles").
		WithArgs("user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "user-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
