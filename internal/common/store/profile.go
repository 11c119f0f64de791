// Package store persists user taste profiles in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"recommender-workers/internal/common/database"
	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/models"
)

// ProfileStore is the persistence capability the profile workers depend on.
type ProfileStore interface {
	Save(ctx context.Context, profile *models.UserProfile) error
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Delete(ctx context.Context, userID string) error
}

// PostgresProfileStore stores each profile as a single row holding the
// cluster set as JSON. A profile is an immutable value swapped atomically per
// user; saves replace, they never merge.
type PostgresProfileStore struct {
	db     *database.PostgresClient
	logger logger.Logger
}

func NewPostgresProfileStore(db *database.PostgresClient, log logger.Logger) *PostgresProfileStore {
	return &PostgresProfileStore{db: db, logger: log}
}

const upsertProfileQuery = `
	INSERT INTO user_profiles (user_id, clusters, movie_count, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $4)
	ON CONFLICT (user_id)
	DO UPDATE SET clusters = EXCLUDED.clusters,
	              movie_count = EXCLUDED.movie_count,
	              updated_at = EXCLUDED.updated_at`

const selectProfileQuery = `
	SELECT clusters, movie_count, created_at
	FROM user_profiles
	WHERE user_id = $1`

const deleteProfileQuery = `DELETE FROM user_profiles WHERE user_id = $1`

// Save atomically replaces the stored profile for the user. Profiles with no
// clusters are rejected; an empty profile is indistinguishable from an absent
// one and must never be persisted.
func (s *PostgresProfileStore) Save(ctx context.Context, profile *models.UserProfile) error {
	if !profile.IsUsable() {
		return errors.NewBusinessRuleError(
			"Refusing to persist profile without clusters",
			"userId: "+profile.UserID,
		)
	}

	clusters, err := json.Marshal(profile.Clusters)
	if err != nil {
		return errors.NewQueryExecutionFailedError("marshal profile", err)
	}

	createdAt := profile.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := s.db.Exec(ctx, upsertProfileQuery, profile.UserID, clusters, profile.MovieCount, createdAt); err != nil {
		return errors.NewQueryExecutionFailedError("save profile", err)
	}

	s.logger.Info("Saved taste profile", map[string]interface{}{
		"userId":     profile.UserID,
		"clusters":   len(profile.Clusters),
		"movieCount": profile.MovieCount,
	})
	return nil
}

// Get loads the profile for the user. A missing row, or a stored profile
// with zero clusters, yields PROFILE_NOT_FOUND.
func (s *PostgresProfileStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	var (
		clustersRaw []byte
		movieCount  int
		createdAt   time.Time
	)

	row := s.db.QueryRow(ctx, selectProfileQuery, userID)
	if err := row.Scan(&clustersRaw, &movieCount, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewProfileNotFoundError(userID)
		}
		return nil, errors.NewQueryExecutionFailedError("get profile", err)
	}

	var clusters []models.Cluster
	if err := json.Unmarshal(clustersRaw, &clusters); err != nil {
		return nil, errors.NewQueryExecutionFailedError("decode profile", err)
	}

	profile := &models.UserProfile{
		UserID:     userID,
		Clusters:   clusters,
		MovieCount: movieCount,
		CreatedAt:  createdAt,
	}
	if !profile.IsUsable() {
		return nil, errors.NewProfileNotFoundError(userID)
	}
	return profile, nil
}

// Delete removes the stored profile. Deleting an absent profile is not an
// error.
func (s *PostgresProfileStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.Exec(ctx, deleteProfileQuery, userID); err != nil {
		return errors.NewQueryExecutionFailedError("delete profile", err)
	}
	return nil
}
