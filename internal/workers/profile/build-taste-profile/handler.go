// internal/workers/profile/build-taste-profile/handler.go
package buildtasteprofile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recommender-workers/internal/common/database"
	"recommender-workers/internal/common/embeddings"
	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/common/metrics"
	"recommender-workers/internal/common/store"
	"recommender-workers/internal/models"
	"recommender-workers/internal/taste"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "build-taste-profile"

	lockKeyPrefix = "lock:clustering:"

	// Histories that omit a watch date get this one, which lands in the
	// middle recency band.
	defaultWatchedAt = "2023-01-01"
)

type Handler struct {
	config    *Config
	profiles  store.ProfileStore
	redis     *database.RedisClient
	embedder  embeddings.Provider
	clusterer *taste.Clusterer
	logger    logger.Logger
	errors    *errors.ErrorHandler
}

func NewHandler(
	config *Config,
	profiles store.ProfileStore,
	redis *database.RedisClient,
	embedder embeddings.Provider,
	clusterer *taste.Clusterer,
	log logger.Logger,
) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		profiles:  profiles,
		redis:     redis,
		embedder:  embedder,
		clusterer: clusterer,
		logger:    l,
		errors:    errors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errors.HandleJobError(ctx, client, job, errors.NewInvalidWatchHistoryError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.UserID == "" {
		return nil, errors.NewInvalidWatchHistoryError("userId is required")
	}
	if len(input.WatchHistory) == 0 {
		return nil, errors.NewEmptyWatchHistoryError("watch history is empty")
	}

	start := time.Now()

	history, skipped := h.convertHistory(input.WatchHistory)
	if len(history) == 0 {
		return nil, errors.NewInvalidWatchHistoryError("no rows matched a known history format")
	}

	highRated := make([]models.RatedMovie, 0, len(history))
	for _, m := range history {
		if m.Rating > h.config.HighRatingCutoff {
			highRated = append(highRated, m)
		}
	}
	h.logger.Info("watch history processed", map[string]interface{}{
		"userId":         input.UserID,
		"validMovies":    len(history),
		"skippedRows":    skipped,
		"highRatedCount": len(highRated),
	})
	if len(highRated) == 0 {
		return nil, errors.NewEmptyWatchHistoryError(
			fmt.Sprintf("no movies rated above %.1f", h.config.HighRatingCutoff))
	}

	release, err := h.acquireLock(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	texts := make([]string, len(highRated))
	for i, m := range highRated {
		texts[i] = models.EmbeddingTextForRated(m)
	}
	vectors, err := h.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	points := make([]taste.Point, 0, len(highRated))
	for i, m := range highRated {
		if i >= len(vectors) || vectors[i] == nil {
			h.logger.Warn("movie has no embedding, excluded from clustering", map[string]interface{}{
				"title": m.Title,
			})
			continue
		}
		points = append(points, taste.Point{
			Vector:    vectors[i],
			Weight:    taste.Weight(m.Rating, watchedAtTime(m.WatchedAt)),
			Rating:    m.Rating,
			Title:     m.Title,
			Genres:    m.Genres,
			Countries: m.Countries,
		})
	}
	if len(points) == 0 {
		return nil, errors.NewEmbeddingUnavailableError(fmt.Errorf("no embeddings returned for %d movies", len(highRated)))
	}

	clusters, strategy := h.clusterer.Cluster(points)
	metrics.ClusteringRuns.WithLabelValues(string(strategy)).Inc()
	metrics.ProfileClusterCount.Observe(float64(len(clusters)))

	profile := &models.UserProfile{
		UserID:     input.UserID,
		Clusters:   clusters,
		MovieCount: len(points),
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.profiles.Save(ctx, profile); err != nil {
		return nil, err
	}

	metrics.PipelineStageDuration.WithLabelValues("build_profile").Observe(time.Since(start).Seconds())
	h.logger.Info("taste profile built", map[string]interface{}{
		"userId":       input.UserID,
		"clusterCount": len(clusters),
		"strategy":     string(strategy),
		"movieCount":   len(points),
		"durationMs":   time.Since(start).Milliseconds(),
	})

	return &Output{
		UserID:         input.UserID,
		ProfileBuilt:   true,
		ClusterCount:   len(clusters),
		Strategy:       string(strategy),
		MovieCount:     len(points),
		HighRatedCount: len(highRated),
		SkippedRows:    skipped,
	}, nil
}

func (h *Handler) convertHistory(rows []map[string]interface{}) ([]models.RatedMovie, int) {
	movies := make([]models.RatedMovie, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		movie, ok := convertRow(row)
		if !ok {
			skipped++
			h.logger.Warn("history row excluded, required fields missing", map[string]interface{}{
				"row": row,
			})
			continue
		}
		movies = append(movies, *movie)
	}
	return movies, skipped
}

// acquireLock takes the per-user clustering lock so concurrent builds for the
// same user cannot interleave their profile writes. The returned func releases
// it; with no Redis configured the build proceeds unguarded.
func (h *Handler) acquireLock(ctx context.Context, userID string) (func(), error) {
	if h.redis == nil {
		return func() {}, nil
	}
	key := lockKeyPrefix + userID
	ok, err := h.redis.SetNX(ctx, key, "1", h.config.LockTTL)
	if err != nil {
		return nil, errors.NewExternalServiceError("redis", err)
	}
	if !ok {
		return nil, errors.NewClusteringInFlightError(userID)
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.redis.Del(releaseCtx, key); err != nil {
			h.logger.Warn("failed to release clustering lock", map[string]interface{}{
				"userId": userID,
				"error":  err.Error(),
			})
		}
	}, nil
}

func watchedAtTime(watchedAt string) time.Time {
	s := watchedAt
	if s == "" {
		s = defaultWatchedAt
	}
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		t, _ = time.Parse("2006-01-02", defaultWatchedAt)
	}
	return t
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

// Execute exposes the business logic for direct invocation in tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
