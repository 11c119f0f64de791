// internal/workers/catalog/sync-movie-catalog/handler.go
package syncmoviecatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/common/metrics"
	"recommender-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "sync-movie-catalog"
)

// MovieSource provides the upstream catalog, cache-first.
type MovieSource interface {
	CachedCatalog(ctx context.Context) ([]models.CandidateMovie, error)
	FetchCatalog(ctx context.Context) ([]models.CandidateMovie, error)
}

// CatalogWriter persists the catalog for the recommendation pipeline.
type CatalogWriter interface {
	ReplaceAll(ctx context.Context, movies []models.CandidateMovie) error
}

type Handler struct {
	config  *Config
	source  MovieSource
	catalog CatalogWriter
	logger  logger.Logger
	errors  *errors.ErrorHandler
}

func NewHandler(config *Config, source MovieSource, catalog CatalogWriter, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		source:  source,
		catalog: catalog,
		logger:  l,
		errors:  errors.NewErrorHandler(l),
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
		h.errors.HandleJobError(ctx, client, job, errors.NewBusinessRuleError("invalid input", fmt.Sprintf("parse input: %v", err)))
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
	start := time.Now()

	var movies []models.CandidateMovie
	fromCache := false

	if !input.ForceRefresh {
		cached, err := h.source.CachedCatalog(ctx)
		if err == nil && len(cached) > 0 {
			movies = cached
			fromCache = true
		}
	}

	if len(movies) == 0 {
		fetched, err := h.source.FetchCatalog(ctx)
		if err != nil {
			return nil, err
		}
		movies = fetched
	}

	if len(movies) == 0 {
		return nil, errors.NewCandidateSourceError(fmt.Errorf("upstream catalog returned no movies"))
	}

	if err := h.catalog.ReplaceAll(ctx, movies); err != nil {
		return nil, err
	}

	metrics.PipelineStageDuration.WithLabelValues("sync_catalog").Observe(time.Since(start).Seconds())
	h.logger.Info("movie catalog synced", map[string]interface{}{
		"moviesIndexed": len(movies),
		"fromCache":     fromCache,
		"durationMs":    time.Since(start).Milliseconds(),
	})

	return &Output{MoviesIndexed: len(movies), FromCache: fromCache}, nil
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
