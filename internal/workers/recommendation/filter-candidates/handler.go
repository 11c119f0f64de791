// internal/workers/recommendation/filter-candidates/handler.go
package filtercandidates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/common/metrics"
	"recommender-workers/internal/common/store"
	"recommender-workers/internal/match"
	"recommender-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "filter-candidates"
)

type Handler struct {
	config  *Config
	catalog store.CatalogSource
	logger  logger.Logger
	errors  *errors.ErrorHandler
}

func NewHandler(config *Config, catalog store.CatalogSource, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
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

// execute runs the three-stage pipeline: fuzzy watched exclusion, field
// filters, then deduplication. Dedup runs last so the fuzzy pass sees the
// full pool. Each stage only removes, so the pipeline is idempotent.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()

	candidates := input.Candidates
	if len(candidates) == 0 {
		fetched, err := h.catalog.FetchAll(ctx)
		if err != nil {
			return nil, err
		}
		candidates = fetched
	}

	matcher := match.NewMatcher(input.Watched, h.config.FuzzyMatchCutoff)

	unwatched := make([]models.CandidateMovie, 0, len(candidates))
	for _, c := range candidates {
		if matcher.Matches(c.Title, c.Year) {
			continue
		}
		unwatched = append(unwatched, c)
	}
	removedWatched := len(candidates) - len(unwatched)

	filtered := make([]models.CandidateMovie, 0, len(unwatched))
	for _, c := range unwatched {
		if h.passesFilters(c, input.Filters) {
			filtered = append(filtered, c)
		}
	}
	removedByFilters := len(unwatched) - len(filtered)

	seen := make(map[dedupeKey]bool, len(filtered))
	deduped := make([]models.CandidateMovie, 0, len(filtered))
	for _, c := range filtered {
		key := dedupeKey{title: match.Normalize(c.Title), year: c.Year}
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, c)
	}
	removedDuplicates := len(filtered) - len(deduped)

	metrics.CandidatesFiltered.WithLabelValues("watched").Add(float64(removedWatched))
	metrics.CandidatesFiltered.WithLabelValues("fields").Add(float64(removedByFilters))
	metrics.CandidatesFiltered.WithLabelValues("duplicate").Add(float64(removedDuplicates))
	metrics.PipelineStageDuration.WithLabelValues("filter_candidates").Observe(time.Since(start).Seconds())

	h.logger.Info("candidates filtered", map[string]interface{}{
		"userId":            input.UserID,
		"inputCount":        len(candidates),
		"outputCount":       len(deduped),
		"removedWatched":    removedWatched,
		"removedByFilters":  removedByFilters,
		"removedDuplicates": removedDuplicates,
	})

	if len(deduped) == 0 {
		return nil, errors.NewNoCandidatesError(
			fmt.Sprintf("all %d candidates removed by filtering", len(candidates)))
	}

	return &Output{
		UserID:            input.UserID,
		Candidates:        deduped,
		CandidateCount:    len(deduped),
		RemovedWatched:    removedWatched,
		RemovedByFilters:  removedByFilters,
		RemovedDuplicates: removedDuplicates,
	}, nil
}

type dedupeKey struct {
	title string
	year  int
}

// passesFilters applies the field filters. An unset dimension imposes no
// constraint; list dimensions match on set intersection.
func (h *Handler) passesFilters(c models.CandidateMovie, f models.CandidateFilters) bool {
	if len(f.Genres) > 0 && !intersects(f.Genres, c.Genres) {
		return false
	}
	if len(f.Countries) > 0 && !intersects(f.Countries, c.Countries) {
		return false
	}
	if f.YearFrom > 0 && c.Year < f.YearFrom {
		return false
	}
	if f.YearTo > 0 && c.Year > f.YearTo {
		return false
	}
	if f.MinDuration > 0 && c.Duration < f.MinDuration {
		return false
	}
	if f.MaxDuration > 0 && c.Duration > f.MaxDuration {
		return false
	}
	return true
}

func intersects(wanted, have []string) bool {
	set := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		set[w] = true
	}
	for _, v := range have {
		if set[v] {
			return true
		}
	}
	return false
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
