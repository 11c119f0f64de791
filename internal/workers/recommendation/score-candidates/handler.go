// internal/workers/recommendation/score-candidates/handler.go
package scorecandidates

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"recommender-workers/internal/common/embeddings"
	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/common/metrics"
	"recommender-workers/internal/common/store"
	"recommender-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "score-candidates"
)

type Handler struct {
	config   *Config
	profiles store.ProfileStore
	embedder embeddings.Provider
	logger   logger.Logger
	errors   *errors.ErrorHandler
}

func NewHandler(config *Config, profiles store.ProfileStore, embedder embeddings.Provider, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		profiles: profiles,
		embedder: embedder,
		logger:   l,
		errors:   errors.NewErrorHandler(l),
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

	profile := input.Profile
	if !profile.IsUsable() {
		if input.UserID == "" {
			return nil, errors.NewProfileNotFoundError("")
		}
		loaded, err := h.profiles.Get(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		profile = loaded
	}

	if len(input.Candidates) == 0 {
		return nil, errors.NewNoCandidatesError("no candidates to score")
	}

	candidates, dropped, err := h.embedCandidates(ctx, input.Candidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.NewNoCandidatesError("no candidate embeddings available")
	}

	dim := profile.Dimension()
	for _, c := range candidates {
		if len(c.Embedding) != dim {
			// A stale profile cannot be scored against fresh embeddings;
			// the user must re-cluster.
			return nil, errors.NewDimensionMismatchError(dim, len(c.Embedding))
		}
	}

	centroids := make([][]float64, len(profile.Clusters))
	for i, cl := range profile.Clusters {
		centroids[i] = cl.Centroid
	}

	scored := h.scoreAll(candidates, centroids)

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Candidate.Title != scored[j].Candidate.Title {
			return scored[i].Candidate.Title < scored[j].Candidate.Title
		}
		return scored[i].Candidate.Year < scored[j].Candidate.Year
	})
	if len(scored) > h.config.TopN {
		scored = scored[:h.config.TopN]
	}

	recommendations := make([]RankedMovie, len(scored))
	for i, s := range scored {
		recommendations[i] = RankedMovie{
			ID:        s.Candidate.ID,
			Title:     s.Candidate.Title,
			Year:      s.Candidate.Year,
			Genres:    s.Candidate.Genres,
			Countries: s.Candidate.Countries,
			Duration:  s.Candidate.Duration,
			Score:     roundScore(s.Score),
		}
	}

	metrics.PipelineStageDuration.WithLabelValues("score_candidates").Observe(time.Since(start).Seconds())
	h.logger.Info("candidates scored", map[string]interface{}{
		"userId":          input.UserID,
		"candidateCount":  len(candidates),
		"droppedNoVector": dropped,
		"returned":        len(recommendations),
		"durationMs":      time.Since(start).Milliseconds(),
	})

	return &Output{
		UserID:          input.UserID,
		Recommendations: recommendations,
		CandidateCount:  len(candidates),
		DroppedNoVector: dropped,
	}, nil
}

// embedCandidates fills in missing embeddings in one batched provider call.
// Candidates the provider returns nothing for are dropped, not fatal.
func (h *Handler) embedCandidates(ctx context.Context, candidates []models.CandidateMovie) ([]models.CandidateMovie, int, error) {
	var missing []int
	for i, c := range candidates {
		if len(c.Embedding) == 0 {
			missing = append(missing, i)
		}
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for i, idx := range missing {
			texts[i] = models.EmbeddingTextForCandidate(candidates[idx])
		}
		vectors, err := h.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, 0, err
		}
		for i, idx := range missing {
			if i < len(vectors) {
				candidates[idx].Embedding = vectors[i]
			}
		}
	}

	kept := make([]models.CandidateMovie, 0, len(candidates))
	dropped := 0
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			dropped++
			h.logger.Warn("candidate has no embedding, dropped from scoring", map[string]interface{}{
				"title": c.Title,
			})
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped, nil
}

// scoreAll scores candidates in parallel; each candidate only reads the
// shared centroids.
func (h *Handler) scoreAll(candidates []models.CandidateMovie, centroids [][]float64) []models.ScoredCandidate {
	scored := make([]models.ScoredCandidate, len(candidates))

	workers := runtime.GOMAXPROCS(0)
	if workers > len(candidates) {
		workers = len(candidates)
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				scored[i] = models.ScoredCandidate{
					Candidate: candidates[i],
					Score:     softmaxScore(candidates[i].Embedding, centroids, h.config.SoftmaxAlpha),
				}
			}
		}()
	}
	for i := range candidates {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return scored
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
