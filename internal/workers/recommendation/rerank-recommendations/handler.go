// internal/workers/recommendation/rerank-recommendations/handler.go
package rerankrecommendations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/common/metrics"
	"recommender-workers/internal/match"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "rerank-recommendations"
)

type Handler struct {
	config *Config
	client *http.Client
	logger logger.Logger
	errors *errors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		// No client timeout; the job context bounds the call.
		client: &http.Client{},
		logger: l,
		errors: errors.NewErrorHandler(l),
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
	if len(input.Recommendations) == 0 {
		return nil, errors.NewBusinessRuleError("invalid input", "recommendations list is empty")
	}

	start := time.Now()

	content, err := h.callModel(ctx, h.buildPrompt(input))
	if err != nil {
		return nil, err
	}

	ranking, err := parseRanking(content)
	if err != nil {
		return nil, err
	}

	output := h.applyRanking(input, ranking)

	metrics.PipelineStageDuration.WithLabelValues("rerank").Observe(time.Since(start).Seconds())
	h.logger.Info("recommendations reranked", map[string]interface{}{
		"userId":     input.UserID,
		"count":      len(output.Recommendations),
		"durationMs": time.Since(start).Milliseconds(),
	})
	return output, nil
}

// buildPrompt renders the taste summary and the numbered shortlist. Cluster
// summaries expose titles, genres and ratings only.
func (h *Handler) buildPrompt(input *Input) string {
	var parts []string

	parts = append(parts, "You are a movie recommendation assistant. Reorder the candidate movies for this user, best fit first, and justify each briefly.")

	if input.Profile.IsUsable() {
		parts = append(parts, "\nThe user's taste, grouped by preference cluster:")
		for i, cl := range input.Profile.Clusters {
			line := fmt.Sprintf("Taste group %d: %d movies, average rating %.1f", i+1, cl.Size, cl.AverageRating)
			if len(cl.TopGenres) > 0 {
				line += ", main genres " + strings.Join(cl.TopGenres, ", ")
			}
			if len(cl.TopCountries) > 0 {
				line += ", main countries " + strings.Join(cl.TopCountries, ", ")
			}
			parts = append(parts, line)
		}
	}

	parts = append(parts, "\nCandidates, currently ranked by similarity score:")
	for i, r := range input.Recommendations {
		parts = append(parts, fmt.Sprintf("%d. %s (%d) — score %.2f", i+1, r.Title, r.Year, r.Score))
	}

	parts = append(parts, "\nRespond with JSON only: {\"ranking\": [{\"title\": \"...\", \"justification\": \"...\"}]} covering every candidate exactly once.")
	return strings.Join(parts, "\n")
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (h *Handler) callModel(ctx context.Context, prompt string) (string, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"model":           h.config.Model,
		"temperature":     h.config.Temperature,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})

	var lastErr error
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", errors.NewRerankTimeoutError()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.config.BaseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", errors.NewRerankFailedError(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if h.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+h.config.APIKey)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", errors.NewRerankTimeoutError()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}

		var parsed chatResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if err != nil {
			return "", errors.NewRerankMalformedError(fmt.Sprintf("decode response: %v", err))
		}
		if len(parsed.Choices) == 0 {
			return "", errors.NewRerankMalformedError("response has no choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return "", errors.NewRerankTimeoutError()
	}
	return "", errors.NewRerankFailedError(lastErr)
}

type rankingEntry struct {
	Title         string `json:"title"`
	Justification string `json:"justification"`
}

func parseRanking(content string) ([]rankingEntry, error) {
	var parsed struct {
		Ranking []rankingEntry `json:"ranking"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, errors.NewRerankMalformedError(fmt.Sprintf("parse ranking: %v", err))
	}
	if len(parsed.Ranking) == 0 {
		return nil, errors.NewRerankMalformedError("ranking is empty")
	}
	return parsed.Ranking, nil
}

// applyRanking reorders the shortlist by the model's answer. Entries naming
// unknown titles are ignored; candidates the model skipped keep their
// original relative order at the tail.
func (h *Handler) applyRanking(input *Input, ranking []rankingEntry) *Output {
	byTitle := make(map[string]int, len(input.Recommendations))
	for i, r := range input.Recommendations {
		byTitle[match.Normalize(r.Title)] = i
	}

	used := make(map[int]bool, len(input.Recommendations))
	reranked := make([]RerankedMovie, 0, len(input.Recommendations))

	appendMovie := func(idx int, justification string) {
		r := input.Recommendations[idx]
		reranked = append(reranked, RerankedMovie{
			Position:      len(reranked) + 1,
			Title:         r.Title,
			Year:          r.Year,
			Score:         r.Score,
			Justification: justification,
		})
		used[idx] = true
	}

	for _, entry := range ranking {
		idx, ok := byTitle[match.Normalize(entry.Title)]
		if !ok || used[idx] {
			h.logger.Warn("reranker named an unknown or duplicate title, ignored", map[string]interface{}{
				"title": entry.Title,
			})
			continue
		}
		appendMovie(idx, entry.Justification)
	}
	for i := range input.Recommendations {
		if !used[i] {
			appendMovie(i, "")
		}
	}

	return &Output{
		UserID:          input.UserID,
		Recommendations: reranked,
		RerankApplied:   true,
	}
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
