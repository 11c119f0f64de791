// internal/workers/profile/fetch-taste-profile/handler.go
package fetchtasteprofile

import (
	"context"
	"encoding/json"
	"fmt"

	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/common/store"
	"recommender-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "fetch-taste-profile"

	// DemoUserID names the seeded profile row served to users without a
	// profile of their own when demo mode is on.
	DemoUserID = "demo"
)

type Handler struct {
	config   *Config
	profiles store.ProfileStore
	logger   logger.Logger
	errors   *errors.ErrorHandler
}

func NewHandler(config *Config, profiles store.ProfileStore, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:   config,
		profiles: profiles,
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
	if input.UserID == "" {
		return nil, errors.NewBusinessRuleError("invalid input", "userId is required")
	}

	profile, err := h.profiles.Get(ctx, input.UserID)
	if err == nil {
		return h.output(input.UserID, profile, false), nil
	}

	stdErr, ok := err.(*errors.StandardError)
	if !ok || stdErr.Code != errors.ErrCodeProfileNotFound {
		return nil, err
	}
	if !h.config.DemoProfileEnabled {
		return nil, err
	}

	// Demo mode: serve the seeded demo profile instead of failing the flow.
	demo, demoErr := h.profiles.Get(ctx, DemoUserID)
	if demoErr != nil {
		h.logger.Warn("demo mode enabled but demo profile missing", map[string]interface{}{
			"userId": input.UserID,
		})
		return nil, err
	}
	h.logger.Info("serving demo profile", map[string]interface{}{
		"userId": input.UserID,
	})
	return h.output(input.UserID, demo, true), nil
}

func (h *Handler) output(userID string, profile *models.UserProfile, demo bool) *Output {
	return &Output{
		UserID:       userID,
		Profile:      profile,
		ClusterCount: len(profile.Clusters),
		MovieCount:   profile.MovieCount,
		DemoProfile:  demo,
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
