// internal/workers/notification/send-recommendation-digest/handler.go
package sendrecommendationdigest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/logger"
	"recommender-workers/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-recommendation-digest"

	maxSMSItems = 3
)

// EmailSender and SMSSender are satisfied by the SES and SNS wrappers and
// mocked in tests.
type EmailSender interface {
	SendEmail(ctx context.Context, from, to, subject, htmlBody string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phoneNumber, message string) (string, error)
}

type Handler struct {
	config *Config
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
	errors *errors.ErrorHandler
}

func NewHandler(config *Config, email EmailSender, sms SMSSender, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		email:  email,
		sms:    sms,
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

	output := &Output{
		NotificationID: uuid.New().String(),
		Status:         StatusDisabled,
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	if h.config.EmailEnabled && input.Email != "" {
		if !validation.ValidateEmail(input.Email) {
			return nil, errors.NewBusinessRuleError("invalid input", fmt.Sprintf("malformed email address: %s", input.Email))
		}
		subject := fmt.Sprintf("Your %d movie picks", len(input.Recommendations))
		messageID, err := h.email.SendEmail(ctx, h.config.FromEmail, input.Email, subject, h.renderEmail(input))
		if err != nil {
			return nil, errors.NewNotificationSendFailedError("email", err)
		}
		output.EmailSent = true
		output.Status = StatusSent
		h.logger.Info("digest email sent", map[string]interface{}{
			"userId":    input.UserID,
			"messageId": messageID,
		})
	}

	if h.config.SMSEnabled && input.PhoneNumber != "" {
		messageID, err := h.sms.SendSMS(ctx, input.PhoneNumber, h.renderSMS(input))
		if err != nil {
			return nil, errors.NewNotificationSendFailedError("sms", err)
		}
		output.SMSSent = true
		output.Status = StatusSent
		h.logger.Info("digest SMS sent", map[string]interface{}{
			"userId":    input.UserID,
			"messageId": messageID,
		})
	}

	if output.Status == StatusDisabled {
		h.logger.Warn("no enabled channel for recipient, nothing sent", map[string]interface{}{
			"userId": input.UserID,
		})
	}

	return output, nil
}

func (h *Handler) renderEmail(input *Input) string {
	var b strings.Builder
	b.WriteString("<h2>Movies picked for you</h2><ol>")
	for _, r := range input.Recommendations {
		b.WriteString(fmt.Sprintf("<li><strong>%s</strong> (%d)", r.Title, r.Year))
		if r.Justification != "" {
			b.WriteString(" — " + r.Justification)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ol>")
	return b.String()
}

// renderSMS keeps the message short: top titles only.
func (h *Handler) renderSMS(input *Input) string {
	n := len(input.Recommendations)
	if n > maxSMSItems {
		n = maxSMSItems
	}
	titles := make([]string, n)
	for i := 0; i < n; i++ {
		titles[i] = fmt.Sprintf("%s (%d)", input.Recommendations[i].Title, input.Recommendations[i].Year)
	}
	return "Your movie picks: " + strings.Join(titles, ", ")
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
