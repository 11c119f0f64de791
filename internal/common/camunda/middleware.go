// internal/common/camunda/middleware.go
package camunda

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"recommender-workers/internal/common/errors"
	"recommender-workers/internal/common/validation"
)

// WithInputValidation wraps a job handler so job variables are checked
// against the activity's registry input schema before the handler runs.
// Jobs that fail validation are rejected as non-retryable business-rule
// errors; the wrapped handler never sees them. Activities without an input
// schema pass through unwrapped.
func WithInputValidation(inputSchema map[string]interface{}, errHandler *errors.ErrorHandler, handler JobHandlerFunc, log *zap.Logger) JobHandlerFunc {
	if len(inputSchema) == 0 {
		return handler
	}
	schemaJSON, err := json.Marshal(inputSchema)
	if err != nil {
		log.Warn("input schema not serializable, validation disabled", zap.Error(err))
		return handler
	}

	return func(client worker.JobClient, job entities.Job) {
		if err := validateJobVariables(schemaJSON, job.GetVariables()); err != nil {
			log.Warn("job rejected by input schema",
				zap.String("taskType", job.GetType()),
				zap.Int64("jobKey", job.GetKey()),
				zap.Error(err),
			)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			errHandler.HandleJobError(ctx, client, job, err)
			return
		}
		handler(client, job)
	}
}

// validateJobVariables checks the job's variable document against the
// schema. Variables that do not parse as a JSON object are left for the
// handler's own unmarshal path to report.
func validateJobVariables(schemaJSON []byte, variables string) error {
	vars := make(map[string]interface{})
	if err := json.Unmarshal([]byte(variables), &vars); err != nil {
		return nil
	}

	result, err := validation.ValidateInput(vars, schemaJSON)
	if err != nil || result.Valid {
		return nil
	}
	return errors.NewBusinessRuleError("input validation failed",
		strings.Join(result.GetErrorMessages(), "; "))
}
