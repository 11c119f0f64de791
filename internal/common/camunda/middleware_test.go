// internal/common/camunda/middleware_test.go
package camunda

import (
	"encoding/json"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var digestInputSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"userId", "recommendations"},
	"properties": map[string]interface{}{
		"userId":          map[string]interface{}{"type": "string"},
		"recommendations": map[string]interface{}{"type": "array", "minItems": float64(1)},
	},
}

func mockJob(variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       1,
		Type:      "send-recommendation-digest",
		Retries:   3,
		Variables: string(variablesJSON),
	}}
}

func TestValidateJobVariables_Valid(t *testing.T) {
	schemaJSON, err := json.Marshal(digestInputSchema)
	require.NoError(t, err)

	job := mockJob(map[string]interface{}{
		"userId":          "user-1",
		"recommendations": []interface{}{map[string]interface{}{"title": "Ronin"}},
	})

	assert.NoError(t, validateJobVariables(schemaJSON, job.GetVariables()))
}

func TestValidateJobVariables_MissingRequiredField(t *testing.T) {
	schemaJSON, err := json.Marshal(digestInputSchema)
	require.NoError(t, err)

	job := mockJob(map[string]interface{}{"userId": "user-1"})

	verr := validateJobVariables(schemaJSON, job.GetVariables())
	require.Error(t, verr)
	assert.Contains(t, verr.Error(), "recommendations")
}

func TestValidateJobVariables_UnparsableVariablesPassThrough(t *testing.T) {
	// Malformed variable documents are the handler's own unmarshal error,
	// not a schema violation.
	schemaJSON, err := json.Marshal(digestInputSchema)
	require.NoError(t, err)

	assert.NoError(t, validateJobVariables(schemaJSON, "not json"))
}

func TestWithInputValidation_ValidJobReachesHandler(t *testing.T) {
	called := false
	next := func(client worker.JobClient, job entities.Job) { called = true }

	wrapped := WithInputValidation(digestInputSchema, nil, next, zap.NewNop())
	wrapped(nil, mockJob(map[string]interface{}{
		"userId":          "user-1",
		"recommendations": []interface{}{map[string]interface{}{"title": "Heat"}},
	}))

	assert.True(t, called)
}

func TestWithInputValidation_NoSchemaIsPassThrough(t *testing.T) {
	called := false
	next := func(client worker.JobClient, job entities.Job) { called = true }

	wrapped := WithInputValidation(nil, nil, next, zap.NewNop())
	wrapped(nil, mockJob(map[string]interface{}{}))

	assert.True(t, called)
}
