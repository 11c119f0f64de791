// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Input errors: fatal to the request, never retried.
	ErrCodeEmptyWatchHistory       ErrorCode = "EMPTY_WATCH_HISTORY"
	ErrCodeInvalidWatchHistory     ErrorCode = "INVALID_WATCH_HISTORY"
	ErrCodeNoCandidatesAfterFilter ErrorCode = "NO_CANDIDATES_AFTER_FILTERING"
	ErrCodeEmbeddingDimMismatch    ErrorCode = "EMBEDDING_DIMENSION_MISMATCH"

	// Profile errors: user-actionable, surfaced distinctly so the process
	// model can branch to a watch-history upload.
	ErrCodeProfileNotFound    ErrorCode = "PROFILE_NOT_FOUND"
	ErrCodeClusteringInFlight ErrorCode = "CLUSTERING_IN_FLIGHT"

	// Collaborator transient errors: retryable with backoff.
	ErrCodeEmbeddingProviderUnavailable ErrorCode = "EMBEDDING_PROVIDER_UNAVAILABLE"
	ErrCodeEmbeddingTimeout             ErrorCode = "EMBEDDING_TIMEOUT"
	ErrCodeCandidateSourceUnavailable   ErrorCode = "CANDIDATE_SOURCE_UNAVAILABLE"
	ErrCodeRerankTimeout                ErrorCode = "RERANK_TIMEOUT"
	ErrCodeRerankFailed                 ErrorCode = "RERANK_FAILED"
	ErrCodeDatabaseConnectionFailed     ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed         ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeCatalogIndexFailed           ErrorCode = "CATALOG_INDEX_FAILED"
	ErrCodeNotificationSendFailed       ErrorCode = "NOTIFICATION_SEND_FAILED"

	// Collaborator permanent errors: retries cannot fix.
	ErrCodeEmbeddingInputInvalid   ErrorCode = "EMBEDDING_INPUT_INVALID"
	ErrCodeRerankMalformedResponse ErrorCode = "RERANK_MALFORMED_RESPONSE"
	ErrCodeCatalogNotSynced        ErrorCode = "CATALOG_NOT_SYNCED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewEmptyWatchHistoryError creates a non-retryable input error for an
// upload with no usable movies.
func NewEmptyWatchHistoryError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyWatchHistory,
		Message:   "Watch history contains no valid rated movies",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidWatchHistoryError creates a non-retryable validation error.
func NewInvalidWatchHistoryError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidWatchHistory,
		Message:   "Watch history payload failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoCandidatesError creates a non-retryable error for a filter pass that
// removed every candidate.
func NewNoCandidatesError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoCandidatesAfterFilter,
		Message:   "No candidates remain after filtering",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDimensionMismatchError signals a stale or incompatible profile: stored
// centroids and fresh candidate embeddings disagree on dimension. Requires
// re-clustering, so never retried.
func NewDimensionMismatchError(profileDim, candidateDim int) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingDimMismatch,
		Message:   "Profile and candidate embedding dimensions differ",
		Details:   fmt.Sprintf("profileDim: %d, candidateDim: %d", profileDim, candidateDim),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileNotFoundError creates a user-actionable error distinct from
// generic input failures so callers can prompt for a history upload.
func NewProfileNotFoundError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileNotFound,
		Message:   "No taste profile exists for user",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewClusteringInFlightError creates a retryable error for an upload that
// raced a clustering pass already running for the same user.
func NewClusteringInFlightError(userID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeClusteringInFlight,
		Message:   "A clustering pass is already running for this user",
		Details:   fmt.Sprintf("userId: %s", userID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingUnavailableError creates a retryable provider/network error.
func NewEmbeddingUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingProviderUnavailable,
		Message:   "Embedding provider call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingTimeoutError creates a retryable embedding timeout error. A
// timed-out batch fails the whole request; items are never silently dropped.
func NewEmbeddingTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingTimeout,
		Message:   "Embedding batch exceeded its deadline",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingInputInvalidError creates a permanent malformed-input error.
func NewEmbeddingInputInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingInputInvalid,
		Message:   "Embedding provider rejected the input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCandidateSourceError creates a retryable candidate-source error.
func NewCandidateSourceError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCandidateSourceUnavailable,
		Message:   "Candidate source call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRerankTimeoutError creates a retryable rerank timeout error. The
// scored ranking remains valid without reranking.
func NewRerankTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeRerankTimeout,
		Message:   "Reranker call timed out",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRerankFailedError creates a retryable reranker error.
func NewRerankFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRerankFailed,
		Message:   "Reranker call failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRerankMalformedError creates a permanent malformed-response error.
func NewRerankMalformedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRerankMalformedResponse,
		Message:   "Reranker returned a response that could not be parsed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogIndexError creates a retryable catalog index error.
func NewCatalogIndexError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogIndexFailed,
		Message:   "Catalog index operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCatalogNotSyncedError creates a non-retryable error for queries against
// an empty catalog index.
func NewCatalogNotSyncedError(index string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCatalogNotSynced,
		Message:   "Movie catalog has not been synced",
		Details:   fmt.Sprintf("index: %s", index),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. The codes
// are identical today; the indirection keeps process models stable if
// internal codes are ever renamed.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeEmptyWatchHistory:            "EMPTY_WATCH_HISTORY",
	ErrCodeInvalidWatchHistory:          "INVALID_WATCH_HISTORY",
	ErrCodeNoCandidatesAfterFilter:      "NO_CANDIDATES_AFTER_FILTERING",
	ErrCodeEmbeddingDimMismatch:         "EMBEDDING_DIMENSION_MISMATCH",
	ErrCodeProfileNotFound:              "PROFILE_NOT_FOUND",
	ErrCodeClusteringInFlight:           "CLUSTERING_IN_FLIGHT",
	ErrCodeEmbeddingProviderUnavailable: "EMBEDDING_PROVIDER_UNAVAILABLE",
	ErrCodeEmbeddingTimeout:             "EMBEDDING_TIMEOUT",
	ErrCodeEmbeddingInputInvalid:        "EMBEDDING_INPUT_INVALID",
	ErrCodeCandidateSourceUnavailable:   "CANDIDATE_SOURCE_UNAVAILABLE",
	ErrCodeRerankTimeout:                "RERANK_TIMEOUT",
	ErrCodeRerankFailed:                 "RERANK_FAILED",
	ErrCodeRerankMalformedResponse:      "RERANK_MALFORMED_RESPONSE",
	ErrCodeDatabaseConnectionFailed:     "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:         "QUERY_EXECUTION_FAILED",
	ErrCodeCatalogIndexFailed:           "CATALOG_INDEX_FAILED",
	ErrCodeCatalogNotSynced:             "CATALOG_NOT_SYNCED",
	ErrCodeNotificationSendFailed:       "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeEmbeddingProviderUnavailable,
		ErrCodeCandidateSourceUnavailable,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeCatalogIndexFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeRerankFailed:
		return 3 // Retryable technical errors

	case ErrCodeEmbeddingTimeout,
		ErrCodeClusteringInFlight:
		return 2 // Partial retry for timeouts and lock contention

	case ErrCodeRerankTimeout:
		return 1 // As per BPMN boundary event

	default:
		return 0 // Input/profile errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "WATCH_HISTORY") || strings.Contains(codeStr, "CANDIDATES") || strings.Contains(codeStr, "DIMENSION"):
		return "INPUT"
	case strings.Contains(codeStr, "PROFILE") || strings.Contains(codeStr, "CLUSTERING"):
		return "PROFILE"
	case strings.Contains(codeStr, "EMBEDDING"):
		return "EMBEDDING"
	case strings.Contains(codeStr, "RERANK"):
		return "RERANK"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "CATALOG"):
		return "CATALOG"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
