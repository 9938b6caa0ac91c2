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

// Batch-level configuration errors are fatal: the run aborts before a single
// row is emitted. Row-level anomalies never surface here — they degrade via
// coercion defaults inside the workers.
const (
	ErrCodeEmptyBatch         ErrorCode = "EMPTY_BATCH"
	ErrCodeNoUsableFeatures   ErrorCode = "NO_USABLE_FEATURES"
	ErrCodeInvalidRuleMode    ErrorCode = "INVALID_RULE_MODE"
	ErrCodeInvalidThreshold   ErrorCode = "INVALID_THRESHOLD"
	ErrCodeBatchParamsInvalid ErrorCode = "BATCH_PARAMS_INVALID"

	ErrCodeModelNotLoaded       ErrorCode = "MODEL_NOT_LOADED"
	ErrCodeModelInferenceFailed ErrorCode = "MODEL_INFERENCE_FAILED"

	ErrCodeBridgeLoadFailed  ErrorCode = "BRIDGE_LOAD_FAILED"
	ErrCodeBridgeCacheFailed ErrorCode = "BRIDGE_CACHE_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeRunPersistFailed         ErrorCode = "RUN_PERSIST_FAILED"
	ErrCodeTraceIndexFailed         ErrorCode = "TRACE_INDEX_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// Warning codes are non-fatal: recorded in the batch summary so operators can
// distinguish "no collateral signal available" from "signal present but excluded".
const (
	WarnBridgeTableMissing  = "BRIDGE_TABLE_MISSING"
	WarnJoinKeyNotFound     = "JOIN_KEY_NOT_FOUND"
	WarnProbabilityFallback = "PROBABILITY_FALLBACK"
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

// NewEmptyBatchError creates the fatal error for a batch with no applications.
func NewEmptyBatchError() *StandardError {
	return &StandardError{
		Code:      ErrCodeEmptyBatch,
		Message:   "Input batch contains no applications",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoUsableFeaturesError creates the fatal error raised when no feature
// column of the trained model can be resolved against the batch.
func NewNoUsableFeaturesError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoUsableFeatures,
		Message:   "No usable feature columns for scoring",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRuleModeError creates the fatal error for an unresolvable rule mode.
func NewInvalidRuleModeError(mode string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRuleMode,
		Message:   "Unresolvable rule mode",
		Details:   fmt.Sprintf("rule_mode: %q (expected classic or ndi)", mode),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBatchParamsInvalidError creates the fatal error for a malformed parameter payload.
func NewBatchParamsInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBatchParamsInvalid,
		Message:   "Batch parameter payload failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelNotLoadedError creates a non-retryable model configuration error.
func NewModelNotLoadedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelNotLoaded,
		Message:   "Scoring model is not loaded",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelInferenceFailedError creates a retryable inference error.
func NewModelInferenceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelInferenceFailed,
		Message:   "Model inference failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewBridgeLoadFailedError creates a retryable bridge-load error.
func NewBridgeLoadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBridgeLoadFailed,
		Message:   "Failed to load collateral bridge table",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRunPersistFailedError creates a retryable database error.
func NewRunPersistFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRunPersistFailed,
		Message:   "Failed to persist appraisal run",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTraceIndexFailedError creates a retryable audit-index error.
func NewTraceIndexFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTraceIndexFailed,
		Message:   "Failed to index verification trace",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
func NewNotificationSendFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Failed to send decision notice",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. BPMN Error Mapping
// ==========================

// BPMNErrorMapping maps internal codes to the error codes declared on BPMN
// boundary events of the appraisal process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeEmptyBatch:         "APPRAISAL_VALIDATION_ERROR",
	ErrCodeNoUsableFeatures:   "APPRAISAL_VALIDATION_ERROR",
	ErrCodeInvalidRuleMode:    "APPRAISAL_VALIDATION_ERROR",
	ErrCodeInvalidThreshold:   "APPRAISAL_VALIDATION_ERROR",
	ErrCodeBatchParamsInvalid: "APPRAISAL_VALIDATION_ERROR",
	ErrCodeModelNotLoaded:     "APPRAISAL_VALIDATION_ERROR",
}

// GetRetryCount returns how many retries a code is worth when failing a job.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeModelInferenceFailed,
		ErrCodeBridgeLoadFailed,
		ErrCodeBridgeCacheFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeRunPersistFailed,
		ErrCodeTraceIndexFailed,
		ErrCodeNotificationSendFailed:
		return 3 // Retryable technical errors

	default:
		return 0 // Configuration/business errors: no retry
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

// IsFatalValidation reports whether a code aborts a batch before any row is emitted.
func IsFatalValidation(code ErrorCode) bool {
	_, ok := BPMNErrorMapping[code]
	return ok
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "BATCH") || strings.Contains(codeStr, "RULE_MODE") ||
		strings.Contains(codeStr, "FEATURES") || strings.Contains(codeStr, "THRESHOLD"):
		return "VALIDATION"
	case strings.Contains(codeStr, "MODEL"):
		return "SCORING"
	case strings.Contains(codeStr, "BRIDGE"):
		return "COLLATERAL"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "PERSIST") ||
		strings.Contains(codeStr, "TRACE"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
