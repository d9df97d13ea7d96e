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
	// File handling
	ErrCodeEmptyFile       ErrorCode = "EMPTY_FILE"
	ErrCodeFileReadFailed  ErrorCode = "FILE_READ_FAILED"
	ErrCodeFileWriteFailed ErrorCode = "FILE_WRITE_FAILED"

	// Mapping / job input
	ErrCodeInvalidMapping  ErrorCode = "INVALID_MAPPING"
	ErrCodeInvalidJobInput ErrorCode = "INVALID_JOB_INPUT"

	// Job ledger
	ErrCodeJobNotFound          ErrorCode = "JOB_NOT_FOUND"
	ErrCodeInvalidJobTransition ErrorCode = "INVALID_JOB_TRANSITION"
	ErrCodeLedgerUpdateFailed   ErrorCode = "LEDGER_UPDATE_FAILED"

	// Source enrichers
	ErrCodeLegalLookupFailed  ErrorCode = "LEGAL_LOOKUP_FAILED"
	ErrCodePlacesLookupFailed ErrorCode = "PLACES_LOOKUP_FAILED"

	// Sinks
	ErrCodeIndexingFailed         ErrorCode = "INDEXING_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is keeps working through the wrapper.
func (e *StandardError) Unwrap() error {
	return e.cause
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
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewEmptyFileError is raised when an uploaded file has no non-blank line.
func NewEmptyFileError(path string, cause error) *StandardError {
	return newError(ErrCodeEmptyFile, "Uploaded file is empty", fmt.Sprintf("file: %s", path), false, cause)
}

func NewFileReadFailedError(path string, err error) *StandardError {
	return newError(ErrCodeFileReadFailed, "Failed to read file",
		fmt.Sprintf("file: %s, error: %s", path, err.Error()), false, err)
}

func NewFileWriteFailedError(path string, err error) *StandardError {
	return newError(ErrCodeFileWriteFailed, "Failed to write file",
		fmt.Sprintf("file: %s, error: %s", path, err.Error()), true, err)
}

func NewInvalidMappingError(details string) *StandardError {
	return newError(ErrCodeInvalidMapping, "Column mapping is invalid", details, false, nil)
}

func NewInvalidJobInputError(details string) *StandardError {
	return newError(ErrCodeInvalidJobInput, "Job input failed validation", details, false, nil)
}

func NewJobNotFoundError(jobID string, cause error) *StandardError {
	return newError(ErrCodeJobNotFound, "Enrichment job not found", fmt.Sprintf("jobId: %s", jobID), false, cause)
}

func NewInvalidJobTransitionError(jobID, details string, cause error) *StandardError {
	return newError(ErrCodeInvalidJobTransition, "Enrichment job status transition rejected",
		fmt.Sprintf("jobId: %s, %s", jobID, details), false, cause)
}

func NewLedgerUpdateFailedError(jobID string, err error) *StandardError {
	return newError(ErrCodeLedgerUpdateFailed, "Job ledger write failed",
		fmt.Sprintf("jobId: %s, error: %s", jobID, err.Error()), true, err)
}

func NewLegalLookupFailedError(identifier string, err error) *StandardError {
	return newError(ErrCodeLegalLookupFailed, "Legal registry lookup failed",
		fmt.Sprintf("identifier: %s, error: %s", identifier, err.Error()), true, err)
}

func NewPlacesLookupFailedError(query string, err error) *StandardError {
	return newError(ErrCodePlacesLookupFailed, "Places lookup failed",
		fmt.Sprintf("query: %s, error: %s", query, err.Error()), true, err)
}

func NewIndexingFailedError(index string, err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Lead indexing failed",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true, err)
}

func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()), true, err)
}

// ==========================
// 4. Mapping Helpers
// ==========================

// BPMNErrorMapping maps internal codes to the error codes caught by BPMN boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeEmptyFile:              "EMPTY_FILE",
	ErrCodeFileReadFailed:         "FILE_READ_FAILED",
	ErrCodeFileWriteFailed:        "FILE_WRITE_FAILED",
	ErrCodeInvalidMapping:         "INVALID_MAPPING",
	ErrCodeInvalidJobInput:        "INVALID_JOB_INPUT",
	ErrCodeJobNotFound:            "JOB_NOT_FOUND",
	ErrCodeInvalidJobTransition:   "INVALID_JOB_TRANSITION",
	ErrCodeLedgerUpdateFailed:     "LEDGER_UPDATE_FAILED",
	ErrCodeLegalLookupFailed:      "LEGAL_LOOKUP_FAILED",
	ErrCodePlacesLookupFailed:     "PLACES_LOOKUP_FAILED",
	ErrCodeIndexingFailed:         "INDEXING_FAILED",
	ErrCodeNotificationSendFailed: "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns how many times the engine should retry a job failing with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeLedgerUpdateFailed,
		ErrCodeFileWriteFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeIndexingFailed:
		return 3
	case ErrCodeLegalLookupFailed,
		ErrCodePlacesLookupFailed:
		return 2
	default:
		return 0 // structural errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError into the engine-facing form.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
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

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for logging and dashboards.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "FILE"):
		return "FILE"
	case strings.Contains(codeStr, "MAPPING") || strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "JOB") || strings.Contains(codeStr, "LEDGER"):
		return "LEDGER"
	case strings.Contains(codeStr, "LOOKUP"):
		return "ENRICHMENT"
	case strings.Contains(codeStr, "INDEXING"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "INTERNAL"
	}
}
