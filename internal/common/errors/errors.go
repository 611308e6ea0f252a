package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Input errors
	ErrCodeInvalidAnnotationInput ErrorCode = "INVALID_ANNOTATION_INPUT"
	ErrCodeSchemaValidationFailed ErrorCode = "SCHEMA_VALIDATION_FAILED"
	ErrCodeBatchTooLarge          ErrorCode = "BATCH_TOO_LARGE"

	// Catalog errors
	ErrCodeCatalogLoadFailed   ErrorCode = "CATALOG_LOAD_FAILED"
	ErrCodeCatalogSearchFailed ErrorCode = "CATALOG_SEARCH_FAILED"
	ErrCodeCatalogTimeout      ErrorCode = "CATALOG_TIMEOUT"
	ErrCodeCatalogUnavailable  ErrorCode = "CATALOG_UNAVAILABLE"

	// Infrastructure errors
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"
	ErrCodeCacheUnavailable              ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeBrokerUnavailable             ErrorCode = "BROKER_UNAVAILABLE"
	ErrCodeBrokerTimeout                 ErrorCode = "BROKER_TIMEOUT"
	ErrCodeBrokerRejected                ErrorCode = "BROKER_REJECTED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
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

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

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

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidAnnotationInputError creates a non-retryable input error.
func NewInvalidAnnotationInputError(details string) *StandardError {
	return newError(ErrCodeInvalidAnnotationInput, "Invalid annotation input", details, false)
}

// NewSchemaValidationFailedError creates a non-retryable schema error.
func NewSchemaValidationFailedError(taskType, details string) *StandardError {
	return newError(ErrCodeSchemaValidationFailed, "Job variables do not match the input schema",
		fmt.Sprintf("taskType: %s, %s", taskType, details), false)
}

// NewBatchTooLargeError creates a non-retryable batch size error.
func NewBatchTooLargeError(size, max int) *StandardError {
	return newError(ErrCodeBatchTooLarge, "Batch exceeds the configured maximum",
		fmt.Sprintf("size: %d, max: %d", size, max), false)
}

// NewCatalogLoadFailedError creates a retryable catalog error.
func NewCatalogLoadFailedError(source string, err error) *StandardError {
	return newError(ErrCodeCatalogLoadFailed, "Catalog load failed",
		fmt.Sprintf("source: %s, error: %s", source, err.Error()), true)
}

// NewCatalogSearchFailedError creates a retryable search query error.
func NewCatalogSearchFailedError(index string, err error) *StandardError {
	return newError(ErrCodeCatalogSearchFailed, "Catalog search failed",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

// NewCatalogTimeoutError creates a retryable catalog timeout error.
func NewCatalogTimeoutError(source string) *StandardError {
	return newError(ErrCodeCatalogTimeout, "Catalog lookup timeout",
		fmt.Sprintf("source: %s", source), true)
}

// NewCatalogUnavailableError creates a non-retryable error for requests no catalog source can serve.
func NewCatalogUnavailableError(reason string) *StandardError {
	return newError(ErrCodeCatalogUnavailable, "No catalog source configured", reason, false)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found",
		fmt.Sprintf("indexName: %s", indexName), false)
}

// NewCacheUnavailableError creates a cache error. Callers log it and carry on.
func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Cache unavailable", err.Error(), false)
}

// NewBrokerUnavailableError creates a retryable broker connection error.
func NewBrokerUnavailableError(err error) *StandardError {
	return newError(ErrCodeBrokerUnavailable, "Zeebe broker unavailable", err.Error(), true)
}

// NewBrokerTimeoutError creates a retryable broker timeout error.
func NewBrokerTimeoutError(err error) *StandardError {
	return newError(ErrCodeBrokerTimeout, "Zeebe request timeout", err.Error(), true)
}

// NewBrokerRejectedError creates a non-retryable broker rejection error.
func NewBrokerRejectedError(err error) *StandardError {
	return newError(ErrCodeBrokerRejected, "Zeebe rejected the command", err.Error(), false)
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidAnnotationInput:        "INVALID_ANNOTATION_INPUT",
	ErrCodeSchemaValidationFailed:        "INVALID_ANNOTATION_INPUT",
	ErrCodeBatchTooLarge:                 "INVALID_ANNOTATION_INPUT",
	ErrCodeCatalogLoadFailed:             "CATALOG_LOAD_FAILED",
	ErrCodeCatalogSearchFailed:           "CATALOG_LOAD_FAILED",
	ErrCodeCatalogTimeout:                "CATALOG_TIMEOUT",
	ErrCodeCatalogUnavailable:            "CATALOG_UNAVAILABLE",
	ErrCodeDatabaseConnectionFailed:      "CATALOG_LOAD_FAILED",
	ErrCodeElasticsearchConnectionFailed: "CATALOG_LOAD_FAILED",
	ErrCodeIndexNotFound:                 "CATALOG_UNAVAILABLE",
}

// GetRetryCount returns the number of job retries granted for code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCatalogLoadFailed,
		ErrCodeCatalogSearchFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeBrokerUnavailable:
		return 3
	case ErrCodeCatalogTimeout,
		ErrCodeBrokerTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError maps a StandardError onto the BPMN error thrown to the engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for metrics labels and HTTP status mapping.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CATALOG"):
		return "CATALOG"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "BROKER"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "BATCH"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// HTTPStatus maps a code onto the status the annotation API answers with.
func HTTPStatus(code ErrorCode) int {
	switch GetErrorCategory(code) {
	case "VALIDATION":
		return 400
	case "CATALOG", "DATABASE", "SEARCH":
		switch code {
		case ErrCodeCatalogTimeout:
			return 504
		case ErrCodeCatalogUnavailable, ErrCodeIndexNotFound:
			return 503
		}
		return 502
	default:
		return 500
	}
}
