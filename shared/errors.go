package shared

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryDatabase      ErrorCategory = "database"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryEmbedding     ErrorCategory = "embedding"
	ErrorCategoryProcessing    ErrorCategory = "processing"
)

// ErrRefreshInFlight is returned when a refresh is requested while another is
// already running; the single in-flight guard rejects the second one.
var ErrRefreshInFlight = errors.New("inventory refresh already in flight")

// ServiceError represents a standardized error with additional context
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// NewExternalFetchError wraps a marketplace or price-index failure. Whether it
// aborts the whole refresh or just skips one item is the caller's decision.
func NewExternalFetchError(serviceName, operation string, cause error) *ServiceError {
	return NewServiceError(
		ErrorCategoryNetwork,
		"EXTERNAL_FETCH_FAILED",
		fmt.Sprintf("external fetch failed during %s", operation),
		serviceName,
		operation,
		true,
		cause,
	)
}

// NewEmbeddingUnavailableError wraps an embedding failure. Callers degrade to
// a nil vector; this never aborts a refresh batch.
func NewEmbeddingUnavailableError(operation string, cause error) *ServiceError {
	return NewServiceError(
		ErrorCategoryEmbedding,
		"EMBEDDING_UNAVAILABLE",
		fmt.Sprintf("embedding unavailable during %s", operation),
		"embedding-client",
		operation,
		true,
		cause,
	)
}

// IsRetryable returns whether the error is retryable
func (e *ServiceError) IsRetryable() bool {
	return e.Retryable
}

// LogError logs the error with structured fields
func (e *ServiceError) LogError() {
	logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"error_code":       e.Code,
		"error_message":    e.Message,
		"service_name":     e.ServiceName,
		"operation":        e.Operation,
		"retryable":        e.Retryable,
		"underlying_error": e.Cause,
	}).Error("Service error occurred")
}
