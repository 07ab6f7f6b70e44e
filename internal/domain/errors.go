package domain

import (
	"fmt"
	"strings"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrDatabaseError  = "DATABASE_ERROR"
	ErrClassification = "CLASSIFICATION_ERROR"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
	ErrValidation     = "VALIDATION_ERROR"
	ErrNotFoundCode   = "NOT_FOUND"

	// ErrInsufficientDataCode marks requests that need an evaluation but
	// lack height and weight, or BMI.
	ErrInsufficientDataCode = "INSUFFICIENT_DATA"
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// MissingDataError names the anthropometric fields an evaluation is waiting on.
// It unwraps to ErrInsufficientData.
type MissingDataError struct {
	Missing []string `json:"missing"`
}

// NewMissingDataError lists what is absent from a. Either height and weight,
// or BMI, is enough to evaluate.
func NewMissingDataError(a AnthropometricData) *MissingDataError {
	var pair []string
	if a.Height == nil {
		pair = append(pair, "height")
	}
	if a.Weight == nil {
		pair = append(pair, "weight")
	}
	missing := pair
	if a.BMI == nil {
		missing = append(missing, "bmi")
	}
	return &MissingDataError{Missing: missing}
}

func (e *MissingDataError) Error() string {
	if len(e.Missing) == 0 {
		return ErrInsufficientData.Error()
	}
	return fmt.Sprintf("%s: missing %s", ErrInsufficientData, strings.Join(e.Missing, ", "))
}

func (e *MissingDataError) Unwrap() error {
	return ErrInsufficientData
}
