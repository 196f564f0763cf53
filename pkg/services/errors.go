// Package services provides the service layer between the HTTP handlers and
// the graph, planner and persistence packages.
package services

import (
	"errors"
	"fmt"
)

// Validation errors surface as 400 responses.
var (
	ErrNameRequired  = errors.New("flowchart name is required")
	ErrNameInvalid   = errors.New("flowchart name contains invalid characters")
	ErrSameName      = errors.New("rename target matches the current name")
	ErrDocumentNil   = errors.New("document cannot be nil")
	ErrRecordNil     = errors.New("execution record cannot be nil")
	ErrKeepNegative  = errors.New("backup keep count cannot be negative")
	ErrFileRequired  = errors.New("python file path is required")
	ErrEmptyFilePath = errors.New("python file path cannot be blank")
)

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNameRequired) ||
		errors.Is(err, ErrNameInvalid) ||
		errors.Is(err, ErrSameName) ||
		errors.Is(err, ErrDocumentNil) ||
		errors.Is(err, ErrRecordNil) ||
		errors.Is(err, ErrKeepNegative) ||
		errors.Is(err, ErrFileRequired) ||
		errors.Is(err, ErrEmptyFilePath)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
