// Package services provides the request-validated business operations the
// API and CLI surfaces call into.
package services

import (
	"errors"
	"fmt"

	"github.com/specforge/specforge/pkg/backup"
	"github.com/specforge/specforge/pkg/lifecycle"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/taskdoc"
	"github.com/specforge/specforge/pkg/taskgraph"
)

// Client errors (4xx responses).
var (
	// ErrInvalidRequest indicates a request failed structural validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownMode indicates an unrecognized task query mode.
	ErrUnknownMode = errors.New("unknown task query mode")

	// ErrMissingTaskID indicates a single-task query without a task id.
	ErrMissingTaskID = errors.New("task id is required")
)

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string
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

// NewServiceError creates a ServiceError with context.
func NewServiceError(op, message string, err error) *ServiceError {
	return &ServiceError{Op: op, Message: message, Err: err}
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrUnknownMode) ||
		errors.Is(err, ErrMissingTaskID) ||
		models.IsValidationError(err) ||
		taskdoc.IsParseError(err) ||
		taskgraph.IsCycleError(err) ||
		taskgraph.IsDanglingReferenceError(err)
}

// IsConflictError checks if an error should map to HTTP 409.
func IsConflictError(err error) bool {
	return lifecycle.IsTransitionError(err) ||
		lifecycle.IsSpecExists(err) ||
		backup.IsConcurrentOperation(err)
}
