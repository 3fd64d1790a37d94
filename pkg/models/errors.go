package models

import (
	"errors"
	"fmt"
)

// ValidationError reports an unmet lifecycle or phase-transition precondition.
// It always carries the specific criterion and the measured value so the
// caller can fix the input without guessing.
type ValidationError struct {
	Op        string // Operation being performed (e.g. "Promote", "CompletePhase")
	Criterion string // The unmet precondition (e.g. "completion_ratio")
	Measured  string // The measured value (e.g. "0.25 < 0.90")
}

func (e *ValidationError) Error() string {
	if e.Measured != "" {
		return fmt.Sprintf("%s: %s=%s", e.Op, e.Criterion, e.Measured)
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Criterion)
}

// NewValidationError creates a validation error with context.
func NewValidationError(op, criterion, measured string) *ValidationError {
	return &ValidationError{Op: op, Criterion: criterion, Measured: measured}
}

// IsValidationError checks if an error is an unmet-precondition error.
func IsValidationError(err error) bool {
	var verr *ValidationError

	return errors.As(err, &verr)
}
