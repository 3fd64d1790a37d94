package lifecycle

import (
	"errors"
	"fmt"

	"github.com/specforge/specforge/pkg/models"
)

// ErrSpecExists indicates a create attempt under a name already in use.
var ErrSpecExists = errors.New("spec already exists")

// TransitionError reports a stage move the lifecycle state machine does not
// allow. Gate failures on allowed transitions use models.ValidationError
// instead.
type TransitionError struct {
	Spec string
	From models.SpecStage
	To   models.SpecStage
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("spec %s: transition %s -> %s is not allowed", e.Spec, e.From, e.To)
}

// NewTransitionError creates a TransitionError for the given move.
func NewTransitionError(spec string, from, to models.SpecStage) *TransitionError {
	return &TransitionError{Spec: spec, From: from, To: to}
}

// IsTransitionError checks if an error is a TransitionError.
func IsTransitionError(err error) bool {
	var transitionErr *TransitionError

	return errors.As(err, &transitionErr)
}

// IsSpecExists checks if an error indicates a duplicate spec name.
func IsSpecExists(err error) bool {
	return errors.Is(err, ErrSpecExists)
}
