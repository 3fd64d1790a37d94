package models

import (
	"fmt"
	"time"
)

// WorkflowPhase is one position in the fixed development sequence.
type WorkflowPhase string

const (
	PhaseInitialization WorkflowPhase = "initialization"
	PhaseSpecCreation   WorkflowPhase = "spec_creation"
	PhaseRequirements   WorkflowPhase = "requirements"
	PhaseDesign         WorkflowPhase = "design"
	PhaseTasks          WorkflowPhase = "tasks"
	PhaseImplementation WorkflowPhase = "implementation"
	PhaseTesting        WorkflowPhase = "testing"
	PhaseReview         WorkflowPhase = "review"
)

// WorkflowPhases returns the fixed ordered phase list every workflow follows.
func WorkflowPhases() []WorkflowPhase {
	return []WorkflowPhase{
		PhaseInitialization,
		PhaseSpecCreation,
		PhaseRequirements,
		PhaseDesign,
		PhaseTasks,
		PhaseImplementation,
		PhaseTesting,
		PhaseReview,
	}
}

// WorkflowStatus represents the run state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusPaused     WorkflowStatus = "paused"
	WorkflowStatusCompleted  WorkflowStatus = "completed"
	WorkflowStatusFailed     WorkflowStatus = "failed"
)

// WorkflowState tracks a project's progress through the fixed phase sequence.
// It references its specification by name only (lookup, not ownership), so
// workflow state and spec state can be backed up and restored independently.
//
// CompletedPhases is a prefix-contiguous subset of WorkflowPhases(): a phase
// cannot complete while an earlier phase is incomplete.
type WorkflowState struct {
	ID              string          `json:"id"        validate:"required"`
	SpecName        string          `json:"spec_name" validate:"required"`
	CompletedPhases []WorkflowPhase `json:"completed_phases"`
	Status          WorkflowStatus  `json:"status"    validate:"required"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// CheckIntegrity verifies the record is structurally sound: a known status
// and a completed-phase list forming a prefix of the fixed sequence. A record
// violating either was corrupted outside the engine's write path.
func (w *WorkflowState) CheckIntegrity() error {
	switch w.Status {
	case WorkflowStatusInProgress, WorkflowStatusPaused, WorkflowStatusCompleted, WorkflowStatusFailed:
	default:
		return fmt.Errorf("unknown workflow status %q", w.Status)
	}

	phases := WorkflowPhases()
	if len(w.CompletedPhases) > len(phases) {
		return fmt.Errorf("%d completed phases exceed the %d phase sequence", len(w.CompletedPhases), len(phases))
	}

	for i, phase := range w.CompletedPhases {
		if phase != phases[i] {
			return fmt.Errorf("completed phase %q at position %d, expected %q", phase, i, phases[i])
		}
	}

	return nil
}

// CurrentPhase returns the first phase not yet completed. For a fully
// completed workflow it returns the last phase.
func (w *WorkflowState) CurrentPhase() WorkflowPhase {
	phases := WorkflowPhases()
	if len(w.CompletedPhases) >= len(phases) {
		return phases[len(phases)-1]
	}

	return phases[len(w.CompletedPhases)]
}

// RemainingPhases returns the phases not yet completed, in order.
func (w *WorkflowState) RemainingPhases() []WorkflowPhase {
	phases := WorkflowPhases()
	if len(w.CompletedPhases) >= len(phases) {
		return []WorkflowPhase{}
	}

	remaining := make([]WorkflowPhase, 0, len(phases)-len(w.CompletedPhases))
	remaining = append(remaining, phases[len(w.CompletedPhases):]...)

	return remaining
}

// Duration reports how long the workflow has been (or was) running.
func (w *WorkflowState) Duration(now time.Time) time.Duration {
	if w.CompletedAt != nil {
		return w.CompletedAt.Sub(w.StartedAt)
	}

	return now.Sub(w.StartedAt)
}
