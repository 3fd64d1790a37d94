package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/workflow"
)

// StartWorkflowRequest starts a workflow for a spec.
type StartWorkflowRequest struct {
	SpecName string `json:"spec_name" validate:"required,min=1"`
}

// CompletePhaseRequest records a finished phase.
type CompletePhaseRequest struct {
	Phase models.WorkflowPhase `json:"phase" validate:"required"`
}

// FailWorkflowRequest records a phase execution failure.
type FailWorkflowRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// Workflows exposes the phase state machine operations.
type Workflows struct {
	manager  *workflow.Manager
	validate *validator.Validate
}

// NewWorkflows creates a workflow service.
func NewWorkflows(manager *workflow.Manager, validate *validator.Validate) *Workflows {
	return &Workflows{manager: manager, validate: validate}
}

// Start begins a workflow for the named spec.
func (w *Workflows) Start(ctx context.Context, req StartWorkflowRequest) (*models.WorkflowState, error) {
	if err := w.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	return w.manager.Start(ctx, req.SpecName)
}

// CompletePhase records a finished phase on the workflow.
func (w *Workflows) CompletePhase(ctx context.Context, workflowID string, req CompletePhaseRequest) (*models.WorkflowState, error) {
	if err := w.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	if !validPhase(req.Phase) {
		return nil, models.NewValidationError("CompletePhase", "phase", string(req.Phase))
	}

	return w.manager.CompletePhase(ctx, workflowID, req.Phase)
}

// Pause suspends the workflow.
func (w *Workflows) Pause(ctx context.Context, workflowID string) (*models.WorkflowState, error) {
	return w.manager.Pause(ctx, workflowID)
}

// Continue resumes a paused or failed workflow.
func (w *Workflows) Continue(ctx context.Context, workflowID string) (*models.WorkflowState, error) {
	return w.manager.Continue(ctx, workflowID)
}

// Reset archives the workflow and starts a fresh one for the same spec.
func (w *Workflows) Reset(ctx context.Context, workflowID string) (*models.WorkflowState, error) {
	return w.manager.Reset(ctx, workflowID)
}

// Fail records a phase execution failure.
func (w *Workflows) Fail(ctx context.Context, workflowID string, req FailWorkflowRequest) (*models.WorkflowState, error) {
	if err := w.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	return w.manager.Fail(ctx, workflowID, req.Reason)
}

// WorkflowStatus is the status projection of a workflow: the raw state plus
// the computed phase position and running duration.
type WorkflowStatus struct {
	*models.WorkflowState

	CurrentPhase    models.WorkflowPhase   `json:"current_phase"`
	RemainingPhases []models.WorkflowPhase `json:"remaining_phases"`
	Duration        string                 `json:"duration"`
}

// Status returns workflow state by id.
func (w *Workflows) Status(ctx context.Context, workflowID string) (*models.WorkflowState, error) {
	return w.manager.Status(ctx, workflowID)
}

// StatusView returns the workflow status with its derived fields resolved.
func (w *Workflows) StatusView(ctx context.Context, workflowID string) (*WorkflowStatus, error) {
	state, err := w.manager.Status(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return &WorkflowStatus{
		WorkflowState:   state,
		CurrentPhase:    state.CurrentPhase(),
		RemainingPhases: state.RemainingPhases(),
		Duration:        state.Duration(time.Now().UTC()).String(),
	}, nil
}

// List returns all active workflows.
func (w *Workflows) List(ctx context.Context) ([]*models.WorkflowState, error) {
	return w.manager.List(ctx)
}

func validPhase(phase models.WorkflowPhase) bool {
	for _, p := range models.WorkflowPhases() {
		if p == phase {
			return true
		}
	}

	return false
}
