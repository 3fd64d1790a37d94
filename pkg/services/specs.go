package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/specforge/specforge/pkg/lifecycle"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
)

// CreateSpecRequest registers a new specification. Stage defaults to backlog;
// scope is allowed for work starting immediately and goes through the usual
// scope entry gate.
type CreateSpecRequest struct {
	Name        string           `json:"name"            validate:"required,min=1,max=200"`
	Description string           `json:"description"     validate:"max=2000"`
	Stage       models.SpecStage `json:"stage,omitempty" validate:"omitempty,oneof=backlog scope"`
}

// TransitionSpecRequest moves a spec to another lifecycle stage.
type TransitionSpecRequest struct {
	Stage  models.SpecStage `json:"stage"  validate:"required"`
	Reason string           `json:"reason" validate:"max=500"`
}

// Specs exposes spec lifecycle operations.
type Specs struct {
	lifecycle *lifecycle.Manager
	validate  *validator.Validate
}

// NewSpecs creates a spec service.
func NewSpecs(manager *lifecycle.Manager, validate *validator.Validate) *Specs {
	return &Specs{lifecycle: manager, validate: validate}
}

// Create registers a spec. With Stage set to scope it is promoted immediately
// after creation, so the scope gate still applies.
func (s *Specs) Create(ctx context.Context, req CreateSpecRequest) (*models.Spec, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	spec, err := s.lifecycle.Create(ctx, req.Name, req.Description)
	if err != nil {
		return nil, err
	}

	if req.Stage == models.StageScope {
		return s.lifecycle.Transition(ctx, req.Name, models.StageScope, "created into scope")
	}

	return spec, nil
}

// List returns all specs.
func (s *Specs) List(ctx context.Context) ([]*models.Spec, error) {
	return s.lifecycle.List(ctx)
}

// Get returns one spec by name.
func (s *Specs) Get(ctx context.Context, name string) (*models.Spec, error) {
	return s.lifecycle.Get(ctx, name)
}

// SpecStatus is the status projection of a spec: its stage plus exact task
// counts and the display ratio.
type SpecStatus struct {
	Name            string           `json:"name"`
	Stage           models.SpecStage `json:"stage"`
	CompletedTasks  int              `json:"completed_tasks"`
	TotalTasks      int              `json:"total_tasks"`
	CompletionRatio float64          `json:"completion_ratio"`
}

// Status returns the stage and completion summary for one spec.
func (s *Specs) Status(ctx context.Context, name string) (*SpecStatus, error) {
	spec, err := s.lifecycle.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	completed, total := spec.CompletionCounts()

	return &SpecStatus{
		Name:            spec.Name,
		Stage:           spec.Stage,
		CompletedTasks:  completed,
		TotalTasks:      total,
		CompletionRatio: spec.CompletionRatio(),
	}, nil
}

// Transition moves a spec to the requested stage.
func (s *Specs) Transition(ctx context.Context, name string, req TransitionSpecRequest) (*models.Spec, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	if req.Stage == models.StageArchived {
		return s.lifecycle.Archive(ctx, name, req.Reason)
	}

	return s.lifecycle.Transition(ctx, name, req.Stage, req.Reason)
}

// Promote advances a spec one stage along backlog -> scope -> completed.
func (s *Specs) Promote(ctx context.Context, name, reason string) (*models.Spec, error) {
	return s.lifecycle.Promote(ctx, name, reason)
}

// HealthCheck reports persistence layer health through the lifecycle manager's
// store.
func HealthCheck(ctx context.Context, p persistence.Persistence) (string, bool) {
	if p == nil {
		return "Persistence layer not initialized", false
	}

	if err := p.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}
