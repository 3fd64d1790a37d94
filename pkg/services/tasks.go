package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/specforge/specforge/pkg/eventbus"
	"github.com/specforge/specforge/pkg/events"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/statestore"
	"github.com/specforge/specforge/pkg/taskdoc"
	"github.com/specforge/specforge/pkg/taskgraph"
)

// TaskQueryMode selects which view of a task document a query returns.
type TaskQueryMode string

const (
	ModeAll    TaskQueryMode = "all"    // Every task
	ModeSingle TaskQueryMode = "single" // One task by id
	ModeNext   TaskQueryMode = "next"   // First pending task whose deps are met
	ModeReady  TaskQueryMode = "ready"  // All dispatchable tasks
	ModeGroups TaskQueryMode = "groups" // Ready tasks grouped for parallel dispatch
)

// TaskQueryRequest selects tasks from a spec's document.
type TaskQueryRequest struct {
	SpecName string        `validate:"required"`
	Mode     TaskQueryMode `validate:"required,oneof=all single next ready groups"`
	TaskID   string
}

// TaskQueryResponse carries the view the mode selected; exactly one field
// besides SpecName is populated.
type TaskQueryResponse struct {
	SpecName string           `json:"spec_name"`
	Mode     TaskQueryMode    `json:"mode"`
	Tasks    []*models.Task   `json:"tasks,omitempty"`
	Task     *models.Task     `json:"task,omitempty"`
	Groups   [][]*models.Task `json:"groups,omitempty"`
}

// Tasks exposes task document upload, queries and completion.
type Tasks struct {
	persistence persistence.Persistence
	store       *statestore.Store
	bus         eventbus.EventPublisher
	logger      *slog.Logger
	validate    *validator.Validate
}

// NewTasks creates a task service.
func NewTasks(p persistence.Persistence, store *statestore.Store, bus eventbus.EventPublisher, logger *slog.Logger, validate *validator.Validate) *Tasks {
	if bus == nil {
		bus = eventbus.NopPublisher{}
	}

	return &Tasks{
		persistence: p,
		store:       store,
		bus:         bus,
		logger:      logger,
		validate:    validate,
	}
}

// SetDocument parses the markdown checklist and replaces the spec's task
// document. Parsing is all-or-nothing and the dependency graph must be valid;
// a rejected upload leaves the previous document untouched.
func (t *Tasks) SetDocument(ctx context.Context, specName, document string) ([]*models.Task, error) {
	spec, err := t.persistence.SpecByName(ctx, specName)
	if err != nil {
		return nil, err
	}

	tasks, err := taskdoc.Parse(document)
	if err != nil {
		return nil, err
	}

	if err := taskgraph.New(tasks).Validate(); err != nil {
		return nil, err
	}

	spec.Tasks = tasks
	spec.UpdatedAt = time.Now().UTC()

	if err := t.persistence.SaveSpec(ctx, spec); err != nil {
		return nil, err
	}

	t.logger.InfoContext(ctx, "Task document replaced",
		"spec", specName, "tasks", len(tasks))

	return tasks, nil
}

// Document serializes the spec's task document back to markdown. The output
// round-trips through Parse unchanged.
func (t *Tasks) Document(ctx context.Context, specName string) (string, error) {
	spec, err := t.persistence.SpecByName(ctx, specName)
	if err != nil {
		return "", err
	}

	return taskdoc.Serialize(spec.Tasks), nil
}

// Query returns the view of the task document the mode selects.
func (t *Tasks) Query(ctx context.Context, req TaskQueryRequest) (*TaskQueryResponse, error) {
	if err := t.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	spec, err := t.persistence.SpecByName(ctx, req.SpecName)
	if err != nil {
		return nil, err
	}

	resp := &TaskQueryResponse{SpecName: req.SpecName, Mode: req.Mode}
	graph := taskgraph.New(spec.Tasks)
	state := taskgraph.DocumentState(spec.Tasks)

	switch req.Mode {
	case ModeAll:
		resp.Tasks = graph.Tasks()
	case ModeSingle:
		if req.TaskID == "" {
			return nil, ErrMissingTaskID
		}

		task := spec.TaskByID(req.TaskID)
		if task == nil {
			return nil, persistence.NewStoreError("Query", req.TaskID, persistence.ErrTaskNotFound)
		}

		resp.Task = task
	case ModeNext:
		resp.Task = graph.NextPending(state)
	case ModeReady:
		resp.Tasks = graph.Ready(state)
	case ModeGroups:
		resp.Groups = graph.ParallelGroups(state)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, req.Mode)
	}

	return resp, nil
}

// Complete marks a task complete and publishes the completion.
func (t *Tasks) Complete(ctx context.Context, specName, taskID string) (*statestore.MarkResult, error) {
	result, err := t.store.MarkComplete(ctx, specName, taskID)
	if err != nil {
		return nil, err
	}

	if err := t.bus.Publish(ctx, specName,
		events.NewTaskCompleted(specName, taskID, result.Completed, result.Total, result.AlreadyComplete)); err != nil {
		t.logger.WarnContext(ctx, "Failed to publish task event", "error", err)
	}

	return result, nil
}

// Ratio returns the spec's exact completion ratio.
func (t *Tasks) Ratio(ctx context.Context, specName string) (statestore.Ratio, error) {
	return t.store.CompletionRatio(ctx, specName)
}
