// Package lifecycle implements the specification stage state machine:
// backlog, scope, completed, sandbox, archived.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/specforge/specforge/pkg/eventbus"
	"github.com/specforge/specforge/pkg/events"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/statestore"
	"github.com/specforge/specforge/pkg/taskgraph"
)

// allowedTransitions is the stage machine's edge set. Archiving is handled
// separately because every stage may archive.
var allowedTransitions = map[models.SpecStage][]models.SpecStage{
	models.StageBacklog: {models.StageScope, models.StageSandbox},
	models.StageScope:   {models.StageCompleted, models.StageSandbox},
	models.StageSandbox: {models.StageScope},
}

// Manager moves specifications through their lifecycle stages. Transitions
// are serialized under one mutex; the gates read task state that a concurrent
// completion could otherwise change mid-check.
type Manager struct {
	persistence persistence.Persistence
	bus         eventbus.EventPublisher
	logger      *slog.Logger
	gate        *persistence.RestoreGate
	mu          sync.Mutex
}

// Option configures the manager.
type Option func(*Manager)

// WithRestoreGate makes stage transitions hold the shared restore gate, so a
// snapshot restore in flight finishes before the spec is rewritten.
func WithRestoreGate(gate *persistence.RestoreGate) Option {
	return func(m *Manager) {
		m.gate = gate
	}
}

// NewManager creates a lifecycle manager.
func NewManager(p persistence.Persistence, bus eventbus.EventPublisher, logger *slog.Logger, opts ...Option) *Manager {
	if bus == nil {
		bus = eventbus.NopPublisher{}
	}

	manager := &Manager{persistence: p, bus: bus, logger: logger}

	for _, opt := range opts {
		opt(manager)
	}

	return manager
}

// Create registers a new specification in the backlog.
func (m *Manager) Create(ctx context.Context, name, description string) (*models.Spec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.gate.Mutate()()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.NewValidationError("Create", "name", "empty")
	}

	if _, err := m.persistence.SpecByName(ctx, name); err == nil {
		return nil, fmt.Errorf("spec %s: %w", name, ErrSpecExists)
	} else if !persistence.IsSpecNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	spec := &models.Spec{
		Name:        name,
		Description: description,
		Stage:       models.StageBacklog,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := m.persistence.SaveSpec(ctx, spec); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Spec created", "spec", name, "stage", spec.Stage)

	if err := m.bus.Publish(ctx, name, events.NewSpecCreated(name, spec.Stage)); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish spec event", "error", err)
	}

	return spec, nil
}

// Transition moves a spec to the given stage, enforcing the per-edge gates.
// Every successful move appends an entry to the spec's history; history is
// never rewritten. No transition deletes stored documents.
func (m *Manager) Transition(ctx context.Context, name string, to models.SpecStage, reason string) (*models.Spec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.gate.Mutate()()

	if !models.IsValidStage(to) {
		return nil, models.NewValidationError("Transition", "stage", string(to))
	}

	spec, err := m.persistence.SpecByName(ctx, name)
	if err != nil {
		return nil, err
	}

	from := spec.Stage
	if from == to {
		return nil, NewTransitionError(name, from, to)
	}

	// Archiving is always allowed; everything else follows the edge set.
	if to != models.StageArchived {
		if !m.transitionAllowed(from, to) {
			return nil, NewTransitionError(name, from, to)
		}

		if err := m.checkGates(ctx, spec, to); err != nil {
			return nil, err
		}
	}

	spec.Stage = to
	spec.UpdatedAt = time.Now().UTC()
	spec.History = append(spec.History, models.StageTransition{
		From:      from,
		To:        to,
		Reason:    reason,
		Timestamp: spec.UpdatedAt,
	})

	if err := m.persistence.SaveSpec(ctx, spec); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Spec transitioned",
		"spec", name, "from", from, "to", to, "reason", reason)

	if err := m.bus.Publish(ctx, name, events.NewSpecPromoted(name, from, to, reason)); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish spec event", "error", err)
	}

	return spec, nil
}

// Promote advances a spec one stage along the main line:
// backlog -> scope -> completed.
func (m *Manager) Promote(ctx context.Context, name, reason string) (*models.Spec, error) {
	spec, err := m.persistence.SpecByName(ctx, name)
	if err != nil {
		return nil, err
	}

	switch spec.Stage {
	case models.StageBacklog:
		return m.Transition(ctx, name, models.StageScope, reason)
	case models.StageScope:
		return m.Transition(ctx, name, models.StageCompleted, reason)
	default:
		return nil, NewTransitionError(name, spec.Stage, models.StageCompleted)
	}
}

// Archive moves a spec to the archived stage. A reason is required: archived
// specs are terminal and the history entry is the only explanation left.
func (m *Manager) Archive(ctx context.Context, name, reason string) (*models.Spec, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, models.NewValidationError("Archive", "reason", "empty")
	}

	return m.Transition(ctx, name, models.StageArchived, reason)
}

// Get returns the spec with the given name.
func (m *Manager) Get(ctx context.Context, name string) (*models.Spec, error) {
	return m.persistence.SpecByName(ctx, name)
}

// List returns all specifications.
func (m *Manager) List(ctx context.Context) ([]*models.Spec, error) {
	return m.persistence.Specs(ctx)
}

// transitionAllowed reports whether the edge set permits from -> to.
func (m *Manager) transitionAllowed(from, to models.SpecStage) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

// checkGates enforces the entry conditions of the target stage.
func (m *Manager) checkGates(ctx context.Context, spec *models.Spec, to models.SpecStage) error {
	switch to {
	case models.StageScope:
		if strings.TrimSpace(spec.Description) == "" {
			return models.NewValidationError("Transition", "description", "empty")
		}

		m.warnIfScopeOccupied(ctx, spec.Name)
	case models.StageCompleted:
		if !spec.HasTasks() {
			return models.NewValidationError("Transition", "task_graph", "missing")
		}

		if err := taskgraph.New(spec.Tasks).Validate(); err != nil {
			return err
		}

		completed, total := spec.CompletionCounts()

		ratio := statestore.Ratio{Completed: completed, Total: total}
		if !ratio.AtLeast(9, 10) {
			return models.NewValidationError("Transition", "completion_ratio",
				fmt.Sprintf("%s < 0.90", ratio))
		}
	}

	return nil
}

// warnIfScopeOccupied logs when another spec already holds the scope stage.
// Multiple specs in scope is legal but usually a planning mistake.
func (m *Manager) warnIfScopeOccupied(ctx context.Context, entering string) {
	specs, err := m.persistence.Specs(ctx)
	if err != nil {
		m.logger.WarnContext(ctx, "Failed to check scope occupancy", "error", err)

		return
	}

	for _, other := range specs {
		if other.Name != entering && other.Stage == models.StageScope {
			m.logger.WarnContext(ctx, "Another spec is already in scope",
				"entering", entering, "occupant", other.Name)

			return
		}
	}
}
