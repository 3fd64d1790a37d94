// Package statestore tracks durable per-specification task completion state.
//
// The store is deliberately permissive: marking a task complete does not
// require its dependencies to be complete. Ordering is enforced at read time
// by the graph's ready-set filtering, not at write time. Callers wanting
// stricter semantics opt in with WithStrictCompletion rather than the default
// changing silently.
package statestore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/taskgraph"
)

// Store provides atomic, serialized updates to completion state. Reads go
// straight to persistence and observe a consistent record; writes are
// serialized through one mutex so concurrent completions never lose updates.
type Store struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	gate        *persistence.RestoreGate
	mu          sync.Mutex
	strict      bool
}

// Option configures the store.
type Option func(*Store)

// WithStrictCompletion makes MarkComplete fail when any declared dependency
// is still incomplete. Off by default.
func WithStrictCompletion() Option {
	return func(s *Store) {
		s.strict = true
	}
}

// WithRestoreGate makes completion writes hold the shared restore gate, so a
// snapshot restore in flight finishes before the write lands.
func WithRestoreGate(gate *persistence.RestoreGate) Option {
	return func(s *Store) {
		s.gate = gate
	}
}

// New creates a state store over the given persistence layer.
func New(p persistence.Persistence, logger *slog.Logger, opts ...Option) *Store {
	store := &Store{
		persistence: p,
		logger:      logger,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// MarkResult reports the state observed by a completion write.
type MarkResult struct {
	AlreadyComplete bool
	Completed       int
	Total           int
}

// MarkComplete durably records a task as complete. Idempotent: a second call
// for the same task succeeds and reports AlreadyComplete without rewriting
// state.
func (s *Store) MarkComplete(ctx context.Context, specName, taskID string) (*MarkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.gate.Mutate()()

	spec, err := s.persistence.SpecByName(ctx, specName)
	if err != nil {
		return nil, err
	}

	task := spec.TaskByID(taskID)
	if task == nil {
		return nil, persistence.NewStoreError("MarkComplete", taskID, persistence.ErrTaskNotFound)
	}

	if task.Completed {
		completed, total := spec.CompletionCounts()

		return &MarkResult{AlreadyComplete: true, Completed: completed, Total: total}, nil
	}

	if s.strict {
		for _, dep := range task.Dependencies {
			depTask := spec.TaskByID(dep)
			if depTask == nil || !depTask.Completed {
				return nil, models.NewValidationError("MarkComplete", "dependency_incomplete", dep)
			}
		}
	}

	task.Completed = true

	if err := s.persistence.SaveSpec(ctx, spec); err != nil {
		return nil, fmt.Errorf("failed to persist completion of task %s: %w", taskID, err)
	}

	completed, total := spec.CompletionCounts()

	s.logger.InfoContext(ctx, "Task completed",
		"spec", specName, "task", taskID, "completed", completed, "total", total)

	return &MarkResult{Completed: completed, Total: total}, nil
}

// IsComplete reports the durable completion flag for a task.
func (s *Store) IsComplete(ctx context.Context, specName, taskID string) (bool, error) {
	spec, err := s.persistence.SpecByName(ctx, specName)
	if err != nil {
		return false, err
	}

	task := spec.TaskByID(taskID)
	if task == nil {
		return false, persistence.NewStoreError("IsComplete", taskID, persistence.ErrTaskNotFound)
	}

	return task.Completed, nil
}

// CompletionRatio returns the exact completed/total counts for a spec.
func (s *Store) CompletionRatio(ctx context.Context, specName string) (Ratio, error) {
	spec, err := s.persistence.SpecByName(ctx, specName)
	if err != nil {
		return Ratio{}, err
	}

	completed, total := spec.CompletionCounts()

	return Ratio{Completed: completed, Total: total}, nil
}

// State returns a point-in-time completion view usable with taskgraph queries.
func (s *Store) State(ctx context.Context, specName string) (taskgraph.MapState, error) {
	spec, err := s.persistence.SpecByName(ctx, specName)
	if err != nil {
		return nil, err
	}

	state := make(taskgraph.MapState, len(spec.Tasks))
	for _, task := range spec.Tasks {
		state[task.ID] = task.Completed
	}

	return state, nil
}

// Ratio is an exact rational completion measure. Comparisons avoid floating
// point so a gate like "at least 9/10" is decided exactly.
type Ratio struct {
	Completed int
	Total     int
}

// AtLeast reports whether the ratio is >= num/den, exactly.
func (r Ratio) AtLeast(num, den int) bool {
	if r.Total == 0 {
		return false
	}

	return r.Completed*den >= r.Total*num
}

// Value returns the float form, for display only.
func (r Ratio) Value() float64 {
	if r.Total == 0 {
		return 0
	}

	return float64(r.Completed) / float64(r.Total)
}

// String renders the ratio to two decimal places, the form quoted in
// validation errors.
func (r Ratio) String() string {
	return fmt.Sprintf("%.2f", r.Value())
}
