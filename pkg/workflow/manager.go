// Package workflow drives projects through the fixed development phase
// sequence. The engine validates and records transitions; executing a phase
// is the caller's job.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specforge/specforge/pkg/backup"
	"github.com/specforge/specforge/pkg/eventbus"
	"github.com/specforge/specforge/pkg/events"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
)

// Manager is the workflow phase state machine. Mutations on one workflow are
// single-writer: a per-workflow mutex serializes them, and the state is
// re-read under the lock, so a racing phase completion that lost the lock
// fails the in-order check deterministically instead of double-advancing.
type Manager struct {
	persistence persistence.Persistence
	backups     *backup.Manager
	bus         eventbus.EventPublisher
	logger      *slog.Logger
	gate        *persistence.RestoreGate

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a workflow manager. backups may be nil; Reset then skips
// the safety snapshot and mutations run without the restore gate.
func NewManager(p persistence.Persistence, backups *backup.Manager, bus eventbus.EventPublisher, logger *slog.Logger) *Manager {
	if bus == nil {
		bus = eventbus.NopPublisher{}
	}

	manager := &Manager{
		persistence: p,
		backups:     backups,
		bus:         bus,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}

	if backups != nil {
		manager.gate = backups.Gate()
	}

	return manager
}

// lockFor returns the mutex serializing mutations of one workflow.
func (m *Manager) lockFor(workflowID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[workflowID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[workflowID] = lock
	}

	return lock
}

// Start creates a new workflow for the named spec, positioned at the first
// phase.
func (m *Manager) Start(ctx context.Context, specName string) (*models.WorkflowState, error) {
	defer m.gate.Mutate()()

	if _, err := m.persistence.SpecByName(ctx, specName); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	state := &models.WorkflowState{
		ID:              uuid.NewString(),
		SpecName:        specName,
		CompletedPhases: []models.WorkflowPhase{},
		Status:          models.WorkflowStatusInProgress,
		StartedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.persistence.SaveWorkflow(ctx, state); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Workflow started",
		"workflow_id", state.ID, "spec", specName, "phase", state.CurrentPhase())

	if err := m.bus.Publish(ctx, state.ID, events.NewWorkflowStarted(specName, state.ID)); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish workflow event", "error", err)
	}

	return state, nil
}

// CompletePhase records that phase finished. Phases complete strictly in
// order: completing anything but the current phase is a ValidationError.
// Completing the last phase finishes the workflow.
func (m *Manager) CompletePhase(ctx context.Context, workflowID string, phase models.WorkflowPhase) (*models.WorkflowState, error) {
	lock := m.lockFor(workflowID)
	lock.Lock()
	defer lock.Unlock()
	defer m.gate.Mutate()()

	state, err := m.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	switch state.Status {
	case models.WorkflowStatusCompleted, models.WorkflowStatusPaused:
		return nil, models.NewValidationError("CompletePhase", "status", string(state.Status))
	}

	if current := state.CurrentPhase(); phase != current {
		return nil, models.NewValidationError("CompletePhase", "phase",
			fmt.Sprintf("%s, expected %s", phase, current))
	}

	state.CompletedPhases = append(state.CompletedPhases, phase)
	state.Status = models.WorkflowStatusInProgress
	state.FailureReason = ""
	state.UpdatedAt = time.Now().UTC()

	finished := len(state.CompletedPhases) == len(models.WorkflowPhases())
	if finished {
		state.Status = models.WorkflowStatusCompleted
		state.CompletedAt = &state.UpdatedAt
	}

	if err := m.persistence.SaveWorkflow(ctx, state); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Phase completed",
		"workflow_id", workflowID, "phase", phase, "finished", finished)

	if err := m.bus.Publish(ctx, workflowID,
		events.NewWorkflowPhaseCompleted(state.SpecName, workflowID, phase, finished)); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish workflow event", "error", err)
	}

	return state, nil
}

// Pause suspends an in-progress workflow. Pausing a paused or completed
// workflow is a no-op, not an error.
func (m *Manager) Pause(ctx context.Context, workflowID string) (*models.WorkflowState, error) {
	lock := m.lockFor(workflowID)
	lock.Lock()
	defer lock.Unlock()
	defer m.gate.Mutate()()

	state, err := m.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	switch state.Status {
	case models.WorkflowStatusPaused, models.WorkflowStatusCompleted:
		return state, nil
	}

	state.Status = models.WorkflowStatusPaused
	state.UpdatedAt = time.Now().UTC()

	if err := m.persistence.SaveWorkflow(ctx, state); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Workflow paused",
		"workflow_id", workflowID, "phase", state.CurrentPhase())

	if err := m.bus.Publish(ctx, workflowID,
		events.NewWorkflowPaused(state.SpecName, workflowID, state.CurrentPhase())); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish workflow event", "error", err)
	}

	return state, nil
}

// Continue resumes a paused or failed workflow at its current phase. A failed
// workflow keeps its failing phase, so continuing retries that phase.
func (m *Manager) Continue(ctx context.Context, workflowID string) (*models.WorkflowState, error) {
	lock := m.lockFor(workflowID)
	lock.Lock()
	defer lock.Unlock()
	defer m.gate.Mutate()()

	state, err := m.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	switch state.Status {
	case models.WorkflowStatusPaused, models.WorkflowStatusFailed:
	default:
		return nil, models.NewValidationError("Continue", "status", string(state.Status))
	}

	state.Status = models.WorkflowStatusInProgress
	state.FailureReason = ""
	state.UpdatedAt = time.Now().UTC()

	if err := m.persistence.SaveWorkflow(ctx, state); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Workflow resumed",
		"workflow_id", workflowID, "phase", state.CurrentPhase())

	if err := m.bus.Publish(ctx, workflowID,
		events.NewWorkflowResumed(state.SpecName, workflowID, state.CurrentPhase())); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish workflow event", "error", err)
	}

	return state, nil
}

// Fail records a phase execution failure reported by the external executor.
// The failing phase stays current, so Continue retries it.
func (m *Manager) Fail(ctx context.Context, workflowID, reason string) (*models.WorkflowState, error) {
	lock := m.lockFor(workflowID)
	lock.Lock()
	defer lock.Unlock()
	defer m.gate.Mutate()()

	state, err := m.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if state.Status == models.WorkflowStatusCompleted {
		return nil, models.NewValidationError("Fail", "status", string(state.Status))
	}

	state.Status = models.WorkflowStatusFailed
	state.FailureReason = reason
	state.UpdatedAt = time.Now().UTC()

	if err := m.persistence.SaveWorkflow(ctx, state); err != nil {
		return nil, err
	}

	m.logger.WarnContext(ctx, "Phase failed",
		"workflow_id", workflowID, "phase", state.CurrentPhase(), "reason", reason)

	if err := m.bus.Publish(ctx, workflowID,
		events.NewWorkflowPhaseFailed(state.SpecName, workflowID, state.CurrentPhase(), reason)); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish workflow event", "error", err)
	}

	return state, nil
}

// Reset snapshots the current state, archives it, and returns a fresh
// workflow for the same spec at the first phase. The old state stays
// recoverable through both the snapshot and the archive.
func (m *Manager) Reset(ctx context.Context, workflowID string) (*models.WorkflowState, error) {
	lock := m.lockFor(workflowID)
	lock.Lock()
	defer lock.Unlock()
	defer m.gate.Mutate()()

	state, err := m.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	var snapshotID string

	if m.backups != nil {
		snapshot, err := m.backups.Snapshot(ctx, models.SnapshotTargetWorkflow, workflowID, "workflow reset")
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot workflow before reset: %w", err)
		}

		snapshotID = snapshot.ID
	}

	if err := m.persistence.ArchiveWorkflow(ctx, state); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	fresh := &models.WorkflowState{
		ID:              uuid.NewString(),
		SpecName:        state.SpecName,
		CompletedPhases: []models.WorkflowPhase{},
		Status:          models.WorkflowStatusInProgress,
		StartedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.persistence.SaveWorkflow(ctx, fresh); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Workflow reset",
		"archived_id", workflowID, "workflow_id", fresh.ID, "snapshot_id", snapshotID)

	if err := m.bus.Publish(ctx, fresh.ID,
		events.NewWorkflowReset(state.SpecName, workflowID, fresh.ID, snapshotID)); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish workflow event", "error", err)
	}

	return fresh, nil
}

// Status returns the current state of a workflow. A record that fails its
// integrity check is recovered from the newest valid snapshot automatically;
// the recovery is logged and published, never silent.
func (m *Manager) Status(ctx context.Context, workflowID string) (*models.WorkflowState, error) {
	state, err := m.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	integrityErr := state.CheckIntegrity()
	if integrityErr == nil {
		return state, nil
	}

	if m.backups == nil {
		return nil, backup.NewStateCorruptionError(workflowID, integrityErr.Error())
	}

	m.logger.WarnContext(ctx, "Workflow state failed integrity check, recovering from backup",
		"workflow_id", workflowID, "error", integrityErr)

	if _, err := m.backups.RestoreLatest(ctx, models.SnapshotTargetWorkflow, workflowID); err != nil {
		if backup.IsConcurrentOperation(err) {
			return nil, err
		}

		return nil, backup.NewStateCorruptionError(workflowID, integrityErr.Error())
	}

	return m.persistence.WorkflowByID(ctx, workflowID)
}

// List returns all active workflows.
func (m *Manager) List(ctx context.Context) ([]*models.WorkflowState, error) {
	return m.persistence.Workflows(ctx)
}
