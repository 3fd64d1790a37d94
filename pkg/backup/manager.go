// Package backup snapshots engine state before risky mutations and restores
// it from validated snapshots.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/specforge/specforge/pkg/eventbus"
	"github.com/specforge/specforge/pkg/events"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/xeipuuv/gojsonschema"
)

// Config controls retention pruning.
type Config struct {
	// RetentionWindow is how long snapshots stay eligible; zero disables
	// age-based pruning entirely.
	RetentionWindow time.Duration
	// MinRetained snapshots survive pruning regardless of age, so at least
	// one rollback point always exists.
	MinRetained int
}

// DefaultConfig keeps a week of snapshots and never drops the last three.
func DefaultConfig() Config {
	return Config{RetentionWindow: 7 * 24 * time.Hour, MinRetained: 3}
}

// Manager creates, validates, restores and prunes backup snapshots.
// A restore in flight rejects concurrent restores with ErrConcurrentOperation
// rather than blocking the caller indefinitely, and holds the restore gate so
// state mutations elsewhere in the engine wait for it to finish.
type Manager struct {
	persistence    persistence.Persistence
	bus            eventbus.EventPublisher
	logger         *slog.Logger
	cfg            Config
	gate           *persistence.RestoreGate
	workflowSchema *gojsonschema.Schema
	specSchema     *gojsonschema.Schema
}

// NewManager creates a backup manager. The schemas guarding restore are
// compiled once here.
func NewManager(p persistence.Persistence, bus eventbus.EventPublisher, logger *slog.Logger, cfg Config) (*Manager, error) {
	compiledWorkflow, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(workflowStateSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile workflow snapshot schema: %w", err)
	}

	compiledSpec, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(specSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile spec snapshot schema: %w", err)
	}

	if bus == nil {
		bus = eventbus.NopPublisher{}
	}

	return &Manager{
		persistence:    p,
		bus:            bus,
		logger:         logger,
		cfg:            cfg,
		gate:           &persistence.RestoreGate{},
		workflowSchema: compiledWorkflow,
		specSchema:     compiledSpec,
	}, nil
}

// Gate returns the restore gate the engine's mutators share. Every component
// that mutates spec or workflow state holds it while writing.
func (m *Manager) Gate() *persistence.RestoreGate {
	return m.gate
}

// Snapshot serializes the live state of the target into a new immutable
// record. Concurrent snapshot calls are serialized, never lost.
func (m *Manager) Snapshot(ctx context.Context, target models.SnapshotTarget, targetID, reason string) (*models.BackupSnapshot, error) {
	defer m.gate.Mutate()()

	return m.snapshotLocked(ctx, target, targetID, reason)
}

func (m *Manager) snapshotLocked(ctx context.Context, target models.SnapshotTarget, targetID, reason string) (*models.BackupSnapshot, error) {
	state, err := m.liveState(ctx, target, targetID)
	if err != nil {
		return nil, err
	}

	snapshot := &models.BackupSnapshot{
		ID:        "snap-" + uuid.NewString(),
		Target:    target,
		TargetID:  targetID,
		Reason:    reason,
		State:     state,
		CreatedAt: time.Now().UTC(),
	}

	if err := m.persistence.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Snapshot created",
		"snapshot_id", snapshot.ID, "target", target, "target_id", targetID, "reason", reason)

	if err := m.bus.Publish(ctx, snapshot.ID, events.NewBackupCreated(snapshot.ID, target, targetID, reason)); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish backup event", "error", err)
	}

	return snapshot, nil
}

// Restore validates the snapshot and atomically replaces live state with it.
// The current state is snapshotted first, so a bad restore is itself
// reversible. Returns the pre-restore snapshot.
func (m *Manager) Restore(ctx context.Context, snapshotID string) (*models.BackupSnapshot, error) {
	release, err := m.gate.Restore()
	if err != nil {
		return nil, err
	}
	defer release()

	snapshot, err := m.persistence.SnapshotByID(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	if err := m.validate(snapshot); err != nil {
		return nil, err
	}

	preRestore, err := m.snapshotLocked(ctx, snapshot.Target, snapshot.TargetID, "pre-restore of "+snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to take pre-restore snapshot: %w", err)
	}

	if err := m.apply(ctx, snapshot); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Snapshot restored",
		"snapshot_id", snapshotID, "pre_restore_snapshot_id", preRestore.ID)

	if err := m.bus.Publish(ctx, snapshotID, events.NewBackupRestored(snapshotID, preRestore.ID)); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish restore event", "error", err)
	}

	return preRestore, nil
}

// RestoreLatest falls back to the newest snapshot of the target that passes
// integrity validation. Used when live state fails to load; the fallback is
// logged, never silent.
func (m *Manager) RestoreLatest(ctx context.Context, target models.SnapshotTarget, targetID string) (*models.BackupSnapshot, error) {
	release, err := m.gate.Restore()
	if err != nil {
		return nil, err
	}
	defer release()

	snapshots, err := m.persistence.Snapshots(ctx)
	if err != nil {
		return nil, err
	}

	for _, snapshot := range snapshots {
		if snapshot.Target != target || snapshot.TargetID != targetID {
			continue
		}

		if err := m.validate(snapshot); err != nil {
			m.logger.WarnContext(ctx, "Skipping corrupt snapshot during fallback",
				"snapshot_id", snapshot.ID, "error", err)

			continue
		}

		if err := m.apply(ctx, snapshot); err != nil {
			return nil, err
		}

		m.logger.WarnContext(ctx, "Live state recovered from backup",
			"snapshot_id", snapshot.ID, "target", target, "target_id", targetID)

		if err := m.bus.Publish(ctx, snapshot.ID, events.NewBackupRestored(snapshot.ID, "")); err != nil {
			m.logger.WarnContext(ctx, "Failed to publish restore event", "error", err)
		}

		return snapshot, nil
	}

	return nil, persistence.NewStoreError("RestoreLatest", targetID, persistence.ErrSnapshotNotFound)
}

// SpecTargets lists the spec names eligible for snapshotting.
func (m *Manager) SpecTargets(ctx context.Context) ([]string, error) {
	specs, err := m.persistence.Specs(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.Name)
	}

	return names, nil
}

// WorkflowTargets lists the active workflow ids eligible for snapshotting.
func (m *Manager) WorkflowTargets(ctx context.Context) ([]string, error) {
	workflows, err := m.persistence.Workflows(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(workflows))
	for _, state := range workflows {
		ids = append(ids, state.ID)
	}

	return ids, nil
}

// List returns every snapshot, newest first.
func (m *Manager) List(ctx context.Context) ([]*models.BackupSnapshot, error) {
	return m.persistence.Snapshots(ctx)
}

// Prune removes snapshots older than the retention window, always keeping
// the newest MinRetained. Returns the pruned ids.
func (m *Manager) Prune(ctx context.Context) ([]string, error) {
	if m.cfg.RetentionWindow <= 0 {
		return nil, nil
	}

	snapshots, err := m.persistence.Snapshots(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().UTC().Add(-m.cfg.RetentionWindow)

	var pruned []string

	for i, snapshot := range snapshots {
		if i < m.cfg.MinRetained {
			continue
		}

		if snapshot.CreatedAt.After(cutoff) {
			continue
		}

		if err := m.persistence.DeleteSnapshot(ctx, snapshot.ID); err != nil {
			return pruned, err
		}

		pruned = append(pruned, snapshot.ID)
	}

	if len(pruned) > 0 {
		m.logger.InfoContext(ctx, "Snapshots pruned", "count", len(pruned))

		if err := m.bus.Publish(ctx, "prune", events.NewBackupPruned(pruned)); err != nil {
			m.logger.WarnContext(ctx, "Failed to publish prune event", "error", err)
		}
	}

	return pruned, nil
}

// validate runs the structural schema check for the snapshot's target kind.
func (m *Manager) validate(snapshot *models.BackupSnapshot) error {
	var schema *gojsonschema.Schema

	switch snapshot.Target {
	case models.SnapshotTargetWorkflow:
		schema = m.workflowSchema
	case models.SnapshotTargetSpec:
		schema = m.specSchema
	default:
		return NewStateCorruptionError(snapshot.ID, "unknown snapshot target "+string(snapshot.Target))
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(snapshot.State))
	if err != nil {
		return NewStateCorruptionError(snapshot.ID, err.Error())
	}

	if !result.Valid() {
		reason := "schema violation"
		if len(result.Errors()) > 0 {
			reason = result.Errors()[0].String()
		}

		return NewStateCorruptionError(snapshot.ID, reason)
	}

	return nil
}

// apply replaces live state with the snapshot contents in one save.
func (m *Manager) apply(ctx context.Context, snapshot *models.BackupSnapshot) error {
	switch snapshot.Target {
	case models.SnapshotTargetWorkflow:
		var state models.WorkflowState
		if err := json.Unmarshal(snapshot.State, &state); err != nil {
			return NewStateCorruptionError(snapshot.ID, err.Error())
		}

		return m.persistence.SaveWorkflow(ctx, &state)
	case models.SnapshotTargetSpec:
		var spec models.Spec
		if err := json.Unmarshal(snapshot.State, &spec); err != nil {
			return NewStateCorruptionError(snapshot.ID, err.Error())
		}

		return m.persistence.SaveSpec(ctx, &spec)
	default:
		return NewStateCorruptionError(snapshot.ID, "unknown snapshot target "+string(snapshot.Target))
	}
}

// liveState serializes the current state of the target.
func (m *Manager) liveState(ctx context.Context, target models.SnapshotTarget, targetID string) (json.RawMessage, error) {
	switch target {
	case models.SnapshotTargetWorkflow:
		state, err := m.persistence.WorkflowByID(ctx, targetID)
		if err != nil {
			return nil, err
		}

		return json.Marshal(state)
	case models.SnapshotTargetSpec:
		spec, err := m.persistence.SpecByName(ctx, targetID)
		if err != nil {
			return nil, err
		}

		return json.Marshal(spec)
	default:
		return nil, fmt.Errorf("unknown snapshot target %q", target)
	}
}
