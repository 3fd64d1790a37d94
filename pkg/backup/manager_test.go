package backup

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/specforge/specforge/pkg/eventbus"
	"github.com/specforge/specforge/pkg/events"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	published []eventbus.Event
}

func (r *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	r.published = append(r.published, event)

	return nil
}

func newTestManager(t *testing.T, cfg Config) (*Manager, persistence.Persistence, *recordingPublisher) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	bus := &recordingPublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	manager, err := NewManager(p, bus, logger, cfg)
	require.NoError(t, err)

	return manager, p, bus
}

func seedWorkflow(t *testing.T, p persistence.Persistence) *models.WorkflowState {
	t.Helper()

	state := &models.WorkflowState{
		ID:              uuid.NewString(),
		SpecName:        "auth-service",
		CompletedPhases: []models.WorkflowPhase{models.PhaseInitialization},
		Status:          models.WorkflowStatusInProgress,
		StartedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, p.SaveWorkflow(context.Background(), state))

	return state
}

func TestManagerSnapshot(t *testing.T) {
	manager, p, bus := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	state := seedWorkflow(t, p)

	snapshot, err := manager.Snapshot(ctx, models.SnapshotTargetWorkflow, state.ID, "before phase completion")
	require.NoError(t, err)

	assert.Contains(t, snapshot.ID, "snap-")
	assert.Equal(t, models.SnapshotTargetWorkflow, snapshot.Target)
	assert.Equal(t, state.ID, snapshot.TargetID)
	assert.False(t, snapshot.CreatedAt.IsZero())

	var captured models.WorkflowState
	require.NoError(t, json.Unmarshal(snapshot.State, &captured))
	assert.Equal(t, state.ID, captured.ID)
	assert.Equal(t, state.CompletedPhases, captured.CompletedPhases)

	require.Len(t, bus.published, 1)
	assert.Equal(t, events.BackupCreatedEvent, bus.published[0].GetType())
}

func TestManagerSnapshotMissingWorkflow(t *testing.T) {
	manager, _, _ := newTestManager(t, DefaultConfig())

	_, err := manager.Snapshot(context.Background(), models.SnapshotTargetWorkflow, "missing", "test")
	assert.True(t, persistence.IsNotFound(err))
}

func TestManagerRestore(t *testing.T) {
	manager, p, bus := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	state := seedWorkflow(t, p)

	snapshot, err := manager.Snapshot(ctx, models.SnapshotTargetWorkflow, state.ID, "baseline")
	require.NoError(t, err)

	// Mutate live state past the snapshot point.
	state.CompletedPhases = append(state.CompletedPhases, models.PhaseSpecCreation, models.PhaseRequirements)
	require.NoError(t, p.SaveWorkflow(ctx, state))

	preRestore, err := manager.Restore(ctx, snapshot.ID)
	require.NoError(t, err)
	assert.NotEqual(t, snapshot.ID, preRestore.ID)

	restored, err := p.WorkflowByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.WorkflowPhase{models.PhaseInitialization}, restored.CompletedPhases)

	// The pre-restore snapshot preserves the state that was just replaced.
	var replaced models.WorkflowState
	require.NoError(t, json.Unmarshal(preRestore.State, &replaced))
	assert.Len(t, replaced.CompletedPhases, 3)

	var types []events.EventType
	for _, event := range bus.published {
		types = append(types, event.GetType())
	}
	assert.Contains(t, types, events.BackupRestoredEvent)
}

func TestManagerRestoreRejectedDuringMutation(t *testing.T) {
	manager, p, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	state := seedWorkflow(t, p)

	snapshot, err := manager.Snapshot(ctx, models.SnapshotTargetWorkflow, state.ID, "baseline")
	require.NoError(t, err)

	// A mutation elsewhere in the engine holds the gate mid-write.
	release := manager.Gate().Mutate()
	defer release()

	_, err = manager.Restore(ctx, snapshot.ID)
	assert.True(t, IsConcurrentOperation(err))

	_, err = manager.RestoreLatest(ctx, models.SnapshotTargetWorkflow, state.ID)
	assert.True(t, IsConcurrentOperation(err))
}

func TestManagerRestoreUnknownSnapshot(t *testing.T) {
	manager, _, _ := newTestManager(t, DefaultConfig())

	_, err := manager.Restore(context.Background(), "snap-missing")
	assert.True(t, persistence.IsSnapshotNotFound(err))
}

func TestManagerRestoreCorruptSnapshot(t *testing.T) {
	manager, p, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	state := seedWorkflow(t, p)

	corrupt := &models.BackupSnapshot{
		ID:        "snap-" + uuid.NewString(),
		Target:    models.SnapshotTargetWorkflow,
		TargetID:  state.ID,
		State:     json.RawMessage(`{"id": "` + state.ID + `", "spec_name": "auth-service", "status": "teleported"}`),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, p.SaveSnapshot(ctx, corrupt))

	_, err := manager.Restore(ctx, corrupt.ID)
	assert.True(t, IsStateCorruption(err))

	// Corrupt restore leaves live state untouched.
	live, err := p.WorkflowByID(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, state.CompletedPhases, live.CompletedPhases)
}

func TestManagerRestoreLatestSkipsCorrupt(t *testing.T) {
	manager, p, _ := newTestManager(t, DefaultConfig())
	ctx := context.Background()

	state := seedWorkflow(t, p)

	good, err := manager.Snapshot(ctx, models.SnapshotTargetWorkflow, state.ID, "good")
	require.NoError(t, err)

	corrupt := &models.BackupSnapshot{
		ID:        "snap-" + uuid.NewString(),
		Target:    models.SnapshotTargetWorkflow,
		TargetID:  state.ID,
		State:     json.RawMessage(`{"status": "in_progress"}`),
		CreatedAt: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, p.SaveSnapshot(ctx, corrupt))

	used, err := manager.RestoreLatest(ctx, models.SnapshotTargetWorkflow, state.ID)
	require.NoError(t, err)
	assert.Equal(t, good.ID, used.ID)
}

func TestManagerRestoreLatestNoUsableSnapshot(t *testing.T) {
	manager, p, _ := newTestManager(t, DefaultConfig())

	seedWorkflow(t, p)

	_, err := manager.RestoreLatest(context.Background(), models.SnapshotTargetWorkflow, "other-workflow")
	assert.True(t, persistence.IsSnapshotNotFound(err))
}

func TestManagerPrune(t *testing.T) {
	manager, p, bus := newTestManager(t, Config{RetentionWindow: 24 * time.Hour, MinRetained: 2})
	ctx := context.Background()

	state := seedWorkflow(t, p)

	stateBody, err := json.Marshal(state)
	require.NoError(t, err)

	ages := []time.Duration{0, time.Hour, 48 * time.Hour, 72 * time.Hour}
	ids := make([]string, len(ages))

	for i, age := range ages {
		snapshot := &models.BackupSnapshot{
			ID:        "snap-" + uuid.NewString(),
			Target:    models.SnapshotTargetWorkflow,
			TargetID:  state.ID,
			State:     stateBody,
			CreatedAt: time.Now().UTC().Add(-age),
		}
		require.NoError(t, p.SaveSnapshot(ctx, snapshot))
		ids[i] = snapshot.ID
	}

	pruned, err := manager.Prune(ctx)
	require.NoError(t, err)

	// The two expired snapshots sit past the MinRetained floor, so both go.
	assert.ElementsMatch(t, []string{ids[2], ids[3]}, pruned)

	remaining, err := manager.List(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 2)

	var types []events.EventType
	for _, event := range bus.published {
		types = append(types, event.GetType())
	}
	assert.Contains(t, types, events.BackupPrunedEvent)
}

func TestManagerPruneKeepsMinimum(t *testing.T) {
	manager, p, _ := newTestManager(t, Config{RetentionWindow: time.Hour, MinRetained: 3})
	ctx := context.Background()

	state := seedWorkflow(t, p)

	stateBody, err := json.Marshal(state)
	require.NoError(t, err)

	// Every snapshot is long expired, yet the newest three must survive.
	for i := 0; i < 3; i++ {
		snapshot := &models.BackupSnapshot{
			ID:        "snap-" + uuid.NewString(),
			Target:    models.SnapshotTargetWorkflow,
			TargetID:  state.ID,
			State:     stateBody,
			CreatedAt: time.Now().UTC().Add(-time.Duration(i+1) * 24 * time.Hour),
		}
		require.NoError(t, p.SaveSnapshot(ctx, snapshot))
	}

	pruned, err := manager.Prune(ctx)
	require.NoError(t, err)
	assert.Empty(t, pruned)

	remaining, err := manager.List(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 3)
}

func TestManagerPruneDisabled(t *testing.T) {
	manager, p, _ := newTestManager(t, Config{RetentionWindow: 0, MinRetained: 0})
	ctx := context.Background()

	state := seedWorkflow(t, p)

	_, err := manager.Snapshot(ctx, models.SnapshotTargetWorkflow, state.ID, "kept forever")
	require.NoError(t, err)

	pruned, err := manager.Prune(ctx)
	require.NoError(t, err)
	assert.Empty(t, pruned)
}
