package workflow

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/specforge/specforge/pkg/backup"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	backups, err := backup.NewManager(p, nil, logger, backup.DefaultConfig())
	require.NoError(t, err)

	return NewManager(p, backups, nil, logger), p
}

func seedSpec(t *testing.T, p persistence.Persistence, name string) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, p.SaveSpec(context.Background(), &models.Spec{
		Name:      name,
		Stage:     models.StageScope,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func startWorkflow(t *testing.T, manager *Manager, p persistence.Persistence) *models.WorkflowState {
	t.Helper()

	seedSpec(t, p, "auth-service")

	state, err := manager.Start(context.Background(), "auth-service")
	require.NoError(t, err)

	return state
}

func TestManagerStart(t *testing.T) {
	manager, p := newTestManager(t)

	state := startWorkflow(t, manager, p)

	assert.NotEmpty(t, state.ID)
	assert.Equal(t, models.WorkflowStatusInProgress, state.Status)
	assert.Equal(t, models.PhaseInitialization, state.CurrentPhase())
	assert.Empty(t, state.CompletedPhases)
}

func TestManagerStartUnknownSpec(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.Start(context.Background(), "ghost")
	assert.True(t, persistence.IsSpecNotFound(err))
}

func TestManagerCompletePhaseInOrder(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	state := startWorkflow(t, manager, p)

	for i, phase := range models.WorkflowPhases() {
		updated, err := manager.CompletePhase(ctx, state.ID, phase)
		require.NoError(t, err)
		assert.Len(t, updated.CompletedPhases, i+1)

		if i < len(models.WorkflowPhases())-1 {
			assert.Equal(t, models.WorkflowStatusInProgress, updated.Status)
		} else {
			assert.Equal(t, models.WorkflowStatusCompleted, updated.Status)
			assert.NotNil(t, updated.CompletedAt)
		}
	}

	// Nothing completes after the workflow finishes.
	_, err := manager.CompletePhase(ctx, state.ID, models.PhaseReview)
	assert.True(t, models.IsValidationError(err))
}

func TestManagerCompletePhaseOutOfOrder(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	state := startWorkflow(t, manager, p)

	_, err := manager.CompletePhase(ctx, state.ID, models.PhaseDesign)
	require.True(t, models.IsValidationError(err))
	assert.Contains(t, err.Error(), "expected initialization")

	// The failed attempt did not advance anything.
	current, err := manager.Status(ctx, state.ID)
	require.NoError(t, err)
	assert.Empty(t, current.CompletedPhases)
}

func TestManagerCompletePhaseConcurrent(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	state := startWorkflow(t, manager, p)

	const racers = 8

	var wg sync.WaitGroup

	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, errs[i] = manager.CompletePhase(ctx, state.ID, models.PhaseInitialization)
		}(i)
	}

	wg.Wait()

	var won, lost int

	for _, err := range errs {
		if err == nil {
			won++
		} else {
			assert.True(t, models.IsValidationError(err))
			lost++
		}
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, racers-1, lost)

	current, err := manager.Status(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.WorkflowPhase{models.PhaseInitialization}, current.CompletedPhases)
}

func TestManagerPause(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	state := startWorkflow(t, manager, p)

	_, err := manager.CompletePhase(ctx, state.ID, models.PhaseInitialization)
	require.NoError(t, err)

	paused, err := manager.Pause(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPaused, paused.Status)
	assert.Equal(t, models.PhaseSpecCreation, paused.CurrentPhase())

	// Pausing again is a no-op.
	again, err := manager.Pause(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusPaused, again.Status)

	// Paused workflows reject phase completion.
	_, err = manager.CompletePhase(ctx, state.ID, models.PhaseSpecCreation)
	assert.True(t, models.IsValidationError(err))
}

func TestManagerContinueFromPause(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	state := startWorkflow(t, manager, p)

	_, err := manager.Pause(ctx, state.ID)
	require.NoError(t, err)

	resumed, err := manager.Continue(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusInProgress, resumed.Status)

	// Continuing an in-progress workflow is rejected.
	_, err = manager.Continue(ctx, state.ID)
	assert.True(t, models.IsValidationError(err))
}

func TestManagerFailAndRetry(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	state := startWorkflow(t, manager, p)

	_, err := manager.CompletePhase(ctx, state.ID, models.PhaseInitialization)
	require.NoError(t, err)

	failed, err := manager.Fail(ctx, state.ID, "generator crashed")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusFailed, failed.Status)
	assert.Equal(t, "generator crashed", failed.FailureReason)

	// The failing phase stays current.
	assert.Equal(t, models.PhaseSpecCreation, failed.CurrentPhase())

	resumed, err := manager.Continue(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusInProgress, resumed.Status)
	assert.Empty(t, resumed.FailureReason)
	assert.Equal(t, models.PhaseSpecCreation, resumed.CurrentPhase())

	// The retry of the same phase succeeds.
	updated, err := manager.CompletePhase(ctx, state.ID, models.PhaseSpecCreation)
	require.NoError(t, err)
	assert.Len(t, updated.CompletedPhases, 2)
}

func TestManagerReset(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	state := startWorkflow(t, manager, p)

	for _, phase := range models.WorkflowPhases()[:3] {
		_, err := manager.CompletePhase(ctx, state.ID, phase)
		require.NoError(t, err)
	}

	fresh, err := manager.Reset(ctx, state.ID)
	require.NoError(t, err)
	assert.NotEqual(t, state.ID, fresh.ID)
	assert.Equal(t, state.SpecName, fresh.SpecName)
	assert.Empty(t, fresh.CompletedPhases)
	assert.Equal(t, models.WorkflowStatusInProgress, fresh.Status)

	// The old workflow left the active set.
	_, err = manager.Status(ctx, state.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	// A pre-reset snapshot of the old state exists.
	snapshots, err := p.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, state.ID, snapshots[0].TargetID)
}

func TestManagerStatusRecoversCorruptState(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	state := startWorkflow(t, manager, p)

	_, err := manager.CompletePhase(ctx, state.ID, models.PhaseInitialization)
	require.NoError(t, err)

	_, err = manager.backups.Snapshot(ctx, models.SnapshotTargetWorkflow, state.ID, "before corruption")
	require.NoError(t, err)

	// Corrupt the live record behind the manager's back.
	corrupt, err := p.WorkflowByID(ctx, state.ID)
	require.NoError(t, err)
	corrupt.Status = "exploded"
	require.NoError(t, p.SaveWorkflow(ctx, corrupt))

	recovered, err := manager.Status(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusInProgress, recovered.Status)
	assert.Equal(t, []models.WorkflowPhase{models.PhaseInitialization}, recovered.CompletedPhases)
}

func TestManagerStatusCorruptStateNoBackup(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	state := startWorkflow(t, manager, p)

	corrupt, err := p.WorkflowByID(ctx, state.ID)
	require.NoError(t, err)
	corrupt.CompletedPhases = []models.WorkflowPhase{models.PhaseReview}
	require.NoError(t, p.SaveWorkflow(ctx, corrupt))

	_, err = manager.Status(ctx, state.ID)
	assert.True(t, backup.IsStateCorruption(err))
}

func TestManagerFailCompletedWorkflow(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	state := startWorkflow(t, manager, p)

	for _, phase := range models.WorkflowPhases() {
		_, err := manager.CompletePhase(ctx, state.ID, phase)
		require.NoError(t, err)
	}

	_, err := manager.Fail(ctx, state.ID, "too late")
	assert.True(t, models.IsValidationError(err))
}
