package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecRepository_SaveAndLoad(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	ctx := context.Background()

	spec := &models.Spec{
		Name:        "checkout-flow",
		Description: "Checkout redesign",
		Stage:       models.StageBacklog,
		Tasks: []*models.Task{
			{ID: "1", Description: "Scaffold"},
			{ID: "2", Description: "Model", Dependencies: []string{"1"}},
		},
	}

	require.NoError(t, fp.SaveSpec(ctx, spec))
	assert.False(t, spec.CreatedAt.IsZero())

	loaded, err := fp.SpecByName(ctx, "checkout-flow")
	require.NoError(t, err)
	assert.Equal(t, spec.Name, loaded.Name)
	assert.Equal(t, spec.Stage, loaded.Stage)
	require.Len(t, loaded.Tasks, 2)
	assert.Equal(t, []string{"1"}, loaded.Tasks[1].Dependencies)
}

func TestSpecRepository_NotFound(t *testing.T) {
	fp := NewPersistence(t.TempDir())

	_, err := fp.SpecByName(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsSpecNotFound(err))
}

func TestSpecRepository_CorruptRecord(t *testing.T) {
	root := t.TempDir()
	fp := NewPersistence(root)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "specs"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "specs", "bad.json"), []byte("{torn"), 0600))

	_, err := fp.SpecByName(context.Background(), "bad")
	require.Error(t, err)
	assert.True(t, persistence.IsCorruptState(err))
}

func TestSpecRepository_ConcurrentSaves(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup

	names := []string{"alpha", "beta", "gamma", "delta"}
	for _, name := range names {
		wg.Add(1)

		go func(name string) {
			defer wg.Done()

			err := fp.SaveSpec(ctx, &models.Spec{Name: name, Stage: models.StageBacklog})
			assert.NoError(t, err)
		}(name)
	}

	wg.Wait()

	specs, err := fp.Specs(ctx)
	require.NoError(t, err)
	assert.Len(t, specs, len(names))
}

func TestWorkflowRepository_SaveLoadArchive(t *testing.T) {
	root := t.TempDir()
	fp := NewPersistence(root)
	ctx := context.Background()

	state := &models.WorkflowState{
		ID:       "wf-1",
		SpecName: "checkout-flow",
		Status:   models.WorkflowStatusInProgress,
	}

	require.NoError(t, fp.SaveWorkflow(ctx, state))

	loaded, err := fp.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusInProgress, loaded.Status)

	require.NoError(t, fp.ArchiveWorkflow(ctx, loaded))

	_, err = fp.WorkflowByID(ctx, "wf-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	// The archived copy is retained, not deleted.
	archived, err := os.ReadFile(filepath.Join(root, "workflows", "archive", "wf-1.json"))
	require.NoError(t, err)

	var kept models.WorkflowState
	require.NoError(t, json.Unmarshal(archived, &kept))
	assert.Equal(t, "wf-1", kept.ID)
}

func TestSnapshotRepository_ImmutableRecords(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	ctx := context.Background()

	snapshot := &models.BackupSnapshot{
		ID:       "snap-1",
		Target:   models.SnapshotTargetWorkflow,
		TargetID: "wf-1",
		Reason:   "pre-reset",
		State:    json.RawMessage(`{"id":"wf-1"}`),
	}

	require.NoError(t, fp.SaveSnapshot(ctx, snapshot))

	// A second write under the same id must be refused.
	err := fp.SaveSnapshot(ctx, snapshot)
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrSnapshotExists)
}

func TestSnapshotRepository_ListNewestFirst(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	ctx := context.Background()

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"snap-a", "snap-b", "snap-c"} {
		require.NoError(t, fp.SaveSnapshot(ctx, &models.BackupSnapshot{
			ID:        id,
			Target:    models.SnapshotTargetSpec,
			TargetID:  "s",
			State:     json.RawMessage(`{}`),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	snapshots, err := fp.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	assert.Equal(t, "snap-c", snapshots[0].ID)
	assert.Equal(t, "snap-a", snapshots[2].ID)
}

func TestSnapshotRepository_DeleteMissingIsNoop(t *testing.T) {
	fp := NewPersistence(t.TempDir())

	assert.NoError(t, fp.DeleteSnapshot(context.Background(), "never-existed"))
}

func TestPersistence_HealthCheck(t *testing.T) {
	fp := NewPersistence(t.TempDir())
	assert.NoError(t, fp.HealthCheck(context.Background()))

	missing := NewPersistence(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, missing.HealthCheck(context.Background()))
}
