package lifecycle

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/persistence/file"
	"github.com/specforge/specforge/pkg/taskgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewManager(p, nil, logger), p
}

func completedTasks(n, completed int) []*models.Task {
	tasks := make([]*models.Task, 0, n)

	for i := 0; i < n; i++ {
		tasks = append(tasks, &models.Task{
			ID:          string(rune('a' + i)),
			Description: "task",
			Completed:   i < completed,
		})
	}

	return tasks
}

func TestManagerCreate(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	spec, err := manager.Create(ctx, "auth-service", "OAuth2 login flow")
	require.NoError(t, err)
	assert.Equal(t, models.StageBacklog, spec.Stage)
	assert.Empty(t, spec.History)

	_, err = manager.Create(ctx, "auth-service", "duplicate")
	assert.True(t, IsSpecExists(err))

	_, err = manager.Create(ctx, "  ", "blank name")
	assert.True(t, models.IsValidationError(err))
}

func TestManagerTransitionBacklogToScope(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Create(ctx, "auth-service", "OAuth2 login flow")
	require.NoError(t, err)

	spec, err := manager.Transition(ctx, "auth-service", models.StageScope, "sprint 12")
	require.NoError(t, err)
	assert.Equal(t, models.StageScope, spec.Stage)

	require.Len(t, spec.History, 1)
	assert.Equal(t, models.StageBacklog, spec.History[0].From)
	assert.Equal(t, models.StageScope, spec.History[0].To)
	assert.Equal(t, "sprint 12", spec.History[0].Reason)
	assert.False(t, spec.History[0].Timestamp.IsZero())
}

func TestManagerTransitionRequiresDescription(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Create(ctx, "bare-idea", "")
	require.NoError(t, err)

	_, err = manager.Transition(ctx, "bare-idea", models.StageScope, "")
	require.True(t, models.IsValidationError(err))
	assert.Contains(t, err.Error(), "description")
}

func TestManagerScopeOccupancyWarning(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	var buf bytes.Buffer

	manager := NewManager(p, nil, slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	_, err := manager.Create(ctx, "first", "desc")
	require.NoError(t, err)
	_, err = manager.Create(ctx, "second", "desc")
	require.NoError(t, err)

	_, err = manager.Transition(ctx, "first", models.StageScope, "")
	require.NoError(t, err)

	// Second spec entering scope is allowed, but warned about.
	spec, err := manager.Transition(ctx, "second", models.StageScope, "")
	require.NoError(t, err)
	assert.Equal(t, models.StageScope, spec.Stage)
	assert.Contains(t, buf.String(), "already in scope")
}

func TestManagerCompletionGate(t *testing.T) {
	tests := []struct {
		name      string
		tasks     []*models.Task
		wantErr   string
		wantStage models.SpecStage
	}{
		{
			name:    "no task document",
			tasks:   nil,
			wantErr: "task_graph=missing",
		},
		{
			name:    "ratio below threshold",
			tasks:   completedTasks(4, 1),
			wantErr: "completion_ratio=0.25 < 0.90",
		},
		{
			name:    "just under threshold",
			tasks:   completedTasks(10, 8),
			wantErr: "completion_ratio=0.80 < 0.90",
		},
		{
			name:      "exactly at threshold",
			tasks:     completedTasks(10, 9),
			wantStage: models.StageCompleted,
		},
		{
			name:      "all complete",
			tasks:     completedTasks(3, 3),
			wantStage: models.StageCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, p := newTestManager(t)
			ctx := context.Background()

			_, err := manager.Create(ctx, "gated", "desc")
			require.NoError(t, err)
			_, err = manager.Transition(ctx, "gated", models.StageScope, "")
			require.NoError(t, err)

			spec, err := p.SpecByName(ctx, "gated")
			require.NoError(t, err)

			spec.Tasks = tt.tasks
			require.NoError(t, p.SaveSpec(ctx, spec))

			promoted, err := manager.Transition(ctx, "gated", models.StageCompleted, "done")
			if tt.wantErr != "" {
				require.True(t, models.IsValidationError(err))
				assert.Contains(t, err.Error(), tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStage, promoted.Stage)
		})
	}
}

func TestManagerCompletionGateRejectsCycle(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Create(ctx, "cyclic", "desc")
	require.NoError(t, err)
	_, err = manager.Transition(ctx, "cyclic", models.StageScope, "")
	require.NoError(t, err)

	spec, err := p.SpecByName(ctx, "cyclic")
	require.NoError(t, err)

	spec.Tasks = []*models.Task{
		{ID: "1", Description: "a", Dependencies: []string{"2"}, Completed: true},
		{ID: "2", Description: "b", Dependencies: []string{"1"}, Completed: true},
	}
	require.NoError(t, p.SaveSpec(ctx, spec))

	_, err = manager.Transition(ctx, "cyclic", models.StageCompleted, "")
	assert.True(t, taskgraph.IsCycleError(err))
}

func TestManagerSandboxRoundTrip(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Create(ctx, "experiment", "try things")
	require.NoError(t, err)

	spec, err := manager.Transition(ctx, "experiment", models.StageSandbox, "spike")
	require.NoError(t, err)
	assert.Equal(t, models.StageSandbox, spec.Stage)

	spec, err = manager.Transition(ctx, "experiment", models.StageScope, "promoting spike")
	require.NoError(t, err)
	assert.Equal(t, models.StageScope, spec.Stage)
	assert.Len(t, spec.History, 2)
}

func TestManagerDisallowedTransitions(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Create(ctx, "stuck", "desc")
	require.NoError(t, err)

	// backlog cannot jump straight to completed.
	_, err = manager.Transition(ctx, "stuck", models.StageCompleted, "")
	assert.True(t, IsTransitionError(err))

	// Self-transitions are rejected.
	_, err = manager.Transition(ctx, "stuck", models.StageBacklog, "")
	assert.True(t, IsTransitionError(err))

	// Unknown stage.
	_, err = manager.Transition(ctx, "stuck", models.SpecStage("limbo"), "")
	assert.True(t, models.IsValidationError(err))
}

func TestManagerArchive(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Create(ctx, "obsolete", "desc")
	require.NoError(t, err)

	_, err = manager.Archive(ctx, "obsolete", "  ")
	require.True(t, models.IsValidationError(err))

	spec, err := manager.Archive(ctx, "obsolete", "superseded by v2")
	require.NoError(t, err)
	assert.Equal(t, models.StageArchived, spec.Stage)
	assert.Equal(t, "superseded by v2", spec.History[0].Reason)

	// Archived specs keep their documents and history.
	stored, err := manager.Get(ctx, "obsolete")
	require.NoError(t, err)
	assert.Len(t, stored.History, 1)
}

func TestManagerArchiveFromAnyStage(t *testing.T) {
	stages := []models.SpecStage{models.StageScope, models.StageSandbox}

	for _, stage := range stages {
		t.Run(string(stage), func(t *testing.T) {
			manager, _ := newTestManager(t)
			ctx := context.Background()

			_, err := manager.Create(ctx, "spec", "desc")
			require.NoError(t, err)
			_, err = manager.Transition(ctx, "spec", stage, "")
			require.NoError(t, err)

			archived, err := manager.Archive(ctx, "spec", "cleanup")
			require.NoError(t, err)
			assert.Equal(t, models.StageArchived, archived.Stage)
		})
	}
}

func TestManagerPromote(t *testing.T) {
	manager, p := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Create(ctx, "straight-line", "desc")
	require.NoError(t, err)

	spec, err := manager.Promote(ctx, "straight-line", "")
	require.NoError(t, err)
	assert.Equal(t, models.StageScope, spec.Stage)

	spec, err = p.SpecByName(ctx, "straight-line")
	require.NoError(t, err)
	spec.Tasks = completedTasks(2, 2)
	require.NoError(t, p.SaveSpec(ctx, spec))

	spec, err = manager.Promote(ctx, "straight-line", "shipped")
	require.NoError(t, err)
	assert.Equal(t, models.StageCompleted, spec.Stage)

	// Completed is the end of the promotion line.
	_, err = manager.Promote(ctx, "straight-line", "")
	assert.True(t, IsTransitionError(err))
}

func TestManagerPromoteUnknownSpec(t *testing.T) {
	manager, _ := newTestManager(t)

	_, err := manager.Promote(context.Background(), "ghost", "")
	assert.True(t, persistence.IsSpecNotFound(err))
}

func TestManagerHistoryIsAppendOnly(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.Create(ctx, "journal", "desc")
	require.NoError(t, err)

	moves := []struct {
		to     models.SpecStage
		reason string
	}{
		{models.StageScope, "start"},
		{models.StageSandbox, "experiment"},
		{models.StageScope, "back to work"},
		{models.StageArchived, "dropped"},
	}

	for _, move := range moves {
		_, err := manager.Transition(ctx, "journal", move.to, move.reason)
		require.NoError(t, err)
	}

	spec, err := manager.Get(ctx, "journal")
	require.NoError(t, err)
	require.Len(t, spec.History, len(moves))

	var reasons []string
	for _, entry := range spec.History {
		reasons = append(reasons, entry.Reason)
	}
	assert.Equal(t, []string{"start", "experiment", "back to work", "dropped"},
		reasons, strings.Join(reasons, ","))
}
