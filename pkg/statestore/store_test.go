package statestore

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...Option) (*Store, persistence.Persistence) {
	t.Helper()

	fp := file.NewPersistence(t.TempDir())

	return New(fp, slog.Default(), opts...), fp
}

func seedSpec(t *testing.T, p persistence.Persistence) {
	t.Helper()

	require.NoError(t, p.SaveSpec(context.Background(), &models.Spec{
		Name:  "checkout-flow",
		Stage: models.StageScope,
		Tasks: []*models.Task{
			{ID: "1", Description: "Scaffold", Completed: true},
			{ID: "2", Description: "Model", Dependencies: []string{"1"}},
			{ID: "2.1", Description: "Persistence", Dependencies: []string{"2"}},
			{ID: "3", Description: "API", Dependencies: []string{"2.1"}},
		},
	}))
}

func TestStore_MarkComplete(t *testing.T) {
	store, fp := newStore(t)
	seedSpec(t, fp)
	ctx := context.Background()

	result, err := store.MarkComplete(ctx, "checkout-flow", "2")
	require.NoError(t, err)
	assert.False(t, result.AlreadyComplete)
	assert.Equal(t, 2, result.Completed)
	assert.Equal(t, 4, result.Total)

	done, err := store.IsComplete(ctx, "checkout-flow", "2")
	require.NoError(t, err)
	assert.True(t, done)
}

func TestStore_MarkComplete_Idempotent(t *testing.T) {
	store, fp := newStore(t)
	seedSpec(t, fp)
	ctx := context.Background()

	first, err := store.MarkComplete(ctx, "checkout-flow", "2")
	require.NoError(t, err)

	second, err := store.MarkComplete(ctx, "checkout-flow", "2")
	require.NoError(t, err)
	assert.True(t, second.AlreadyComplete)
	assert.Equal(t, first.Completed, second.Completed)

	ratio, err := store.CompletionRatio(ctx, "checkout-flow")
	require.NoError(t, err)
	assert.Equal(t, 2, ratio.Completed)
}

func TestStore_MarkComplete_UnknownTask(t *testing.T) {
	store, fp := newStore(t)
	seedSpec(t, fp)

	_, err := store.MarkComplete(context.Background(), "checkout-flow", "99")
	require.Error(t, err)
	assert.True(t, persistence.IsTaskNotFound(err))
}

func TestStore_MarkComplete_UnknownSpec(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.MarkComplete(context.Background(), "missing", "1")
	require.Error(t, err)
	assert.True(t, persistence.IsSpecNotFound(err))
}

func TestStore_MarkComplete_PermissiveByDefault(t *testing.T) {
	store, fp := newStore(t)
	seedSpec(t, fp)

	// "3" depends on "2.1" which is incomplete; the default store trusts
	// the caller and records it anyway. Ready() is the ordering gate.
	result, err := store.MarkComplete(context.Background(), "checkout-flow", "3")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Completed)
}

func TestStore_MarkComplete_StrictMode(t *testing.T) {
	store, fp := newStore(t, WithStrictCompletion())
	seedSpec(t, fp)
	ctx := context.Background()

	_, err := store.MarkComplete(ctx, "checkout-flow", "3")
	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))

	// Satisfied dependencies pass in strict mode too.
	_, err = store.MarkComplete(ctx, "checkout-flow", "2")
	require.NoError(t, err)
}

func TestStore_ConcurrentMarks_NoLostUpdate(t *testing.T) {
	store, fp := newStore(t)
	ctx := context.Background()

	require.NoError(t, fp.SaveSpec(ctx, &models.Spec{
		Name:  "fanout",
		Stage: models.StageScope,
		Tasks: []*models.Task{
			{ID: "1", Description: "a"},
			{ID: "2", Description: "b"},
		},
	}))

	var wg sync.WaitGroup

	for _, id := range []string{"1", "2"} {
		wg.Add(1)

		go func(id string) {
			defer wg.Done()

			_, err := store.MarkComplete(ctx, "fanout", id)
			assert.NoError(t, err)
		}(id)
	}

	wg.Wait()

	ratio, err := store.CompletionRatio(ctx, "fanout")
	require.NoError(t, err)
	assert.Equal(t, 2, ratio.Completed)
	assert.Equal(t, 2, ratio.Total)
}

func TestStore_MarkComplete_WaitsForRestore(t *testing.T) {
	gate := &persistence.RestoreGate{}
	store, fp := newStore(t, WithRestoreGate(gate))
	seedSpec(t, fp)
	ctx := context.Background()

	release, err := gate.Restore()
	require.NoError(t, err)

	done := make(chan error, 1)

	go func() {
		_, err := store.MarkComplete(ctx, "checkout-flow", "2")
		done <- err
	}()

	// While the restore holds the gate the completion write must not land.
	select {
	case <-done:
		t.Fatal("completion write landed during restore")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	require.NoError(t, <-done)

	completed, err := store.IsComplete(ctx, "checkout-flow", "2")
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestRatio_AtLeastIsExact(t *testing.T) {
	tests := []struct {
		name      string
		completed int
		total     int
		want      bool
	}{
		{name: "9 of 10 meets the gate", completed: 9, total: 10, want: true},
		{name: "89 of 100 misses the gate", completed: 89, total: 100, want: false},
		{name: "90 of 100 meets the gate", completed: 90, total: 100, want: true},
		{name: "all complete", completed: 4, total: 4, want: true},
		{name: "empty document never meets it", completed: 0, total: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio := Ratio{Completed: tt.completed, Total: tt.total}
			assert.Equal(t, tt.want, ratio.AtLeast(9, 10))
		})
	}
}

func TestStore_State(t *testing.T) {
	store, fp := newStore(t)
	seedSpec(t, fp)

	state, err := store.State(context.Background(), "checkout-flow")
	require.NoError(t, err)
	assert.True(t, state.Completed("1"))
	assert.False(t, state.Completed("2"))
}
