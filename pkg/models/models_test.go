package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSpec_CompletionCounts(t *testing.T) {
	spec := &Spec{
		Name:  "checkout-flow",
		Stage: StageScope,
		Tasks: []*Task{
			{ID: "1", Description: "Scaffold", Completed: true},
			{ID: "2", Description: "Model", Dependencies: []string{"1"}},
			{ID: "2.1", Description: "Persistence", Dependencies: []string{"2"}},
			{ID: "3", Description: "Wire API", Dependencies: []string{"2.1"}},
		},
	}

	completed, total := spec.CompletionCounts()
	assert.Equal(t, 1, completed)
	assert.Equal(t, 4, total)
	assert.InDelta(t, 0.25, spec.CompletionRatio(), 0.0001)
}

func TestSpec_CompletionRatio_EmptyDocument(t *testing.T) {
	spec := &Spec{Name: "empty", Stage: StageBacklog}

	assert.False(t, spec.HasTasks())
	assert.Zero(t, spec.CompletionRatio())
}

func TestWorkflowState_CurrentPhase(t *testing.T) {
	tests := []struct {
		name      string
		completed []WorkflowPhase
		want      WorkflowPhase
	}{
		{
			name:      "fresh workflow starts at initialization",
			completed: nil,
			want:      PhaseInitialization,
		},
		{
			name:      "after two phases the third is current",
			completed: []WorkflowPhase{PhaseInitialization, PhaseSpecCreation},
			want:      PhaseRequirements,
		},
		{
			name:      "fully completed workflow reports the last phase",
			completed: WorkflowPhases(),
			want:      PhaseReview,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &WorkflowState{ID: "wf-1", SpecName: "s", CompletedPhases: tt.completed}
			assert.Equal(t, tt.want, state.CurrentPhase())
		})
	}
}

func TestWorkflowState_RemainingPhases(t *testing.T) {
	state := &WorkflowState{
		ID:              "wf-1",
		SpecName:        "s",
		CompletedPhases: []WorkflowPhase{PhaseInitialization},
	}

	remaining := state.RemainingPhases()
	assert.Len(t, remaining, len(WorkflowPhases())-1)
	assert.Equal(t, PhaseSpecCreation, remaining[0])
	assert.Equal(t, PhaseReview, remaining[len(remaining)-1])

	done := &WorkflowState{ID: "wf-2", SpecName: "s", CompletedPhases: WorkflowPhases()}
	assert.Empty(t, done.RemainingPhases())
}

func TestWorkflowState_Duration(t *testing.T) {
	started := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Minute)

	running := &WorkflowState{StartedAt: started}
	assert.Equal(t, 2*time.Hour, running.Duration(started.Add(2*time.Hour)))

	completed := &WorkflowState{StartedAt: started, CompletedAt: &finished}
	assert.Equal(t, 90*time.Minute, completed.Duration(started.Add(5*time.Hour)))
}

func TestIsValidStage(t *testing.T) {
	for _, stage := range KnownStages() {
		assert.True(t, IsValidStage(stage))
	}

	assert.False(t, IsValidStage(SpecStage("limbo")))
}

func TestTask_DependsOn(t *testing.T) {
	task := &Task{ID: "3", Description: "d", Dependencies: []string{"1", "2.1"}}

	assert.True(t, task.DependsOn("2.1"))
	assert.False(t, task.DependsOn("2"))
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("Promote", "completion_ratio", "0.25 < 0.90")

	assert.EqualError(t, err, "Promote: completion_ratio=0.25 < 0.90")
	assert.True(t, IsValidationError(err))
	assert.False(t, IsValidationError(assert.AnError))
}
