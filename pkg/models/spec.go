package models

import "time"

// SpecStage represents the lifecycle position of a specification.
type SpecStage string

const (
	StageBacklog   SpecStage = "backlog"   // Captured idea, not yet active
	StageScope     SpecStage = "scope"     // Actively worked on
	StageCompleted SpecStage = "completed" // Done, promotion gate passed
	StageSandbox   SpecStage = "sandbox"   // Experimentation target
	StageArchived  SpecStage = "archived"  // Terminal but retained
)

// KnownStages lists every valid specification stage.
func KnownStages() []SpecStage {
	return []SpecStage{StageBacklog, StageScope, StageCompleted, StageSandbox, StageArchived}
}

// IsValidStage reports whether s names a known stage.
func IsValidStage(s SpecStage) bool {
	for _, stage := range KnownStages() {
		if s == stage {
			return true
		}
	}

	return false
}

// StageTransition is one append-only history entry recorded on every
// lifecycle move. Entries are never rewritten.
type StageTransition struct {
	From      SpecStage `json:"from"`
	To        SpecStage `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Spec is a named unit of work moving through lifecycle stages. It exclusively
// owns its task document (Tasks, nil before task generation) and its stage
// history. Specs are never deleted; archiving relocates bookkeeping only.
type Spec struct {
	Name        string            `json:"name"        validate:"required,min=1"`
	Description string            `json:"description"`
	Stage       SpecStage         `json:"stage"       validate:"required"`
	Tasks       []*Task           `json:"tasks,omitempty"`
	History     []StageTransition `json:"history,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// HasTasks reports whether a task document has been generated for the spec.
func (s *Spec) HasTasks() bool {
	return len(s.Tasks) > 0
}

// TaskByID returns the task with the given id, or nil.
func (s *Spec) TaskByID(id string) *Task {
	for _, task := range s.Tasks {
		if task.ID == id {
			return task
		}
	}

	return nil
}

// CompletionCounts returns how many tasks are complete and the total count.
func (s *Spec) CompletionCounts() (completed, total int) {
	for _, task := range s.Tasks {
		if task.Completed {
			completed++
		}
	}

	return completed, len(s.Tasks)
}

// CompletionRatio returns completed/total as a float, 0 for an empty document.
// The exact rational counts from CompletionCounts are what promotion gates
// should report; the float form is for display.
func (s *Spec) CompletionRatio() float64 {
	completed, total := s.CompletionCounts()
	if total == 0 {
		return 0
	}

	return float64(completed) / float64(total)
}
