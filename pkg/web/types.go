// Package web provides HTTP request and response types for the engine API.
package web

import (
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/statestore"
)

// PromoteSpecRequest represents the request body for a lifecycle move. Stage
// is optional: when empty the spec advances one stage along the main line.
type PromoteSpecRequest struct {
	Stage  models.SpecStage `json:"stage,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// SetTasksRequest represents the request body replacing a spec's task
// document with a markdown checklist.
type SetTasksRequest struct {
	Document string `json:"document" validate:"required"`
}

// CompleteTaskResponse reports a completion and the resulting progress.
type CompleteTaskResponse struct {
	SpecName        string  `json:"spec_name"`
	TaskID          string  `json:"task_id"`
	AlreadyComplete bool    `json:"already_complete"`
	Completed       int     `json:"completed"`
	Total           int     `json:"total"`
	Ratio           float64 `json:"ratio"`
}

func newCompleteTaskResponse(specName, taskID string, result *statestore.MarkResult) CompleteTaskResponse {
	ratio := statestore.Ratio{Completed: result.Completed, Total: result.Total}

	return CompleteTaskResponse{
		SpecName:        specName,
		TaskID:          taskID,
		AlreadyComplete: result.AlreadyComplete,
		Completed:       result.Completed,
		Total:           result.Total,
		Ratio:           ratio.Value(),
	}
}

// FailWorkflowRequest represents the request body reporting a failed phase.
type FailWorkflowRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// RestoreResponse reports a completed restore and the rollback point taken
// just before it.
type RestoreResponse struct {
	RestoredSnapshotID   string `json:"restored_snapshot_id"`
	PreRestoreSnapshotID string `json:"pre_restore_snapshot_id"`
}

// PruneResponse lists the snapshots removed by a retention pass.
type PruneResponse struct {
	Pruned []string `json:"pruned"`
}
