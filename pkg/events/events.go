// Package events defines event types and structures for engine lifecycle
// notifications. The engine only publishes; consumption is for external
// dashboards and orchestrators.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/specforge/specforge/pkg/models"
)

type EventType string

// Topic is the event stream every engine mutation is published to.
const Topic = "specforge.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Task lifecycle events.
	TaskCompletedEvent EventType = "task.completed"

	// Spec lifecycle events.
	SpecCreatedEvent  EventType = "spec.created"
	SpecPromotedEvent EventType = "spec.promoted"

	// Workflow lifecycle events.
	WorkflowStartedEvent        EventType = "workflow.started"
	WorkflowPhaseCompletedEvent EventType = "workflow.phase.completed"
	WorkflowPhaseFailedEvent    EventType = "workflow.phase.failed"
	WorkflowPausedEvent         EventType = "workflow.paused"
	WorkflowResumedEvent        EventType = "workflow.resumed"
	WorkflowResetEvent          EventType = "workflow.reset"

	// Backup events.
	BackupCreatedEvent  EventType = "backup.created"
	BackupRestoredEvent EventType = "backup.restored"
	BackupPrunedEvent   EventType = "backup.pruned"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SpecName  string    `json:"spec_name,omitempty"`
}

func newBaseEvent(eventType EventType, specName string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SpecName:  specName,
	}
}

type TaskCompleted struct {
	BaseEvent

	TaskID          string `json:"task_id"`
	CompletedCount  int    `json:"completed_count"`
	TotalCount      int    `json:"total_count"`
	AlreadyComplete bool   `json:"already_complete"`
}

func (e TaskCompleted) GetType() EventType {
	return TaskCompletedEvent
}

// NewTaskCompleted records a durable task completion.
func NewTaskCompleted(specName, taskID string, completed, total int, already bool) TaskCompleted {
	return TaskCompleted{
		BaseEvent:       newBaseEvent(TaskCompletedEvent, specName),
		TaskID:          taskID,
		CompletedCount:  completed,
		TotalCount:      total,
		AlreadyComplete: already,
	}
}

type SpecCreated struct {
	BaseEvent

	Stage models.SpecStage `json:"stage"`
}

func (e SpecCreated) GetType() EventType {
	return SpecCreatedEvent
}

func NewSpecCreated(specName string, stage models.SpecStage) SpecCreated {
	return SpecCreated{
		BaseEvent: newBaseEvent(SpecCreatedEvent, specName),
		Stage:     stage,
	}
}

type SpecPromoted struct {
	BaseEvent

	From   models.SpecStage `json:"from"`
	To     models.SpecStage `json:"to"`
	Reason string           `json:"reason"`
}

func (e SpecPromoted) GetType() EventType {
	return SpecPromotedEvent
}

func NewSpecPromoted(specName string, from, to models.SpecStage, reason string) SpecPromoted {
	return SpecPromoted{
		BaseEvent: newBaseEvent(SpecPromotedEvent, specName),
		From:      from,
		To:        to,
		Reason:    reason,
	}
}

type WorkflowStarted struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
}

func (e WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

func NewWorkflowStarted(specName, workflowID string) WorkflowStarted {
	return WorkflowStarted{
		BaseEvent:  newBaseEvent(WorkflowStartedEvent, specName),
		WorkflowID: workflowID,
	}
}

type WorkflowPhaseCompleted struct {
	BaseEvent

	WorkflowID string               `json:"workflow_id"`
	Phase      models.WorkflowPhase `json:"phase"`
	Finished   bool                 `json:"finished"` // True when this was the last phase
}

func (e WorkflowPhaseCompleted) GetType() EventType {
	return WorkflowPhaseCompletedEvent
}

func NewWorkflowPhaseCompleted(specName, workflowID string, phase models.WorkflowPhase, finished bool) WorkflowPhaseCompleted {
	return WorkflowPhaseCompleted{
		BaseEvent:  newBaseEvent(WorkflowPhaseCompletedEvent, specName),
		WorkflowID: workflowID,
		Phase:      phase,
		Finished:   finished,
	}
}

type WorkflowPhaseFailed struct {
	BaseEvent

	WorkflowID string               `json:"workflow_id"`
	Phase      models.WorkflowPhase `json:"phase"`
	Reason     string               `json:"reason"`
}

func (e WorkflowPhaseFailed) GetType() EventType {
	return WorkflowPhaseFailedEvent
}

func NewWorkflowPhaseFailed(specName, workflowID string, phase models.WorkflowPhase, reason string) WorkflowPhaseFailed {
	return WorkflowPhaseFailed{
		BaseEvent:  newBaseEvent(WorkflowPhaseFailedEvent, specName),
		WorkflowID: workflowID,
		Phase:      phase,
		Reason:     reason,
	}
}

type WorkflowPaused struct {
	BaseEvent

	WorkflowID string               `json:"workflow_id"`
	Phase      models.WorkflowPhase `json:"phase"`
}

func (e WorkflowPaused) GetType() EventType {
	return WorkflowPausedEvent
}

func NewWorkflowPaused(specName, workflowID string, phase models.WorkflowPhase) WorkflowPaused {
	return WorkflowPaused{
		BaseEvent:  newBaseEvent(WorkflowPausedEvent, specName),
		WorkflowID: workflowID,
		Phase:      phase,
	}
}

type WorkflowResumed struct {
	BaseEvent

	WorkflowID string               `json:"workflow_id"`
	Phase      models.WorkflowPhase `json:"phase"`
}

func (e WorkflowResumed) GetType() EventType {
	return WorkflowResumedEvent
}

func NewWorkflowResumed(specName, workflowID string, phase models.WorkflowPhase) WorkflowResumed {
	return WorkflowResumed{
		BaseEvent:  newBaseEvent(WorkflowResumedEvent, specName),
		WorkflowID: workflowID,
		Phase:      phase,
	}
}

type WorkflowReset struct {
	BaseEvent

	ArchivedWorkflowID string `json:"archived_workflow_id"`
	NewWorkflowID      string `json:"new_workflow_id"`
	SnapshotID         string `json:"snapshot_id"`
}

func (e WorkflowReset) GetType() EventType {
	return WorkflowResetEvent
}

func NewWorkflowReset(specName, archivedID, newID, snapshotID string) WorkflowReset {
	return WorkflowReset{
		BaseEvent:          newBaseEvent(WorkflowResetEvent, specName),
		ArchivedWorkflowID: archivedID,
		NewWorkflowID:      newID,
		SnapshotID:         snapshotID,
	}
}

type BackupCreated struct {
	BaseEvent

	SnapshotID string                `json:"snapshot_id"`
	Target     models.SnapshotTarget `json:"target"`
	TargetID   string                `json:"target_id"`
	Reason     string                `json:"reason"`
}

func (e BackupCreated) GetType() EventType {
	return BackupCreatedEvent
}

func NewBackupCreated(snapshotID string, target models.SnapshotTarget, targetID, reason string) BackupCreated {
	return BackupCreated{
		BaseEvent:  newBaseEvent(BackupCreatedEvent, ""),
		SnapshotID: snapshotID,
		Target:     target,
		TargetID:   targetID,
		Reason:     reason,
	}
}

type BackupRestored struct {
	BaseEvent

	SnapshotID           string `json:"snapshot_id"`
	PreRestoreSnapshotID string `json:"pre_restore_snapshot_id"`
}

func (e BackupRestored) GetType() EventType {
	return BackupRestoredEvent
}

func NewBackupRestored(snapshotID, preRestoreID string) BackupRestored {
	return BackupRestored{
		BaseEvent:            newBaseEvent(BackupRestoredEvent, ""),
		SnapshotID:           snapshotID,
		PreRestoreSnapshotID: preRestoreID,
	}
}

type BackupPruned struct {
	BaseEvent

	SnapshotIDs []string `json:"snapshot_ids"`
}

func (e BackupPruned) GetType() EventType {
	return BackupPrunedEvent
}

func NewBackupPruned(snapshotIDs []string) BackupPruned {
	return BackupPruned{
		BaseEvent:   newBaseEvent(BackupPrunedEvent, ""),
		SnapshotIDs: snapshotIDs,
	}
}
