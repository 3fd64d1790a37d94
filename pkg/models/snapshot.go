package models

import (
	"encoding/json"
	"time"
)

// SnapshotTarget identifies what kind of state a snapshot protects.
type SnapshotTarget string

const (
	SnapshotTargetSpec     SnapshotTarget = "spec"
	SnapshotTargetWorkflow SnapshotTarget = "workflow"
)

// BackupSnapshot is an immutable, timestamped copy of engine state used for
// crash/error recovery. Snapshots are never mutated after creation; retention
// pruning may remove old ones but never the newest configured minimum.
type BackupSnapshot struct {
	ID        string          `json:"id"        validate:"required"`
	Target    SnapshotTarget  `json:"target"    validate:"required"`
	TargetID  string          `json:"target_id" validate:"required"`
	Reason    string          `json:"reason"`
	State     json.RawMessage `json:"state"     validate:"required"`
	CreatedAt time.Time       `json:"created_at"`
}
