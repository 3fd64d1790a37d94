// Package persistence provides the data storage abstraction layer for specs,
// workflow state and backup snapshots.
//
// All durable state flows through this single port: no component reads or
// writes the underlying storage directly, so locking and atomic-write
// discipline live in one place.
package persistence

import (
	"context"

	"github.com/specforge/specforge/pkg/models"
)

// Persistence is the storage port every provider implements.
type Persistence interface {
	// Specs and their task documents.
	Specs(ctx context.Context) ([]*models.Spec, error)
	SpecByName(ctx context.Context, name string) (*models.Spec, error)
	SaveSpec(ctx context.Context, spec *models.Spec) error

	// Active workflow state, one record per workflow id.
	Workflows(ctx context.Context) ([]*models.WorkflowState, error)
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowState, error)
	SaveWorkflow(ctx context.Context, state *models.WorkflowState) error
	// ArchiveWorkflow moves the record into the archive store. Nothing is
	// ever deleted; a reset workflow remains inspectable under its old id.
	ArchiveWorkflow(ctx context.Context, state *models.WorkflowState) error

	// Backup snapshots, append-only.
	Snapshots(ctx context.Context) ([]*models.BackupSnapshot, error)
	SnapshotByID(ctx context.Context, id string) (*models.BackupSnapshot, error)
	SaveSnapshot(ctx context.Context, snapshot *models.BackupSnapshot) error
	DeleteSnapshot(ctx context.Context, id string) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
