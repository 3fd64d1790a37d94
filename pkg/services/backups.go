package services

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/specforge/specforge/pkg/backup"
	"github.com/specforge/specforge/pkg/models"
)

// CreateBackupRequest snapshots one target's live state.
type CreateBackupRequest struct {
	Target   models.SnapshotTarget `json:"target"    validate:"required,oneof=spec workflow"`
	TargetID string                `json:"target_id" validate:"required,min=1"`
	Reason   string                `json:"reason"    validate:"max=500"`
}

// Backups exposes snapshot creation, restore and pruning.
type Backups struct {
	manager  *backup.Manager
	validate *validator.Validate
}

// NewBackups creates a backup service.
func NewBackups(manager *backup.Manager, validate *validator.Validate) *Backups {
	return &Backups{manager: manager, validate: validate}
}

// Create snapshots the target's current state.
func (b *Backups) Create(ctx context.Context, req CreateBackupRequest) (*models.BackupSnapshot, error) {
	if err := b.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	return b.manager.Snapshot(ctx, req.Target, req.TargetID, req.Reason)
}

// List returns every snapshot, newest first.
func (b *Backups) List(ctx context.Context) ([]*models.BackupSnapshot, error) {
	return b.manager.List(ctx)
}

// Restore swaps live state for the snapshot's contents and returns the
// pre-restore snapshot taken first.
func (b *Backups) Restore(ctx context.Context, snapshotID string) (*models.BackupSnapshot, error) {
	return b.manager.Restore(ctx, snapshotID)
}

// Prune removes expired snapshots, honoring the retained minimum.
func (b *Backups) Prune(ctx context.Context) ([]string, error) {
	return b.manager.Prune(ctx)
}
