// Package file provides file-based persistence for specs, workflow state and
// backup snapshots. One JSON document per record, written atomically.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file
// system.
type Persistence struct {
	root         string
	specRepo     *SpecRepository
	workflowRepo *WorkflowRepository
	snapshotRepo *SnapshotRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix on root is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:         cleanRoot,
		specRepo:     NewSpecRepository(cleanRoot),
		workflowRepo: NewWorkflowRepository(cleanRoot),
		snapshotRepo: NewSnapshotRepository(cleanRoot),
	}
}

// Specs returns every stored specification.
func (fp *Persistence) Specs(ctx context.Context) ([]*models.Spec, error) {
	return fp.specRepo.GetAll(ctx)
}

// SpecByName returns the specification stored under the given name.
func (fp *Persistence) SpecByName(ctx context.Context, name string) (*models.Spec, error) {
	return fp.specRepo.GetByName(ctx, name)
}

// SaveSpec persists a specification atomically.
func (fp *Persistence) SaveSpec(ctx context.Context, spec *models.Spec) error {
	return fp.specRepo.Save(ctx, spec)
}

// Workflows returns every active workflow state.
func (fp *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowState, error) {
	return fp.workflowRepo.GetAll(ctx)
}

// WorkflowByID returns the workflow state stored under the given id.
func (fp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowState, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

// SaveWorkflow persists a workflow state atomically.
func (fp *Persistence) SaveWorkflow(ctx context.Context, state *models.WorkflowState) error {
	return fp.workflowRepo.Save(ctx, state)
}

// ArchiveWorkflow moves a workflow record into the archive directory.
func (fp *Persistence) ArchiveWorkflow(ctx context.Context, state *models.WorkflowState) error {
	return fp.workflowRepo.Archive(ctx, state)
}

// Snapshots returns every stored backup snapshot.
func (fp *Persistence) Snapshots(ctx context.Context) ([]*models.BackupSnapshot, error) {
	return fp.snapshotRepo.GetAll(ctx)
}

// SnapshotByID returns the snapshot stored under the given id.
func (fp *Persistence) SnapshotByID(ctx context.Context, id string) (*models.BackupSnapshot, error) {
	return fp.snapshotRepo.GetByID(ctx, id)
}

// SaveSnapshot persists a snapshot. Overwriting an existing snapshot fails.
func (fp *Persistence) SaveSnapshot(ctx context.Context, snapshot *models.BackupSnapshot) error {
	return fp.snapshotRepo.Save(ctx, snapshot)
}

// DeleteSnapshot removes a pruned snapshot record.
func (fp *Persistence) DeleteSnapshot(ctx context.Context, id string) error {
	return fp.snapshotRepo.Delete(ctx, id)
}

// Close performs any necessary cleanup. For file persistence there is nothing
// to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

var _ persistence.Persistence = (*Persistence)(nil)
