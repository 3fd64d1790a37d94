// Package postgresql provides PostgreSQL persistence for specs, workflow
// state and backup snapshots.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
	"github.com/specforge/specforge/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL. Row-level
// writes are transactional, which provides the atomic-update discipline the
// file provider gets from rename.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	specRepo     *SpecRepository
	workflowRepo *WorkflowRepository
	snapshotRepo *SnapshotRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:           database,
		logger:       logger,
		specRepo:     NewSpecRepository(database, logger),
		workflowRepo: NewWorkflowRepository(database, logger),
		snapshotRepo: NewSnapshotRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Specs returns every stored specification.
func (p *Persistence) Specs(ctx context.Context) ([]*models.Spec, error) {
	return p.specRepo.GetAll(ctx)
}

// SpecByName returns the specification stored under the given name.
func (p *Persistence) SpecByName(ctx context.Context, name string) (*models.Spec, error) {
	return p.specRepo.GetByName(ctx, name)
}

// SaveSpec persists a specification.
func (p *Persistence) SaveSpec(ctx context.Context, spec *models.Spec) error {
	return p.specRepo.Save(ctx, spec)
}

// Workflows returns every active workflow state.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowState, error) {
	return p.workflowRepo.GetAll(ctx)
}

// WorkflowByID returns the workflow state stored under the given id.
func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowState, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

// SaveWorkflow persists a workflow state.
func (p *Persistence) SaveWorkflow(ctx context.Context, state *models.WorkflowState) error {
	return p.workflowRepo.Save(ctx, state)
}

// ArchiveWorkflow flags the workflow row as archived.
func (p *Persistence) ArchiveWorkflow(ctx context.Context, state *models.WorkflowState) error {
	return p.workflowRepo.Archive(ctx, state)
}

// Snapshots returns every snapshot, newest first.
func (p *Persistence) Snapshots(ctx context.Context) ([]*models.BackupSnapshot, error) {
	return p.snapshotRepo.GetAll(ctx)
}

// SnapshotByID returns the snapshot stored under the given id.
func (p *Persistence) SnapshotByID(ctx context.Context, id string) (*models.BackupSnapshot, error) {
	return p.snapshotRepo.GetByID(ctx, id)
}

// SaveSnapshot persists a new snapshot; an existing id fails.
func (p *Persistence) SaveSnapshot(ctx context.Context, snapshot *models.BackupSnapshot) error {
	return p.snapshotRepo.Save(ctx, snapshot)
}

// DeleteSnapshot removes a pruned snapshot row.
func (p *Persistence) DeleteSnapshot(ctx context.Context, id string) error {
	return p.snapshotRepo.Delete(ctx, id)
}

var _ persistence.Persistence = (*Persistence)(nil)
