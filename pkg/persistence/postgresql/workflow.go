package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
)

// WorkflowRepository handles workflow state database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , spec_name
  , completed_phases
  , status
  , failure_reason
  , started_at
  , updated_at
  , completed_at
`

// GetAll returns every active (non-archived) workflow state, oldest first.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowState, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE archived = FALSE ORDER BY started_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	states := make([]*models.WorkflowState, 0)

	for rows.Next() {
		state, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		states = append(states, state)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return states, nil
}

// GetByID retrieves an active workflow state by its id.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowState, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1 AND archived = FALSE`

	state, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return state, nil
}

// Save upserts a workflow row.
func (r *WorkflowRepository) Save(ctx context.Context, state *models.WorkflowState) error {
	if state.StartedAt.IsZero() {
		state.StartedAt = time.Now().UTC()
	}

	state.UpdatedAt = time.Now().UTC()

	phases, err := json.Marshal(state.CompletedPhases)
	if err != nil {
		return fmt.Errorf("failed to marshal phases for workflow %s: %w", state.ID, err)
	}

	query := `
		INSERT INTO workflows (id, spec_name, completed_phases, status, failure_reason, started_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			completed_phases = EXCLUDED.completed_phases
		  , status = EXCLUDED.status
		  , failure_reason = EXCLUDED.failure_reason
		  , updated_at = EXCLUDED.updated_at
		  , completed_at = EXCLUDED.completed_at
	`

	_, err = r.db.ExecContext(ctx, query,
		state.ID, state.SpecName, phases, state.Status, state.FailureReason,
		state.StartedAt, state.UpdatedAt, state.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", state.ID, err)
	}

	return nil
}

// Archive flags the workflow row as archived; the row itself is retained.
func (r *WorkflowRepository) Archive(ctx context.Context, state *models.WorkflowState) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE workflows SET archived = TRUE, updated_at = NOW() WHERE id = $1", state.ID)
	if err != nil {
		return fmt.Errorf("failed to archive workflow %s: %w", state.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check archive result for workflow %s: %w", state.ID, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("ArchiveWorkflow", state.ID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func scanWorkflow(row rowScanner) (*models.WorkflowState, error) {
	var (
		state  models.WorkflowState
		phases []byte
	)

	err := row.Scan(
		&state.ID,
		&state.SpecName,
		&phases,
		&state.Status,
		&state.FailureReason,
		&state.StartedAt,
		&state.UpdatedAt,
		&state.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(phases) > 0 {
		if err := json.Unmarshal(phases, &state.CompletedPhases); err != nil {
			return nil, persistence.NewStoreError("WorkflowByID", state.ID, persistence.ErrCorruptState)
		}
	}

	return &state, nil
}
