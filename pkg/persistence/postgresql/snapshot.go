package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
)

// uniqueViolation is the PostgreSQL error code for duplicate primary keys.
const uniqueViolation = "23505"

// SnapshotRepository handles backup snapshot database operations.
type SnapshotRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sql.DB, logger *slog.Logger) *SnapshotRepository {
	return &SnapshotRepository{db: db, logger: logger}
}

const snapshotColumns = `
	id
  , target
  , target_id
  , reason
  , state
  , created_at
`

// GetAll returns every snapshot, newest first.
func (r *SnapshotRepository) GetAll(ctx context.Context) ([]*models.BackupSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	snapshots := make([]*models.BackupSnapshot, 0)

	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}

		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// GetByID retrieves a snapshot by its id.
func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*models.BackupSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE id = $1`

	snapshot, err := scanSnapshot(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("SnapshotByID", id, persistence.ErrSnapshotNotFound)
		}

		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	return snapshot, nil
}

// Save inserts a new snapshot row. Snapshots are immutable: a duplicate id
// fails with ErrSnapshotExists rather than updating.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *models.BackupSnapshot) error {
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO snapshots (id, target, target_id, reason, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		snapshot.ID, snapshot.Target, snapshot.TargetID, snapshot.Reason,
		[]byte(snapshot.State), snapshot.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return persistence.NewStoreError("SaveSnapshot", snapshot.ID, persistence.ErrSnapshotExists)
		}

		return fmt.Errorf("failed to save snapshot %s: %w", snapshot.ID, err)
	}

	return nil
}

// Delete removes a pruned snapshot row. Deleting an absent row is a no-op.
func (r *SnapshotRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}

	return nil
}

func scanSnapshot(row rowScanner) (*models.BackupSnapshot, error) {
	var (
		snapshot models.BackupSnapshot
		state    []byte
	)

	err := row.Scan(
		&snapshot.ID,
		&snapshot.Target,
		&snapshot.TargetID,
		&snapshot.Reason,
		&state,
		&snapshot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	snapshot.State = state

	return &snapshot, nil
}
