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

// SpecRepository handles specification database operations.
type SpecRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSpecRepository creates a new spec repository.
func NewSpecRepository(db *sql.DB, logger *slog.Logger) *SpecRepository {
	return &SpecRepository{db: db, logger: logger}
}

const specColumns = `
	name
  , description
  , stage
  , tasks
  , history
  , created_at
  , updated_at
`

// GetAll returns every stored spec, oldest first.
func (r *SpecRepository) GetAll(ctx context.Context) ([]*models.Spec, error) {
	query := `SELECT ` + specColumns + ` FROM specs ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query specs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	specs := make([]*models.Spec, 0)

	for rows.Next() {
		spec, err := scanSpec(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan spec: %w", err)
		}

		specs = append(specs, spec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating specs: %w", err)
	}

	return specs, nil
}

// GetByName retrieves a spec by its name.
func (r *SpecRepository) GetByName(ctx context.Context, name string) (*models.Spec, error) {
	query := `SELECT ` + specColumns + ` FROM specs WHERE name = $1`

	spec, err := scanSpec(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("SpecByName", name, persistence.ErrSpecNotFound)
		}

		return nil, fmt.Errorf("failed to scan spec: %w", err)
	}

	return spec, nil
}

// Save upserts a spec row.
func (r *SpecRepository) Save(ctx context.Context, spec *models.Spec) error {
	now := time.Now().UTC()
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = now
	}

	spec.UpdatedAt = now

	tasks, err := json.Marshal(spec.Tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal tasks for spec %s: %w", spec.Name, err)
	}

	history, err := json.Marshal(spec.History)
	if err != nil {
		return fmt.Errorf("failed to marshal history for spec %s: %w", spec.Name, err)
	}

	query := `
		INSERT INTO specs (name, description, stage, tasks, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description
		  , stage = EXCLUDED.stage
		  , tasks = EXCLUDED.tasks
		  , history = EXCLUDED.history
		  , updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		spec.Name, spec.Description, spec.Stage, tasks, history, spec.CreatedAt, spec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save spec %s: %w", spec.Name, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSpec(row rowScanner) (*models.Spec, error) {
	var (
		spec    models.Spec
		tasks   []byte
		history []byte
	)

	err := row.Scan(
		&spec.Name,
		&spec.Description,
		&spec.Stage,
		&tasks,
		&history,
		&spec.CreatedAt,
		&spec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(tasks) > 0 {
		if err := json.Unmarshal(tasks, &spec.Tasks); err != nil {
			return nil, persistence.NewStoreError("SpecByName", spec.Name, persistence.ErrCorruptState)
		}
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &spec.History); err != nil {
			return nil, persistence.NewStoreError("SpecByName", spec.Name, persistence.ErrCorruptState)
		}
	}

	return &spec, nil
}
