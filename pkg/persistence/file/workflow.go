package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
)

const (
	workflowsDir        = "workflows"
	workflowsArchiveDir = "workflows/archive"
)

// WorkflowRepository handles workflow state file operations.
type WorkflowRepository struct {
	root string
	mu   sync.Mutex
}

// NewWorkflowRepository creates a new workflow repository rooted at root.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// GetAll returns every active (non-archived) workflow state.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowState, error) {
	ids, err := listJSONRecords(filepath.Join(wr.root, workflowsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	states := make([]*models.WorkflowState, 0, len(ids))

	for _, id := range ids {
		state, err := wr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].StartedAt.Before(states[j].StartedAt)
	})

	return states, nil
}

// GetByID retrieves a workflow state by its id.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.WorkflowState, error) {
	path := filepath.Clean(filepath.Join(wr.root, workflowsDir, id+".json"))

	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to read workflow %s: %w", id, err)
	}

	var state models.WorkflowState

	if err := json.Unmarshal(body, &state); err != nil {
		return nil, persistence.NewStoreError("WorkflowByID", id, persistence.ErrCorruptState)
	}

	return &state, nil
}

// Save persists a workflow state atomically.
func (wr *WorkflowRepository) Save(_ context.Context, state *models.WorkflowState) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if state.StartedAt.IsZero() {
		state.StartedAt = time.Now().UTC()
	}

	state.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", state.ID, err)
	}

	return writeAtomic(filepath.Join(wr.root, workflowsDir), state.ID+".json", data)
}

// Archive moves the workflow record into the archive directory. The archived
// copy keeps its id; the active record disappears.
func (wr *WorkflowRepository) Archive(_ context.Context, state *models.WorkflowState) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", state.ID, err)
	}

	if err := writeAtomic(filepath.Join(wr.root, workflowsArchiveDir), state.ID+".json", data); err != nil {
		return err
	}

	activePath := filepath.Join(wr.root, workflowsDir, state.ID+".json")
	if err := os.Remove(activePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove active workflow %s: %w", state.ID, err)
	}

	return nil
}
