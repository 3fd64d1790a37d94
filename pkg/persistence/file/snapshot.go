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

const backupsDir = "backups"

// SnapshotRepository handles backup snapshot file operations. Records are
// append-only: Save refuses to overwrite and nothing but Delete (pruning)
// removes them.
type SnapshotRepository struct {
	root string
	mu   sync.Mutex
}

// NewSnapshotRepository creates a new snapshot repository rooted at root.
func NewSnapshotRepository(root string) *SnapshotRepository {
	return &SnapshotRepository{root: root}
}

// GetAll returns every snapshot, newest first.
func (br *SnapshotRepository) GetAll(ctx context.Context) ([]*models.BackupSnapshot, error) {
	ids, err := listJSONRecords(filepath.Join(br.root, backupsDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot files: %w", err)
	}

	snapshots := make([]*models.BackupSnapshot, 0, len(ids))

	for _, id := range ids {
		snapshot, err := br.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		snapshots = append(snapshots, snapshot)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})

	return snapshots, nil
}

// GetByID retrieves a snapshot by its id.
func (br *SnapshotRepository) GetByID(_ context.Context, id string) (*models.BackupSnapshot, error) {
	path := filepath.Clean(filepath.Join(br.root, backupsDir, id+".json"))

	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("SnapshotByID", id, persistence.ErrSnapshotNotFound)
		}

		return nil, fmt.Errorf("failed to read snapshot %s: %w", id, err)
	}

	var snapshot models.BackupSnapshot

	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, persistence.NewStoreError("SnapshotByID", id, persistence.ErrCorruptState)
	}

	return &snapshot, nil
}

// Save persists a new snapshot. An existing record under the same id fails
// with ErrSnapshotExists: snapshots are immutable after creation.
func (br *SnapshotRepository) Save(_ context.Context, snapshot *models.BackupSnapshot) error {
	br.mu.Lock()
	defer br.mu.Unlock()

	path := filepath.Join(br.root, backupsDir, snapshot.ID+".json")
	if _, err := os.Stat(path); err == nil {
		return persistence.NewStoreError("SaveSnapshot", snapshot.ID, persistence.ErrSnapshotExists)
	}

	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot %s: %w", snapshot.ID, err)
	}

	return writeAtomic(filepath.Join(br.root, backupsDir), snapshot.ID+".json", data)
}

// Delete removes a snapshot record. Deleting an absent record is a no-op.
func (br *SnapshotRepository) Delete(_ context.Context, id string) error {
	br.mu.Lock()
	defer br.mu.Unlock()

	path := filepath.Join(br.root, backupsDir, id+".json")

	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
	}

	return nil
}
