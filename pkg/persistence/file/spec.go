package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/specforge/specforge/pkg/models"
	"github.com/specforge/specforge/pkg/persistence"
)

const specsDir = "specs"

// SpecRepository handles specification file operations. Physical writes are
// serialized behind a mutex; reads go straight to disk and, thanks to the
// rename-based write path, always observe a whole record.
type SpecRepository struct {
	root string
	mu   sync.Mutex
}

// NewSpecRepository creates a new spec repository rooted at root.
func NewSpecRepository(root string) *SpecRepository {
	return &SpecRepository{root: root}
}

// GetAll returns every stored spec, sorted by creation time.
func (sr *SpecRepository) GetAll(ctx context.Context) ([]*models.Spec, error) {
	dir := filepath.Join(sr.root, specsDir)

	names, err := listJSONRecords(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list spec files: %w", err)
	}

	specs := make([]*models.Spec, 0, len(names))

	for _, name := range names {
		spec, err := sr.GetByName(ctx, name)
		if err != nil {
			return nil, err
		}

		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, j int) bool {
		return specs[i].CreatedAt.Before(specs[j].CreatedAt)
	})

	return specs, nil
}

// GetByName retrieves a spec by its name.
func (sr *SpecRepository) GetByName(_ context.Context, name string) (*models.Spec, error) {
	path := filepath.Clean(filepath.Join(sr.root, specsDir, name+".json"))

	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewStoreError("SpecByName", name, persistence.ErrSpecNotFound)
		}

		return nil, fmt.Errorf("failed to read spec %s: %w", name, err)
	}

	var spec models.Spec

	if err := json.Unmarshal(body, &spec); err != nil {
		return nil, persistence.NewStoreError("SpecByName", name, persistence.ErrCorruptState)
	}

	return &spec, nil
}

// Save persists a spec atomically.
func (sr *SpecRepository) Save(_ context.Context, spec *models.Spec) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	now := time.Now().UTC()
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = now
	}

	spec.UpdatedAt = now

	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal spec %s: %w", spec.Name, err)
	}

	return writeAtomic(filepath.Join(sr.root, specsDir), spec.Name+".json", data)
}

// listJSONRecords returns the record names (file names minus extension) of
// every .json file in dir. A missing directory is an empty store.
func listJSONRecords(dir string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f[:len(f)-len(".json")])
	}

	return names, nil
}
