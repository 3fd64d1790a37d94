package file

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeAtomic writes data to dir/name via a temporary file and rename, so a
// crash mid-write never leaves a torn record on disk. Readers observe either
// the old file or the new one, nothing in between.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to sync %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to rename %s into place: %w", name, err)
	}

	return nil
}
