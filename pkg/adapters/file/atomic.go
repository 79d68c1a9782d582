package file

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic replaces path with data so that readers see either the old or
// the new content, never a partial write.
// It writes to a temporary file in the same directory, syncs it, and renames
// it over the destination. An existing file keeps its permission bits and,
// on unix, its owner and group; otherwise perm is used.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	existing, err := os.Stat(path)
	if err == nil {
		perm = existing.Mode().Perm()
	} else {
		existing = nil
	}

	// Same directory: rename is only atomic within a filesystem.
	tmpFile, err := os.CreateTemp(dir, ".steward-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if existing != nil {
		// The rename replaces the inode, so ownership must travel with it.
		if err := keepOwner(tmpFile, existing); err != nil {
			return fmt.Errorf("failed to keep owner of %s: %w", path, err)
		}
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return fmt.Errorf("failed to set mode on temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return nil
}
