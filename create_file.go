package pak

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CreateFile builds an archive from srcDir and writes it to archivePath.
//
// The archive is written to a temporary file in the destination directory
// and renamed into place on success, so a failed pack never leaves a
// partial archive behind. Parent directories are created as needed.
func CreateFile(ctx context.Context, archivePath, srcDir string, opts ...CreateOption) error {
	dir := filepath.Dir(archivePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pak-*")
	if err != nil {
		return fmt.Errorf("create archive temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := Create(ctx, srcDir, tmp, opts...); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
