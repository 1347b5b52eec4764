package pak

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// extractConfig holds configuration for extraction.
type extractConfig struct {
	progress ProgressFunc
}

// ExtractOption configures extraction.
type ExtractOption func(*extractConfig)

// ExtractWithProgress registers a callback for progress events.
func ExtractWithProgress(fn ProgressFunc) ExtractOption {
	return func(cfg *extractConfig) {
		cfg.progress = fn
	}
}

// Extract writes every entry to destDir, reproducing the packed tree.
//
// Intermediate directories are created as needed. Each entry's content is
// hash-verified while it is written; a mismatch aborts the extraction with
// ErrHashMismatch naming the entry, and the offending output file is
// removed. Entries already extracted are left in place.
func (a *Archive) Extract(ctx context.Context, destDir string, opts ...ExtractOption) error {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	var done uint64
	for i := range a.entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := &a.entries[i]
		if err := a.extractOne(entry, destDir); err != nil {
			return err
		}
		done += entry.UncompressedSize
		if cfg.progress != nil {
			cfg.progress(ProgressEvent{
				Stage:      StageExtracting,
				Path:       entry.Path,
				BytesDone:  done,
				FilesDone:  i + 1,
				FilesTotal: len(a.entries),
			})
		}
	}
	a.log().Info("archive extracted", "entry_count", len(a.entries), "dest", destDir)
	return nil
}

// ExtractEntry writes a single entry to destDir at its relative path.
func (a *Archive) ExtractEntry(ctx context.Context, name, destDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entry, ok := a.Lookup(name)
	if !ok {
		return &fs.PathError{Op: "extract", Path: name, Err: fs.ErrNotExist}
	}
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}
	return a.extractOne(&entry, destDir)
}

// extractOne streams one entry to its destination path via a temp file and
// rename, so a failed or corrupt entry never leaves partial content at the
// final path.
func (a *Archive) extractOne(entry *Entry, destDir string) error {
	dest := filepath.Join(destDir, filepath.FromSlash(entry.Path))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("extract %s: %w", entry.Path, err)
	}

	rc, err := a.reader.Open(entry)
	if err != nil {
		return err
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".pak-*")
	if err != nil {
		return fmt.Errorf("extract %s: %w", entry.Path, err)
	}
	tmpPath := tmp.Name()

	_, err = io.Copy(tmp, rc)
	if err == nil {
		// Surfaces the hash verification result for fully read streams.
		err = rc.Close()
	}
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("extract %s: %w", entry.Path, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("extract %s: %w", entry.Path, err)
	}
	return nil
}

// ExtractFile extracts the archive at archivePath into destDir.
//
// Convenience wrapper over Open and Extract for one-shot use.
func ExtractFile(ctx context.Context, archivePath, destDir string, opts ...ExtractOption) error {
	a, err := Open(archivePath)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.Extract(ctx, destDir, opts...)
}
