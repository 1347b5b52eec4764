// Package testutil provides helpers shared by archive tests.
package testutil

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// WriteTree creates files under dir. Keys are forward-slash relative paths;
// parent directories are created as needed.
func WriteTree(t *testing.T, dir string, files map[string][]byte) {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", path, err)
		}
		if err := os.WriteFile(full, content, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

// ReadTree reads every regular file under dir into a map keyed by
// forward-slash relative path.
func ReadTree(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = content
		return nil
	})
	if err != nil {
		t.Fatalf("read tree %s: %v", dir, err)
	}
	return out
}

// TrackingReaderAt records the byte ranges read through it, so tests can
// assert the data region was never touched.
type TrackingReaderAt struct {
	R     io.ReaderAt
	Reads []Range
}

// Range is one observed ReadAt call.
type Range struct {
	Off int64
	Len int
}

func (tr *TrackingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	tr.Reads = append(tr.Reads, Range{Off: off, Len: len(p)})
	return tr.R.ReadAt(p, off)
}

// MaxOffsetRead returns the highest byte offset touched by any read.
func (tr *TrackingReaderAt) MaxOffsetRead() int64 {
	var max int64
	for _, r := range tr.Reads {
		if end := r.Off + int64(r.Len); end > max {
			max = end
		}
	}
	return max
}
