package pak

import (
	"errors"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/calyptra/pak/internal/format"
)

// Open implements fs.FS.
//
// The returned file streams the entry's uncompressed content and verifies
// the stored hash as it is consumed; a corrupt entry fails with
// ErrHashMismatch once fully read.
func (a *Archive) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if entry, ok := a.Lookup(name); ok {
		rc, err := a.reader.Open(&entry)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &entryFile{rc: rc, info: newFileInfo(&entry)}, nil
	}
	if a.isDir(name) {
		return &dirFile{info: newDirInfo(baseName(name))}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS without reading entry content.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	if entry, ok := a.Lookup(name); ok {
		return newFileInfo(&entry), nil
	}
	if a.isDir(name) {
		return newDirInfo(baseName(name)), nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadFile implements fs.ReadFileFS. Content is hash-verified before it is
// returned.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	entry, ok := a.Lookup(name)
	if !ok {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	return a.reader.ReadAll(&entry)
}

// ReadDir implements fs.ReadDirFS over the archive's synthetic directory
// tree. Children are derived from entry path prefixes and returned sorted
// by name.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	if _, ok := a.Lookup(name); ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errNotDir}
	}
	prefix := ""
	if name != "." {
		prefix = name + "/"
	}

	files := map[string]*format.Entry{}
	dirs := map[string]struct{}{}
	for i := range a.entries {
		entry := &a.entries[i]
		if !strings.HasPrefix(entry.Path, prefix) {
			continue
		}
		rest := entry.Path[len(prefix):]
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			dirs[rest[:idx]] = struct{}{}
		} else {
			files[rest] = entry
		}
	}
	if len(files) == 0 && len(dirs) == 0 && name != "." {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	out := make([]fs.DirEntry, 0, len(files)+len(dirs))
	for n := range dirs {
		out = append(out, fs.FileInfoToDirEntry(newDirInfo(n)))
	}
	for _, entry := range files {
		out = append(out, fs.FileInfoToDirEntry(newFileInfo(entry)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

var errNotDir = errors.New("not a directory")

func baseName(name string) string {
	if name == "." {
		return "."
	}
	return path.Base(name)
}

// entryFile adapts a verified entry reader to fs.File.
type entryFile struct {
	rc   io.ReadCloser
	info fs.FileInfo
}

func (f *entryFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *entryFile) Read(p []byte) (int, error) { return f.rc.Read(p) }
func (f *entryFile) Close() error               { return f.rc.Close() }

// dirFile is a synthetic directory handle.
type dirFile struct {
	info fs.FileInfo
}

func (d *dirFile) Stat() (fs.FileInfo, error) { return d.info, nil }
func (d *dirFile) Close() error               { return nil }

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.info.Name(), Err: fs.ErrInvalid}
}

// fileInfo describes an archive entry. Archives store no permission or
// timestamp metadata, so entries report a fixed regular-file mode and the
// zero time.
type fileInfo struct {
	name  string
	size  int64
	mode  fs.FileMode
	isDir bool
	sys   *format.Entry
}

func newFileInfo(entry *format.Entry) *fileInfo {
	return &fileInfo{
		name: path.Base(entry.Path),
		size: int64(entry.UncompressedSize),
		mode: 0o644,
		sys:  entry,
	}
}

func newDirInfo(name string) *fileInfo {
	return &fileInfo{
		name:  name,
		mode:  fs.ModeDir | 0o755,
		isDir: true,
	}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *fileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fileInfo) IsDir() bool        { return fi.isDir }
func (fi *fileInfo) Sys() any           { return fi.sys }
