package pak

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/calyptra/pak/internal/file"
	"github.com/calyptra/pak/internal/format"
)

// Archive provides access to the entries of an opened PAK file.
//
// Opening parses only the header and index; the data region is not read
// until an entry is opened, read, or extracted. Archive implements fs.FS,
// fs.StatFS, and fs.ReadFileFS over the archived tree.
type Archive struct {
	header  format.Header
	mount   string
	entries []Entry
	byPath  map[string]int
	reader  *file.Reader
	closer  io.Closer
	logger  *slog.Logger
}

// openConfig holds configuration for opening an archive.
type openConfig struct {
	maxFileSize uint64
	maxSet      bool
	logger      *slog.Logger
}

// OpenOption configures Open and New.
type OpenOption func(*openConfig)

// OpenWithMaxFileSize sets the maximum per-entry size accepted on read.
// Set to 0 to disable the limit.
func OpenWithMaxFileSize(limit uint64) OpenOption {
	return func(cfg *openConfig) {
		cfg.maxFileSize = limit
		cfg.maxSet = true
	}
}

// OpenWithLogger sets the logger for archive reads. Nil disables logging.
func OpenWithLogger(logger *slog.Logger) OpenOption {
	return func(cfg *openConfig) {
		cfg.logger = logger
	}
}

// Open opens the archive file at path and parses its header and index.
//
// The returned Archive holds the file open; callers must Close it.
func Open(path string, opts ...OpenOption) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	a, err := New(f, info.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.closer = f
	return a, nil
}

// New parses an archive from an io.ReaderAt of the given total size.
//
// Only the header and index block are read here. The source must remain
// valid for the lifetime of the Archive.
func New(src io.ReaderAt, size int64, opts ...OpenOption) (*Archive, error) {
	cfg := openConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	hdr, err := format.ReadHeader(io.NewSectionReader(src, 0, format.HeaderSize))
	if err != nil {
		return nil, err
	}
	if err := hdr.Validate(size); err != nil {
		return nil, err
	}

	index := make([]byte, hdr.IndexSize)
	if _, err := io.ReadFull(io.NewSectionReader(src, int64(hdr.IndexOffset), int64(hdr.IndexSize)), index); err != nil {
		return nil, fmt.Errorf("%w: index block: %v", ErrTruncated, err)
	}
	if sum := xxhash.Sum64(index); sum != hdr.IndexSum {
		return nil, fmt.Errorf("%w: got %016x, header records %016x", ErrIndexChecksum, sum, hdr.IndexSum)
	}

	mount, entries, err := format.DecodeIndex(index, hdr.EntryCount)
	if err != nil {
		return nil, err
	}
	if err := format.ValidateEntries(entries, hdr.DataSize); err != nil {
		return nil, err
	}

	byPath := make(map[string]int, len(entries))
	for i := range entries {
		byPath[entries[i].Path] = i
	}

	readerOpts := []file.Option{}
	if cfg.maxSet {
		readerOpts = append(readerOpts, file.WithMaxFileSize(cfg.maxFileSize))
	}
	data := io.NewSectionReader(src, int64(hdr.DataOffset), int64(hdr.DataSize))

	a := &Archive{
		header:  *hdr,
		mount:   mount,
		entries: entries,
		byPath:  byPath,
		reader:  file.NewReader(data, readerOpts...),
		logger:  cfg.logger,
	}
	a.log().Debug("archive opened", "entry_count", len(entries), "mount", mount, "data_size", hdr.DataSize)
	return a, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Close releases the underlying file when the archive was opened with Open.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	c := a.closer
	a.closer = nil
	return c.Close()
}

// Mount returns the mount point recorded in the archive index.
func (a *Archive) Mount() string {
	return a.mount
}

// Len returns the number of entries in the archive.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Version returns the archive's format version.
func (a *Archive) Version() uint32 {
	return a.header.Version
}

// DataSize returns the size of the data region in bytes.
func (a *Archive) DataSize() uint64 {
	return a.header.DataSize
}

// Entries returns an iterator over all entries in index order.
func (a *Archive) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := range a.entries {
			if !yield(a.entries[i]) {
				return
			}
		}
	}
}

// Lookup returns the entry for the given path.
func (a *Archive) Lookup(path string) (Entry, bool) {
	i, ok := a.byPath[path]
	if !ok {
		return Entry{}, false
	}
	return a.entries[i], true
}

// isDir reports whether name is a synthetic directory: the root, or a
// proper prefix of at least one entry path.
func (a *Archive) isDir(name string) bool {
	if name == "." {
		return true
	}
	prefix := name + "/"
	for i := range a.entries {
		if strings.HasPrefix(a.entries[i].Path, prefix) {
			return true
		}
	}
	return false
}
