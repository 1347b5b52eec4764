package pak

import (
	"errors"
	"io/fs"

	"github.com/calyptra/pak/internal/format"
)

// Re-export format types for the public API.
type (
	// Entry is one file's record within an archive's index.
	Entry = format.Entry

	// Compression identifies the compression algorithm used for an entry.
	Compression = format.Compression
)

// Re-export compression constants.
const (
	CompressionNone = format.CompressionNone
	CompressionZstd = format.CompressionZstd
)

// HashSize is the size in bytes of an entry's content hash (SHA-1).
const HashSize = format.HashSize

// MaxPathLen is the maximum entry path length in bytes supported by the
// format.
const MaxPathLen = format.MaxPathLen

// Format version and identification, fixed by the consuming host.
const (
	Magic   = format.Magic
	Version = format.Version
)

// Sentinel errors re-exported from the format layer.
var (
	// ErrBadMagic is returned when a file is not a PAK archive.
	ErrBadMagic = format.ErrBadMagic

	// ErrVersion is returned for archives with an unsupported version.
	ErrVersion = format.ErrVersion

	// ErrTruncated is returned when the header, index, or data region is
	// shorter than recorded.
	ErrTruncated = format.ErrTruncated

	// ErrIndexChecksum is returned when the index block fails its checksum.
	ErrIndexChecksum = format.ErrIndexChecksum

	// ErrOutOfBounds is returned when an entry's stored range falls outside
	// the data region.
	ErrOutOfBounds = format.ErrOutOfBounds

	// ErrPathTooLong is returned when a path exceeds the format limit.
	ErrPathTooLong = format.ErrPathTooLong

	// ErrCompression is returned for entries recording a compression
	// algorithm this package does not know.
	ErrCompression = format.ErrCompression

	// ErrHashMismatch is returned when entry content does not match its
	// stored hash.
	ErrHashMismatch = format.ErrHashMismatch

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = format.ErrSizeOverflow
)

// Sentinel errors specific to packing.
var (
	// ErrTooManyFiles is returned when the file count exceeds the
	// configured limit.
	ErrTooManyFiles = errors.New("pak: too many files")
)

// Interface compliance.
var (
	_ fs.FS         = (*Archive)(nil)
	_ fs.StatFS     = (*Archive)(nil)
	_ fs.ReadFileFS = (*Archive)(nil)
	_ fs.ReadDirFS  = (*Archive)(nil)
)
