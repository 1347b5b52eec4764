// Package format implements the on-disk layout of PAK archives.
//
// An archive is a fixed 64-byte header, followed by an index block, followed
// by a contiguous data region. All integers are little-endian. The index
// block starts with the mount point string and holds one variable-length
// record per entry, in path-sorted order. Entry offsets are relative to the
// start of the data region.
package format

import (
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// Magic identifies a PAK archive ("PAK\0" read as little-endian uint32).
	Magic uint32 = 0x004B4150

	// Version is the current archive format version.
	Version uint32 = 1

	// HeaderSize is the fixed size of the archive header in bytes.
	HeaderSize = 64

	// HashSize is the size of a per-entry content hash (SHA-1).
	HashSize = sha1.Size

	// MaxPathLen is the maximum entry path length in bytes.
	MaxPathLen = 512

	// MaxMountLen is the maximum mount point length in bytes.
	MaxMountLen = 256

	// MaxIndexSize caps the index block size accepted on read. Guards
	// against allocating for a corrupt IndexSize field.
	MaxIndexSize = 64 << 20
)

// Sentinel errors for the format error taxonomy. Callers match with
// errors.Is; messages carry the offending file or entry via wrapping.
var (
	ErrBadMagic      = errors.New("pak: bad magic, not a pak archive")
	ErrVersion       = errors.New("pak: unsupported archive version")
	ErrTruncated     = errors.New("pak: truncated archive")
	ErrIndexChecksum = errors.New("pak: index checksum mismatch")
	ErrOutOfBounds   = errors.New("pak: entry data out of bounds")
	ErrPathTooLong   = errors.New("pak: entry path exceeds format limit")
	ErrInvalidPath   = errors.New("pak: invalid entry path")
	ErrDuplicatePath = errors.New("pak: duplicate entry path")
	ErrSizeOverflow  = errors.New("pak: size overflow")
	ErrCompression   = errors.New("pak: unknown compression algorithm")
	ErrHashMismatch  = errors.New("pak: content hash mismatch")
)

// Compression identifies the compression algorithm used for an entry.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Header is the fixed-layout archive header.
type Header struct {
	Magic       uint32
	Version     uint32
	EntryCount  uint32
	Flags       uint32
	IndexOffset uint64
	IndexSize   uint64
	IndexSum    uint64
	DataOffset  uint64
	DataSize    uint64
	Reserved    [8]byte
}

// Entry is one file's record within the archive index.
type Entry struct {
	// Path is the entry path relative to the mount point, forward-slash
	// separated and case-sensitive (e.g. "UI/Inventory/icons.bin").
	Path string

	// Offset is the byte offset of the entry's content relative to the
	// start of the data region.
	Offset uint64

	// CompressedSize is the stored size in bytes. Equal to
	// UncompressedSize for uncompressed entries.
	CompressedSize uint64

	// UncompressedSize is the original file size in bytes.
	UncompressedSize uint64

	// Compression is the algorithm used to store this entry.
	Compression Compression

	// Hash is the SHA-1 of the uncompressed content.
	Hash [HashSize]byte
}

// WriteHeader serializes h to w.
func WriteHeader(w io.Writer, h *Header) error {
	return binary.Write(w, binary.LittleEndian, h)
}

// ReadHeader reads and validates an archive header from r.
//
// Magic and version are checked here so callers fail fast on non-archives;
// offset and size fields are validated against the file size separately.
func ReadHeader(r io.Reader) (*Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: short header", ErrTruncated)
		}
		return nil, err
	}
	if h.Magic != Magic {
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadMagic, h.Magic)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if h.IndexOffset != HeaderSize {
		return nil, fmt.Errorf("%w: index offset %d", ErrTruncated, h.IndexOffset)
	}
	if h.IndexSize > MaxIndexSize {
		return nil, fmt.Errorf("%w: index size %d", ErrSizeOverflow, h.IndexSize)
	}
	return &h, nil
}

// Validate checks the header's internal consistency against the total
// archive size.
func (h *Header) Validate(archiveSize int64) error {
	if archiveSize < HeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrTruncated, archiveSize)
	}
	indexEnd, ok := addUint64(h.IndexOffset, h.IndexSize)
	if !ok {
		return ErrSizeOverflow
	}
	if h.DataOffset != indexEnd {
		return fmt.Errorf("%w: data offset %d, index ends at %d", ErrTruncated, h.DataOffset, indexEnd)
	}
	dataEnd, ok := addUint64(h.DataOffset, h.DataSize)
	if !ok {
		return ErrSizeOverflow
	}
	if dataEnd > uint64(archiveSize) {
		return fmt.Errorf("%w: data region ends at %d, archive is %d bytes", ErrTruncated, dataEnd, archiveSize)
	}
	return nil
}

// addUint64 returns a+b and whether the addition did not overflow.
func addUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
