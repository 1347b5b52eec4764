package format

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
)

// entryFixedSize is the fixed portion of an index record: path length,
// offset, compressed size, uncompressed size, compression flag, hash.
const entryFixedSize = 2 + 8 + 8 + 8 + 1 + HashSize

// ValidatePath checks that path is a legal entry path: relative,
// forward-slash separated, no "." or ".." elements, within MaxPathLen.
func ValidatePath(path string) error {
	if path == "" || path == "." || !fs.ValidPath(path) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	if len(path) > MaxPathLen {
		return fmt.Errorf("%w: %q is %d bytes (max %d)", ErrPathTooLong, path, len(path), MaxPathLen)
	}
	return nil
}

// EncodeIndex serializes the mount point and entries to the index block
// layout. Entries must already be in their final order; offsets are written
// as-is.
func EncodeIndex(mount string, entries []Entry) ([]byte, error) {
	if len(mount) > MaxMountLen {
		return nil, fmt.Errorf("%w: mount point is %d bytes (max %d)", ErrPathTooLong, len(mount), MaxMountLen)
	}
	if len(entries) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d entries", ErrSizeOverflow, len(entries))
	}

	size := 2 + len(mount)
	for i := range entries {
		size += entryFixedSize + len(entries[i].Path)
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	writeString16(buf, mount)
	for i := range entries {
		e := &entries[i]
		if err := ValidatePath(e.Path); err != nil {
			return nil, err
		}
		writeString16(buf, e.Path)
		var fixed [entryFixedSize - 2]byte
		binary.LittleEndian.PutUint64(fixed[0:], e.Offset)
		binary.LittleEndian.PutUint64(fixed[8:], e.CompressedSize)
		binary.LittleEndian.PutUint64(fixed[16:], e.UncompressedSize)
		fixed[24] = byte(e.Compression)
		copy(fixed[25:], e.Hash[:])
		buf.Write(fixed[:])
	}
	return buf.Bytes(), nil
}

// DecodeIndex parses an index block previously produced by EncodeIndex.
//
// Count comes from the header. Paths are validated and checked for
// duplicates; entry bounds against the data region are checked separately
// by ValidateEntries.
func DecodeIndex(data []byte, count uint32) (mount string, entries []Entry, err error) {
	d := &indexDecoder{data: data}

	mount, err = d.string16(MaxMountLen, "mount point")
	if err != nil {
		return "", nil, err
	}

	// Each record is at least entryFixedSize bytes, so a count that cannot
	// fit in the remaining block is corrupt. Checked before allocating.
	if remaining := len(data) - d.pos; uint64(count)*entryFixedSize > uint64(remaining) {
		return "", nil, fmt.Errorf("%w: %d entries do not fit in %d index bytes", ErrTruncated, count, remaining)
	}

	entries = make([]Entry, 0, count)
	seen := make(map[string]struct{}, count)
	for i := uint32(0); i < count; i++ {
		var e Entry
		e.Path, err = d.string16(MaxPathLen, "entry path")
		if err != nil {
			return "", nil, err
		}
		if err := ValidatePath(e.Path); err != nil {
			return "", nil, err
		}
		if _, dup := seen[e.Path]; dup {
			return "", nil, fmt.Errorf("%w: %q", ErrDuplicatePath, e.Path)
		}
		seen[e.Path] = struct{}{}

		fixed, err := d.bytes(entryFixedSize - 2)
		if err != nil {
			return "", nil, fmt.Errorf("%w: index record for %q", ErrTruncated, e.Path)
		}
		e.Offset = binary.LittleEndian.Uint64(fixed[0:])
		e.CompressedSize = binary.LittleEndian.Uint64(fixed[8:])
		e.UncompressedSize = binary.LittleEndian.Uint64(fixed[16:])
		e.Compression = Compression(fixed[24])
		copy(e.Hash[:], fixed[25:])
		entries = append(entries, e)
	}
	if d.pos != len(d.data) {
		return "", nil, fmt.Errorf("%w: %d trailing index bytes", ErrTruncated, len(d.data)-d.pos)
	}
	return mount, entries, nil
}

// ValidateEntries checks that entries lie within the data region, do not
// overlap, and have consistent compression metadata. Entries must be in
// index order; offsets are required to be monotonically non-overlapping.
func ValidateEntries(entries []Entry, dataSize uint64) error {
	var next uint64
	for i := range entries {
		e := &entries[i]
		switch e.Compression {
		case CompressionNone, CompressionZstd:
		default:
			return fmt.Errorf("%w: %d for %q", ErrCompression, e.Compression, e.Path)
		}
		if e.Compression == CompressionNone && e.CompressedSize != e.UncompressedSize {
			return fmt.Errorf("%w: stored size %d != size %d for uncompressed %q",
				ErrOutOfBounds, e.CompressedSize, e.UncompressedSize, e.Path)
		}
		if e.Offset < next {
			return fmt.Errorf("%w: %q overlaps previous entry", ErrOutOfBounds, e.Path)
		}
		end, ok := addUint64(e.Offset, e.CompressedSize)
		if !ok {
			return fmt.Errorf("%w: %q", ErrSizeOverflow, e.Path)
		}
		if end > dataSize {
			return fmt.Errorf("%w: %q ends at %d, data region is %d bytes", ErrOutOfBounds, e.Path, end, dataSize)
		}
		next = end
	}
	return nil
}

func writeString16(buf *bytes.Buffer, s string) {
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(s)))
	buf.Write(n[:])
	buf.WriteString(s)
}

type indexDecoder struct {
	data []byte
	pos  int
}

func (d *indexDecoder) bytes(n int) ([]byte, error) {
	if d.pos+n > len(d.data) {
		return nil, ErrTruncated
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *indexDecoder) string16(maxLen int, what string) (string, error) {
	lb, err := d.bytes(2)
	if err != nil {
		return "", fmt.Errorf("%w: %s length", ErrTruncated, what)
	}
	n := int(binary.LittleEndian.Uint16(lb))
	if n > maxLen {
		return "", fmt.Errorf("%w: %s is %d bytes (max %d)", ErrPathTooLong, what, n, maxLen)
	}
	b, err := d.bytes(n)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTruncated, what)
	}
	return string(b), nil
}
