package pak

import (
	"bytes"
	"context"
	"os"
	"testing"
	"testing/fstest"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyptra/pak/internal/format"
	"github.com/calyptra/pak/internal/testutil"
)

// buildArchive packs the given tree in memory and returns the archive bytes.
func buildArchive(t *testing.T, files map[string][]byte, opts ...CreateOption) []byte {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteTree(t, dir, files)
	var buf bytes.Buffer
	require.NoError(t, Create(context.Background(), dir, &buf, opts...))
	return buf.Bytes()
}

func TestOpen(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, map[string][]byte{
		"sub/a.txt": []byte("hello"),
		"b.bin":     {0x00, 0x00, 0x00, 0x00},
	})

	dir := t.TempDir()
	path := dir + "/test.pak"
	require.NoError(t, writeTestFile(path, raw))

	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 2, a.Len())
	assert.Equal(t, Version, a.Version())

	content, err := a.ReadFile("sub/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestOpenNotAnArchive(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/not.pak"
	require.NoError(t, writeTestFile(path, bytes.Repeat([]byte("junk data "), 20)))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestNewTruncatedArchive(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, map[string][]byte{"a.txt": []byte("hello world")})

	// Cut into the data region: header still validates against a size that
	// no longer holds the recorded data.
	cut := raw[:len(raw)-4]
	_, err := New(bytes.NewReader(cut), int64(len(cut)))
	require.ErrorIs(t, err, ErrTruncated)

	// Cut into the index block.
	cut = raw[:format.HeaderSize+2]
	_, err = New(bytes.NewReader(cut), int64(len(cut)))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestNewIndexChecksumMismatch(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, map[string][]byte{"a.txt": []byte("hello")})

	// Flip a byte inside the index block without fixing the header sum.
	corrupt := bytes.Clone(raw)
	corrupt[format.HeaderSize+4] ^= 0xFF
	_, err := New(bytes.NewReader(corrupt), int64(len(corrupt)))
	require.ErrorIs(t, err, ErrIndexChecksum)
}

func TestNewEntryOutOfBounds(t *testing.T) {
	t.Parallel()

	// Hand-build an archive whose single entry points past the data region.
	entries := []Entry{{
		Path:             "a.bin",
		Offset:           0,
		CompressedSize:   100,
		UncompressedSize: 100,
	}}
	raw := buildRawArchive(t, "", entries, make([]byte, 10))

	_, err := New(bytes.NewReader(raw), int64(len(raw)))
	require.ErrorIs(t, err, ErrOutOfBounds)
}

func TestNewUnknownCompression(t *testing.T) {
	t.Parallel()

	// The entry's sizes and bounds are fine; only the algorithm byte is
	// unknown, so the archive must be rejected before any content is read.
	entries := []Entry{{
		Path:             "a.bin",
		Offset:           0,
		CompressedSize:   4,
		UncompressedSize: 4,
		Compression:      Compression(5),
	}}
	raw := buildRawArchive(t, "", entries, []byte("data"))

	_, err := New(bytes.NewReader(raw), int64(len(raw)))
	require.ErrorIs(t, err, ErrCompression)
	assert.Contains(t, err.Error(), "a.bin")
}

func TestListingNeverReadsDataRegion(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, map[string][]byte{
		"sub/a.txt": bytes.Repeat([]byte("x"), 10_000),
		"b.bin":     bytes.Repeat([]byte("y"), 10_000),
	})

	tracker := &testutil.TrackingReaderAt{R: bytes.NewReader(raw)}
	a, err := New(tracker, int64(len(raw)))
	require.NoError(t, err)

	count := 0
	for entry := range a.Entries() {
		assert.NotEmpty(t, entry.Path)
		count++
	}
	assert.Equal(t, 2, count)

	dataOffset := int64(len(raw) - 20_000)
	assert.LessOrEqual(t, tracker.MaxOffsetRead(), dataOffset,
		"listing must not read past the index block")
}

func TestArchiveFS(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, map[string][]byte{
		"sub/a.txt":      []byte("hello"),
		"sub/deep/c.bin": []byte("deep"),
		"b.bin":          {0x00, 0x01},
	})

	a, err := New(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	require.NoError(t, fstest.TestFS(a, "sub/a.txt", "sub/deep/c.bin", "b.bin"))

	// Stat on file and synthetic directory.
	info, err := a.Stat("sub/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	assert.False(t, info.IsDir())

	info, err = a.Stat("sub")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// ReadDir at the root.
	ents, err := a.ReadDir(".")
	require.NoError(t, err)
	names := make([]string, len(ents))
	for i, e := range ents {
		names[i] = e.Name()
	}
	assert.Equal(t, []string{"b.bin", "sub"}, names)
}

func TestArchiveOpenMissing(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, map[string][]byte{"a.txt": []byte("a")})
	a, err := New(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)

	_, err = a.Open("nope.txt")
	require.Error(t, err)
	_, err = a.ReadFile("nope.txt")
	require.Error(t, err)
}

// buildRawArchive assembles archive bytes from parts, bypassing Create, so
// tests can produce structurally invalid archives.
func buildRawArchive(t *testing.T, mount string, entries []Entry, data []byte) []byte {
	t.Helper()
	index, err := format.EncodeIndex(mount, entries)
	require.NoError(t, err)

	hdr := format.Header{
		Magic:       format.Magic,
		Version:     format.Version,
		EntryCount:  uint32(len(entries)),
		IndexOffset: format.HeaderSize,
		IndexSize:   uint64(len(index)),
		IndexSum:    xxhash.Sum64(index),
		DataOffset:  format.HeaderSize + uint64(len(index)),
		DataSize:    uint64(len(data)),
	}
	var buf bytes.Buffer
	require.NoError(t, format.WriteHeader(&buf, &hdr))
	buf.Write(index)
	buf.Write(data)
	return buf.Bytes()
}

// patchEntryHash rewrites one entry's stored hash in raw archive bytes and
// fixes the index checksum so only the per-entry integrity check can fail.
func patchEntryHash(t *testing.T, raw []byte, path string, hash [HashSize]byte) []byte {
	t.Helper()

	hdr, err := format.ReadHeader(bytes.NewReader(raw[:format.HeaderSize]))
	require.NoError(t, err)

	index := bytes.Clone(raw[hdr.IndexOffset : hdr.IndexOffset+hdr.IndexSize])
	mount, entries, err := format.DecodeIndex(index, hdr.EntryCount)
	require.NoError(t, err)

	patched := false
	for i := range entries {
		if entries[i].Path == path {
			entries[i].Hash = hash
			patched = true
		}
	}
	require.True(t, patched, "entry %q not found", path)

	newIndex, err := format.EncodeIndex(mount, entries)
	require.NoError(t, err)
	require.Len(t, newIndex, len(index), "patching must not change index size")

	hdr.IndexSum = xxhash.Sum64(newIndex)
	var buf bytes.Buffer
	require.NoError(t, format.WriteHeader(&buf, hdr))
	buf.Write(newIndex)
	buf.Write(raw[hdr.DataOffset:])
	return buf.Bytes()
}

func writeTestFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
