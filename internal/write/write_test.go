package write

import (
	"bytes"
	"context"
	"crypto/sha1"
	"io/fs"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calyptra/pak/internal/format"
)

func TestFileUncompressed(t *testing.T) {
	t.Parallel()

	content := []byte("hello world")
	var dst bytes.Buffer
	buf := make([]byte, 32*1024)

	stored, original, hash, err := File(context.Background(), bytes.NewReader(content), &dst, nil, buf, format.CompressionNone)
	require.NoError(t, err)

	assert.Equal(t, uint64(len(content)), stored)
	assert.Equal(t, uint64(len(content)), original)
	assert.Equal(t, content, dst.Bytes())
	assert.Equal(t, [format.HashSize]byte(sha1.Sum(content)), hash)
}

func TestFileZstd(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("compressible "), 2000)
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	require.NoError(t, err)

	var dst bytes.Buffer
	buf := make([]byte, 32*1024)
	stored, original, hash, err := File(context.Background(), bytes.NewReader(content), &dst, enc, buf, format.CompressionZstd)
	require.NoError(t, err)

	assert.Equal(t, uint64(len(content)), original)
	assert.Equal(t, uint64(dst.Len()), stored)
	assert.Less(t, stored, original)
	assert.Equal(t, [format.HashSize]byte(sha1.Sum(content)), hash, "hash is of uncompressed content")

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	decoded, err := dec.DecodeAll(dst.Bytes(), nil)
	require.NoError(t, err)
	assert.Equal(t, content, decoded)
}

func TestFileEncoderReuse(t *testing.T) {
	t.Parallel()

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	require.NoError(t, err)
	buf := make([]byte, 32*1024)

	first := bytes.Repeat([]byte("first "), 1000)
	second := bytes.Repeat([]byte("second "), 1000)

	var out1, out2 bytes.Buffer
	_, _, _, err = File(context.Background(), bytes.NewReader(first), &out1, enc, buf, format.CompressionZstd)
	require.NoError(t, err)
	_, _, _, err = File(context.Background(), bytes.NewReader(second), &out2, enc, buf, format.CompressionZstd)
	require.NoError(t, err)

	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()

	decoded, err := dec.DecodeAll(out2.Bytes(), nil)
	require.NoError(t, err)
	assert.Equal(t, second, decoded, "encoder must fully reset between files")
}

func TestFileCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dst bytes.Buffer
	_, _, _, err := File(ctx, bytes.NewReader([]byte("x")), &dst, nil, nil, format.CompressionNone)
	require.ErrorIs(t, err, context.Canceled)
}

type fakeInfo struct {
	size int64
}

func (f fakeInfo) Name() string       { return "fake" }
func (f fakeInfo) Size() int64        { return f.size }
func (f fakeInfo) Mode() fs.FileMode  { return 0o644 }
func (f fakeInfo) ModTime() time.Time { return time.Time{} }
func (f fakeInfo) IsDir() bool        { return false }
func (f fakeInfo) Sys() any           { return nil }

func TestDefaultSkipCompression(t *testing.T) {
	t.Parallel()

	skip := DefaultSkipCompression(1024)

	assert.True(t, skip("texture.png", fakeInfo{size: 1 << 20}), "compressed extension")
	assert.True(t, skip("Audio/music.OGG", fakeInfo{size: 1 << 20}), "extension match is case-insensitive")
	assert.True(t, skip("tiny.txt", fakeInfo{size: 10}), "below min size")
	assert.False(t, skip("level.bin", fakeInfo{size: 1 << 20}))
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	always := func(string, fs.FileInfo) bool { return true }
	never := func(string, fs.FileInfo) bool { return false }

	assert.False(t, ShouldSkip("a", nil, nil))
	assert.False(t, ShouldSkip("a", nil, []SkipCompressionFunc{nil, never}))
	assert.True(t, ShouldSkip("a", nil, []SkipCompressionFunc{never, always}))
}
