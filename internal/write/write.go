// Package write implements per-entry content writing during archive
// creation: optional zstd compression, SHA-1 hashing, and byte counting.
package write

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/calyptra/pak/internal/format"
)

// File writes src to dst, optionally compressing with enc, and returns the
// stored (possibly compressed) size, the original size, and the SHA-1 of
// the uncompressed content.
//
// enc may be nil when compression is CompressionNone. buf is the copy
// buffer; it is reused across calls by the packer.
func File(ctx context.Context, src io.Reader, dst io.Writer, enc *zstd.Encoder, buf []byte, compression format.Compression) (stored, original uint64, hash [format.HashSize]byte, err error) {
	if err = ctx.Err(); err != nil {
		return 0, 0, hash, err
	}

	h := sha1.New()
	tee := io.TeeReader(src, h)

	switch compression {
	case format.CompressionZstd:
		cw := &countingWriter{w: dst}
		enc.Reset(cw)
		n, copyErr := io.CopyBuffer(enc, tee, buf)
		if copyErr != nil {
			return 0, 0, hash, copyErr
		}
		if closeErr := enc.Close(); closeErr != nil {
			return 0, 0, hash, fmt.Errorf("flush zstd stream: %w", closeErr)
		}
		stored = cw.n
		original = uint64(n)
	case format.CompressionNone:
		n, copyErr := io.CopyBuffer(dst, tee, buf)
		if copyErr != nil {
			return 0, 0, hash, copyErr
		}
		stored = uint64(n)
		original = uint64(n)
	default:
		return 0, 0, hash, fmt.Errorf("unsupported compression: %d", compression)
	}

	h.Sum(hash[:0])
	return stored, original, hash, nil
}

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}
