// Package file reads and verifies entry content from an archive's data
// region.
package file

import (
	"bytes"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/calyptra/pak/internal/format"
)

// DefaultMaxFileSize is the default per-entry size limit (256MB).
const DefaultMaxFileSize = 256 << 20

// Source provides random access to the archive's data region.
type Source interface {
	io.ReaderAt
	Size() int64
}

// Reader reads and verifies entry content from a Source.
type Reader struct {
	source      Source
	maxFileSize uint64
	decoders    sync.Pool
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxFileSize sets the maximum entry size limit. Set to 0 to disable.
func WithMaxFileSize(limit uint64) Option {
	return func(r *Reader) {
		r.maxFileSize = limit
	}
}

// NewReader creates a Reader over the given data region source.
func NewReader(source Source, opts ...Option) *Reader {
	r := &Reader{
		source:      source,
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ValidateForRead checks that an entry is safe to read from a source of the
// given size: sizes within the configured limit, and the stored range
// inside the data region.
func (r *Reader) ValidateForRead(entry *format.Entry) error {
	sourceSize := r.source.Size()
	if sourceSize < 0 {
		return format.ErrSizeOverflow
	}
	if r.maxFileSize > 0 {
		if entry.CompressedSize > r.maxFileSize || entry.UncompressedSize > r.maxFileSize {
			return format.ErrSizeOverflow
		}
	}
	if err := format.ValidateEntries([]format.Entry{*entry}, uint64(sourceSize)); err != nil {
		return err
	}
	return nil
}

// ReadAll reads the entire content of an entry, decompresses if needed,
// and verifies the hash. Returns the uncompressed content.
func (r *Reader) ReadAll(entry *format.Entry) ([]byte, error) {
	if err := r.ValidateForRead(entry); err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Path, err)
	}

	rc := r.openRaw(entry)
	buf := bytes.NewBuffer(make([]byte, 0, entry.UncompressedSize))
	_, err := io.Copy(buf, rc)
	cerr := rc.Close()
	if err != nil {
		return nil, err
	}
	if cerr != nil {
		return nil, cerr
	}
	return buf.Bytes(), nil
}

// Open returns a verified streaming reader for the entry's uncompressed
// content. The reader fails with ErrHashMismatch at EOF if the content does
// not match the entry's stored hash, and with ErrTruncated if the
// uncompressed stream is shorter or longer than recorded.
func (r *Reader) Open(entry *format.Entry) (io.ReadCloser, error) {
	if err := r.ValidateForRead(entry); err != nil {
		return nil, fmt.Errorf("open %s: %w", entry.Path, err)
	}
	return r.openRaw(entry), nil
}

// openRaw builds the verifying reader chain without bounds validation.
func (r *Reader) openRaw(entry *format.Entry) io.ReadCloser {
	section := io.NewSectionReader(r.source, int64(entry.Offset), int64(entry.CompressedSize))

	ef := &entryReader{
		entry: entry,
		hash:  sha1.New(),
	}
	if entry.Compression == format.CompressionZstd {
		dec, err := r.getDecoder(section)
		if err != nil {
			ef.err = fmt.Errorf("open %s: %w", entry.Path, err)
			return ef
		}
		ef.src = dec
		ef.release = func() { r.putDecoder(dec) }
	} else {
		ef.src = section
	}
	return ef
}

func (r *Reader) getDecoder(src io.Reader) (*zstd.Decoder, error) {
	if v := r.decoders.Get(); v != nil {
		dec := v.(*zstd.Decoder)
		if err := dec.Reset(src); err != nil {
			return nil, err
		}
		return dec, nil
	}
	return zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
}

func (r *Reader) putDecoder(dec *zstd.Decoder) {
	// Detach from the section reader so the pool does not pin archive
	// sources.
	if err := dec.Reset(nil); err != nil {
		dec.Close()
		return
	}
	r.decoders.Put(dec)
}

// entryReader streams an entry's uncompressed content, hashing as it goes.
// At EOF it verifies the byte count and SHA-1 against the index record.
type entryReader struct {
	entry    *format.Entry
	src      io.Reader
	hash     hash.Hash
	read     uint64
	release  func()
	err      error
	verified bool
}

func (f *entryReader) Read(p []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := f.src.Read(p)
	if n > 0 {
		f.hash.Write(p[:n])
		f.read += uint64(n)
		if f.read > f.entry.UncompressedSize {
			f.err = fmt.Errorf("%w: %q longer than recorded size %d",
				format.ErrTruncated, f.entry.Path, f.entry.UncompressedSize)
			return n, f.err
		}
	}
	if err == io.EOF {
		if verr := f.verify(); verr != nil {
			f.err = verr
			return n, verr
		}
	} else if err != nil {
		f.err = err
	}
	return n, err
}

// verify checks the uncompressed length and hash once the stream is fully
// consumed.
func (f *entryReader) verify() error {
	if f.verified {
		return nil
	}
	f.verified = true
	if f.read != f.entry.UncompressedSize {
		return fmt.Errorf("%w: %q is %d bytes, index records %d",
			format.ErrTruncated, f.entry.Path, f.read, f.entry.UncompressedSize)
	}
	var sum [format.HashSize]byte
	f.hash.Sum(sum[:0])
	if sum != f.entry.Hash {
		return fmt.Errorf("%w: %q", format.ErrHashMismatch, f.entry.Path)
	}
	return nil
}

// Close releases the decoder. If the stream was fully read, Close reports
// any pending verification failure; a partially read entry closes cleanly
// but its content is unverified.
func (f *entryReader) Close() error {
	if f.release != nil {
		f.release()
		f.release = nil
	}
	if f.err != nil && f.err != io.EOF {
		return f.err
	}
	return nil
}
