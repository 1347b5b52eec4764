package pak

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/calyptra/pak/internal/format"
	"github.com/calyptra/pak/internal/write"
)

// Create builds an archive from the contents of dir and writes it to w.
//
// Files are walked recursively in deterministic path order; relative paths
// become entry paths unchanged. Empty directories are not preserved and
// symbolic links are not followed. Every input path is validated against
// the format limits before any archive bytes are produced.
//
// The data region is spooled to a temporary file so the header and index,
// which precede it in the archive, can be written with final sizes. Nothing
// is written to w until every source file has been read successfully.
//
// The context can be used for cancellation of long-running packs.
func Create(ctx context.Context, dir string, w io.Writer, opts ...CreateOption) error {
	cfg := createConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	p := &packer{cfg: cfg, logger: cfg.logger}
	p.log().Info("creating archive", "dir", dir, "compression", cfg.compression.String())

	files, err := p.collect(ctx, root)
	if err != nil {
		return err
	}

	spool, err := os.CreateTemp("", "pak-data-*")
	if err != nil {
		return fmt.Errorf("create data spool: %w", err)
	}
	defer func() {
		spool.Close()
		os.Remove(spool.Name())
	}()

	entries, dataSize, err := p.writeData(ctx, root, spool, files)
	if err != nil {
		return err
	}
	p.log().Debug("data region written", "entry_count", len(entries), "data_size", dataSize)

	index, err := format.EncodeIndex(cfg.mountPoint, entries)
	if err != nil {
		return err
	}

	hdr := format.Header{
		Magic:       format.Magic,
		Version:     format.Version,
		EntryCount:  uint32(len(entries)),
		IndexOffset: format.HeaderSize,
		IndexSize:   uint64(len(index)),
		IndexSum:    xxhash.Sum64(index),
		DataOffset:  format.HeaderSize + uint64(len(index)),
		DataSize:    dataSize,
	}
	if err := format.WriteHeader(w, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind data spool: %w", err)
	}
	if _, err := io.Copy(w, spool); err != nil {
		return fmt.Errorf("write data region: %w", err)
	}
	return nil
}

// packer holds state for archive creation.
type packer struct {
	cfg    createConfig
	logger *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (p *packer) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// reportProgress sends a progress event if a callback is configured.
func (p *packer) reportProgress(stage ProgressStage, path string, bytesDone uint64, filesDone, filesTotal int) {
	if p.cfg.progress == nil {
		return
	}
	p.cfg.progress(ProgressEvent{
		Stage:      stage,
		Path:       path,
		BytesDone:  bytesDone,
		FilesDone:  filesDone,
		FilesTotal: filesTotal,
	})
}

// sourceFile is one file selected for packing, in final index order.
type sourceFile struct {
	path        string // entry path, forward slashes
	fsPath      string // path relative to root, native separators
	compression Compression
}

// collect walks the source tree and validates every candidate before any
// output is produced. Walk order is lexical, which fixes the index and data
// order of the archive.
func (p *packer) collect(ctx context.Context, root *os.Root) ([]sourceFile, error) {
	maxFiles := p.cfg.maxFiles
	if maxFiles == 0 {
		maxFiles = DefaultMaxFiles
	}

	p.reportProgress(StageEnumerating, "", 0, 0, 0)

	var files []sourceFile
	err := fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			if !d.IsDir() {
				p.log().Debug("skipped non-regular file", "path", path)
			}
			return nil
		}
		if err := format.ValidatePath(path); err != nil {
			return err
		}
		if maxFiles > 0 && len(files) >= maxFiles {
			return fmt.Errorf("%w: limit %d", ErrTooManyFiles, maxFiles)
		}

		compression := p.cfg.compression
		if compression != CompressionNone {
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if write.ShouldSkip(path, info, p.cfg.skipCompression) {
				compression = CompressionNone
			}
		}

		files = append(files, sourceFile{
			path:        path,
			fsPath:      filepath.FromSlash(path),
			compression: compression,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// writeData writes every file's content to the data spool and returns the
// index entries with final offsets. With more than one worker, compression
// and hashing run concurrently but content is committed to the spool in
// collection order, so output is reproducible across runs.
func (p *packer) writeData(ctx context.Context, root *os.Root, spool io.Writer, files []sourceFile) ([]Entry, uint64, error) {
	workers := p.cfg.workers
	if workers <= 0 {
		workers = 1
	}
	if workers > runtime.GOMAXPROCS(0) {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > 1 {
		return p.writeDataParallel(ctx, root, spool, files, workers)
	}

	var enc *zstd.Encoder
	if p.cfg.compression != CompressionNone {
		var err error
		enc, err = newEncoder()
		if err != nil {
			return nil, 0, err
		}
	}
	buf := make([]byte, 32*1024)

	entries := make([]Entry, 0, len(files))
	var offset uint64
	for i := range files {
		f := &files[i]
		entry, err := p.writeOne(ctx, root, spool, enc, buf, f)
		if err != nil {
			return nil, 0, err
		}
		entry.Offset = offset
		offset += entry.CompressedSize
		entries = append(entries, entry)
		p.reportProgress(StageWriting, f.path, offset, len(entries), len(files))
	}
	return entries, offset, nil
}

// writeOne reads a single source file and writes its (possibly compressed)
// content to dst.
func (p *packer) writeOne(ctx context.Context, root *os.Root, dst io.Writer, enc *zstd.Encoder, buf []byte, f *sourceFile) (Entry, error) {
	src, err := root.Open(f.fsPath)
	if err != nil {
		return Entry{}, fmt.Errorf("read %s: %w", f.path, err)
	}
	defer src.Close()

	stored, original, hash, err := write.File(ctx, src, dst, enc, buf, f.compression)
	if err != nil {
		return Entry{}, fmt.Errorf("pack %s: %w", f.path, err)
	}
	return Entry{
		Path:             f.path,
		CompressedSize:   stored,
		UncompressedSize: original,
		Compression:      f.compression,
		Hash:             hash,
	}, nil
}

// writeDataParallel fans file compression out to a fixed pool of workers
// while the calling goroutine commits results to the spool strictly in
// order. All group goroutines are started here before the commit loop, so
// g.Wait never races a pending g.Go.
func (p *packer) writeDataParallel(ctx context.Context, root *os.Root, spool io.Writer, files []sourceFile, workers int) ([]Entry, uint64, error) {
	type result struct {
		entry Entry
		data  []byte
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Unbuffered: a worker holds its compressed output until the committer
	// reaches its slot, so in-flight memory is bounded by the worker count.
	results := make([]chan result, len(files))
	for i := range results {
		results[i] = make(chan result)
	}

	if workers > len(files) {
		workers = len(files)
	}
	tasks := make(chan int)
	for range workers {
		g.Go(func() error {
			var enc *zstd.Encoder
			buf := make([]byte, 32*1024)
			for i := range tasks {
				f := &files[i]
				if f.compression != CompressionNone && enc == nil {
					var err error
					enc, err = newEncoder()
					if err != nil {
						return err
					}
				}
				var out bytes.Buffer
				entry, err := p.writeOne(gctx, root, &out, enc, buf, f)
				if err != nil {
					return err
				}
				select {
				case results[i] <- result{entry: entry, data: out.Bytes()}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(tasks)
		for i := range files {
			select {
			case tasks <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	entries := make([]Entry, 0, len(files))
	var offset uint64
	for i := range files {
		var res result
		select {
		case res = <-results[i]:
		case <-gctx.Done():
			if err := g.Wait(); err != nil {
				return nil, 0, err
			}
			return nil, 0, gctx.Err()
		}
		if _, err := spool.Write(res.data); err != nil {
			cancel()
			_ = g.Wait()
			return nil, 0, fmt.Errorf("write data spool: %w", err)
		}
		res.entry.Offset = offset
		offset += res.entry.CompressedSize
		entries = append(entries, res.entry)
		p.reportProgress(StageWriting, res.entry.Path, offset, len(entries), len(files))
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return entries, offset, nil
}

// newEncoder builds the packer's zstd encoder. Concurrency is handled at
// the file level, so each encoder runs single-threaded.
func newEncoder() (*zstd.Encoder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return enc, nil
}
