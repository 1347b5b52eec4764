package pak

import (
	"log/slog"

	"github.com/calyptra/pak/internal/write"
)

// DefaultMaxFiles is the default limit used when no MaxFiles option is set.
const DefaultMaxFiles = 200_000

// SkipCompressionFunc returns true when a file should be stored uncompressed.
// It is called once per file and should be inexpensive.
type SkipCompressionFunc = write.SkipCompressionFunc

// DefaultSkipCompression returns a SkipCompressionFunc that skips small
// files and known already-compressed extensions.
var DefaultSkipCompression = write.DefaultSkipCompression

// createConfig holds configuration for archive creation.
type createConfig struct {
	compression     Compression
	mountPoint      string
	skipCompression []SkipCompressionFunc
	maxFiles        int
	workers         int
	progress        ProgressFunc
	logger          *slog.Logger
}

// CreateOption configures archive creation.
type CreateOption func(*createConfig)

// CreateWithCompression sets the compression algorithm to use. The default
// is CompressionNone; the host loader accepts uncompressed storage.
func CreateWithCompression(c Compression) CreateOption {
	return func(cfg *createConfig) {
		cfg.compression = c
	}
}

// CreateWithMountPoint records the mount point in the archive index. The
// host silently ignores archives whose content is not rooted at the
// directory it expects, so the caller is responsible for matching it.
func CreateWithMountPoint(mount string) CreateOption {
	return func(cfg *createConfig) {
		cfg.mountPoint = mount
	}
}

// CreateWithSkipCompression adds predicates that decide to store a file
// uncompressed. If any predicate returns true, compression is skipped for
// that file. These checks are on the hot path, so keep them cheap.
func CreateWithSkipCompression(fns ...SkipCompressionFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.skipCompression = append(cfg.skipCompression, fns...)
	}
}

// CreateWithMaxFiles limits the number of files included in the archive.
// Zero uses DefaultMaxFiles. Negative means no limit.
func CreateWithMaxFiles(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.maxFiles = n
	}
}

// CreateWithWorkers sets the number of files compressed concurrently.
// Index and data order stay deterministic regardless of worker count.
// Zero or one compresses sequentially.
func CreateWithWorkers(n int) CreateOption {
	return func(cfg *createConfig) {
		cfg.workers = n
	}
}

// CreateWithProgress registers a callback for progress events.
func CreateWithProgress(fn ProgressFunc) CreateOption {
	return func(cfg *createConfig) {
		cfg.progress = fn
	}
}

// CreateWithLogger sets the logger for archive creation. Nil disables
// logging.
func CreateWithLogger(logger *slog.Logger) CreateOption {
	return func(cfg *createConfig) {
		cfg.logger = logger
	}
}
