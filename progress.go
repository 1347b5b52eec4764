package pak

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageEnumerating is reported while the packer walks the source tree.
	StageEnumerating ProgressStage = iota

	// StageWriting is reported as entry content is written to the archive.
	StageWriting

	// StageExtracting is reported as entries are written to the
	// destination directory.
	StageExtracting
)

// String returns the human-readable name of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageEnumerating:
		return "enumerating"
	case StageWriting:
		return "writing"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressEvent represents a progress update during packing or extraction.
type ProgressEvent struct {
	Stage      ProgressStage
	Path       string
	BytesDone  uint64
	FilesDone  int
	FilesTotal int
}

// ProgressFunc receives progress updates. Callbacks run on the operation's
// goroutine and should return quickly.
type ProgressFunc func(ProgressEvent)
