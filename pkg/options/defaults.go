package options

const (
	// DefaultBufferSize is the I/O buffer size used when BufferSize is left at 0.
	DefaultBufferSize uint32 = 16 * 1024

	// DefaultAsyncThreads is the worker-pool size for an asynchronous cursor
	// used when AsyncThreads is left at 0.
	DefaultAsyncThreads uint32 = 128

	// DefaultMaximalLength bounds a storage's segment, header included, when
	// MaximalLength is left at 0.
	DefaultMaximalLength uint64 = 1 * 1024 * 1024 * 1024

	// DefaultDir is the directory a temp-named segment file is created under
	// when neither File nor Dir is set explicitly.
	DefaultDir = "/var/lib/messif"

	// DefaultFilePrefix names the temp file created in Dir mode:
	// "<prefix>_XXXX.ds".
	DefaultFilePrefix = "disk_storage"
)

// Holds the default configuration settings for a disk-backed storage.
var defaultOptions = Options{
	Dir:           DefaultDir,
	BufferSize:    DefaultBufferSize,
	AsyncThreads:  DefaultAsyncThreads,
	MaximalLength: DefaultMaximalLength,
}

// NewDefaultOptions returns the baseline configuration every OptionFunc is
// applied on top of.
func NewDefaultOptions() Options {
	return defaultOptions
}
