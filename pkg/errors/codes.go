package errors

import stdErrors "errors"

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// The error kinds the storage, cursor, and search layers can surface.
// Every StorageError/IndexError carries one of these; the package-level
// sentinels below let callers use errors.Is without depending on the
// concrete wrapper type.
const (
	// ErrorCodeCapacityFull means a store would exceed the segment's
	// maximalLength. The storage's occupation counters are left unchanged.
	ErrorCodeCapacityFull ErrorCode = "CAPACITY_FULL"

	// ErrorCodeReadOnly means a mutation was attempted on a storage opened
	// with readOnly=true.
	ErrorCodeReadOnly ErrorCode = "READ_ONLY"

	// ErrorCodeInvalidAddress means an address is negative, lies beyond the
	// log, does not point at a size prefix, or already names a tombstoned
	// record.
	ErrorCodeInvalidAddress ErrorCode = "INVALID_ADDRESS"

	// ErrorCodeCorrupted means a header field mismatch or a truncated
	// payload was discovered during a read or recovery scan.
	ErrorCodeCorrupted ErrorCode = "CORRUPTED"

	// ErrorCodeVersionMismatch means the on-disk magic/version or
	// serializator fingerprint differs from the opener's.
	ErrorCodeVersionMismatch ErrorCode = "VERSION_MISMATCH"

	// ErrorCodeIO means an underlying read/write/fsync/mmap call failed,
	// including interruption of a blocking call.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput is used by configuration/argument validation
	// failures that precede any I/O.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeClosed means an operation was attempted on a storage,
	// cursor, or search that has already been closed.
	ErrorCodeClosed ErrorCode = "CLOSED"

	// ErrorCodeInternal is the fallback for failures that don't fit any
	// of the above, e.g. programming errors caught by an assertion.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Sentinel errors for errors.Is comparisons. Every constructor in storage.go
// and index.go whose code has a sentinel here wraps it as the baseError's
// cause, so
// errors.Is(err, ErrCapacityFull) works even through the structured
// wrappers.
var (
	ErrCapacityFull    = stdErrors.New("messif: capacity full")
	ErrReadOnly        = stdErrors.New("messif: storage is read-only")
	ErrInvalidAddress  = stdErrors.New("messif: invalid address")
	ErrCorrupted       = stdErrors.New("messif: corrupted data")
	ErrVersionMismatch = stdErrors.New("messif: version mismatch")
	ErrIO              = stdErrors.New("messif: io error")
	ErrClosed          = stdErrors.New("messif: already closed")
)
