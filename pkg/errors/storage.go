package errors

// StorageError is a specialized error type for block-storage operations.
// It embeds baseError and adds the location context (which segment, which
// byte offset, which file) needed to actually act on a storage failure.
type StorageError struct {
	*baseError
	startPosition uint64 // Segment offset within a possibly-shared file.
	offset        int    // Byte offset within the segment where the problem happened.
	fileName      string // Name of the file that caused the issue.
	path          string // Path of the file that caused the issue.
}

// NewStorageError creates a new storage-specific error.
func NewStorageError(err error, code ErrorCode, msg string) *StorageError {
	return &StorageError{baseError: NewBaseError(err, code, msg)}
}

// NewCapacityFullError reports a store that would exceed maximalLength.
func NewCapacityFullError(path string, offset int) *StorageError {
	return NewStorageError(ErrCapacityFull, ErrorCodeCapacityFull, "store would exceed maximalLength").
		WithPath(path).WithOffset(offset)
}

// NewReadOnlyError reports a mutation attempted on a read-only storage.
func NewReadOnlyError(op string) *StorageError {
	return NewStorageError(ErrReadOnly, ErrorCodeReadOnly, "storage is read-only: "+op)
}

// NewInvalidAddressError reports an address that is negative, beyond the
// log, or does not point at a size prefix.
func NewInvalidAddressError(offset int64, reason string) *StorageError {
	return NewStorageError(ErrInvalidAddress, ErrorCodeInvalidAddress, reason).
		WithOffset(int(offset))
}

// NewCorruptedError reports a header mismatch or truncated payload.
func NewCorruptedError(err error, path string, offset int) *StorageError {
	return NewStorageError(joinCause(ErrCorrupted, err), ErrorCodeCorrupted, "corrupted storage data").
		WithPath(path).WithOffset(offset)
}

// NewVersionMismatchError reports an on-disk magic/version or serializator
// fingerprint that differs from the opener's.
func NewVersionMismatchError(path string) *StorageError {
	return NewStorageError(ErrVersionMismatch, ErrorCodeVersionMismatch, "on-disk format version or fingerprint mismatch").
		WithPath(path)
}

// NewIOError wraps an underlying read/write/fsync/mmap failure.
func NewIOError(err error, op, path string) *StorageError {
	return NewStorageError(joinCause(ErrIO, err), ErrorCodeIO, "i/o failure during "+op).
		WithPath(path)
}

// WithStartPosition records the segment's start offset within its file.
func (se *StorageError) WithStartPosition(pos uint64) *StorageError {
	se.startPosition = pos
	return se
}

// WithOffset records the byte position where the error occurred.
func (se *StorageError) WithOffset(offset int) *StorageError {
	se.offset = offset
	return se
}

// WithFileName captures which file was being processed when the error occurred.
func (se *StorageError) WithFileName(fileName string) *StorageError {
	se.fileName = fileName
	return se
}

// WithPath captures which path was being processed when the error occurred.
func (se *StorageError) WithPath(path string) *StorageError {
	se.path = path
	return se
}

// WithDetail adds contextual information while preserving the StorageError type.
func (se *StorageError) WithDetail(key string, value any) *StorageError {
	se.baseError.WithDetail(key, value)
	return se
}

// StartPosition returns the segment's start offset within its file.
func (se *StorageError) StartPosition() uint64 {
	return se.startPosition
}

// Offset returns the byte offset within the segment where the error happened.
func (se *StorageError) Offset() int {
	return se.offset
}

// FileName returns the name of the file that was being processed.
func (se *StorageError) FileName() string {
	return se.fileName
}

// Path returns the path of the file that was being processed.
func (se *StorageError) Path() string {
	return se.path
}

// joinCause prefers wrapping the more specific sentinel while keeping the
// original cause reachable via errors.Is/errors.As down the chain.
func joinCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &sentinelWrap{sentinel: sentinel, cause: cause}
}

type sentinelWrap struct {
	sentinel error
	cause    error
}

func (w *sentinelWrap) Error() string { return w.cause.Error() }
func (w *sentinelWrap) Unwrap() []error {
	return []error{w.sentinel, w.cause}
}
