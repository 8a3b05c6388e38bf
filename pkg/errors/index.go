package errors

// IndexError is a specialized error type for the indexed-search layer:
// failures building or walking a Search over a storage's object log
// (invalid key intervals, comparator failures, stale addresses handed back
// to a closed search).
type IndexError struct {
	*baseError
	startPosition uint64 // Start offset of the storage the search was reading from.
	operation     string // Which Search method was being performed ("ReadNext", "Remove", ...).
	key           string // String form of the key or address involved, if any.
}

// NewIndexError creates a new search-specific error with the provided context.
func NewIndexError(err error, code ErrorCode, msg string) *IndexError {
	return &IndexError{baseError: NewBaseError(err, code, msg)}
}

// Override base error methods to return *IndexError instead of *baseError.

// WithMessage updates the error message while maintaining the IndexError type.
func (ie *IndexError) WithMessage(msg string) *IndexError {
	ie.baseError.WithMessage(msg)
	return ie
}

// WithCode sets the error code while preserving the IndexError type.
func (ie *IndexError) WithCode(code ErrorCode) *IndexError {
	ie.baseError.WithCode(code)
	return ie
}

// WithDetail adds contextual information while maintaining the IndexError type.
func (ie *IndexError) WithDetail(key string, value any) *IndexError {
	ie.baseError.WithDetail(key, value)
	return ie
}

// WithStartPosition records the start offset of the storage backing the search.
func (ie *IndexError) WithStartPosition(pos uint64) *IndexError {
	ie.startPosition = pos
	return ie
}

// WithOperation records which Search method was being performed.
func (ie *IndexError) WithOperation(operation string) *IndexError {
	ie.operation = operation
	return ie
}

// WithKey records the string form of the key or address involved.
func (ie *IndexError) WithKey(key string) *IndexError {
	ie.key = key
	return ie
}

// StartPosition returns the start offset of the storage backing the search.
func (ie *IndexError) StartPosition() uint64 {
	return ie.startPosition
}

// Operation returns the name of the Search method that was being performed.
func (ie *IndexError) Operation() string {
	return ie.operation
}

// Key returns the string form of the key or address involved.
func (ie *IndexError) Key() string {
	return ie.key
}

// NewClosedSearchError reports an operation attempted on a Search that has
// already been closed.
func NewClosedSearchError(operation string) *IndexError {
	return NewIndexError(ErrClosed, ErrorCodeClosed, "search already closed").
		WithOperation(operation)
}

// NewInvalidIntervalError reports a key interval whose lower bound sorts
// after its upper bound.
func NewInvalidIntervalError(lower, upper string) *IndexError {
	return NewIndexError(nil, ErrorCodeInvalidInput, "invalid key interval").
		WithOperation("NewSearch").
		WithDetail("lower", lower).
		WithDetail("upper", upper)
}

// NewComparatorError wraps an error raised by a caller-supplied comparator
// while a Search was filtering a candidate record.
func NewComparatorError(err error, operation string) *IndexError {
	return NewIndexError(err, ErrorCodeInternal, "comparator rejected candidate record").
		WithOperation(operation)
}

// NewStaleAddressError reports a Search operation that needs a current
// record (Remove, CurrentAddress) made while the search has none: ReadNext
// has not yielded one yet, or Remove already invalidated it. The recorded
// operation is "Remove"; callers reporting another one override it with
// WithOperation.
func NewStaleAddressError(key string) *IndexError {
	return NewIndexError(ErrInvalidAddress, ErrorCodeInvalidAddress, "address is stale or foreign to this search").
		WithOperation("Remove").
		WithKey(key)
}
