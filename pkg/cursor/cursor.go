// Package cursor provides the byte-level I/O abstractions the storage and
// search layers read and write object records through: a position-tracking
// cursor with mapped, buffered, and asynchronous implementations, each
// single-owner for the duration of a call.
package cursor

// Cursor is the contract shared by every input and output cursor: a
// logical file position independent of any other cursor over the same
// file, and resource release on Close.
type Cursor interface {
	// Position returns the current logical file offset.
	Position() uint64

	// SetPosition moves the cursor to an absolute file offset; the next
	// read or write starts from here. An input cursor performs no I/O
	// here; a buffered output cursor first flushes the bytes it has staged.
	SetPosition(pos uint64)

	// BufferedSize returns how many bytes the cursor currently holds in its
	// buffer: for an output cursor, bytes staged without having reached the
	// file; for a buffered input cursor, its read-ahead window.
	BufferedSize() int

	// IsDirty reports whether the cursor holds writes not yet visible to a
	// reader positioned at the same offset.
	IsDirty() bool

	// Close releases any mapping, buffer, or file handle the cursor holds.
	// A closed cursor must not be used again.
	Close() error
}

// InputCursor reads object records starting at its current position.
type InputCursor interface {
	Cursor

	// ReadExact fills buf entirely, advancing the position by len(buf). It
	// returns io.ErrUnexpectedEOF if fewer bytes remain before the cursor's
	// bound.
	ReadExact(buf []byte) error
}

// OutputCursor writes object records starting at its current position.
type OutputCursor interface {
	Cursor

	// Write stages buf for writing, advancing the position by len(buf). It
	// returns the number of bytes accepted; a short write never happens
	// silently, it fails with CapacityFull instead.
	Write(buf []byte) (int, error)

	// Flush forces any staged bytes to the file. syncPhysical additionally
	// fsyncs (or msyncs, for a mapped cursor) so the write survives a
	// crash.
	Flush(syncPhysical bool) error
}

// AsyncCallback receives the outcome of a queued ReadAsync.
type AsyncCallback interface {
	// Completed is invoked from a worker goroutine once cur has been
	// positioned and filled for the read that was queued.
	Completed(cur InputCursor)

	// Failed is invoked from a worker goroutine if the queued read could
	// not complete. cur is still returned to its pool by the caller.
	Failed(cur InputCursor, err error)
}

// AsyncInputCursor is an InputCursor that can additionally queue a
// non-blocking read against a worker pool.
type AsyncInputCursor interface {
	InputCursor

	// ReadAsync queues a read of len(buf) bytes at the cursor's current
	// position and returns immediately; cb is invoked from a worker once
	// the read lands or fails.
	ReadAsync(buf []byte, cb AsyncCallback) error
}
