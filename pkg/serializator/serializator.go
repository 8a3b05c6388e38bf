// Package serializator converts objects to and from the length-prefixed
// binary records a storage's object log is made of. It knows nothing about
// what an object actually is; callers register a Codec per class and the
// serializator only handles the record framing and the class tag.
package serializator

import (
	"encoding/binary"
	stdErrors "errors"
	"io"

	"github.com/mbatko/messif-go/pkg/cursor"
	"github.com/mbatko/messif-go/pkg/errors"
)

// ErrEndOfLog is returned by Read when the size prefix at the cursor's
// position is the zero terminator. It is a sentinel in the same spirit as
// io.EOF: reaching it is the expected way a forward scan ends, not a
// failure, and callers compare against it with errors.Is rather than
// logging it as an error.
var ErrEndOfLog = stdErrors.New("messif: end of log")

// Codec encodes and decodes the opaque payload for one registered class.
// The class itself — what a "vector" or a "key" is — is a concern of the
// caller; the serializator only ever sees the bytes Encode produces and
// hands them back to Decode unchanged.
type Codec interface {
	// ClassName identifies the class for the multi-class tag and for the
	// caching variant's fingerprint.
	ClassName() string
	Encode(obj any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// Classed is implemented by objects that know their own registered class
// name, so a serializator can pick the right Codec to encode them with
// without guessing from the encoded bytes.
type Classed interface {
	ClassName() string
}

// Serializator is the write/read/skip/fingerprint contract every block
// storage is opened with.
type Serializator interface {
	// Write emits the record's size prefix followed by obj's encoded
	// payload, returning the total bytes written including the prefix.
	Write(cur cursor.OutputCursor, obj any) (int, error)

	// Read reads the size prefix at the cursor's current position. A zero
	// prefix fails with ErrEndOfLog. A negative prefix is a tombstone: its
	// payload is skipped and the next record is read instead, so an
	// arbitrary run of tombstones is transparent to the caller. A positive
	// prefix is decoded and returned.
	Read(cur cursor.InputCursor) (any, error)

	// Skip reads the size prefix and advances the cursor past the payload
	// without decoding it, returning the signed size that was read
	// (negative for a tombstone, zero at the terminator). Both
	// implementations ignore includeDeleted: a tombstone is always
	// traversed and always reported with its negative size.
	Skip(cur cursor.InputCursor, includeDeleted bool) (int32, error)

	// Fingerprint is a stable hash of the serializator's configuration,
	// written into a storage's header and checked against on reopen.
	Fingerprint() uint32
}

const sizePrefixLen = 4

// readSizePrefix reads the 4-byte signed size prefix at the cursor's
// current position. It never returns ErrEndOfLog itself — that conversion
// happens in Read, which is the only caller that treats a zero prefix as
// anything other than data.
func readSizePrefix(cur cursor.InputCursor) (int32, error) {
	var buf [sizePrefixLen]byte
	if err := cur.ReadExact(buf[:]); err != nil {
		if stdErrors.Is(err, io.ErrUnexpectedEOF) {
			return 0, errors.NewCorruptedError(err, "", int(cur.Position()))
		}
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

func writeSizePrefix(cur cursor.OutputCursor, size int32) error {
	var buf [sizePrefixLen]byte
	binary.BigEndian.PutUint32(buf[:], uint32(size))
	_, err := cur.Write(buf[:])
	return err
}

func skipPayload(cur cursor.InputCursor, n int) error {
	if n == 0 {
		return nil
	}
	// A forward seek past the payload; set_position is the cursor's own
	// bookkeeping, it performs no I/O itself.
	cur.SetPosition(cur.Position() + uint64(n))
	return nil
}
