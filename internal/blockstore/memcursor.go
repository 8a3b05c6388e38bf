package blockstore

import "io"

// memCursor is a minimal read-only InputCursor over an already-fetched byte
// slice. ReadMany's async callbacks use it to hand the serializator a
// prefix-plus-payload pair that was assembled from two separate reads
// (a synchronous prefix peek, an asynchronous payload fetch) without
// re-touching the file.
type memCursor struct {
	data []byte
	pos  int
}

func (m *memCursor) Position() uint64       { return uint64(m.pos) }
func (m *memCursor) SetPosition(pos uint64) { m.pos = int(pos) }
func (m *memCursor) BufferedSize() int      { return len(m.data) - m.pos }
func (m *memCursor) IsDirty() bool          { return false }
func (m *memCursor) Close() error           { return nil }

func (m *memCursor) ReadExact(buf []byte) error {
	if m.pos+len(buf) > len(m.data) {
		return io.ErrUnexpectedEOF
	}
	copy(buf, m.data[m.pos:m.pos+len(buf)])
	m.pos += len(buf)
	return nil
}

// recordBuffer is a write-only OutputCursor that collects emitted bytes in
// memory instead of touching the file. Store writes a record through one of
// these first, so it can measure the record's true encoded length and check
// it against the capacity bound before any byte reaches the real output
// cursor, then replay the already-encoded bytes there in a single Write.
type recordBuffer struct {
	pos  uint64
	data []byte
}

func (b *recordBuffer) Position() uint64       { return b.pos }
func (b *recordBuffer) SetPosition(pos uint64) { b.pos = pos }
func (b *recordBuffer) BufferedSize() int      { return len(b.data) }
func (b *recordBuffer) IsDirty() bool          { return len(b.data) > 0 }
func (b *recordBuffer) Close() error           { return nil }
func (b *recordBuffer) Flush(bool) error       { return nil }

func (b *recordBuffer) Write(buf []byte) (int, error) {
	b.data = append(b.data, buf...)
	b.pos += uint64(len(buf))
	return len(buf), nil
}
