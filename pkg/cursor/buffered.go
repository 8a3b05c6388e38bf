package cursor

import (
	"io"
	"os"

	"github.com/mbatko/messif-go/pkg/errors"
)

// BufferedInputCursor refills a fixed-size buffer from the file at the
// cursor's current position, the way a sequential scan or a pooled reader
// re-reads a small window at a time instead of issuing one syscall per
// field.
type BufferedInputCursor struct {
	file     *os.File
	buf      []byte
	winStart uint64 // file offset buf[0] corresponds to
	winLen   int    // valid bytes currently cached in buf
	pos      uint64
}

// NewBufferedInputCursor creates a cursor positioned at start, using a
// bufSize-byte read-ahead window.
func NewBufferedInputCursor(f *os.File, start uint64, bufSize uint32) *BufferedInputCursor {
	return &BufferedInputCursor{file: f, buf: make([]byte, bufSize), pos: start}
}

func (c *BufferedInputCursor) Position() uint64 { return c.pos }

// SetPosition moves the cursor and drops the read-ahead window, so the next
// read fetches the file again and observes bytes written since the window
// was filled.
func (c *BufferedInputCursor) SetPosition(pos uint64) {
	c.pos = pos
	c.winLen = 0
}

func (c *BufferedInputCursor) BufferedSize() int { return c.winLen }
func (c *BufferedInputCursor) IsDirty() bool     { return false }
func (c *BufferedInputCursor) Close() error      { return nil }

// ReadExact fills buf, refilling the read-ahead window from the file
// whenever the requested range is not already cached.
func (c *BufferedInputCursor) ReadExact(buf []byte) error {
	for len(buf) > 0 {
		if c.pos < c.winStart || c.pos >= c.winStart+uint64(c.winLen) {
			if err := c.refill(); err != nil {
				return err
			}
		}
		avail := int(c.winStart+uint64(c.winLen) - c.pos)
		off := int(c.pos - c.winStart)
		n := len(buf)
		if n > avail {
			n = avail
		}
		copy(buf[:n], c.buf[off:off+n])
		buf = buf[n:]
		c.pos += uint64(n)
	}
	return nil
}

func (c *BufferedInputCursor) refill() error {
	n, err := c.file.ReadAt(c.buf, int64(c.pos))
	if n == 0 && err != nil {
		if err == io.EOF {
			return errors.NewIOError(io.ErrUnexpectedEOF, "read", c.file.Name())
		}
		return errors.NewIOError(err, "read", c.file.Name())
	}
	c.winStart = c.pos
	c.winLen = n
	return nil
}

// BufferedOutputCursor stages writes into a fixed-size buffer and spills to
// the file, via WriteAt, once the buffer fills or Flush is called.
type BufferedOutputCursor struct {
	file      *os.File
	buf       []byte
	staged    int    // bytes currently staged in buf
	flushedAt uint64 // file offset the staged bytes will land at
	pos       uint64
	dirty     bool
}

// NewBufferedOutputCursor creates a cursor positioned at start, staging
// writes into a bufSize-byte buffer.
func NewBufferedOutputCursor(f *os.File, start uint64, bufSize uint32) *BufferedOutputCursor {
	return &BufferedOutputCursor{file: f, buf: make([]byte, bufSize), flushedAt: start, pos: start}
}

func (c *BufferedOutputCursor) Position() uint64       { return c.pos }
func (c *BufferedOutputCursor) BufferedSize() int      { return c.staged }
func (c *BufferedOutputCursor) IsDirty() bool          { return c.dirty }

// SetPosition flushes any staged bytes before jumping elsewhere in the
// file: staged bytes are only ever meant to land contiguously.
func (c *BufferedOutputCursor) SetPosition(pos uint64) {
	if c.staged > 0 {
		_ = c.Flush(false)
	}
	c.flushedAt = pos
	c.pos = pos
}

// Write stages buf, spilling to the file first if it would overflow the
// buffer.
func (c *BufferedOutputCursor) Write(buf []byte) (int, error) {
	written := 0
	for len(buf) > 0 {
		room := len(c.buf) - c.staged
		if room == 0 {
			if err := c.Flush(false); err != nil {
				return written, err
			}
			room = len(c.buf)
		}
		n := len(buf)
		if n > room {
			n = room
		}
		copy(c.buf[c.staged:c.staged+n], buf[:n])
		c.staged += n
		c.pos += uint64(n)
		c.dirty = true
		buf = buf[n:]
		written += n
	}
	return written, nil
}

// Flush spills any staged bytes to the file and, if syncPhysical, fsyncs.
// Once the staged bytes reach the file, a reader positioned at the same
// offset observes them via its own ReadAt, so dirty clears here regardless
// of syncPhysical; syncPhysical only adds the durability guarantee.
func (c *BufferedOutputCursor) Flush(syncPhysical bool) error {
	if c.staged > 0 {
		if _, err := c.file.WriteAt(c.buf[:c.staged], int64(c.flushedAt)); err != nil {
			return errors.NewIOError(err, "write", c.file.Name())
		}
		c.flushedAt += uint64(c.staged)
		c.staged = 0
	}
	c.dirty = false
	if syncPhysical {
		if err := c.file.Sync(); err != nil {
			return errors.ClassifySyncError(err, c.file.Name(), c.file.Name(), int(c.flushedAt))
		}
	}
	return nil
}

func (c *BufferedOutputCursor) Close() error {
	return c.Flush(false)
}
