package cursor

import (
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/mbatko/messif-go/pkg/errors"
)

// mappedRegion is the memory mapping shared by every cursor opened over the
// same fixed segment window [start, start+length). Cursors only track their
// own logical position into it; the mapping itself, and the msync on
// flush, are shared state guarded by mu.
type mappedRegion struct {
	mu     sync.Mutex
	data   []byte
	start  uint64 // absolute file offset the mapping begins at
	path   string
	closed bool
}

// NewMappedRegion maps [start, start+length) of f for reading and, unless
// readOnly, writing. The mapping must not be crossed by any cursor write;
// MappedOutputCursor enforces that with CapacityFull.
func NewMappedRegion(f *os.File, start, length uint64, readOnly bool) (*mappedRegion, error) {
	prot := unix.PROT_READ
	if !readOnly {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(f.Fd()), int64(start), int(length), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.NewIOError(err, "mmap", f.Name())
	}
	return &mappedRegion{data: data, start: start, path: f.Name()}, nil
}

// Close unmaps the region. Safe to call once all cursors over it are done.
func (r *mappedRegion) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := unix.Munmap(r.data); err != nil {
		return errors.NewIOError(err, "munmap", r.path)
	}
	return nil
}

func (r *mappedRegion) end() uint64 {
	return r.start + uint64(len(r.data))
}

// MappedInputCursor reads directly from a shared memory mapping.
type MappedInputCursor struct {
	region *mappedRegion
	pos    uint64
}

// NewMappedInputCursor creates a cursor positioned at region's start.
func NewMappedInputCursor(region *mappedRegion) *MappedInputCursor {
	return &MappedInputCursor{region: region, pos: region.start}
}

func (c *MappedInputCursor) Position() uint64     { return c.pos }
func (c *MappedInputCursor) SetPosition(pos uint64) { c.pos = pos }
func (c *MappedInputCursor) BufferedSize() int    { return 0 }
func (c *MappedInputCursor) IsDirty() bool        { return false }
func (c *MappedInputCursor) Close() error         { return nil }

func (c *MappedInputCursor) ReadExact(buf []byte) error {
	r := c.region
	if c.pos < r.start {
		return errors.NewInvalidAddressError(int64(c.pos), "read starts before segment")
	}
	if c.pos+uint64(len(buf)) > r.end() {
		return errors.NewIOError(io.ErrUnexpectedEOF, "read", r.path)
	}
	off := c.pos - r.start
	copy(buf, r.data[off:off+uint64(len(buf))])
	c.pos += uint64(len(buf))
	return nil
}

// MappedOutputCursor writes directly into a shared memory mapping and
// forces it to disk via msync on Flush(syncPhysical=true).
type MappedOutputCursor struct {
	region *mappedRegion
	pos    uint64
	dirty  bool
}

// NewMappedOutputCursor creates a cursor positioned at region's start.
func NewMappedOutputCursor(region *mappedRegion) *MappedOutputCursor {
	return &MappedOutputCursor{region: region, pos: region.start}
}

func (c *MappedOutputCursor) Position() uint64     { return c.pos }
func (c *MappedOutputCursor) SetPosition(pos uint64) { c.pos = pos }
func (c *MappedOutputCursor) BufferedSize() int    { return 0 }
func (c *MappedOutputCursor) IsDirty() bool        { return c.dirty }

func (c *MappedOutputCursor) Write(buf []byte) (int, error) {
	r := c.region
	if c.pos+uint64(len(buf)) > r.end() {
		return 0, errors.NewCapacityFullError(r.path, int(c.pos-r.start))
	}
	off := c.pos - r.start
	copy(r.data[off:off+uint64(len(buf))], buf)
	c.pos += uint64(len(buf))
	c.dirty = true
	return len(buf), nil
}

func (c *MappedOutputCursor) Flush(syncPhysical bool) error {
	if !syncPhysical {
		// The mapping is MAP_SHARED: every reader over the same file sees
		// these bytes already, physical durability aside.
		return nil
	}
	r := c.region
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := unix.Msync(r.data, unix.MS_SYNC); err != nil {
		return errors.NewIOError(err, "msync", r.path)
	}
	c.dirty = false
	return nil
}

func (c *MappedOutputCursor) Close() error { return nil }
