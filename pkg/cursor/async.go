package cursor

import (
	"context"
	"io"
	"os"

	"golang.org/x/sync/semaphore"

	"github.com/mbatko/messif-go/pkg/errors"
)

// AsyncPool bounds the number of in-flight asynchronous reads across every
// AsyncCursor opened against one storage, the way a fixed worker pool would,
// without the bookkeeping of a persistent goroutine set.
type AsyncPool struct {
	sem *semaphore.Weighted
}

// NewAsyncPool creates a pool that admits at most workers concurrent jobs.
func NewAsyncPool(workers uint32) *AsyncPool {
	if workers == 0 {
		workers = 1
	}
	return &AsyncPool{sem: semaphore.NewWeighted(int64(workers))}
}

// submit blocks until a slot is free, then runs job on its own goroutine.
func (p *AsyncPool) submit(ctx context.Context, job func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer p.sem.Release(1)
		job()
	}()
	return nil
}

// AsyncCursor is an InputCursor that can additionally queue a read against
// pool instead of blocking the caller's goroutine on it. Each AsyncCursor is
// single-owner like every other cursor; the pool is the only state it
// shares with its siblings.
type AsyncCursor struct {
	file *os.File
	pos  uint64
	pool *AsyncPool
}

// NewAsyncCursor creates a cursor positioned at start, dispatching
// ReadAsync calls through pool.
func NewAsyncCursor(f *os.File, start uint64, pool *AsyncPool) *AsyncCursor {
	return &AsyncCursor{file: f, pos: start, pool: pool}
}

func (c *AsyncCursor) Position() uint64       { return c.pos }
func (c *AsyncCursor) SetPosition(pos uint64) { c.pos = pos }
func (c *AsyncCursor) BufferedSize() int      { return 0 }
func (c *AsyncCursor) IsDirty() bool          { return false }
func (c *AsyncCursor) Close() error           { return nil }

// ReadExact performs a blocking positioned read, for callers that took an
// AsyncCursor from the pool but don't need the async path.
func (c *AsyncCursor) ReadExact(buf []byte) error {
	if _, err := c.file.ReadAt(buf, int64(c.pos)); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return errors.NewIOError(err, "read", c.file.Name())
	}
	c.pos += uint64(len(buf))
	return nil
}

// ReadAsync queues a positioned read of len(buf) bytes at the cursor's
// current position and returns immediately. cb is invoked from a worker
// goroutine once the read completes or fails; the cursor's position is
// advanced synchronously so callers can queue several reads back to back
// without waiting for earlier ones to land.
func (c *AsyncCursor) ReadAsync(buf []byte, cb AsyncCallback) error {
	pos := c.pos
	c.pos += uint64(len(buf))

	return c.pool.submit(context.Background(), func() {
		if _, err := c.file.ReadAt(buf, int64(pos)); err != nil {
			cb.Failed(c, errors.NewIOError(err, "read", c.file.Name()))
			return
		}
		cb.Completed(c)
	})
}
