package cursor

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
)

// InputCursorPool is the bounded, blocking deque of input cursors a storage
// hands reads through: Acquire blocks once every cursor is checked out,
// Release returns one to the free list. Each cursor is single-owner for the
// duration of a checkout.
type InputCursorPool struct {
	sem  *semaphore.Weighted
	mu   sync.Mutex
	free []InputCursor
}

// NewInputCursorPool builds a pool that owns cursors and bounds concurrent
// checkouts at len(cursors).
func NewInputCursorPool(cursors []InputCursor) *InputCursorPool {
	return &InputCursorPool{
		sem:  semaphore.NewWeighted(int64(len(cursors))),
		free: cursors,
	}
}

// Acquire blocks until a cursor is available or ctx is done.
func (p *InputCursorPool) Acquire(ctx context.Context) (InputCursor, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	p.mu.Lock()
	n := len(p.free)
	c := p.free[n-1]
	p.free = p.free[:n-1]
	p.mu.Unlock()
	return c, nil
}

// Release returns a cursor checked out via Acquire back to the pool.
func (p *InputCursorPool) Release(c InputCursor) {
	p.mu.Lock()
	p.free = append(p.free, c)
	p.mu.Unlock()
	p.sem.Release(1)
}

// Close closes every pooled cursor, combining any failures. Callers must
// ensure no checkout is outstanding.
func (p *InputCursorPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for _, c := range p.free {
		err = multierr.Append(err, c.Close())
	}
	p.free = nil
	return err
}
