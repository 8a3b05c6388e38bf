package blockstore

import (
	"context"
	"encoding/binary"

	"github.com/mbatko/messif-go/pkg/address"
	"github.com/mbatko/messif-go/pkg/cursor"
	"github.com/mbatko/messif-go/pkg/errors"
)

// ReadManyResult is one completed fetch from a ReadManyIterator: either an
// object or the error that prevented decoding it.
type ReadManyResult struct {
	Object any
	Err    error
}

// ReadManyIterator yields the objects at a batch of addresses in whatever
// order their asynchronous reads complete. It is not safe for concurrent
// calls to Next.
type ReadManyIterator struct {
	results   chan ReadManyResult
	remaining int
	exhausted bool
}

// Next blocks until a result is available. It returns ok=false once every
// address has been yielded, or immediately after the first error is
// surfaced — the iterator does not continue past a captured error.
func (it *ReadManyIterator) Next() (any, error, bool) {
	if it.exhausted {
		return nil, nil, false
	}
	res := <-it.results
	if res.Err != nil {
		it.exhausted = true
		return nil, res.Err, false
	}
	it.remaining--
	if it.remaining <= 0 {
		it.exhausted = true
	}
	return res.Object, nil, true
}

// ReadMany dispatches one asynchronous read per address against the
// async-cursor pool, bounded by the storage's configured worker count, and
// returns immediately with an iterator over the results. Every cursor taken
// from the pool is returned to it before the corresponding result is
// published, whether the read succeeded or failed.
func (s *Storage) ReadMany(ctx context.Context, addrs []address.Address) *ReadManyIterator {
	it := &ReadManyIterator{results: make(chan ReadManyResult, len(addrs)), remaining: len(addrs)}
	if len(addrs) == 0 {
		it.exhausted = true
		return it
	}
	// The async cursors read the file directly; staged output must reach it
	// first.
	if err := s.Flush(false); err != nil {
		it.results <- ReadManyResult{Err: err}
		return it
	}

	go func() {
		for _, addr := range addrs {
			s.dispatchRead(ctx, addr, it.results)
		}
	}()
	return it
}

func (s *Storage) dispatchRead(ctx context.Context, addr address.Address, results chan<- ReadManyResult) {
	if !addr.Valid() {
		results <- ReadManyResult{Err: errors.NewInvalidAddressError(addr.Offset(), "stale address invalidated by compaction")}
		return
	}

	cur, err := s.asyncInputPool.Acquire(ctx)
	if err != nil {
		results <- ReadManyResult{Err: errors.NewIOError(err, "acquire async cursor", s.cfg.path)}
		return
	}
	asyncCur, ok := cur.(cursor.AsyncInputCursor)
	if !ok {
		s.asyncInputPool.Release(cur)
		results <- ReadManyResult{Err: errors.NewStorageError(nil, errors.ErrorCodeInternal, "pooled cursor does not support asynchronous reads")}
		return
	}

	offset := uint64(addr.Offset())
	asyncCur.SetPosition(offset)

	var prefix [4]byte
	if err := asyncCur.ReadExact(prefix[:]); err != nil {
		s.asyncInputPool.Release(cur)
		results <- ReadManyResult{Err: errors.NewCorruptedError(err, s.cfg.path, int(offset))}
		return
	}
	size := int32(binary.BigEndian.Uint32(prefix[:]))
	if size <= 0 {
		s.asyncInputPool.Release(cur)
		results <- ReadManyResult{Err: errors.NewInvalidAddressError(addr.Offset(), "address names a tombstoned or terminator record")}
		return
	}

	payload := make([]byte, size)
	cb := &readManyCallback{storage: s, cur: cur, prefix: prefix, payload: payload, results: results}
	if err := asyncCur.ReadAsync(payload, cb); err != nil {
		s.asyncInputPool.Release(cur)
		results <- ReadManyResult{Err: errors.NewIOError(err, "read_async", s.cfg.path)}
	}
}

// readManyCallback decodes a completed asynchronous payload fetch on the
// worker goroutine that filled it, against a memCursor seeded with the
// prefix this dispatch already read synchronously plus the payload the
// worker just fetched — the same framing the serializator expects, without
// a second file read.
type readManyCallback struct {
	storage *Storage
	cur     cursor.InputCursor
	prefix  [4]byte
	payload []byte
	results chan<- ReadManyResult
}

func (cb *readManyCallback) Completed(cursor.InputCursor) {
	cb.storage.asyncInputPool.Release(cb.cur)

	data := make([]byte, 0, 4+len(cb.payload))
	data = append(data, cb.prefix[:]...)
	data = append(data, cb.payload...)
	obj, err := cb.storage.cfg.serializator.Read(&memCursor{data: data})
	cb.results <- ReadManyResult{Object: obj, Err: err}
}

func (cb *readManyCallback) Failed(_ cursor.InputCursor, err error) {
	cb.storage.asyncInputPool.Release(cb.cur)
	cb.results <- ReadManyResult{Err: err}
}
