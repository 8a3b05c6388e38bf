package search

import (
	"context"
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/mbatko/messif-go/internal/blockstore"
	"github.com/mbatko/messif-go/pkg/address"
	"github.com/mbatko/messif-go/pkg/cursor"
	"github.com/mbatko/messif-go/pkg/errors"
	"github.com/mbatko/messif-go/pkg/serializator"
)

// Search is a forward cursor over a block storage's object log. It holds
// one pooled input cursor for its entire lifetime; ReadNext advances it
// record by record, skipping tombstones and anything the comparator
// rejects, until a match is found or the log is exhausted.
type Search struct {
	mu         sync.Mutex
	storage    *blockstore.Storage
	extractor  KeyExtractor
	comparator Comparator

	cur cursor.InputCursor
	pos uint64

	lastAddr    address.Address
	haveCurrent bool

	closed atomic.Bool
}

// New acquires an input cursor from storage and starts a search at its
// first record. comparator may be nil, in which case every record matches.
func New(ctx context.Context, storage *blockstore.Storage, extractor KeyExtractor, comparator Comparator) (*Search, error) {
	cur, err := storage.AcquireInput(ctx)
	if err != nil {
		return nil, errors.NewStorageError(err, errors.ErrorCodeIO, "failed to acquire input cursor for search")
	}
	return &Search{
		storage:    storage,
		extractor:  extractor,
		comparator: comparator,
		cur:        cur,
		pos:        storage.StartOffset(),
	}, nil
}

// ReadNext decodes and returns the next record the comparator accepts,
// advancing past every tombstone and rejected record along the way. It
// returns serializator.ErrEndOfLog once the occupied range is exhausted or
// the comparator reports no later record can match.
func (s *Search) ReadNext() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, errors.NewClosedSearchError("ReadNext")
	}
	// Stored records and tombstones may still be staged in the storage's
	// output cursor; push them to the file before scanning it.
	if err := s.storage.Flush(false); err != nil {
		return nil, err
	}

	ser := s.storage.Serializator()
	for {
		end := s.storage.EndOffset()
		if s.pos >= end {
			return nil, serializator.ErrEndOfLog
		}

		recordStart := s.pos
		s.cur.SetPosition(recordStart)
		var prefix [4]byte
		if err := s.cur.ReadExact(prefix[:]); err != nil {
			return nil, errors.NewCorruptedError(err, s.storage.Path(), int(recordStart))
		}
		size := int32(binary.BigEndian.Uint32(prefix[:]))
		if size == 0 {
			s.pos = end
			return nil, serializator.ErrEndOfLog
		}
		n := int(size)
		if n < 0 {
			n = -n
		}
		nextPos := recordStart + 4 + uint64(n)

		if size < 0 {
			s.pos = nextPos
			continue
		}

		s.cur.SetPosition(recordStart)
		obj, err := ser.Read(s.cur)
		if err != nil {
			return nil, err
		}
		s.pos = nextPos

		if s.comparator != nil {
			key := s.extractor(obj)
			matched, done := s.comparator.Accepts(key)
			if done {
				s.pos = end
				return nil, serializator.ErrEndOfLog
			}
			if !matched {
				continue
			}
		}

		s.lastAddr = address.New(int64(recordStart), s.storage)
		s.haveCurrent = true
		return obj, nil
	}
}

// CurrentAddress returns the address of the record most recently yielded
// by ReadNext. It fails if ReadNext has not yet returned a match, or if
// Remove already invalidated the current position.
func (s *Search) CurrentAddress() (address.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveCurrent {
		return address.Address{}, errors.NewStaleAddressError("<none>").WithOperation("CurrentAddress")
	}
	return s.lastAddr, nil
}

// Remove deletes the record at the current search position and
// invalidates it: a second call, or a call to CurrentAddress, fails until
// ReadNext advances again.
func (s *Search) Remove() error {
	s.mu.Lock()
	if !s.haveCurrent {
		s.mu.Unlock()
		return errors.NewStaleAddressError("<none>")
	}
	addr := s.lastAddr
	s.haveCurrent = false
	s.mu.Unlock()

	return s.storage.Remove(addr)
}

// Close releases the search's input cursor back to the storage's pool.
// Further calls to ReadNext fail.
func (s *Search) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.storage.ReleaseInput(s.cur)
	}
	return nil
}
