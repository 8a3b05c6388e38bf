// Package memstore implements the in-memory sibling of blockstore: a
// growable vector of optional payloads with a tombstone counter, addressed
// by 32-bit index instead of file offset. It exists as a durability-free
// swap-in and as a reference oracle simple enough to trust in tests of the
// disk-backed implementation.
package memstore

import (
	"sync"
	"sync/atomic"

	"github.com/mbatko/messif-go/pkg/address"
	"github.com/mbatko/messif-go/pkg/errors"
)

type slot struct {
	obj    any
	filled bool
}

// Storage is a single in-memory object log. Every mutating operation is
// serialized by mu, matching the single-writer discipline blockstore
// enforces with its own mutex.
type Storage struct {
	mu         sync.Mutex
	slots      []slot
	tombstones int
	closed     atomic.Bool
}

// New constructs an empty memory storage.
func New() *Storage {
	return &Storage{}
}

// Generation always reports 0: memstore never rewrites or relocates a live
// slot, so no address taken from it is ever invalidated.
func (s *Storage) Generation() uint64 { return 0 }

// Store appends obj to the trailing slot, reusing a freed trailing slot
// left behind by Remove when one is available.
func (s *Storage) Store(obj any) (address.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return address.Address{}, errors.NewStorageError(errors.ErrClosed, errors.ErrorCodeClosed, "storage is closed")
	}

	if n := len(s.slots); n > 0 && !s.slots[n-1].filled {
		s.slots[n-1] = slot{obj: obj, filled: true}
		return address.New(int64(n-1), s), nil
	}

	s.slots = append(s.slots, slot{obj: obj, filled: true})
	return address.New(int64(len(s.slots)-1), s), nil
}

// Read returns the object at addr. Reading an empty or tombstoned slot, or
// an index beyond the vector, fails with InvalidAddress.
func (s *Storage) Read(addr address.Address) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, errors.NewStorageError(errors.ErrClosed, errors.ErrorCodeClosed, "storage is closed")
	}
	sl, err := s.slotAt(addr)
	if err != nil {
		return nil, err
	}
	return sl.obj, nil
}

func (s *Storage) slotAt(addr address.Address) (slot, error) {
	idx := addr.Offset()
	if idx < 0 || idx >= int64(len(s.slots)) {
		return slot{}, errors.NewInvalidAddressError(addr.Offset(), "index lies outside the occupied range")
	}
	sl := s.slots[idx]
	if !sl.filled {
		return slot{}, errors.NewInvalidAddressError(addr.Offset(), "address names an empty or tombstoned slot")
	}
	return sl, nil
}

// Remove empties the slot at addr. If addr names the last occupied slot,
// the vector shrinks, collapsing any now-trailing emptied slots along with
// it, the same trailing-shrink behavior Store relies on to reuse space.
func (s *Storage) Remove(addr address.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return errors.NewStorageError(errors.ErrClosed, errors.ErrorCodeClosed, "storage is closed")
	}
	if _, err := s.slotAt(addr); err != nil {
		return err
	}

	idx := addr.Offset()
	s.slots[idx] = slot{}
	s.tombstones++

	if int(idx) == len(s.slots)-1 {
		s.shrinkTrailing()
	}
	return nil
}

// shrinkTrailing drops every empty slot at the end of the vector, the way
// remove(i) on the last occupied slot is specified to behave.
func (s *Storage) shrinkTrailing() {
	n := len(s.slots)
	for n > 0 && !s.slots[n-1].filled {
		n--
		s.tombstones--
	}
	s.slots = s.slots[:n]
}

// Flush is a no-op: every operation is already durable in the sense memory
// can be, there being no physical medium to sync.
func (s *Storage) Flush(bool) error {
	if s.closed.Load() {
		return errors.NewStorageError(errors.ErrClosed, errors.ErrorCodeClosed, "storage is closed")
	}
	return nil
}

// Size returns the live record count.
func (s *Storage) Size() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.slots) - s.tombstones)
}

// Fragmentation returns tombstones / (live + tombstones), in [0, 1).
func (s *Storage) Fragmentation() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.slots) == 0 {
		return 0
	}
	return float64(s.tombstones) / float64(len(s.slots))
}

// Close marks the storage unusable. There is nothing further to release.
func (s *Storage) Close() error {
	s.closed.Store(true)
	return nil
}

// Destroy closes the storage and drops its backing slice.
func (s *Storage) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = nil
	s.tombstones = 0
	s.closed.Store(true)
	return nil
}
