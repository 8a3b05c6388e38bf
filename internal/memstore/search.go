package memstore

import (
	"sync"
	"sync/atomic"

	"github.com/mbatko/messif-go/pkg/address"
	"github.com/mbatko/messif-go/pkg/errors"
)

// KeyExtractor pulls the comparable key out of a stored object.
type KeyExtractor func(obj any) any

// Comparator decides whether an extracted key matches a search's
// criteria. Mirrors internal/search.Comparator so a caller can run the
// same comparator against either storage.
type Comparator interface {
	Accepts(key any) (matched, done bool)
}

// Search is a forward cursor over a memory storage's slots, skipping empty
// and tombstoned entries, with the same observable shape as
// internal/search.Search: ReadNext, CurrentAddress, Remove, Close.
type Search struct {
	mu         sync.Mutex
	storage    *Storage
	extractor  KeyExtractor
	comparator Comparator

	idx int64

	lastAddr    address.Address
	haveCurrent bool

	closed atomic.Bool
}

// NewSearch starts a search at the first slot of storage.
func NewSearch(storage *Storage, extractor KeyExtractor, comparator Comparator) *Search {
	return &Search{storage: storage, extractor: extractor, comparator: comparator}
}

// ReadNext returns the next object the comparator accepts, skipping empty
// and tombstoned slots. It returns (nil, false, nil) once the vector is
// exhausted or the comparator reports no later slot can match — a plain
// boolean instead of blockstore's sentinel error, since memstore has no
// serializator decode step that could fail mid-scan.
func (s *Search) ReadNext() (any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, false, errors.NewClosedSearchError("ReadNext")
	}

	s.storage.mu.Lock()
	defer s.storage.mu.Unlock()

	for s.idx < int64(len(s.storage.slots)) {
		i := s.idx
		s.idx++
		sl := s.storage.slots[i]
		if !sl.filled {
			continue
		}

		if s.comparator != nil {
			key := s.extractor(sl.obj)
			matched, done := s.comparator.Accepts(key)
			if done {
				s.idx = int64(len(s.storage.slots))
				return nil, false, nil
			}
			if !matched {
				continue
			}
		}

		s.lastAddr = address.New(i, s.storage)
		s.haveCurrent = true
		return sl.obj, true, nil
	}
	return nil, false, nil
}

// CurrentAddress returns the address of the slot most recently yielded by
// ReadNext.
func (s *Search) CurrentAddress() (address.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveCurrent {
		return address.Address{}, errors.NewStaleAddressError("<none>").WithOperation("CurrentAddress")
	}
	return s.lastAddr, nil
}

// Remove deletes the slot at the current search position and invalidates
// it until ReadNext advances again.
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

// Close marks the search unusable. There is no pooled resource to release.
func (s *Search) Close() error {
	s.closed.Store(true)
	return nil
}
