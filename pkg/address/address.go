// Package address defines the locator objects a storage hands back to
// callers after a store or during a search: a stable byte offset plus a
// weak back-reference to the storage that produced it.
package address

// Storage is the subset of a storage's identity an Address needs to check
// whether it is still valid: a monotonic counter bumped every time the
// storage's addressing changes out from under any address taken before
// that point (currently only compaction does this).
type Storage interface {
	Generation() uint64
}

// Address is a stable file offset plus a weak reference to the storage it
// was read from. Fields are ordered largest-first to minimize padding,
// matching the layout discipline of the index entries this type replaces.
//
// An Address remains valid for as long as its owning storage's generation
// does not change. Compaction rewrites the log and bumps the generation,
// invalidating every address taken before it; a stale address fails with
// InvalidAddress rather than silently reading the wrong record.
type Address struct {
	offset     int64
	generation uint64
	storage    Storage
}

// New builds an Address for offset within storage, stamped with storage's
// current generation.
func New(offset int64, storage Storage) Address {
	gen := uint64(0)
	if storage != nil {
		gen = storage.Generation()
	}
	return Address{offset: offset, generation: gen, storage: storage}
}

// Offset returns the position this address points at: an absolute byte
// offset within the file for a block storage, a slot index for a memory
// storage.
func (a Address) Offset() int64 {
	return a.offset
}

// Storage returns the storage this address was produced by, or nil for the
// zero Address.
func (a Address) Storage() Storage {
	return a.storage
}

// Valid reports whether the owning storage's generation still matches the
// generation this address was stamped with.
func (a Address) Valid() bool {
	return a.storage != nil && a.storage.Generation() == a.generation
}

// IsZero reports whether a is the zero Address, as returned by a failed
// lookup.
func (a Address) IsZero() bool {
	return a.storage == nil && a.offset == 0
}
