// Package messif is the library's entry point: it wires pkg/options
// through internal/blockstore and internal/memstore, handing back a ready
// storage and a way to search it. It intentionally stops at construction —
// no keyed get/set surface, no operation dispatch, no bucket framework;
// those live at a layer this module does not provide.
package messif

import (
	"context"

	"github.com/mbatko/messif-go/internal/blockstore"
	"github.com/mbatko/messif-go/internal/memstore"
	"github.com/mbatko/messif-go/internal/search"
	"github.com/mbatko/messif-go/pkg/logger"
	"github.com/mbatko/messif-go/pkg/options"
)

// DiskStorage is the persistent, file-backed object log.
type DiskStorage = blockstore.Storage

// MemoryStorage is the durability-free in-memory sibling.
type MemoryStorage = memstore.Storage

// Search is a forward cursor over a DiskStorage.
type Search = search.Search

// KeyExtractor and Comparator are re-exported so callers building a search
// over either storage kind only need one import.
type KeyExtractor = search.KeyExtractor
type Comparator = search.Comparator
type KeySet = search.KeySet
type KeyInterval = search.KeyInterval

// OpenDiskStorage opens or creates a block storage per opts, logging under
// service. If opts.Serializator is unset, opening fails: a disk storage
// cannot decode its own records without one.
func OpenDiskStorage(ctx context.Context, service string, opts *options.Options) (*DiskStorage, error) {
	log := logger.New(service)
	return blockstore.Open(ctx, &blockstore.Config{Options: opts, Logger: log})
}

// OpenMemoryStorage constructs a fresh, empty memory storage. It takes no
// options: memstore has no file, buffering, or serializator configuration
// to resolve.
func OpenMemoryStorage() *MemoryStorage {
	return memstore.New()
}

// NewSearch starts a forward search over storage, constrained by an
// optional comparator over keys extractor pulls from each decoded object.
// comparator may be nil to visit every record in order.
func NewSearch(ctx context.Context, storage *DiskStorage, extractor KeyExtractor, comparator Comparator) (*Search, error) {
	return search.New(ctx, storage, extractor, comparator)
}

// NewMemorySearch starts a forward search over a memory storage, with the
// same comparator contract as NewSearch.
func NewMemorySearch(storage *MemoryStorage, extractor memstore.KeyExtractor, comparator memstore.Comparator) *memstore.Search {
	return memstore.NewSearch(storage, extractor, comparator)
}
