// Package blockstore implements the append-only, self-describing object log
// every persistent bucket in the library is backed by: a fixed header, a
// length-prefixed record stream with tombstones, crash recovery by scan,
// and ratio-triggered compaction. A single mutex serializes every mutating
// operation; concurrent reads are multiplexed across a bounded pool of
// input cursors.
package blockstore

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mbatko/messif-go/pkg/address"
	"github.com/mbatko/messif-go/pkg/cursor"
	"github.com/mbatko/messif-go/pkg/errors"
	"github.com/mbatko/messif-go/pkg/filesys"
	"github.com/mbatko/messif-go/pkg/serializator"
)

// inputPoolSize is the bounded number of concurrent readers a storage
// admits before read blocks waiting for a cursor to free up.
const inputPoolSize = 128

// Storage is a single append-only segment [start, start+maximalLength)
// within a file, addressed by byte offset. It owns the file descriptor, the
// single output cursor, and the pooled input cursors every read is taken
// from.
type Storage struct {
	mu  sync.Mutex
	cfg resolvedConfig
	log *zap.SugaredLogger

	file *os.File
	hdr  header

	out            cursor.OutputCursor
	inputPool      *cursor.InputCursorPool
	asyncInputPool *cursor.InputCursorPool
	asyncPool      *cursor.AsyncPool
	region         io.Closer // non-nil only when usesMappedCursor holds

	closed     atomic.Bool
	generation atomic.Uint64
	sharedKey  string // non-empty when opened with OneStorage
}

// Generation satisfies address.Storage: it is bumped every time compaction
// rewrites the log, invalidating every address taken before that point.
func (s *Storage) Generation() uint64 {
	return s.generation.Load()
}

// Open constructs or reopens a storage per cfg. If the file has never been
// written, a fresh clean header is initialized. If an existing header's
// closed marker is unset, a recovery scan rebuilds it before the storage
// becomes usable, and, unless readOnly, automatic compaction runs if the
// tombstone ratio already exceeds DefaultCompactionRatio.
func Open(ctx context.Context, cfg *Config) (*Storage, error) {
	rc, log, err := resolve(cfg)
	if err != nil {
		return nil, err
	}
	if rc.oneStorage {
		return shared.acquire(rc.path, func() (*Storage, error) { return openStorage(rc, log) })
	}
	return openStorage(rc, log)
}

func openStorage(cfg resolvedConfig, log *zap.SugaredLogger) (*Storage, error) {
	log.Infow("opening block storage",
		"path", cfg.path, "start", cfg.start, "maximalLength", cfg.maximalLength, "readOnly", cfg.readOnly)

	file, err := os.OpenFile(cfg.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.ClassifyFileOpenError(err, cfg.path, filepath.Base(cfg.path))
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.NewIOError(err, "stat", cfg.path).WithPath(cfg.path)
	}

	var hdr header
	if uint64(stat.Size()) < cfg.start+HeaderSize {
		log.Infow("initializing fresh segment header", "path", cfg.path)
		hdr = header{version: formatVersion, segmentLength: cfg.maximalLength, fingerprint: cfg.fingerprint}
		if usesMappedCursor(cfg) {
			// The mapped cursor cannot extend the file, whether because it
			// shares one file at a nonzero offset or because directBuffer
			// asked for mapped I/O on a standalone segment; pre-size the
			// whole segment now regardless of the reason.
			if err := file.Truncate(int64(cfg.start + cfg.maximalLength)); err != nil {
				file.Close()
				return nil, errors.NewIOError(err, "truncate", cfg.path).WithPath(cfg.path)
			}
		}
		if err := commitHeader(file, cfg, hdr); err != nil {
			file.Close()
			return nil, err
		}
		hdr.flags = closedClean
	} else {
		buf := make([]byte, HeaderSize)
		if _, err := file.ReadAt(buf, int64(cfg.start)); err != nil {
			file.Close()
			return nil, errors.NewIOError(err, "read", cfg.path).WithPath(cfg.path)
		}
		hdr = decodeHeader(buf)
		if err := validateHeader(hdr, cfg); err != nil {
			file.Close()
			return nil, err
		}
		if !hdr.closed() {
			log.Warnw("closed marker not set, running recovery scan", "path", cfg.path)
			recovered, err := scanRecover(file, cfg, log)
			if err != nil {
				file.Close()
				return nil, err
			}
			if !cfg.readOnly {
				if err := commitHeader(file, cfg, recovered); err != nil {
					file.Close()
					return nil, err
				}
			}
			hdr = recovered
			hdr.flags = closedClean
		}
	}

	out, inputPool, asyncInputPool, asyncPool, region, err := buildCursors(file, cfg)
	if err != nil {
		file.Close()
		return nil, err
	}
	out.SetPosition(cfg.start + HeaderSize + hdr.occupation)

	s := &Storage{
		cfg: cfg, log: log, file: file, hdr: hdr,
		out: out, inputPool: inputPool, asyncInputPool: asyncInputPool, asyncPool: asyncPool, region: region,
	}
	if cfg.oneStorage {
		s.sharedKey = cfg.path
	}

	if !cfg.readOnly && cfg.start == 0 && needsCompaction(hdr, DefaultCompactionRatio) {
		log.Infow("tombstone ratio exceeds threshold, compacting on open", "path", cfg.path)
		if err := s.Compact(); err != nil {
			s.closeLocal()
			return nil, err
		}
	}

	registry.register(s)

	log.Infow("block storage ready", "path", cfg.path, "live", s.hdr.liveCount, "tombstones", s.hdr.tombstoneCount)
	return s, nil
}

// commitHeader runs the two-phase closed-marker commit directly against
// file, for use during Open before a Storage (and its output cursor) exists.
func commitHeader(file *os.File, cfg resolvedConfig, hdr header) error {
	out := cursor.NewBufferedOutputCursor(file, cfg.start, cfg.bufferSize)
	if err := writeHeaderOpen(out, cfg.start, hdr); err != nil {
		return err
	}
	return commitClosedMarker(out, cfg.start, closedClean)
}

// usesMappedCursor reports whether cfg's segment must be pre-sized and
// accessed through the mapped cursor rather than the buffered one: either
// because it shares a file at a nonzero offset, or because directBuffer
// explicitly asked for mapped (off-heap-equivalent) I/O.
func usesMappedCursor(cfg resolvedConfig) bool {
	return cfg.start > 0 || cfg.directBuffer
}

// buildCursors chooses the mapped cursor for a pre-sized segment
// (usesMappedCursor) and the buffered cursor for a standalone,
// organically-growing one.
func buildCursors(file *os.File, cfg resolvedConfig) (cursor.OutputCursor, *cursor.InputCursorPool, *cursor.InputCursorPool, *cursor.AsyncPool, io.Closer, error) {
	asyncPool := cursor.NewAsyncPool(cfg.asyncThreads)
	asyncCursors := make([]cursor.InputCursor, inputPoolSize)
	for i := range asyncCursors {
		asyncCursors[i] = cursor.NewAsyncCursor(file, cfg.start, asyncPool)
	}
	asyncInputPool := cursor.NewInputCursorPool(asyncCursors)

	if usesMappedCursor(cfg) {
		region, err := cursor.NewMappedRegion(file, cfg.start, cfg.maximalLength, cfg.readOnly)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		out := cursor.NewMappedOutputCursor(region)
		inputCursors := make([]cursor.InputCursor, inputPoolSize)
		for i := range inputCursors {
			inputCursors[i] = cursor.NewMappedInputCursor(region)
		}
		return out, cursor.NewInputCursorPool(inputCursors), asyncInputPool, asyncPool, region, nil
	}

	out := cursor.NewBufferedOutputCursor(file, cfg.start, cfg.bufferSize)
	inputCursors := make([]cursor.InputCursor, inputPoolSize)
	for i := range inputCursors {
		inputCursors[i] = cursor.NewBufferedInputCursor(file, cfg.start, cfg.bufferSize)
	}
	return out, cursor.NewInputCursorPool(inputCursors), asyncInputPool, asyncPool, nil, nil
}

func (s *Storage) closeCursorsLocked() error {
	var err error
	if e := s.inputPool.Close(); e != nil {
		err = multierr.Append(err, e)
	}
	if e := s.asyncInputPool.Close(); e != nil {
		err = multierr.Append(err, e)
	}
	if e := s.out.Close(); e != nil {
		err = multierr.Append(err, e)
	}
	if s.region != nil {
		if e := s.region.Close(); e != nil {
			err = multierr.Append(err, e)
		}
	}
	return err
}

// Store appends obj via the configured serializator, returning the address
// of its size prefix. obj is first encoded into an in-memory recordBuffer so
// its true encoded length is known before any byte reaches the output
// cursor; if the record would cross start+maximalLength, CapacityFull is
// returned with occupation and the output cursor both left untouched.
func (s *Storage) Store(obj any) (address.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return address.Address{}, errors.NewStorageError(errors.ErrClosed, errors.ErrorCodeClosed, "storage is closed")
	}
	if s.cfg.readOnly {
		return address.Address{}, errors.NewReadOnlyError("store")
	}

	var buf recordBuffer
	if _, err := s.cfg.serializator.Write(&buf, obj); err != nil {
		return address.Address{}, err
	}

	// Remove leaves the output cursor parked wherever it last wrote a
	// tombstone; every store must land at the tail regardless.
	recordStart := s.cfg.start + HeaderSize + s.hdr.occupation
	bound := s.cfg.start + s.cfg.maximalLength
	if recordStart+uint64(len(buf.data)) > bound {
		return address.Address{}, errors.NewCapacityFullError(s.cfg.path, int(recordStart))
	}

	if err := s.markDirty(); err != nil {
		return address.Address{}, err
	}
	s.out.SetPosition(recordStart)
	if _, err := s.out.Write(buf.data); err != nil {
		return address.Address{}, err
	}

	s.hdr.occupation += uint64(len(buf.data))
	s.hdr.liveCount++
	return address.New(int64(recordStart), s), nil
}

// Read resolves addr through a pooled input cursor, flushing any pending
// output-cursor bytes first so the reader never observes stale data.
func (s *Storage) Read(addr address.Address) (any, error) {
	offset, err := s.validateAndFlush(addr)
	if err != nil {
		return nil, err
	}

	cur, err := s.inputPool.Acquire(context.Background())
	if err != nil {
		return nil, errors.NewIOError(err, "acquire input cursor", s.cfg.path)
	}
	defer s.inputPool.Release(cur)

	cur.SetPosition(offset)
	var sizeBuf [4]byte
	if err := cur.ReadExact(sizeBuf[:]); err != nil {
		return nil, errors.NewCorruptedError(err, s.cfg.path, int(offset))
	}
	if int32(binary.BigEndian.Uint32(sizeBuf[:])) <= 0 {
		return nil, errors.NewInvalidAddressError(addr.Offset(), "address names a tombstoned or terminator record")
	}

	cur.SetPosition(offset)
	return s.cfg.serializator.Read(cur)
}

// validateAndFlush checks addr against the storage's generation and
// occupied range, flushes the output cursor if it holds bytes a reader
// could otherwise observe as stale, and returns addr's absolute offset.
func (s *Storage) validateAndFlush(addr address.Address) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return 0, errors.NewStorageError(errors.ErrClosed, errors.ErrorCodeClosed, "storage is closed")
	}
	if !addr.Valid() {
		return 0, errors.NewInvalidAddressError(addr.Offset(), "address belongs to a prior generation, invalidated by compaction")
	}
	offset := uint64(addr.Offset())
	lo, hi := s.cfg.start+HeaderSize, s.cfg.start+HeaderSize+s.hdr.occupation
	if offset < lo || offset >= hi {
		return 0, errors.NewInvalidAddressError(addr.Offset(), "address lies outside the occupied log range")
	}
	if s.out.IsDirty() {
		if err := s.out.Flush(false); err != nil {
			return 0, err
		}
	}
	return offset, nil
}

// Remove overwrites addr's size prefix with its negation, turning the
// record into a tombstone. Already-tombstoned or out-of-range addresses
// fail with InvalidAddress rather than succeeding silently.
func (s *Storage) Remove(addr address.Address) error {
	offset, err := s.validateAndFlush(addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.readOnly {
		return errors.NewReadOnlyError("remove")
	}

	cur, err := s.inputPool.Acquire(context.Background())
	if err != nil {
		return errors.NewIOError(err, "acquire input cursor", s.cfg.path)
	}
	cur.SetPosition(offset)
	var sizeBuf [4]byte
	readErr := cur.ReadExact(sizeBuf[:])
	s.inputPool.Release(cur)
	if readErr != nil {
		return errors.NewCorruptedError(readErr, s.cfg.path, int(offset))
	}

	size := int32(binary.BigEndian.Uint32(sizeBuf[:]))
	switch {
	case size == 0:
		return errors.NewInvalidAddressError(addr.Offset(), "address names the log terminator, not a record")
	case size < 0:
		return errors.NewInvalidAddressError(addr.Offset(), "address already names a tombstoned record")
	}

	if err := s.markDirty(); err != nil {
		return err
	}
	s.out.SetPosition(offset)
	var neg [4]byte
	binary.BigEndian.PutUint32(neg[:], uint32(-size))
	if _, err := s.out.Write(neg[:]); err != nil {
		return err
	}
	s.hdr.liveCount--
	s.hdr.tombstoneCount++
	return nil
}

// Flush forces the output cursor's staged bytes to the file. When
// syncPhysical is true it additionally fsyncs (or msyncs) and re-runs the
// two-phase closed-marker commit with the storage's current counters,
// making every preceding write durable.
func (s *Storage) Flush(syncPhysical bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return errors.NewStorageError(errors.ErrClosed, errors.ErrorCodeClosed, "storage is closed")
	}
	if err := s.out.Flush(syncPhysical); err != nil {
		return err
	}
	if !syncPhysical {
		return nil
	}
	if err := writeHeaderOpen(s.out, s.cfg.start, s.hdr); err != nil {
		return err
	}
	s.hdr.flags = closedClean
	return commitClosedMarker(s.out, s.cfg.start, s.hdr.flags)
}

// Size returns the live record count.
func (s *Storage) Size() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hdr.liveCount
}

// Fragmentation returns tombstones / (live + tombstones), in [0, 1]. It is 1
// when every record in the log is a tombstone.
func (s *Storage) Fragmentation() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.hdr.liveCount + s.hdr.tombstoneCount
	if total == 0 {
		return 0
	}
	return float64(s.hdr.tombstoneCount) / float64(total)
}

// Close flushes and fsyncs, commits the closed marker, and releases every
// cursor and the file descriptor. For a storage opened with OneStorage,
// Close only decrements the shared reference count; the file is closed once
// the last holder releases it.
func (s *Storage) Close() error {
	if s.sharedKey != "" {
		if !shared.release(s.sharedKey) {
			return nil
		}
	}
	return s.closeLocal()
}

func (s *Storage) closeLocal() error {
	registry.unregister(s)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil
	}

	var err error
	if !s.cfg.readOnly {
		if e := writeHeaderOpen(s.out, s.cfg.start, s.hdr); e != nil {
			err = multierr.Append(err, e)
		} else {
			s.hdr.flags = closedClean
			if e := commitClosedMarker(s.out, s.cfg.start, s.hdr.flags); e != nil {
				err = multierr.Append(err, e)
			}
		}
	}
	if e := s.closeCursorsLocked(); e != nil {
		err = multierr.Append(err, e)
	}
	if e := s.file.Close(); e != nil {
		err = multierr.Append(err, errors.NewIOError(e, "close", s.cfg.path))
	}
	s.closed.Store(true)
	return err
}

// Destroy closes the storage and removes its file, bypassing OneStorage
// reference counting: every shared holder loses access at once.
func (s *Storage) Destroy() error {
	if s.sharedKey != "" {
		shared.mu.Lock()
		delete(shared.entries, s.sharedKey)
		shared.mu.Unlock()
	}
	closeErr := s.closeLocal()
	if err := filesys.DeleteFile(s.cfg.path); err != nil {
		return multierr.Append(closeErr, errors.NewIOError(err, "remove", s.cfg.path))
	}
	return closeErr
}

// Serializator, StartOffset, AcquireInput, and ReleaseInput let
// internal/search drive this storage without reimplementing its pooling.

func (s *Storage) Serializator() serializator.Serializator { return s.cfg.serializator }

func (s *Storage) StartOffset() uint64 { return s.cfg.start + HeaderSize }

// Path returns the backing file path, for diagnostics.
func (s *Storage) Path() string { return s.cfg.path }

func (s *Storage) EndOffset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.start + HeaderSize + s.hdr.occupation
}

func (s *Storage) AcquireInput(ctx context.Context) (cursor.InputCursor, error) {
	return s.inputPool.Acquire(ctx)
}

func (s *Storage) ReleaseInput(c cursor.InputCursor) {
	s.inputPool.Release(c)
}
