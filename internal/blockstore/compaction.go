package blockstore

import (
	"encoding/binary"
	"os"

	"github.com/mbatko/messif-go/pkg/cursor"
	"github.com/mbatko/messif-go/pkg/errors"
	"github.com/mbatko/messif-go/pkg/filesys"
)

// DefaultCompactionRatio is ρ in "compact when tombstones > ρ·live".
const DefaultCompactionRatio = 0.5

// needsCompaction reports whether h's tombstone/live ratio exceeds ρ. A
// storage with no live records never auto-compacts purely on tombstone
// count; fragmentation() is already 1 in that case and there is nothing
// useful left to reclaim space for.
func needsCompaction(h header, ratio float64) bool {
	if h.liveCount == 0 {
		return false
	}
	return float64(h.tombstoneCount) > ratio*float64(h.liveCount)
}

// Compact rewrites the segment to a sibling "<path>.compact" file omitting
// every tombstone, then atomically renames it over the original. It is
// always safe to call manually; Open also calls it automatically when the
// tombstone ratio crosses DefaultCompactionRatio. Disabled for any storage
// whose segment does not start at offset 0 of its file, since other
// segments may occupy the bytes compaction would otherwise reclaim.
func (s *Storage) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactLocked()
}

func (s *Storage) compactLocked() error {
	if s.cfg.start != 0 {
		return errors.NewStorageError(nil, errors.ErrorCodeInvalidInput, "compaction is disabled for a storage sharing a nonzero startPosition").
			WithPath(s.cfg.path)
	}
	if s.cfg.readOnly {
		return errors.NewReadOnlyError("compact")
	}

	compactPath := s.cfg.path + ".compact"
	dst, err := os.OpenFile(compactPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return errors.NewIOError(err, "open", compactPath)
	}
	defer func() { _ = filesys.DeleteFile(compactPath) }() // no-op once the rename below succeeds

	// A tombstone written by Remove may still be staged in the output
	// cursor; the copy below reads the file directly.
	if err := s.out.Flush(false); err != nil {
		dst.Close()
		return err
	}

	newLive, newOccupation, err := copyLiveRecords(s.file, dst, s.cfg)
	if err != nil {
		dst.Close()
		return err
	}

	newHeader := header{
		version:       formatVersion,
		segmentLength: s.cfg.maximalLength,
		fingerprint:   s.cfg.fingerprint,
		occupation:    newOccupation,
		liveCount:     newLive,
	}
	out := cursor.NewBufferedOutputCursor(dst, 0, s.cfg.bufferSize)
	if err := writeHeaderOpen(out, 0, newHeader); err != nil {
		dst.Close()
		return err
	}
	newHeader.flags = closedClean
	if err := commitClosedMarker(out, 0, newHeader.flags); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return errors.NewIOError(err, "fsync", compactPath)
	}
	if err := dst.Close(); err != nil {
		return errors.NewIOError(err, "close", compactPath)
	}

	if err := s.closeCursorsLocked(); err != nil {
		return err
	}
	if err := s.file.Close(); err != nil {
		return errors.NewIOError(err, "close", s.cfg.path)
	}

	if err := os.Rename(compactPath, s.cfg.path); err != nil {
		return errors.NewIOError(err, "rename", compactPath)
	}

	file, err := os.OpenFile(s.cfg.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return errors.NewIOError(err, "reopen", s.cfg.path)
	}
	if usesMappedCursor(s.cfg) {
		// compactLocked already rejected a nonzero start above, so this is
		// only reached for directBuffer; the rewritten file is sized to its
		// live occupation, not the full segment the mapped cursor needs.
		if err := file.Truncate(int64(s.cfg.start + s.cfg.maximalLength)); err != nil {
			file.Close()
			return errors.NewIOError(err, "truncate", s.cfg.path)
		}
	}
	outCur, pool, asyncPool, workers, region, err := buildCursors(file, s.cfg)
	if err != nil {
		file.Close()
		return err
	}
	outCur.SetPosition(s.cfg.start + HeaderSize + newOccupation)

	s.file = file
	s.out = outCur
	s.inputPool = pool
	s.asyncInputPool = asyncPool
	s.asyncPool = workers
	s.region = region
	s.hdr = newHeader
	s.generation.Add(1)

	s.log.Infow("compaction complete", "path", s.cfg.path, "live", newLive, "occupation", newOccupation)
	return nil
}

// copyLiveRecords streams every live record from src's segment, starting at
// cfg.start + HeaderSize and stopping at the first zero size prefix, at a
// record that runs past the end of the file, or at the end of the file, to
// dst starting at offset HeaderSize, skipping tombstones. It reads size prefixes directly
// rather than through the serializator, the same way recovery does, since
// compaction only needs to relocate opaque bytes, not decode them.
func copyLiveRecords(src, dst *os.File, cfg resolvedConfig) (live uint32, occupation uint64, err error) {
	stat, err := src.Stat()
	if err != nil {
		return 0, 0, errors.NewIOError(err, "stat", cfg.path)
	}
	fileSize := uint64(stat.Size())

	readPos := cfg.start + HeaderSize
	writePos := uint64(HeaderSize)

	for {
		if readPos+4 > fileSize {
			break
		}
		var prefix [4]byte
		if _, err := src.ReadAt(prefix[:], int64(readPos)); err != nil {
			return 0, 0, errors.NewIOError(err, "read", cfg.path)
		}
		size := int32(binary.BigEndian.Uint32(prefix[:]))
		if size == 0 {
			break
		}
		n := int(size)
		if n < 0 {
			n = -n
		}
		recordEnd := readPos + 4 + uint64(n)
		if recordEnd > fileSize {
			break
		}

		if size > 0 {
			record := make([]byte, 4+n)
			if _, err := src.ReadAt(record, int64(readPos)); err != nil {
				return 0, 0, errors.NewIOError(err, "read", cfg.path)
			}
			if _, err := dst.WriteAt(record, int64(writePos)); err != nil {
				return 0, 0, errors.NewIOError(err, "write", dst.Name())
			}
			writePos += uint64(len(record))
			live++
		}
		readPos = recordEnd
	}

	return live, writePos - uint64(HeaderSize), nil
}
