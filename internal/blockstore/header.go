package blockstore

import (
	"encoding/binary"

	"github.com/mbatko/messif-go/pkg/cursor"
	"github.com/mbatko/messif-go/pkg/errors"
)

// HeaderSize is the fixed size, in bytes, of every segment's header.
const HeaderSize = 40

// formatVersion identifies the on-disk record framing this package writes.
// Bumping it invalidates every existing file, the same way a fingerprint
// mismatch does.
const formatVersion uint64 = 0x4D53_4946_0001_0000 // "MSIF" + format 1

const (
	closedMask  uint32 = 0b11
	closedClean uint32 = 0b11
	closedOpen  uint32 = 0b00
)

// header is the 40-byte record at the start of a segment: format version,
// configured segment length, serializator fingerprint, closed-marker flags,
// and the occupation/live/tombstone counters recovery rebuilds when the
// closed marker isn't trustworthy.
type header struct {
	version        uint64
	segmentLength  uint64
	fingerprint    uint32
	flags          uint32
	occupation     uint64
	liveCount      uint32
	tombstoneCount uint32
}

func (h header) closed() bool {
	return h.flags&closedMask == closedClean
}

func (h header) encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.BigEndian.PutUint64(buf[0:8], h.version)
	binary.BigEndian.PutUint64(buf[8:16], h.segmentLength)
	binary.BigEndian.PutUint32(buf[16:20], h.fingerprint)
	binary.BigEndian.PutUint32(buf[20:24], h.flags)
	binary.BigEndian.PutUint64(buf[24:32], h.occupation)
	binary.BigEndian.PutUint32(buf[32:36], h.liveCount)
	binary.BigEndian.PutUint32(buf[36:40], h.tombstoneCount)
	return buf
}

func decodeHeader(buf []byte) header {
	return header{
		version:        binary.BigEndian.Uint64(buf[0:8]),
		segmentLength:  binary.BigEndian.Uint64(buf[8:16]),
		fingerprint:    binary.BigEndian.Uint32(buf[16:20]),
		flags:          binary.BigEndian.Uint32(buf[20:24]),
		occupation:     binary.BigEndian.Uint64(buf[24:32]),
		liveCount:      binary.BigEndian.Uint32(buf[32:36]),
		tombstoneCount: binary.BigEndian.Uint32(buf[36:40]),
	}
}

// flagsOffset is where the 4 closed-marker flag bytes live within the
// encoded header, needed by the two-phase commit's second write.
const flagsOffset = 20

// writeHeaderOpen writes h with its closed bits masked to zero and fsyncs,
// the first phase of the two-phase closed-marker commit: a crash here
// leaves the marker cleared, forcing recovery on reopen rather than
// trusting counters that were never made durable.
func writeHeaderOpen(cur cursor.OutputCursor, start uint64, h header) error {
	openHeader := h
	openHeader.flags = (h.flags &^ closedMask) | closedOpen
	buf := openHeader.encode()

	cur.SetPosition(start)
	if _, err := cur.Write(buf[:]); err != nil {
		return err
	}
	if err := cur.Flush(true); err != nil {
		return err
	}
	return nil
}

// commitClosedMarker overwrites only the 4 flag bytes with the true flags
// and fsyncs, the second phase of the commit. Once this returns, the
// header's counters are trustworthy on next open.
func commitClosedMarker(cur cursor.OutputCursor, start uint64, flags uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], flags)

	cur.SetPosition(start + flagsOffset)
	if _, err := cur.Write(buf[:]); err != nil {
		return err
	}
	return cur.Flush(true)
}

func validateHeader(h header, cfg resolvedConfig) error {
	if h.version != formatVersion {
		return errors.NewVersionMismatchError(cfg.path)
	}
	if h.segmentLength != cfg.maximalLength {
		return errors.NewCorruptedError(nil, cfg.path, 0).
			WithDetail("reason", "segment length does not match configured maximalLength")
	}
	if h.fingerprint != cfg.fingerprint {
		return errors.NewVersionMismatchError(cfg.path).
			WithDetail("reason", "serializator fingerprint mismatch")
	}
	return nil
}
