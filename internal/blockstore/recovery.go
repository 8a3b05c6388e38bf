package blockstore

import (
	"encoding/binary"
	"os"

	"go.uber.org/zap"
)

// scanRecover walks the object log from start+HeaderSize forward, the way
// the header's closed marker is supposed to make unnecessary. It rebuilds
// live/tombstone counts and occupation by inspecting each record's size
// prefix directly against the file's actual size, rather than going through
// the serializator's skip (which trusts the prefix and never touches the
// file itself).
//
// A record whose size prefix is fully present but whose payload runs past
// the end of the file is treated as an implicit end of log: the scan stops
// there without counting it, exactly as if a terminator had been written.
// The same tolerance applies if the 4-byte prefix itself is cut short.
func scanRecover(file *os.File, cfg resolvedConfig, log *zap.SugaredLogger) (header, error) {
	stat, err := file.Stat()
	if err != nil {
		return header{}, err
	}
	fileSize := uint64(stat.Size())
	pos := cfg.start + HeaderSize

	var live, tombstones uint32
	for {
		if pos+4 > fileSize {
			log.Debugw("recovery: truncated size prefix, treating as end of log", "pos", pos)
			break
		}

		var buf [4]byte
		if _, err := file.ReadAt(buf[:], int64(pos)); err != nil {
			return header{}, err
		}
		size := int32(binary.BigEndian.Uint32(buf[:]))
		if size == 0 {
			break
		}

		n := int(size)
		if n < 0 {
			n = -n
		}
		recordEnd := pos + 4 + uint64(n)
		if recordEnd > fileSize {
			log.Debugw("recovery: truncated payload, treating as end of log", "pos", pos, "declaredSize", size)
			break
		}

		if size > 0 {
			live++
		} else {
			tombstones++
		}
		pos = recordEnd
	}

	occupation := pos - (cfg.start + HeaderSize)
	log.Infow("recovery scan complete",
		"path", cfg.path, "occupation", occupation, "live", live, "tombstones", tombstones)

	return header{
		version:        formatVersion,
		segmentLength:  cfg.maximalLength,
		fingerprint:    cfg.fingerprint,
		flags:          closedClean,
		occupation:     occupation,
		liveCount:      live,
		tombstoneCount: tombstones,
	}, nil
}
