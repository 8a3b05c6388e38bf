package serializator

import (
	"encoding/binary"
	stdErrors "errors"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/mbatko/messif-go/pkg/cursor"
	"github.com/mbatko/messif-go/pkg/errors"
)

var errTruncatedTag = stdErrors.New("messif: truncated class tag")

// MultiClass is the serializator variant that writes a class tag with every
// object instead of relying on a pre-registered, ordered class list. It
// trades a few bytes per record for independence from the order codecs are
// registered in. Codecs are registered only at construction; a record whose
// class has no registered Codec fails to decode.
type MultiClass struct {
	codecs map[string]Codec
}

// NewMultiClass builds a MultiClass serializator with the given codecs
// registered by their ClassName.
func NewMultiClass(codecs ...Codec) *MultiClass {
	m := &MultiClass{codecs: make(map[string]Codec, len(codecs))}
	for _, c := range codecs {
		m.codecs[c.ClassName()] = c
	}
	return m
}

// Write emits size, class-name tag, then the encoded payload. obj must
// implement Classed so the right Codec can be found.
func (m *MultiClass) Write(cur cursor.OutputCursor, obj any) (int, error) {
	classed, ok := obj.(Classed)
	if !ok {
		return 0, errors.NewVersionMismatchError("").
			WithDetail("reason", "object does not implement serializator.Classed")
	}
	codec, ok := m.codecs[classed.ClassName()]
	if !ok {
		return 0, errors.NewVersionMismatchError("").WithDetail("unknownClass", classed.ClassName())
	}

	payload, err := codec.Encode(obj)
	if err != nil {
		return 0, err
	}

	tag := encodeTag(classed.ClassName())
	body := append(tag, payload...)

	total := sizePrefixLen + len(body)
	if err := writeSizePrefix(cur, int32(len(body))); err != nil {
		return 0, err
	}
	if _, err := cur.Write(body); err != nil {
		return 0, err
	}
	return total, nil
}

// Read decodes the object at the cursor's current position, tolerating any
// number of tombstones in between.
func (m *MultiClass) Read(cur cursor.InputCursor) (any, error) {
	for {
		size, err := readSizePrefix(cur)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return nil, ErrEndOfLog
		}
		if size < 0 {
			if err := skipPayload(cur, int(-size)); err != nil {
				return nil, err
			}
			continue
		}

		body := make([]byte, size)
		if err := cur.ReadExact(body); err != nil {
			return nil, errors.NewCorruptedError(err, "", int(cur.Position()))
		}

		name, payload, err := decodeTag(body)
		if err != nil {
			return nil, errors.NewCorruptedError(err, "", int(cur.Position()))
		}
		codec, ok := m.codecs[name]
		if !ok {
			return nil, errors.NewVersionMismatchError("").
				WithDetail("unknownClass", name)
		}
		return codec.Decode(payload)
	}
}

// Skip reads the size prefix and advances the cursor past the payload
// without decoding it.
func (m *MultiClass) Skip(cur cursor.InputCursor, includeDeleted bool) (int32, error) {
	size, err := readSizePrefix(cur)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, nil
	}
	n := int(size)
	if n < 0 {
		n = -n
	}
	if err := skipPayload(cur, n); err != nil {
		return 0, err
	}
	return size, nil
}

// Fingerprint hashes the sorted set of registered class names so storages
// opened with differently-configured MultiClass serializators refuse each
// other's files.
func (m *MultiClass) Fingerprint() uint32 {
	names := make([]string, 0, len(m.codecs))
	for name := range m.codecs {
		names = append(names, name)
	}
	sort.Strings(names)

	h := xxhash.New()
	for _, name := range names {
		_, _ = h.WriteString(name)
		_, _ = h.Write([]byte{0})
	}
	return uint32(h.Sum64())
}

func encodeTag(name string) []byte {
	buf := make([]byte, 2+len(name))
	binary.BigEndian.PutUint16(buf, uint16(len(name)))
	copy(buf[2:], name)
	return buf
}

func decodeTag(body []byte) (name string, payload []byte, err error) {
	if len(body) < 2 {
		return "", nil, errTruncatedTag
	}
	n := int(binary.BigEndian.Uint16(body))
	if len(body) < 2+n {
		return "", nil, errTruncatedTag
	}
	return string(body[2 : 2+n]), body[2+n:], nil
}
