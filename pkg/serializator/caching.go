package serializator

import (
	"encoding/binary"
	stdErrors "errors"

	"github.com/cespare/xxhash/v2"

	"github.com/mbatko/messif-go/pkg/cursor"
	"github.com/mbatko/messif-go/pkg/errors"
)

var errUnknownCacheTag = stdErrors.New("messif: unknown cache class tag")

// Caching is the serializator variant that assigns each registered class a
// small integer tag at construction time instead of writing its name with
// every record. The ordered class list is part of the fingerprint, so two
// Caching serializators only agree on a file if they were built with
// classes in the same order.
type Caching struct {
	byTag  []Codec
	byName map[string]uint16
}

// NewCaching builds a Caching serializator. The tag assigned to each codec
// is its position in codecs, so callers opening an existing file must pass
// the same classes in the same order every time.
func NewCaching(codecs ...Codec) *Caching {
	c := &Caching{byTag: codecs, byName: make(map[string]uint16, len(codecs))}
	for i, codec := range codecs {
		c.byName[codec.ClassName()] = uint16(i)
	}
	return c
}

const cacheTagLen = 2

// Write emits size, the object's cache tag, then the encoded payload.
func (c *Caching) Write(cur cursor.OutputCursor, obj any) (int, error) {
	classed, ok := obj.(Classed)
	if !ok {
		return 0, errors.NewVersionMismatchError("").
			WithDetail("reason", "object does not implement serializator.Classed")
	}
	tag, ok := c.byName[classed.ClassName()]
	if !ok {
		return 0, errors.NewVersionMismatchError("").WithDetail("unknownClass", classed.ClassName())
	}
	codec := c.byTag[tag]

	payload, err := codec.Encode(obj)
	if err != nil {
		return 0, err
	}

	body := make([]byte, cacheTagLen+len(payload))
	binary.BigEndian.PutUint16(body, tag)
	copy(body[cacheTagLen:], payload)

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
func (c *Caching) Read(cur cursor.InputCursor) (any, error) {
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
		if size < cacheTagLen {
			return nil, errors.NewCorruptedError(errUnknownCacheTag, "", int(cur.Position()))
		}

		body := make([]byte, size)
		if err := cur.ReadExact(body); err != nil {
			return nil, errors.NewCorruptedError(err, "", int(cur.Position()))
		}

		tag := binary.BigEndian.Uint16(body)
		if int(tag) >= len(c.byTag) {
			return nil, errors.NewCorruptedError(errUnknownCacheTag, "", int(cur.Position()))
		}
		return c.byTag[tag].Decode(body[cacheTagLen:])
	}
}

// Skip reads the size prefix and advances the cursor past the payload
// without decoding it.
func (c *Caching) Skip(cur cursor.InputCursor, includeDeleted bool) (int32, error) {
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

// Fingerprint hashes the ordered class list, so a caching serializator
// rejects a file written with a different class order or set.
func (c *Caching) Fingerprint() uint32 {
	h := xxhash.New()
	for _, codec := range c.byTag {
		_, _ = h.WriteString(codec.ClassName())
		_, _ = h.Write([]byte{0})
	}
	return uint32(h.Sum64())
}
