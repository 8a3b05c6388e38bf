package serializator_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	stdErrors "errors"

	"github.com/stretchr/testify/require"

	"github.com/mbatko/messif-go/pkg/cursor"
	"github.com/mbatko/messif-go/pkg/serializator"
)

type stringRecord string

func (stringRecord) ClassName() string { return "string" }

type stringCodec struct{}

func (stringCodec) ClassName() string { return "string" }
func (stringCodec) Encode(obj any) ([]byte, error) {
	return []byte(obj.(stringRecord)), nil
}
func (stringCodec) Decode(data []byte) (any, error) {
	return stringRecord(data), nil
}

func newFileCursors(t *testing.T) (cursor.OutputCursor, func() cursor.InputCursor) {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "log.dat"), os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	out := cursor.NewBufferedOutputCursor(f, 0, 64)
	return out, func() cursor.InputCursor { return cursor.NewBufferedInputCursor(f, 0, 64) }
}

func writeRawTombstone(t *testing.T, out cursor.OutputCursor, payload []byte) {
	t.Helper()
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(int32(-len(payload))))
	_, err := out.Write(prefix[:])
	require.NoError(t, err)
	_, err = out.Write(payload)
	require.NoError(t, err)
}

func TestMultiClass_WriteThenRead_RoundTrips(t *testing.T) {
	out, newIn := newFileCursors(t)
	ser := serializator.NewMultiClass(stringCodec{})

	_, err := ser.Write(out, stringRecord("hello"))
	require.NoError(t, err)
	require.NoError(t, out.Flush(false))

	in := newIn()
	got, err := ser.Read(in)
	require.NoError(t, err)
	require.Equal(t, stringRecord("hello"), got)
}

func TestMultiClass_Read_SkipsTombstoneTransparently(t *testing.T) {
	out, newIn := newFileCursors(t)
	ser := serializator.NewMultiClass(stringCodec{})

	writeRawTombstone(t, out, []byte("dead record"))
	_, err := ser.Write(out, stringRecord("alive"))
	require.NoError(t, err)
	require.NoError(t, out.Flush(false))

	in := newIn()
	got, err := ser.Read(in)
	require.NoError(t, err)
	require.Equal(t, stringRecord("alive"), got, "Read must skip the leading tombstone and decode the next live record")
}

func TestMultiClass_Read_AtTerminator_ReturnsEndOfLog(t *testing.T) {
	out, newIn := newFileCursors(t)
	ser := serializator.NewMultiClass(stringCodec{})
	_, err := out.Write(make([]byte, 4)) // zero size prefix: the terminator
	require.NoError(t, err)
	require.NoError(t, out.Flush(false))

	in := newIn()
	_, err = ser.Read(in)
	require.True(t, stdErrors.Is(err, serializator.ErrEndOfLog))
}

func TestMultiClass_Fingerprint_DiffersByRegisteredClasses(t *testing.T) {
	a := serializator.NewMultiClass(stringCodec{})
	b := serializator.NewMultiClass()
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestCaching_WriteThenRead_RoundTrips(t *testing.T) {
	out, newIn := newFileCursors(t)
	ser := serializator.NewCaching(stringCodec{})

	_, err := ser.Write(out, stringRecord("cached"))
	require.NoError(t, err)
	require.NoError(t, out.Flush(false))

	in := newIn()
	got, err := ser.Read(in)
	require.NoError(t, err)
	require.Equal(t, stringRecord("cached"), got)
}

type intCodec struct{}

func (intCodec) ClassName() string                  { return "int" }
func (intCodec) Encode(obj any) ([]byte, error)     { return []byte{byte(obj.(int))}, nil }
func (intCodec) Decode(data []byte) (any, error)    { return int(data[0]), nil }

func TestCaching_Fingerprint_DependsOnClassOrder(t *testing.T) {
	a := serializator.NewCaching(stringCodec{}, intCodec{})
	b := serializator.NewCaching(intCodec{}, stringCodec{})
	require.NotEqual(t, a.Fingerprint(), b.Fingerprint(), "tag assignment is positional, so order must affect the fingerprint")

	c := serializator.NewCaching(stringCodec{}, intCodec{})
	require.Equal(t, a.Fingerprint(), c.Fingerprint())
}
