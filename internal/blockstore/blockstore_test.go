package blockstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbatko/messif-go/internal/blockstore"
	"github.com/mbatko/messif-go/pkg/address"
	"github.com/mbatko/messif-go/pkg/logger"
	"github.com/mbatko/messif-go/pkg/options"
	"github.com/mbatko/messif-go/pkg/serializator"
)

// stringRecord is the test fixture class: a plain string stored via
// MultiClass, so these tests exercise record framing without pulling in a
// real vector/object model.
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

func newTestStorage(t *testing.T, dir string) *blockstore.Storage {
	t.Helper()
	opts := options.NewDefaultOptions()
	opts.File = filepath.Join(dir, "test.ds")
	opts.Serializator = serializator.NewMultiClass(stringCodec{})

	s, err := blockstore.Open(context.Background(), &blockstore.Config{
		Options: &opts,
		Logger:  logger.New("blockstore_test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_ThenRead_ReturnsSameObject(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t, t.TempDir())

	addr, err := s.Store(stringRecord("hello"))
	require.NoError(t, err)

	got, err := s.Read(addr)
	require.NoError(t, err)
	require.Equal(t, stringRecord("hello"), got)
	require.EqualValues(t, 1, s.Size())
}

func TestStore_AfterRemove_AppendsAtTailNotAtTombstone(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t, t.TempDir())

	first, err := s.Store(stringRecord("first"))
	require.NoError(t, err)
	_, err = s.Store(stringRecord("second"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(first))

	third, err := s.Store(stringRecord("third"))
	require.NoError(t, err)

	got, err := s.Read(third)
	require.NoError(t, err)
	require.Equal(t, stringRecord("third"), got)

	_, err = s.Read(first)
	require.Error(t, err, "reading a removed address must fail, not return the overwritten tombstone bytes")
}

func TestRemove_Twice_FailsOnSecondCall(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t, t.TempDir())

	addr, err := s.Store(stringRecord("x"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(addr))
	err = s.Remove(addr)
	require.Error(t, err, "removing an already-tombstoned address must fail, not silently succeed")
}

func TestRead_TombstonedAddress_Fails(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t, t.TempDir())

	addr, err := s.Store(stringRecord("x"))
	require.NoError(t, err)
	require.NoError(t, s.Remove(addr))

	_, err = s.Read(addr)
	require.Error(t, err)
}

func TestStore_BeyondCapacity_FailsWithoutAdvancingOccupation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.File = filepath.Join(dir, "small.ds")
	opts.MaximalLength = 32
	opts.Serializator = serializator.NewMultiClass(stringCodec{})

	s, err := blockstore.Open(context.Background(), &blockstore.Config{
		Options: &opts,
		Logger:  logger.New("blockstore_test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	endBefore := s.EndOffset()

	_, err = s.Store(stringRecord("a padded value well past thirty two bytes"))
	require.Error(t, err)
	require.EqualValues(t, 0, s.Size())
	require.Equal(t, endBefore, s.EndOffset(), "a rejected store must not advance occupation")
}

// TestStore_BeyondCapacity_BoundIncludesHeader pins maximalLength to include
// the header, not leave room for one on top of it (spec §6: "Segment
// capacity bound, including header"). A record landing past start+
// maximalLength must be rejected even though it would still fit under a
// bound that mistakenly added HeaderSize a second time, and a rejected
// store must not advance occupation or leave the output cursor pointed past
// the still-valid tail.
func TestStore_BeyondCapacity_BoundIncludesHeader(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.File = filepath.Join(dir, "bound.ds")
	// First record ("a", 1 byte payload) lands at recordStart=40, tail=53.
	// Second record ("bbbbbbbbbb", 10 bytes) would end at 75: past this
	// bound of 70, but still within a bound that wrongly added HeaderSize
	// a second time (40+70=110).
	opts.MaximalLength = 70
	opts.Serializator = serializator.NewMultiClass(stringCodec{})

	s, err := blockstore.Open(context.Background(), &blockstore.Config{
		Options: &opts,
		Logger:  logger.New("blockstore_test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	first, err := s.Store(stringRecord("a"))
	require.NoError(t, err)
	endAfterFirst := s.EndOffset()

	_, err = s.Store(stringRecord("bbbbbbbbbb"))
	require.Error(t, err)
	require.EqualValues(t, 1, s.Size())
	require.Equal(t, endAfterFirst, s.EndOffset(), "a rejected store must not advance occupation")

	got, err := s.Read(first)
	require.NoError(t, err)
	require.Equal(t, stringRecord("a"), got)
}

func TestReopen_AfterCleanClose_PreservesRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reopen.ds")
	ser := serializator.NewMultiClass(stringCodec{})

	opts := options.NewDefaultOptions()
	opts.File = path
	opts.Serializator = ser

	s1, err := blockstore.Open(context.Background(), &blockstore.Config{Options: &opts, Logger: logger.New("t")})
	require.NoError(t, err)
	addr, err := s1.Store(stringRecord("durable"))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := blockstore.Open(context.Background(), &blockstore.Config{Options: &opts, Logger: logger.New("t")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s2.Close() })

	got, err := s2.Read(addr)
	require.NoError(t, err)
	require.Equal(t, stringRecord("durable"), got)
}

func TestReadMany_ReturnsEveryStoredObject(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t, t.TempDir())

	addrs := make([]address.Address, 0, 5)
	want := map[int64]stringRecord{}
	for i := 0; i < 5; i++ {
		rec := stringRecord(string(rune('a' + i)))
		addr, err := s.Store(rec)
		require.NoError(t, err)
		want[addr.Offset()] = rec
		addrs = append(addrs, addr)
	}

	it := s.ReadMany(context.Background(), addrs)
	seen := 0
	for {
		obj, err, more := it.Next()
		if !more {
			require.NoError(t, err)
			break
		}
		require.NoError(t, err)
		rec := obj.(stringRecord)
		seen++
		found := false
		for _, want := range want {
			if want == rec {
				found = true
				break
			}
		}
		require.True(t, found, "unexpected object %q from ReadMany", rec)
	}
	require.Equal(t, len(addrs), seen)
}

func TestCompact_DropsTombstonesAndPreservesLiveRecords(t *testing.T) {
	t.Parallel()
	s := newTestStorage(t, t.TempDir())

	keep, err := s.Store(stringRecord("keep"))
	require.NoError(t, err)
	gone, err := s.Store(stringRecord("gone"))
	require.NoError(t, err)
	require.NoError(t, s.Remove(gone))
	require.Greater(t, s.Fragmentation(), 0.0)

	require.NoError(t, s.Compact())
	require.EqualValues(t, 1, s.Size())
	require.Zero(t, s.Fragmentation())

	got, err := s.Read(keep)
	require.NoError(t, err)
	require.Equal(t, stringRecord("keep"), got)

	_, err = s.Read(gone)
	require.Error(t, err, "a compacted-away tombstone must not resurface as readable data")
}

func TestOpen_WithDirectBuffer_RoundTripsThroughMappedCursor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.File = filepath.Join(dir, "direct.ds")
	opts.DirectBuffer = true
	opts.MaximalLength = 4096
	opts.Serializator = serializator.NewMultiClass(stringCodec{})

	s, err := blockstore.Open(context.Background(), &blockstore.Config{
		Options: &opts,
		Logger:  logger.New("blockstore_test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	addr, err := s.Store(stringRecord("mapped"))
	require.NoError(t, err)

	got, err := s.Read(addr)
	require.NoError(t, err)
	require.Equal(t, stringRecord("mapped"), got)
}
