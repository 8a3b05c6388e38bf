package search_test

import (
	"context"
	"path/filepath"
	"testing"

	stdErrors "errors"

	"github.com/stretchr/testify/require"

	"github.com/mbatko/messif-go/internal/blockstore"
	"github.com/mbatko/messif-go/internal/search"
	"github.com/mbatko/messif-go/pkg/logger"
	"github.com/mbatko/messif-go/pkg/options"
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

func newTestStorage(t *testing.T) *blockstore.Storage {
	t.Helper()
	opts := options.NewDefaultOptions()
	opts.File = filepath.Join(t.TempDir(), "search.ds")
	opts.Serializator = serializator.NewMultiClass(stringCodec{})

	s, err := blockstore.Open(context.Background(), &blockstore.Config{
		Options: &opts,
		Logger:  logger.New("search_test"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func extractor(obj any) any { return obj.(stringRecord) }

func equalStrings(a, b any) bool { return a.(stringRecord) == b.(stringRecord) }

func TestSearch_NoComparator_VisitsEveryRecordInOrder(t *testing.T) {
	s := newTestStorage(t)
	for _, rec := range []stringRecord{"a", "b", "c"} {
		_, err := s.Store(rec)
		require.NoError(t, err)
	}

	sch, err := search.New(context.Background(), s, extractor, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sch.Close() })

	var got []stringRecord
	for {
		obj, err := sch.ReadNext()
		if stdErrors.Is(err, serializator.ErrEndOfLog) {
			break
		}
		require.NoError(t, err)
		got = append(got, obj.(stringRecord))
	}
	require.Equal(t, []stringRecord{"a", "b", "c"}, got)
}

func TestSearch_WithKeySet_OnlyYieldsMatches(t *testing.T) {
	s := newTestStorage(t)
	for _, rec := range []stringRecord{"a", "b", "c"} {
		_, err := s.Store(rec)
		require.NoError(t, err)
	}

	comparator := search.KeySet{Keys: []any{stringRecord("b")}, Equal: equalStrings}
	sch, err := search.New(context.Background(), s, extractor, comparator)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sch.Close() })

	obj, err := sch.ReadNext()
	require.NoError(t, err)
	require.Equal(t, stringRecord("b"), obj)

	_, err = sch.ReadNext()
	require.True(t, stdErrors.Is(err, serializator.ErrEndOfLog))
}

func TestSearch_SkipsTombstonedRecords(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.Store(stringRecord("keep1"))
	require.NoError(t, err)
	gone, err := s.Store(stringRecord("gone"))
	require.NoError(t, err)
	_, err = s.Store(stringRecord("keep2"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(gone))

	sch, err := search.New(context.Background(), s, extractor, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sch.Close() })

	var got []stringRecord
	for {
		obj, err := sch.ReadNext()
		if stdErrors.Is(err, serializator.ErrEndOfLog) {
			break
		}
		require.NoError(t, err)
		got = append(got, obj.(stringRecord))
	}
	require.Equal(t, []stringRecord{"keep1", "keep2"}, got)
}

func TestSearch_Remove_DeletesCurrentRecordAndInvalidatesPosition(t *testing.T) {
	s := newTestStorage(t)
	addr, err := s.Store(stringRecord("a"))
	require.NoError(t, err)

	sch, err := search.New(context.Background(), s, extractor, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sch.Close() })

	_, err = sch.ReadNext()
	require.NoError(t, err)

	require.NoError(t, sch.Remove())
	_, err = s.Read(addr)
	require.Error(t, err, "Remove must delete the record the search was positioned on")

	err = sch.Remove()
	require.Error(t, err, "a second Remove without an intervening ReadNext must fail")
}

func TestSearch_CurrentAddress_FailsBeforeFirstReadNext(t *testing.T) {
	s := newTestStorage(t)
	sch, err := search.New(context.Background(), s, extractor, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sch.Close() })

	_, err = sch.CurrentAddress()
	require.Error(t, err)
}

func TestSearch_Close_FailsSubsequentReadNext(t *testing.T) {
	s := newTestStorage(t)
	sch, err := search.New(context.Background(), s, extractor, nil)
	require.NoError(t, err)

	require.NoError(t, sch.Close())
	_, err = sch.ReadNext()
	require.Error(t, err)
}
