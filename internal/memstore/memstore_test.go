package memstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbatko/messif-go/internal/memstore"
)

func TestStore_ThenRead_ReturnsSameObject(t *testing.T) {
	s := memstore.New()

	addr, err := s.Store("hello")
	require.NoError(t, err)

	got, err := s.Read(addr)
	require.NoError(t, err)
	require.Equal(t, "hello", got)
	require.EqualValues(t, 1, s.Size())
}

func TestRemove_LastSlot_ShrinksVectorAndAllowsReuse(t *testing.T) {
	s := memstore.New()

	first, err := s.Store("first")
	require.NoError(t, err)
	second, err := s.Store("second")
	require.NoError(t, err)

	require.NoError(t, s.Remove(second))
	require.Zero(t, s.Fragmentation(), "removing the trailing slot should shrink it away, not tombstone it")

	third, err := s.Store("third")
	require.NoError(t, err)
	require.Equal(t, second.Offset(), third.Offset(), "a freed trailing slot should be reused, not appended past")

	got, err := s.Read(first)
	require.NoError(t, err)
	require.Equal(t, "first", got)
}

func TestRemove_MiddleSlot_LeavesTombstoneInPlace(t *testing.T) {
	s := memstore.New()

	first, err := s.Store("first")
	require.NoError(t, err)
	_, err = s.Store("second")
	require.NoError(t, err)

	require.NoError(t, s.Remove(first))
	require.Greater(t, s.Fragmentation(), 0.0)

	_, err = s.Read(first)
	require.Error(t, err, "reading a tombstoned slot must fail")
}

func TestRemove_Twice_FailsOnSecondCall(t *testing.T) {
	s := memstore.New()

	addr, err := s.Store("x")
	require.NoError(t, err)

	require.NoError(t, s.Remove(addr))
	err = s.Remove(addr)
	require.Error(t, err, "removing an already-tombstoned address must fail, not silently succeed")
}

func TestRead_IndexBeyondOccupiedRange_Fails(t *testing.T) {
	s := memstore.New()

	addr, err := s.Store("x")
	require.NoError(t, err)
	require.NoError(t, s.Remove(addr))

	_, err = s.Read(addr)
	require.Error(t, err)
}

func TestClose_RejectsFurtherOperations(t *testing.T) {
	s := memstore.New()
	require.NoError(t, s.Close())

	_, err := s.Store("x")
	require.Error(t, err)
}

func TestDestroy_DropsEverything(t *testing.T) {
	s := memstore.New()
	addr, err := s.Store("x")
	require.NoError(t, err)

	require.NoError(t, s.Destroy())

	_, err = s.Read(addr)
	require.Error(t, err)
}

func TestSearch_SkipsTombstonedSlots(t *testing.T) {
	s := memstore.New()
	_, err := s.Store("keep1")
	require.NoError(t, err)
	gone, err := s.Store("gone")
	require.NoError(t, err)
	_, err = s.Store("keep2")
	require.NoError(t, err)
	require.NoError(t, s.Remove(gone))

	sch := memstore.NewSearch(s, func(obj any) any { return obj }, nil)
	var got []string
	for {
		obj, ok, err := sch.ReadNext()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, obj.(string))
	}
	require.Equal(t, []string{"keep1", "keep2"}, got)
}

func TestSearch_Remove_DeletesCurrentSlot(t *testing.T) {
	s := memstore.New()
	addr, err := s.Store("x")
	require.NoError(t, err)

	sch := memstore.NewSearch(s, func(obj any) any { return obj }, nil)
	_, ok, err := sch.ReadNext()
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, sch.Remove())
	_, err = s.Read(addr)
	require.Error(t, err)

	err = sch.Remove()
	require.Error(t, err, "a second Remove without an intervening ReadNext must fail")
}
