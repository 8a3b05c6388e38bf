package cursor_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mbatko/messif-go/pkg/cursor"
)

func newTempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "cursor.dat"), os.O_CREATE|os.O_RDWR, 0644)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestBufferedOutputCursor_WriteThenRead_RoundTrips(t *testing.T) {
	f := newTempFile(t)

	out := cursor.NewBufferedOutputCursor(f, 0, 16)
	_, err := out.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, out.Flush(false))

	in := cursor.NewBufferedInputCursor(f, 0, 16)
	buf := make([]byte, 11)
	require.NoError(t, in.ReadExact(buf))
	require.Equal(t, "hello world", string(buf))
}

func TestBufferedOutputCursor_Flush_ClearsDirtyRegardlessOfSync(t *testing.T) {
	f := newTempFile(t)

	out := cursor.NewBufferedOutputCursor(f, 0, 64)
	_, err := out.Write([]byte("staged"))
	require.NoError(t, err)
	require.True(t, out.IsDirty())

	require.NoError(t, out.Flush(false))
	require.False(t, out.IsDirty(), "Flush(false) must still clear dirty once staged bytes are spilled")
}

func TestBufferedOutputCursor_Write_SpillsAcrossBufferBoundary(t *testing.T) {
	f := newTempFile(t)

	out := cursor.NewBufferedOutputCursor(f, 0, 4)
	_, err := out.Write([]byte("abcdefgh"))
	require.NoError(t, err)
	require.NoError(t, out.Flush(false))

	in := cursor.NewBufferedInputCursor(f, 0, 4)
	buf := make([]byte, 8)
	require.NoError(t, in.ReadExact(buf))
	require.Equal(t, "abcdefgh", string(buf))
}
