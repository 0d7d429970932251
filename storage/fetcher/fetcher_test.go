package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sprouterdb/sprouter/common"
)

func TestInMemoryFetcher(t *testing.T) {
	testFetcher(t, NewInMemoryPageFetcher())
}

func TestFileFetcher(t *testing.T) {
	f, err := NewFilePageFetcher(filepath.Join(t.TempDir(), "sprouter.dat"), 0)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()
	testFetcher(t, f)
}

func testFetcher(t *testing.T, f PageFetcher) {
	t.Helper()

	_, err := f.FetchRead(0)
	require.Error(t, err)

	special := []byte("eightbyt")
	pageNo, guard, err := f.NewPage(special)
	require.NoError(t, err)
	require.Equal(t, uint32(0), pageNo)
	require.Equal(t, special, guard.Page.SpecialData())
	require.NoError(t, guard.Page.AddItem(common.AppendUint64ToBufferLE(nil, 42)))
	require.NoError(t, guard.Release())

	rg, err := f.FetchRead(0)
	require.NoError(t, err)
	require.Equal(t, 1, rg.Page.ItemCount())
	v, _ := common.ReadUint64FromBufferLE(rg.Page.GetItem(0), 0)
	require.Equal(t, uint64(42), v)
	rg.Release()

	wg, err := f.FetchWrite(0)
	require.NoError(t, err)
	require.NoError(t, wg.Page.AddItem(common.AppendUint64ToBufferLE(nil, 43)))
	require.NoError(t, wg.Release())

	pageNo, guard, err = f.NewPage(special)
	require.NoError(t, err)
	require.Equal(t, uint32(1), pageNo)
	require.NoError(t, guard.Release())
	require.Equal(t, uint32(2), f.PageCount())
}

func TestFileFetcherEviction(t *testing.T) {
	f, err := NewFilePageFetcher(filepath.Join(t.TempDir(), "sprouter.dat"), 4)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f.Close())
	}()

	numPages := 20
	for i := 0; i < numPages; i++ {
		pageNo, guard, err := f.NewPage([]byte("eightbyt"))
		require.NoError(t, err)
		require.NoError(t, guard.Page.AddItem(common.AppendUint64ToBufferLE(nil, uint64(i))))
		require.NoError(t, guard.Release())
		require.Equal(t, uint32(i), pageNo)
	}
	require.LessOrEqual(t, len(f.frames), 4)

	// Evicted frames reload from disk with their data intact.
	for i := 0; i < numPages; i++ {
		rg, err := f.FetchRead(uint32(i))
		require.NoError(t, err)
		v, _ := common.ReadUint64FromBufferLE(rg.Page.GetItem(0), 0)
		require.Equal(t, uint64(i), v)
		rg.Release()
	}
}

func TestFileFetcherReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sprouter.dat")

	f, err := NewFilePageFetcher(path, 0)
	require.NoError(t, err)
	_, guard, err := f.NewPage([]byte("eightbyt"))
	require.NoError(t, err)
	require.NoError(t, guard.Page.AddItem(common.AppendUint64ToBufferLE(nil, 99)))
	require.NoError(t, guard.Release())
	require.NoError(t, f.Close())

	// Reopening reads the flushed frame back, verifying its checksum.
	f2, err := NewFilePageFetcher(path, 0)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f2.Close())
	}()
	require.Equal(t, uint32(1), f2.PageCount())
	rg, err := f2.FetchRead(0)
	require.NoError(t, err)
	defer rg.Release()
	require.Equal(t, []byte("eightbyt"), rg.Page.SpecialData())
	v, _ := common.ReadUint64FromBufferLE(rg.Page.GetItem(0), 0)
	require.Equal(t, uint64(99), v)
}
