package btree

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sprouterdb/sprouter/common"
	"github.com/sprouterdb/sprouter/storage/fetcher"
)

func setupBTree(t *testing.T) *BTree {
	t.Helper()
	bt, err := NewBTree(fetcher.NewInMemoryPageFetcher())
	require.NoError(t, err)
	return bt
}

func intKey(k int64) []byte {
	return common.KeyEncodeInt64(nil, k)
}

func TestEmptyTreeSearch(t *testing.T) {
	bt := setupBTree(t)
	_, found, err := bt.Search(intKey(1))
	require.NoError(t, err)
	require.False(t, found)
}

func TestInsertAndSearch(t *testing.T) {
	bt := setupBTree(t)
	require.NoError(t, bt.Insert(intKey(0), []byte("value-zero")))
	require.NoError(t, bt.Insert(intKey(2), []byte("value-two")))

	v, found, err := bt.Search(intKey(0))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value-zero"), v)

	_, found, err = bt.Search(intKey(1))
	require.NoError(t, err)
	require.False(t, found)

	v, found, err = bt.Search(intKey(2))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value-two"), v)
}

func TestUpsertSameSize(t *testing.T) {
	bt := setupBTree(t)
	require.NoError(t, bt.Insert(intKey(7), []byte("aaaa")))
	require.NoError(t, bt.Insert(intKey(7), []byte("bbbb")))

	v, found, err := bt.Search(intKey(7))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("bbbb"), v)

	// No duplicate left behind.
	count := 0
	require.NoError(t, bt.Scan(func(key, value []byte) (bool, error) {
		count++
		return true, nil
	}))
	require.Equal(t, 1, count)
}

func TestUpsertDifferentSize(t *testing.T) {
	bt := setupBTree(t)
	require.NoError(t, bt.Insert(intKey(7), []byte("short")))
	require.NoError(t, bt.Insert(intKey(7), []byte("a much longer value than before")))

	v, found, err := bt.Search(intKey(7))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("a much longer value than before"), v)
}

func TestSplitRootLeaf(t *testing.T) {
	bt := setupBTree(t)
	// Insert until the root leaf must have split at least once.
	n := 500
	for i := 0; i < n; i++ {
		require.NoError(t, bt.Insert(intKey(int64(i)), []byte(fmt.Sprintf("value-%04d", i))))
	}
	// Metadata + more than one tree page.
	require.Greater(t, int(bt.pageFetcher.PageCount()), 2)

	for i := 0; i < n; i++ {
		v, found, err := bt.Search(intKey(int64(i)))
		require.NoError(t, err)
		require.True(t, found, "key %d missing after splits", i)
		require.Equal(t, []byte(fmt.Sprintf("value-%04d", i)), v)
	}
}

func TestMultiLevelScanOrder(t *testing.T) {
	bt := setupBTree(t)
	n := 2000
	keys := rand.New(rand.NewSource(42)).Perm(n)
	for _, k := range keys {
		require.NoError(t, bt.Insert(intKey(int64(k)), []byte(fmt.Sprintf("value-%05d", k))))
	}

	var scanned []int64
	require.NoError(t, bt.Scan(func(key, value []byte) (bool, error) {
		k, _ := common.KeyDecodeInt64(key, 0)
		require.Equal(t, []byte(fmt.Sprintf("value-%05d", k)), value)
		scanned = append(scanned, k)
		return true, nil
	}))

	require.Len(t, scanned, n)
	for i, k := range scanned {
		require.Equal(t, int64(i), k, "scan out of order at position %d", i)
	}
}

func TestScanEarlyStop(t *testing.T) {
	bt := setupBTree(t)
	for i := 0; i < 100; i++ {
		require.NoError(t, bt.Insert(intKey(int64(i)), []byte("v")))
	}
	count := 0
	require.NoError(t, bt.Scan(func(key, value []byte) (bool, error) {
		count++
		return count < 10, nil
	}))
	require.Equal(t, 10, count)
}

type countingCounter struct {
	count int
}

func (c *countingCounter) Inc() { c.count++ }

func TestSplitCounter(t *testing.T) {
	bt := setupBTree(t)
	counter := &countingCounter{}
	bt.SetSplitCounter(counter)
	for i := 0; i < 1000; i++ {
		require.NoError(t, bt.Insert(intKey(int64(i)), []byte("some value payload")))
	}
	require.Greater(t, counter.count, 0)
}

func TestFileBackedPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btree.dat")

	f, err := fetcher.NewFilePageFetcher(path, 0)
	require.NoError(t, err)
	bt, err := NewBTree(f)
	require.NoError(t, err)
	n := 500
	for i := 0; i < n; i++ {
		require.NoError(t, bt.Insert(intKey(int64(i)), []byte(fmt.Sprintf("value-%04d", i))))
	}
	require.NoError(t, f.Close())

	f2, err := fetcher.NewFilePageFetcher(path, 0)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, f2.Close())
	}()
	bt2, err := NewBTree(f2)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		v, found, err := bt2.Search(intKey(int64(i)))
		require.NoError(t, err)
		require.True(t, found, "key %d missing after reopen", i)
		require.Equal(t, []byte(fmt.Sprintf("value-%04d", i)), v)
	}

	var scanned int
	require.NoError(t, bt2.Scan(func(key, value []byte) (bool, error) {
		scanned++
		return true, nil
	}))
	require.Equal(t, n, scanned)
}

func TestStringKeys(t *testing.T) {
	bt := setupBTree(t)
	words := []string{"pangolin", "aardvark", "tortoise", "hedgehog", "antelope"}
	for _, w := range words {
		require.NoError(t, bt.Insert(common.KeyEncodeString(nil, w), []byte("animal:"+w)))
	}
	for _, w := range words {
		v, found, err := bt.Search(common.KeyEncodeString(nil, w))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte("animal:"+w), v)
	}
	_, found, err := bt.Search(common.KeyEncodeString(nil, "wombat"))
	require.NoError(t, err)
	require.False(t, found)
}
