package storage

import (
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/regcache/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
)

func TestPersistenceStoreBasicOperations(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	require.NoError(t, err)
	defer ps.Close()

	require.NoError(t, ps.Put([]byte("k"), []byte("v")))
	got, found, err := ps.Get([]byte("k"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), got)

	_, found, err = ps.Get([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, ps.Delete([]byte("k")))
	_, found, err = ps.Get([]byte("k"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPersistenceStoreHashOperations(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	require.NoError(t, err)
	defer ps.Close()

	key := common.Blake2Hash([]byte("program"))
	require.NoError(t, ps.PutHash(key, []byte{1, 2, 3}))
	got, err := ps.GetHash(key)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)

	require.NoError(t, ps.DeleteHash(key))
	_, err = ps.GetHash(key)
	assert.ErrorIs(t, err, leveldb.ErrNotFound)
}

func TestPersistenceStorePrefixScan(t *testing.T) {
	ps, err := NewMemoryPersistenceStore()
	require.NoError(t, err)
	defer ps.Close()

	require.NoError(t, ps.PutBatch([][2][]byte{
		{[]byte("run/b"), []byte("2")},
		{[]byte("run/a"), []byte("1")},
		{[]byte("other"), []byte("x")},
		{[]byte("ru"), []byte("y")},
	}))
	kvs, err := ps.GetWithPrefix([]byte("run/"))
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	assert.Equal(t, []byte("run/a"), kvs[0][0])
	assert.Equal(t, []byte("2"), kvs[1][1])

	kvs, err = ps.GetWithPrefix([]byte("none/"))
	require.NoError(t, err)
	assert.Empty(t, kvs)
}

func TestPersistenceStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	ps, err := NewPersistenceStore(path)
	require.NoError(t, err)
	require.NoError(t, ps.Put([]byte("k"), []byte("v")))
	require.NoError(t, ps.Close())

	ps, err = NewPersistenceStore(path)
	require.NoError(t, err)
	defer ps.Close()
	got, found, err := ps.Get([]byte("k"))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), got)
}
