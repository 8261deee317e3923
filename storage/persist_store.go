// Package storage persists tuning results in LevelDB.
package storage

import (
	"fmt"

	"github.com/colorfulnotion/regcache/common"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// PersistenceStore is a thin key-value layer over LevelDB. LevelDB handles
// its own synchronization, so a store may be shared between goroutines.
type PersistenceStore struct {
	db *leveldb.DB
}

// NewPersistenceStore opens or creates a database at path. An empty path
// gives an in-memory store.
func NewPersistenceStore(path string) (*PersistenceStore, error) {
	var db *leveldb.DB
	var err error
	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open database at %q: %w", path, err)
	}
	return &PersistenceStore{db: db}, nil
}

func NewMemoryPersistenceStore() (*PersistenceStore, error) {
	return NewPersistenceStore("")
}

// Get returns (nil, false, nil) when key is absent.
func (ps *PersistenceStore) Get(key []byte) ([]byte, bool, error) {
	data, err := ps.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %x: %w", key, err)
	}
	return data, true, nil
}

func (ps *PersistenceStore) Put(key []byte, value []byte) error {
	return ps.db.Put(key, value, nil)
}

func (ps *PersistenceStore) Delete(key []byte) error {
	return ps.db.Delete(key, nil)
}

// PutBatch writes all pairs atomically.
func (ps *PersistenceStore) PutBatch(kvs [][2][]byte) error {
	batch := new(leveldb.Batch)
	for _, kv := range kvs {
		batch.Put(kv[0], kv[1])
	}
	return ps.db.Write(batch, nil)
}

// GetWithPrefix returns the pairs whose key starts with prefix, in key order.
func (ps *PersistenceStore) GetWithPrefix(prefix []byte) ([][2][]byte, error) {
	iter := ps.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var results [][2][]byte
	for iter.Next() {
		// the iterator reuses its buffers
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		results = append(results, [2][]byte{key, value})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan %x: %w", prefix, err)
	}
	return results, nil
}

// GetHash fails with leveldb.ErrNotFound when key is absent.
func (ps *PersistenceStore) GetHash(key common.Hash) ([]byte, error) {
	return ps.db.Get(key.Bytes(), nil)
}

func (ps *PersistenceStore) PutHash(key common.Hash, value []byte) error {
	return ps.db.Put(key.Bytes(), value, nil)
}

func (ps *PersistenceStore) DeleteHash(key common.Hash) error {
	return ps.db.Delete(key.Bytes(), nil)
}

func (ps *PersistenceStore) Close() error {
	return ps.db.Close()
}
