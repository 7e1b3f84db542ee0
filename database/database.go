package database

import (
	"encoding/json"
	"errors"
	"syscall"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// ErrNotFound is returned when a key does not exist
var ErrNotFound = leveldb.ErrNotFound

// DB is a thin wrapper around leveldb. Every multi-key mutation goes through
// a Batch so that it is applied atomically.
type DB struct {
	ldb *leveldb.DB
}

// Open opens (or creates) the leveldb files under dir
func Open(dir string) (*DB, error) {
	ldb, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &DB{ldb: ldb}, nil
}

// IsLocked reports whether err came from opening a directory that another
// open DB already holds
func IsLocked(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}

// OpenInMemory is used by tests and dry runs
func OpenInMemory() (*DB, error) {
	ldb, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &DB{ldb: ldb}, nil
}

func (d *DB) Close() error {
	return d.ldb.Close()
}

func (d *DB) Get(key []byte) ([]byte, error) {
	return d.ldb.Get(key, nil)
}

func (d *DB) Has(key []byte) (bool, error) {
	return d.ldb.Has(key, nil)
}

func (d *DB) GetJSON(key []byte, obj interface{}) error {
	value, err := d.ldb.Get(key, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(value, obj)
}

func (d *DB) PutJSON(key []byte, obj interface{}) error {
	value, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return d.ldb.Put(key, value, &opt.WriteOptions{Sync: true})
}

// Write commits the batch atomically and durably
func (d *DB) Write(batch *Batch) error {
	if batch.err != nil {
		return batch.err
	}
	return d.ldb.Write(batch.b, &opt.WriteOptions{Sync: true})
}

// Iterate calls fn for every key with the given prefix, in key order.
// Returning false from fn stops the iteration. key and value are only valid
// until fn returns.
func (d *DB) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	iter := d.ldb.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// IterateFrom is like Iterate but starts at key start (inclusive)
func (d *DB) IterateFrom(prefix []byte, start []byte, fn func(key, value []byte) bool) error {
	r := util.BytesPrefix(prefix)
	r.Start = start
	iter := d.ldb.NewIterator(r, nil)
	defer iter.Release()
	for iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// Batch stages writes until DB.Write. An encoding failure is remembered and
// reported by Write so that callers can stage without checking each step.
type Batch struct {
	b   *leveldb.Batch
	err error
}

func NewBatch() *Batch {
	return &Batch{b: new(leveldb.Batch)}
}

func (b *Batch) Put(key, value []byte) {
	b.b.Put(key, value)
}

func (b *Batch) PutJSON(key []byte, obj interface{}) {
	value, err := json.Marshal(obj)
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return
	}
	b.b.Put(key, value)
}

func (b *Batch) Len() int {
	return b.b.Len()
}

func (b *Batch) Err() error {
	return b.err
}

func IsNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound)
}
