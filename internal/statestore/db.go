package statestore

import (
	"io"

	"github.com/cockroachdb/pebble"
)

// DB is the subset of *pebble.DB the store uses. Writes only go through a
// Batch.
type DB interface {
	// Get gets the value for the given key. It returns pebble.ErrNotFound if
	// the DB does not contain the key. On success the caller must close the
	// returned closer; the value is only valid until then.
	Get(key []byte) (value []byte, closer io.Closer, err error)

	// NewIter returns an unpositioned iterator over a consistent view of the DB.
	NewIter(o *pebble.IterOptions) (Iterator, error)

	// NewBatch returns a new empty write-only batch.
	NewBatch() Batch

	// Close closes the database.
	Close() error
}

// Iterator is the subset of *pebble.Iterator the store uses.
type Iterator interface {
	First() bool
	Next() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// Batch is the subset of *pebble.Batch the store uses. Nothing written to a
// batch is visible until Commit succeeds.
type Batch interface {
	Set(key, value []byte, o *pebble.WriteOptions) error
	Delete(key []byte, o *pebble.WriteOptions) error
	Commit(o *pebble.WriteOptions) error
	Close() error
}

// PebbleDB wraps a pebble.DB to implement the DB interface.
type PebbleDB struct {
	db *pebble.DB
}

// Get returns the value of key. The value is valid until the closer is closed.
func (p *PebbleDB) Get(key []byte) ([]byte, io.Closer, error) {
	return p.db.Get(key)
}

// NewIter opens an iterator over a consistent view of the database.
func (p *PebbleDB) NewIter(o *pebble.IterOptions) (Iterator, error) {
	return p.db.NewIter(o)
}

// NewBatch returns an empty write batch.
func (p *PebbleDB) NewBatch() Batch {
	return p.db.NewBatch()
}

// Close closes the underlying pebble database.
func (p *PebbleDB) Close() error {
	return p.db.Close()
}
