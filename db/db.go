package db

import "errors"

var (
	// ErrKeyNotFound is returned when a key is not found in the database.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by WriteTx.Commit when the transaction lost a
	// race with a concurrent write to one of the keys it touched.
	ErrConflict = errors.New("transaction conflict")
	// ErrTxnTooBig is returned when a transaction exceeds the backend's
	// batch size limits. Callers should split the work across transactions.
	ErrTxnTooBig = errors.New("transaction too big")
)

// Backend type identifiers, accepted by metadb.New.
const (
	TypePebble   = "pebble"
	TypeInMemory = "inmemory"
)

// Options contains the options for creating a database.
type Options struct {
	Path string
}

// Database is the interface to be implemented by all key/value backends.
// Implementations must be safe for concurrent use.
type Database interface {
	Reader
	// WriteTx creates a new write transaction.
	WriteTx() WriteTx
	// Close closes the database and releases its resources.
	Close() error
	// Compact triggers a storage compaction, if the backend supports it.
	Compact() error
}

// Reader is the read-only subset of a database or transaction.
type Reader interface {
	// Get retrieves the value for the given key. Returns ErrKeyNotFound if
	// the key does not exist.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key/value pair whose key has the
	// given prefix, in lexicographic key order, until callback returns
	// false. The callback key does not include the prefix.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a read-write transaction. Writes are not visible to other
// readers until Commit. A WriteTx must end with either Commit or Discard;
// both are safe to call on an already finished transaction.
type WriteTx interface {
	Reader
	// Set stores a key/value pair.
	Set(key, value []byte) error
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key []byte) error
	// Apply copies the pending writes of the given transaction into this
	// one. Both transactions must belong to the same database.
	Apply(other WriteTx) error
	// Commit atomically applies the pending writes.
	Commit() error
	// Discard drops the pending writes.
	Discard()
}
