package pebbledb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/tactizen/zkvote-node/db"
)

// Database is a db.Database backed by cockroachdb/pebble. This is the
// backend used in production deployments.
type Database struct {
	db *pebble.DB
}

var _ db.Database = (*Database)(nil)

// New opens (or creates) a pebble database at opts.Path.
func New(opts db.Options) (*Database, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("pebbledb requires a path")
	}
	pdb, err := pebble.Open(opts.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("could not open pebble db: %w", err)
	}
	return &Database{db: pdb}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Compact() error {
	// Compact the whole keyspace.
	return d.db.Compact(nil, bytes.Repeat([]byte{0xff}, 16), true)
}

func (d *Database) Get(key []byte) ([]byte, error) {
	value, closer, err := d.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	out := bytes.Clone(value)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Database) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := d.db.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	defer func() { _ = iter.Close() }()
	return iterate(iter, prefix, callback)
}

func (d *Database) WriteTx() db.WriteTx {
	return &writeTx{batch: d.db.NewIndexedBatch()}
}

type writeTx struct {
	batch *pebble.Batch
	done  bool
}

var _ db.WriteTx = (*writeTx)(nil)

func (tx *writeTx) Get(key []byte) ([]byte, error) {
	value, closer, err := tx.batch.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	out := bytes.Clone(value)
	if err := closer.Close(); err != nil {
		return nil, err
	}
	return out, nil
}

func (tx *writeTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := tx.batch.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	defer func() { _ = iter.Close() }()
	return iterate(iter, prefix, callback)
}

func (tx *writeTx) Set(key, value []byte) error {
	return tx.batch.Set(key, value, nil)
}

func (tx *writeTx) Delete(key []byte) error {
	return tx.batch.Delete(key, nil)
}

func (tx *writeTx) Apply(other db.WriteTx) error {
	otherTx, ok := other.(*writeTx)
	if !ok {
		return fmt.Errorf("cannot apply transaction from a different backend")
	}
	return tx.batch.Apply(otherTx.batch, nil)
}

func (tx *writeTx) Commit() error {
	if tx.done {
		return fmt.Errorf("cannot commit pebble tx: already committed or discarded")
	}
	tx.done = true
	return tx.batch.Commit(pebble.Sync)
}

func (tx *writeTx) Discard() {
	if tx.done {
		return
	}
	tx.done = true
	_ = tx.batch.Close()
}

func iterate(iter *pebble.Iterator, prefix []byte, callback func(key, value []byte) bool) error {
	for iter.First(); iter.Valid(); iter.Next() {
		key := bytes.Clone(iter.Key())
		value := bytes.Clone(iter.Value())
		if !callback(key[len(prefix):], value) {
			break
		}
	}
	return iter.Error()
}

// prefixIterOptions bounds an iterator to the keys carrying prefix.
func prefixIterOptions(prefix []byte) *pebble.IterOptions {
	if len(prefix) == 0 {
		return nil
	}
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	}
}

func keyUpperBound(b []byte) []byte {
	end := bytes.Clone(b)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // no upper bound
}
