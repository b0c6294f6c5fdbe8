// Package prefixeddb wraps a db.Database namespacing all keys under a
// fixed prefix, so independent subsystems can share one database.
package prefixeddb

import (
	"slices"

	"github.com/tactizen/zkvote-node/db"
)

// PrefixedDatabase wraps a db.Database prepending a prefix to every key.
type PrefixedDatabase struct {
	db     db.Database
	prefix []byte
}

var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase returns a view of d where all keys live under prefix.
func NewPrefixedDatabase(d db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{db: d, prefix: slices.Clone(prefix)}
}

// NewPrefixedReader returns a read-only view of d under prefix.
func NewPrefixedReader(d db.Reader, prefix []byte) db.Reader {
	return &prefixedReader{reader: d, prefix: slices.Clone(prefix)}
}

func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(slices.Concat(d.prefix, key))
}

func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.db.Iterate(slices.Concat(d.prefix, prefix), callback)
}

func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

func (d *PrefixedDatabase) Close() error { return d.db.Close() }

func (d *PrefixedDatabase) Compact() error { return d.db.Compact() }

type prefixedReader struct {
	reader db.Reader
	prefix []byte
}

func (r *prefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(slices.Concat(r.prefix, key))
}

func (r *prefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return r.reader.Iterate(slices.Concat(r.prefix, prefix), callback)
}

// PrefixedWriteTx wraps a db.WriteTx prepending a prefix to every key.
type PrefixedWriteTx struct {
	tx     db.WriteTx
	prefix []byte
}

var _ db.WriteTx = (*PrefixedWriteTx)(nil)

// NewPrefixedWriteTx returns a view of tx where all keys live under prefix.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{tx: tx, prefix: slices.Clone(prefix)}
}

func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(slices.Concat(t.prefix, key))
}

func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return t.tx.Iterate(slices.Concat(t.prefix, prefix), callback)
}

func (t *PrefixedWriteTx) Set(key, value []byte) error {
	return t.tx.Set(slices.Concat(t.prefix, key), value)
}

func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(slices.Concat(t.prefix, key))
}

func (t *PrefixedWriteTx) Apply(other db.WriteTx) error {
	if o, ok := other.(*PrefixedWriteTx); ok {
		return t.tx.Apply(o.tx)
	}
	return t.tx.Apply(other)
}

func (t *PrefixedWriteTx) Commit() error { return t.tx.Commit() }

func (t *PrefixedWriteTx) Discard() { t.tx.Discard() }
