// Package dbtest implements the contract tests shared by all db.Database
// backends.
package dbtest

import (
	"bytes"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/tactizen/zkvote-node/db"
)

// TestWriteTx checks the basic transaction read/write/delete contract.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	defer wTx.Discard()

	if _, err := wTx.Get([]byte("a")); err != db.ErrKeyNotFound {
		c.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	c.Assert(wTx.Set([]byte("a"), []byte("b")), qt.IsNil)

	v, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	c.Assert(wTx.Commit(), qt.IsNil)

	// uncommitted writes must not be visible outside the transaction
	wTx = database.WriteTx()
	defer wTx.Discard()

	v, err = wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	c.Assert(wTx.Set([]byte("a"), []byte("z")), qt.IsNil)
	wTx.Discard()

	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// delete
	wTx = database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	if _, err := database.Get([]byte("a")); err != db.ErrKeyNotFound {
		c.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

// TestIterate checks prefixed iteration and early termination. Iterated
// keys must not include the prefix.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	prefix := []byte("p/")
	wTx := database.WriteTx()
	defer wTx.Discard()
	for i := 0; i < 10; i++ {
		key := append(bytes.Clone(prefix), []byte(fmt.Sprintf("%02d", i))...)
		c.Assert(wTx.Set(key, []byte{byte(i)}), qt.IsNil)
	}
	c.Assert(wTx.Set([]byte("q/00"), []byte{0xff}), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	var keys []string
	err := database.Iterate(prefix, func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.HasLen, 10)
	for i, k := range keys {
		c.Assert(k, qt.Equals, fmt.Sprintf("%02d", i))
	}

	// stop after the first entry
	count := 0
	err = database.Iterate(prefix, func(k, v []byte) bool {
		count++
		return false
	})
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, 1)
}

// TestWriteTxApply checks merging one transaction into another.
func TestWriteTxApply(t *testing.T, database db.Database) {
	c := qt.New(t)

	txA := database.WriteTx()
	defer txA.Discard()
	c.Assert(txA.Set([]byte("a"), []byte("1")), qt.IsNil)

	txB := database.WriteTx()
	defer txB.Discard()
	c.Assert(txB.Set([]byte("b"), []byte("2")), qt.IsNil)

	c.Assert(txA.Apply(txB), qt.IsNil)
	c.Assert(txA.Commit(), qt.IsNil)

	v, err := database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("1"))
	v, err = database.Get([]byte("b"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("2"))
}

// TestWriteTxApplyPrefixed checks Apply across a prefixed wrapper.
func TestWriteTxApplyPrefixed(t *testing.T, database, prefixed db.Database) {
	c := qt.New(t)

	keyA := []byte("key_a")

	txPrefixed := prefixed.WriteTx()
	defer txPrefixed.Discard()
	c.Assert(txPrefixed.Set(keyA, []byte("value_a")), qt.IsNil)
	c.Assert(txPrefixed.Commit(), qt.IsNil)

	v, err := prefixed.Get(keyA)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("value_a"))
}
