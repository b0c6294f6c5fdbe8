package inmemory

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/tactizen/zkvote-node/db"
	"github.com/tactizen/zkvote-node/db/internal/dbtest"
	"github.com/tactizen/zkvote-node/db/prefixeddb"
)

func TestWriteTx(t *testing.T) {
	database, err := New(db.Options{})
	qt.Assert(t, err, qt.IsNil)

	dbtest.TestWriteTx(t, database)
}

func TestIterate(t *testing.T) {
	database, err := New(db.Options{})
	qt.Assert(t, err, qt.IsNil)

	dbtest.TestIterate(t, database)
}

func TestWriteTxApply(t *testing.T) {
	database, err := New(db.Options{})
	qt.Assert(t, err, qt.IsNil)

	dbtest.TestWriteTxApply(t, database)
}

func TestWriteTxApplyPrefixed(t *testing.T) {
	database, err := New(db.Options{})
	qt.Assert(t, err, qt.IsNil)

	dbWithPrefix := prefixeddb.NewPrefixedDatabase(database, []byte("one"))
	dbtest.TestWriteTxApplyPrefixed(t, database, dbWithPrefix)
}

func TestConflictDetection(t *testing.T) {
	c := qt.New(t)

	database, err := New(db.Options{})
	c.Assert(err, qt.IsNil)

	key := []byte("counter")
	base := database.WriteTx()
	defer base.Discard()
	c.Assert(base.Set(key, []byte{0}), qt.IsNil)
	c.Assert(base.Commit(), qt.IsNil)

	txA := database.WriteTx()
	defer txA.Discard()
	txB := database.WriteTx()
	defer txB.Discard()

	_, err = txA.Get(key)
	c.Assert(err, qt.IsNil)
	_, err = txB.Get(key)
	c.Assert(err, qt.IsNil)

	c.Assert(txA.Set(key, []byte{1}), qt.IsNil)
	c.Assert(txB.Set(key, []byte{2}), qt.IsNil)

	c.Assert(txA.Commit(), qt.IsNil)
	c.Assert(txB.Commit(), qt.Equals, db.ErrConflict)
}
