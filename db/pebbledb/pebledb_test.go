package pebbledb

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/tactizen/zkvote-node/db"
	"github.com/tactizen/zkvote-node/db/internal/dbtest"
	"github.com/tactizen/zkvote-node/db/prefixeddb"
)

func TestWriteTx(t *testing.T) {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)
	defer func() { _ = database.Close() }()

	dbtest.TestWriteTx(t, database)
}

func TestIterate(t *testing.T) {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)
	defer func() { _ = database.Close() }()

	dbtest.TestIterate(t, database)
}

func TestWriteTxApply(t *testing.T) {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)
	defer func() { _ = database.Close() }()

	dbtest.TestWriteTxApply(t, database)
}

func TestWriteTxApplyPrefixed(t *testing.T) {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)
	defer func() { _ = database.Close() }()

	prefix := []byte("one")
	dbWithPrefix := prefixeddb.NewPrefixedDatabase(database, prefix)

	dbtest.TestWriteTxApplyPrefixed(t, database, dbWithPrefix)
}

// NOTE: pebble.Batch does not detect conflicts: reads from a batch return
// the latest version from the database even if the write happened after
// the batch was created. It is a batch of writes, not a transaction, so
// the concurrent conflict contract test does not apply here.
