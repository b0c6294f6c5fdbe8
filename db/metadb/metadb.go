// Package metadb selects a db.Database backend by name.
package metadb

import (
	"fmt"
	"os"
	"testing"

	"github.com/tactizen/zkvote-node/db"
	"github.com/tactizen/zkvote-node/db/inmemory"
	"github.com/tactizen/zkvote-node/db/pebbledb"
)

// New returns a database of the given type rooted at dir.
func New(typ, dir string) (db.Database, error) {
	switch typ {
	case db.TypePebble:
		return pebbledb.New(db.Options{Path: dir})
	case db.TypeInMemory:
		return inmemory.New(db.Options{Path: dir})
	default:
		return nil, fmt.Errorf("invalid database type: %q", typ)
	}
}

// ForTest returns the database type used by tests, overridable with the
// DB_TYPE environment variable.
func ForTest() string {
	if typ := os.Getenv("DB_TYPE"); typ != "" {
		return typ
	}
	return db.TypePebble
}

// NewTest returns a throwaway database for the given test, removed when
// the test finishes.
func NewTest(tb testing.TB) db.Database {
	database, err := New(ForTest(), tb.TempDir())
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		if err := database.Close(); err != nil {
			tb.Error(err)
		}
	})
	return database
}
