package inmemory

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/tactizen/zkvote-node/db"
)

type entry struct {
	value   []byte
	version uint64
	deleted bool
}

// Database is an ephemeral in-memory db.Database. Transactions use
// optimistic version checking: Commit fails with db.ErrConflict when a
// concurrent writer touched any key read or written by the transaction.
type Database struct {
	mu          sync.RWMutex
	data        map[string]entry
	nextVersion uint64
}

var _ db.Database = (*Database)(nil)

// New returns a new in-memory database. Options are ignored.
func New(_ db.Options) (*Database, error) {
	return &Database{data: make(map[string]entry)}, nil
}

func (d *Database) Close() error { return nil }

func (d *Database) Compact() error { return nil }

func (d *Database) WriteTx() db.WriteTx {
	d.mu.RLock()
	base := d.nextVersion
	d.mu.RUnlock()
	return &writeTx{
		db:      d,
		writes:  make(map[string]*[]byte),
		reads:   make(map[string]uint64),
		baseVer: base,
	}
}

func (d *Database) Get(key []byte) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ent, ok := d.data[string(key)]
	if !ok || ent.deleted {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(ent.value), nil
}

func (d *Database) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	d.mu.RLock()
	snapshot := make(map[string][]byte)
	for k, ent := range d.data {
		if ent.deleted || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		snapshot[k] = bytes.Clone(ent.value)
	}
	d.mu.RUnlock()
	return iterateSorted(snapshot, prefix, callback)
}

func (d *Database) versionOf(key string) uint64 {
	ent, ok := d.data[key]
	if !ok {
		return 0
	}
	return ent.version
}

func (d *Database) applyWrite(key string, value []byte, deleteKey bool) {
	d.nextVersion++
	ent := d.data[key]
	ent.version = d.nextVersion
	ent.deleted = deleteKey
	if deleteKey {
		ent.value = nil
	} else {
		ent.value = bytes.Clone(value)
	}
	d.data[key] = ent
}

type writeTx struct {
	db        *Database
	writes    map[string]*[]byte // nil value marks a pending delete
	reads     map[string]uint64
	baseVer   uint64
	committed bool
	discarded bool
}

var _ db.WriteTx = (*writeTx)(nil)

func (tx *writeTx) recordRead(key string, version uint64) {
	if _, ok := tx.reads[key]; !ok {
		tx.reads[key] = version
	}
}

func (tx *writeTx) trackKey(key string) {
	if _, ok := tx.reads[key]; ok {
		return
	}
	tx.db.mu.RLock()
	version := tx.db.versionOf(key)
	tx.db.mu.RUnlock()
	tx.recordRead(key, version)
}

func (tx *writeTx) Get(key []byte) ([]byte, error) {
	strKey := string(key)
	if pending, ok := tx.writes[strKey]; ok {
		if pending == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*pending), nil
	}

	tx.db.mu.RLock()
	ent, ok := tx.db.data[strKey]
	version := tx.db.versionOf(strKey)
	tx.db.mu.RUnlock()

	tx.recordRead(strKey, version)
	if !ok || ent.deleted {
		return nil, db.ErrKeyNotFound
	}
	return bytes.Clone(ent.value), nil
}

func (tx *writeTx) Iterate(prefix []byte, callback func(k, v []byte) bool) error {
	tx.db.mu.RLock()
	snapshot := make(map[string][]byte)
	versions := make(map[string]uint64)
	for k, ent := range tx.db.data {
		if ent.deleted || !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		snapshot[k] = bytes.Clone(ent.value)
		versions[k] = ent.version
	}
	tx.db.mu.RUnlock()

	// overlay the pending writes of this transaction
	for k, v := range tx.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(snapshot, k)
			continue
		}
		snapshot[k] = bytes.Clone(*v)
	}

	for k, ver := range versions {
		tx.recordRead(k, ver)
	}
	return iterateSorted(snapshot, prefix, callback)
}

func (tx *writeTx) Set(key, value []byte) error {
	strKey := string(key)
	tx.trackKey(strKey)
	valCopy := bytes.Clone(value)
	tx.writes[strKey] = &valCopy
	return nil
}

func (tx *writeTx) Delete(key []byte) error {
	strKey := string(key)
	tx.trackKey(strKey)
	tx.writes[strKey] = nil
	return nil
}

func (tx *writeTx) Apply(other db.WriteTx) error {
	return other.Iterate(nil, func(k, v []byte) bool {
		return tx.Set(k, v) == nil
	})
}

func (tx *writeTx) Commit() error {
	if tx.committed || tx.discarded {
		return fmt.Errorf("cannot commit inmemory tx: already committed or discarded")
	}

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	for key, readVersion := range tx.reads {
		current := tx.db.versionOf(key)
		if readVersion > tx.baseVer || current != readVersion {
			return db.ErrConflict
		}
	}
	for key, value := range tx.writes {
		if value == nil {
			tx.db.applyWrite(key, nil, true)
			continue
		}
		tx.db.applyWrite(key, *value, false)
	}
	tx.committed = true
	return nil
}

func (tx *writeTx) Discard() {
	tx.writes = map[string]*[]byte{}
	tx.reads = map[string]uint64{}
	tx.discarded = true
}

func iterateSorted(entries map[string][]byte, prefix []byte, callback func(key, value []byte) bool) error {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if !callback([]byte(key)[len(prefix):], entries[key]) {
			break
		}
	}
	return nil
}
