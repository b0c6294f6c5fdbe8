/*
Package storage is the persistent layer of the voting node. It owns the
election records, the nullifier ledger and the admitted vote log, and it
hosts the commitment registry under its own database namespace.

# Storage Organization

The storage uses a key-value database with prefixed namespaces:

  - e/  : electionKey → Election record (status, frozen root, windows)
  - n/  : electionKey + nullifier → reservation marker
  - v/  : electionKey + nullifier → AdmittedVote record
  - rg_ : namespace of the commitment registry database (tree node
    arenas under rt/ and participant leaf indexes under rl/)

Election records and admitted votes are CBOR artifacts; nullifier
reservations are bare markers. The nullifier ledger and the election
read-modify-write path are serialized by a global lock, which is the
mechanism making check-and-reserve atomic.
*/
package storage

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tactizen/zkvote-node/db"
	"github.com/tactizen/zkvote-node/db/prefixeddb"
	"github.com/tactizen/zkvote-node/log"
	"github.com/tactizen/zkvote-node/registry"
	"github.com/tactizen/zkvote-node/types"
)

var (
	ErrKeyAlreadyExists        = errors.New("key already exists")
	ErrNotFound                = errors.New("not found")
	ErrNullifierAlreadyExists  = errors.New("nullifier already used")
	ErrInvalidStatusTransition = errors.New("invalid election status transition")
	ErrElectionNotInVoting     = errors.New("election is not in the voting phase")

	// Prefixes
	electionPrefix   = []byte("e/")
	nullifierPrefix  = []byte("n/")
	votePrefix       = []byte("v/")
	registryDBprefix = []byte("rg_")
)

// electionMonitorInterval is how often elections are checked for due
// scheduled phase changes.
const electionMonitorInterval = 30 * time.Second

// Storage manages the durable state of the voting node.
type Storage struct {
	db         db.Database
	registry   *registry.Registry
	globalLock sync.Mutex // serializes nullifier reservations and election updates
	cache      *lru.Cache[string, *types.Election]
	closeOnce  sync.Once
	closed     chan struct{}
}

// New creates a new Storage instance over the given database and starts
// the election schedule monitor.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, *types.Election](128)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	s := &Storage{
		db:       database,
		registry: registry.New(prefixeddb.NewPrefixedDatabase(database, registryDBprefix)),
		cache:    cache,
		closed:   make(chan struct{}),
	}
	s.monitorElectionSchedule()
	return s
}

// Registry returns the commitment registry hosted by this storage.
func (s *Storage) Registry() *registry.Registry {
	return s.registry
}

// Close stops the background monitor and closes the database.
func (s *Storage) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		if err := s.db.Close(); err != nil {
			log.Warnw("could not close database", "error", err)
		}
	})
}
