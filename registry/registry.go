// Package registry implements the anonymous voter commitment registry:
// one append-only Poseidon Merkle accumulator per (category, scope),
// holding opaque field-element commitments. The registry never places
// participant identity into leaf data; a separate index maps each
// participant to its leaf so it can later fetch an inclusion proof.
package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/constants"

	"github.com/tactizen/zkvote-node/crypto/hash/poseidon"
	"github.com/tactizen/zkvote-node/db"
	"github.com/tactizen/zkvote-node/db/prefixeddb"
	"github.com/tactizen/zkvote-node/log"
	"github.com/tactizen/zkvote-node/types"
)

var (
	// ErrDuplicateCommitment is returned when a participant already has a
	// commitment in the registry.
	ErrDuplicateCommitment = errors.New("participant already registered a commitment")
	// ErrRegistryFull is returned when the registry reached its 2^depth
	// leaf capacity.
	ErrRegistryFull = errors.New("registry is full")
	// ErrNotFound is returned when no commitment exists for the requested
	// participant or leaf index.
	ErrNotFound = errors.New("commitment not found")
	// ErrInvalidCommitment is returned when the commitment is not a valid
	// field element.
	ErrInvalidCommitment = errors.New("commitment is not a valid field element")
)

const (
	treeDBPrefix  = "rt/"
	indexDBPrefix = "rl/"
)

// Registry manages the commitment registries of all (category, scope)
// pairs over a shared database. Registries are created lazily on first
// registration. Safe for concurrent use; appends to the same registry
// are serialized by a per-registry lock.
type Registry struct {
	db    db.Database
	depth int

	refsMu sync.Mutex
	refs   map[types.RegistryKey]*registryRef
}

type registryRef struct {
	tree   *tree
	treeMu sync.Mutex // serializes inserts on this registry
}

// New returns a Registry with the default production tree depth.
func New(database db.Database) *Registry {
	return NewWithDepth(database, DefaultDepth)
}

// NewWithDepth returns a Registry whose trees have the given depth.
// Intended for tests; production uses DefaultDepth.
func NewWithDepth(database db.Database, depth int) *Registry {
	return &Registry{
		db:    database,
		depth: depth,
		refs:  make(map[types.RegistryKey]*registryRef),
	}
}

// Depth returns the tree depth of the registries.
func (r *Registry) Depth() int {
	return r.depth
}

// ref returns the registryRef of key, creating it if needed.
func (r *Registry) ref(key types.RegistryKey) (*registryRef, error) {
	r.refsMu.Lock()
	defer r.refsMu.Unlock()
	if ref, ok := r.refs[key]; ok {
		return ref, nil
	}
	reader := prefixeddb.NewPrefixedDatabase(r.db, treePrefix(key))
	tr, err := newTree(reader, r.depth)
	if err != nil {
		return nil, err
	}
	ref := &registryRef{tree: tr}
	r.refs[key] = ref
	return ref, nil
}

// Register appends commitment to the registry of key on behalf of
// participant. Returns the assigned leaf index and the new root. Fails
// with ErrDuplicateCommitment when the participant already registered,
// and ErrRegistryFull when the tree is at capacity.
func (r *Registry) Register(key types.RegistryKey, participant common.Address, commitment *types.BigInt) (uint64, *types.BigInt, error) {
	if commitment == nil || commitment.MathBigInt().Sign() <= 0 ||
		commitment.MathBigInt().Cmp(constants.Q) >= 0 {
		return 0, nil, ErrInvalidCommitment
	}
	ref, err := r.ref(key)
	if err != nil {
		return 0, nil, err
	}
	ref.treeMu.Lock()
	defer ref.treeMu.Unlock()

	if _, err := r.db.Get(participantKey(key, participant)); err == nil {
		return 0, nil, ErrDuplicateCommitment
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil, err
	}

	wTx := r.db.WriteTx()
	defer wTx.Discard()
	treeTx := prefixeddb.NewPrefixedWriteTx(wTx, treePrefix(key))

	leafIndex, root, err := ref.tree.Insert(treeTx, commitment.MathBigInt())
	if errors.Is(err, ErrTreeFull) {
		return 0, nil, ErrRegistryFull
	}
	if err != nil {
		return 0, nil, err
	}

	indexBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(indexBytes, leafIndex)
	if err := wTx.Set(participantKey(key, participant), indexBytes); err != nil {
		return 0, nil, err
	}
	if err := wTx.Commit(); err != nil {
		return 0, nil, err
	}

	log.Debugw("commitment registered",
		"registry", key.String(),
		"leafIndex", leafIndex,
		"root", root.String())
	return leafIndex, (*types.BigInt)(root), nil
}

// LeafIndex returns the leaf index assigned to participant in the
// registry of key, or ErrNotFound.
func (r *Registry) LeafIndex(key types.RegistryKey, participant common.Address) (uint64, error) {
	data, err := r.db.Get(participantKey(key, participant))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupted leaf index for %s", participant)
	}
	return binary.BigEndian.Uint64(data), nil
}

// InclusionProof returns the inclusion proof of the participant's
// commitment against the current root of the registry of key.
func (r *Registry) InclusionProof(key types.RegistryKey, participant common.Address) (*Proof, error) {
	leafIndex, err := r.LeafIndex(key, participant)
	if err != nil {
		return nil, err
	}
	ref, err := r.ref(key)
	if err != nil {
		return nil, err
	}
	return ref.tree.GenProof(leafIndex)
}

// Leaf returns the commitment stored at the given leaf index.
func (r *Registry) Leaf(key types.RegistryKey, leafIndex uint64) (*types.BigInt, error) {
	ref, err := r.ref(key)
	if err != nil {
		return nil, err
	}
	leaf, err := ref.tree.Leaf(leafIndex)
	if err != nil {
		return nil, err
	}
	return (*types.BigInt)(leaf), nil
}

// Root returns the current root of the registry of key. A registry with
// no commitments yields the zero-tree root.
func (r *Registry) Root(key types.RegistryKey) (*types.BigInt, error) {
	ref, err := r.ref(key)
	if err != nil {
		return nil, err
	}
	root, err := ref.tree.Root()
	if err != nil {
		return nil, err
	}
	return (*types.BigInt)(root), nil
}

// Size returns the number of commitments in the registry of key.
func (r *Registry) Size(key types.RegistryKey) (uint64, error) {
	ref, err := r.ref(key)
	if err != nil {
		return 0, err
	}
	return ref.tree.Size()
}

// Proof is a Merkle inclusion proof. Siblings are ordered leaf to top;
// IndexBits[l] is 1 when the path node at level l is a right child, which
// is the order the ballot circuit consumes.
type Proof struct {
	Root      *types.BigInt   `json:"root"`
	LeafIndex uint64          `json:"leafIndex"`
	Siblings  []*types.BigInt `json:"siblings"`
	IndexBits []uint8         `json:"indexBits"`
}

// CheckProof recomputes the root from (leaf, siblings, indexBits) and
// compares it with the proof's root.
func CheckProof(leaf *types.BigInt, proof *Proof) bool {
	if proof == nil || leaf == nil || len(proof.Siblings) != len(proof.IndexBits) {
		return false
	}
	current := new(big.Int).Set(leaf.MathBigInt())
	for level, sibling := range proof.Siblings {
		if sibling == nil {
			return false
		}
		var err error
		if proof.IndexBits[level] == 0 {
			current, err = poseidon.HashPair(current, sibling.MathBigInt())
		} else {
			current, err = poseidon.HashPair(sibling.MathBigInt(), current)
		}
		if err != nil {
			return false
		}
	}
	return current.Cmp(proof.Root.MathBigInt()) == 0
}

func treePrefix(key types.RegistryKey) []byte {
	return slices.Concat([]byte(treeDBPrefix), key.Bytes())
}

func participantKey(key types.RegistryKey, participant common.Address) []byte {
	return slices.Concat([]byte(indexDBPrefix), key.Bytes(), participant.Bytes())
}
