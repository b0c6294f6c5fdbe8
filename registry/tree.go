package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/tactizen/zkvote-node/crypto/hash/poseidon"
	"github.com/tactizen/zkvote-node/db"
	"github.com/tactizen/zkvote-node/types"
)

// DefaultDepth is the depth of production registry trees: up to 2^14
// (16384) participants per scope.
const DefaultDepth = 14

// ErrTreeFull is returned by Insert when the tree already holds 2^depth
// leaves.
var ErrTreeFull = errors.New("merkle tree is full")

var leafCountKey = []byte("count")

// tree is an append-only Merkle tree of fixed depth with Poseidon node
// hashing. Nodes are stored individually in the underlying database
// (level byte plus big-endian index), so an insert touches only the
// O(depth) nodes between the new leaf and the root. Empty subtrees are
// never materialized: a missing node reads as the zero hash of its level.
//
// Level 0 holds the leaves; level depth holds the root.
type tree struct {
	reader db.Database // prefixed view owning this tree's namespace
	depth  int
	zeros  []*big.Int // zero hash per level, len depth+1
}

func newTree(reader db.Database, depth int) (*tree, error) {
	if depth < 1 || depth > 32 {
		return nil, fmt.Errorf("unsupported tree depth %d", depth)
	}
	zeros, err := zeroHashes(depth)
	if err != nil {
		return nil, err
	}
	return &tree{reader: reader, depth: depth, zeros: zeros}, nil
}

// zeroHashes returns the hash of the empty subtree at every level:
// zeros[0] = 0, zeros[l+1] = H(zeros[l], zeros[l]).
func zeroHashes(depth int) ([]*big.Int, error) {
	zeros := make([]*big.Int, depth+1)
	zeros[0] = big.NewInt(0)
	for l := 0; l < depth; l++ {
		h, err := poseidon.HashPair(zeros[l], zeros[l])
		if err != nil {
			return nil, err
		}
		zeros[l+1] = h
	}
	return zeros, nil
}

// maxLeaves returns the leaf capacity of the tree.
func (t *tree) maxLeaves() uint64 {
	return 1 << t.depth
}

// size returns the number of leaves from the given reader.
func (t *tree) size(reader db.Reader) (uint64, error) {
	data, err := reader.Get(leafCountKey)
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupted leaf count")
	}
	return binary.BigEndian.Uint64(data), nil
}

// Size returns the number of leaves in the tree.
func (t *tree) Size() (uint64, error) {
	return t.size(t.reader)
}

// Root returns the current root, which is the zero hash of the top level
// while the tree is empty.
func (t *tree) Root() (*big.Int, error) {
	return t.node(t.reader, t.depth, 0)
}

// Insert appends leaf at the next free index, recomputing the nodes on
// its path to the root inside wTx. The caller owns the transaction and
// must serialize Insert calls on the same tree.
func (t *tree) Insert(wTx db.WriteTx, leaf *big.Int) (uint64, *big.Int, error) {
	count, err := t.size(wTx)
	if err != nil {
		return 0, nil, err
	}
	if count >= t.maxLeaves() {
		return 0, nil, ErrTreeFull
	}

	leafIndex := count
	current := leaf
	index := leafIndex
	if err := t.setNode(wTx, 0, index, current); err != nil {
		return 0, nil, err
	}
	for level := 0; level < t.depth; level++ {
		sibling, err := t.node(wTx, level, index^1)
		if err != nil {
			return 0, nil, err
		}
		var parent *big.Int
		if index&1 == 0 {
			parent, err = poseidon.HashPair(current, sibling)
		} else {
			parent, err = poseidon.HashPair(sibling, current)
		}
		if err != nil {
			return 0, nil, err
		}
		index >>= 1
		if err := t.setNode(wTx, level+1, index, parent); err != nil {
			return 0, nil, err
		}
		current = parent
	}

	countBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(countBytes, leafIndex+1)
	if err := wTx.Set(leafCountKey, countBytes); err != nil {
		return 0, nil, err
	}
	return leafIndex, current, nil
}

// Leaf returns the leaf value at the given index.
func (t *tree) Leaf(index uint64) (*big.Int, error) {
	count, err := t.Size()
	if err != nil {
		return nil, err
	}
	if index >= count {
		return nil, ErrNotFound
	}
	return t.node(t.reader, 0, index)
}

// GenProof builds the inclusion proof of the leaf at index against the
// current root. Siblings are ordered leaf to top; IndexBits[l] is 1 when
// the path node at level l is a right child.
func (t *tree) GenProof(index uint64) (*Proof, error) {
	count, err := t.Size()
	if err != nil {
		return nil, err
	}
	if index >= count {
		return nil, ErrNotFound
	}

	siblings := make([]*types.BigInt, t.depth)
	indexBits := make([]uint8, t.depth)
	idx := index
	for level := 0; level < t.depth; level++ {
		sibling, err := t.node(t.reader, level, idx^1)
		if err != nil {
			return nil, err
		}
		siblings[level] = (*types.BigInt)(sibling)
		indexBits[level] = uint8(idx & 1)
		idx >>= 1
	}
	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	return &Proof{
		Root:      (*types.BigInt)(root),
		LeafIndex: index,
		Siblings:  siblings,
		IndexBits: indexBits,
	}, nil
}

// node reads the node at (level, index), falling back to the level's zero
// hash when it was never written.
func (t *tree) node(reader db.Reader, level int, index uint64) (*big.Int, error) {
	value, err := reader.Get(nodeKey(level, index))
	if errors.Is(err, db.ErrKeyNotFound) {
		return new(big.Int).Set(t.zeros[level]), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(value), nil
}

func (t *tree) setNode(wTx db.WriteTx, level int, index uint64, value *big.Int) error {
	return wTx.Set(nodeKey(level, index), value.FillBytes(make([]byte, 32)))
}

func nodeKey(level int, index uint64) []byte {
	key := make([]byte, 9)
	key[0] = byte(level)
	binary.BigEndian.PutUint64(key[1:], index)
	return key
}
