// Package poseidon wraps the Poseidon hash over the BN254 scalar field,
// the hash family shared with the ballot circuit. Registry tree nodes,
// commitments and nullifiers are all Poseidon images.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// HashPair computes the Poseidon hash of two field elements. It is the
// node combiner of the registry Merkle tree: parent = H(left, right).
func HashPair(left, right *big.Int) (*big.Int, error) {
	return poseidon.Hash([]*big.Int{left, right})
}

// Hash computes the Poseidon hash of up to 16 field elements.
func Hash(inputs ...*big.Int) (*big.Int, error) {
	return poseidon.Hash(inputs)
}

// MultiPoseidon computes the Poseidon hash of a variable number of
// inputs. Larger sets are chunked into groups of 16, each chunk hashed,
// and the chunk hashes combined recursively.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	if len(inputs) <= 16 {
		return poseidon.Hash(inputs)
	}

	numChunks := (len(inputs) + 15) / 16
	hashes := make([]*big.Int, 0, numChunks)
	for i := 0; i < len(inputs); i += 16 {
		end := min(i+16, len(inputs))
		hash, err := poseidon.Hash(inputs[i:end])
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	if len(hashes) == 1 {
		return hashes[0], nil
	}
	if len(hashes) <= 16 {
		return poseidon.Hash(hashes)
	}
	return MultiPoseidon(hashes...)
}
