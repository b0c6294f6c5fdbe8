// Package verifier defines the proof-verification capability consumed by
// the validation pipeline, and its default Groth16 implementation. The
// pipeline treats "verify a proof against a verification key" as an
// opaque operation so it can run with deterministic stand-ins in tests.
package verifier

import (
	"context"
	"errors"
	"fmt"

	snarktypes "github.com/iden3/go-rapidsnark/types"
	snarkverifier "github.com/iden3/go-rapidsnark/verifier"
)

var (
	// ErrInvalidProof is returned when the proof does not verify against
	// the verification key and public signals.
	ErrInvalidProof = errors.New("proof verification failed")
	// ErrUnavailable is returned when verification could not be attempted
	// at all. The proof may still be valid; callers can retry.
	ErrUnavailable = errors.New("verifier unavailable")
)

// ProofVerifier verifies a zero-knowledge proof against an ordered list
// of public signals. Implementations must honor ctx cancellation.
type ProofVerifier interface {
	Verify(ctx context.Context, proof *snarktypes.ProofData, publicSignals []string) error
}

// Groth16Verifier verifies circom Groth16 proofs locally using the
// rapidsnark verifier.
type Groth16Verifier struct {
	verificationKey []byte
}

var _ ProofVerifier = (*Groth16Verifier)(nil)

// NewGroth16 returns a Groth16Verifier for the given verification key.
func NewGroth16(verificationKey []byte) (*Groth16Verifier, error) {
	if len(verificationKey) == 0 {
		return nil, fmt.Errorf("%w: empty verification key", ErrUnavailable)
	}
	return &Groth16Verifier{verificationKey: verificationKey}, nil
}

// Verify checks the proof against the verification key. Verification is
// CPU bound; it runs in its own goroutine so ctx expiry is honored.
func (v *Groth16Verifier) Verify(ctx context.Context, proof *snarktypes.ProofData, publicSignals []string) error {
	if proof == nil {
		return fmt.Errorf("%w: nil proof", ErrInvalidProof)
	}
	done := make(chan error, 1)
	go func() {
		done <- snarkverifier.VerifyGroth16(snarktypes.ZKProof{
			Proof:      proof,
			PubSignals: publicSignals,
		}, v.verificationKey)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
		return nil
	}
}
