// Package testutil provides deterministic stand-ins for the external
// proof-verification and notarization collaborators.
package testutil

import (
	"context"
	"sync/atomic"
	"time"

	snarktypes "github.com/iden3/go-rapidsnark/types"

	"github.com/tactizen/zkvote-node/types"
)

// MockVerifier is a ProofVerifier returning a canned result. A non-zero
// Delay makes the call block, so context timeouts can be exercised.
type MockVerifier struct {
	Err   error
	Delay time.Duration
	calls atomic.Int64
}

func (m *MockVerifier) Verify(ctx context.Context, _ *snarktypes.ProofData, _ []string) error {
	m.calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Err
}

// Calls returns how many times Verify was invoked.
func (m *MockVerifier) Calls() int {
	return int(m.calls.Load())
}

// MockNotary is a Notary returning a canned attestation reference.
type MockNotary struct {
	Ref   *types.AttestationRef
	Err   error
	Delay time.Duration
	calls atomic.Int64
}

func (m *MockNotary) Attest(ctx context.Context, _ *snarktypes.ProofData, _ []string) (*types.AttestationRef, error) {
	m.calls.Add(1)
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Ref != nil {
		return m.Ref, nil
	}
	return &types.AttestationRef{
		TxHash:      types.HexBytes{0xde, 0xad, 0xbe, 0xef},
		BlockNumber: 42,
	}, nil
}

// Calls returns how many times Attest was invoked.
func (m *MockNotary) Calls() int {
	return int(m.calls.Load())
}
