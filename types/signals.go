package types

import (
	"fmt"
	"math/big"
)

// NumPublicSignals is the number of public signals carried by a ballot
// proof.
const NumPublicSignals = 5

// PublicSignals are the public inputs of a ballot proof, strongly typed.
// The verifier consumes them as an ordered list, see Slice.
type PublicSignals struct {
	Root        *BigInt `json:"root"`
	ElectionID  *BigInt `json:"electionId"`
	Choice      *BigInt `json:"choice"`
	ChoiceBound *BigInt `json:"choiceBound"`
	Nullifier   *BigInt `json:"nullifier"`
}

// Valid reports whether all signals are present and non-negative.
func (s *PublicSignals) Valid() bool {
	if s == nil {
		return false
	}
	for _, v := range []*BigInt{s.Root, s.ElectionID, s.Choice, s.ChoiceBound, s.Nullifier} {
		if v == nil || v.MathBigInt().Sign() < 0 {
			return false
		}
	}
	return true
}

// Slice returns the signals in the fixed order expected by the verifier:
// [root, electionId, choice, choiceBound, nullifier].
func (s *PublicSignals) Slice() []string {
	return []string{
		s.Root.String(),
		s.ElectionID.String(),
		s.Choice.String(),
		s.ChoiceBound.String(),
		s.Nullifier.String(),
	}
}

// SignalsFromSlice parses an ordered list of decimal signal strings into a
// PublicSignals struct, validating length and integer syntax.
func SignalsFromSlice(signals []string) (*PublicSignals, error) {
	if len(signals) != NumPublicSignals {
		return nil, fmt.Errorf("expected %d public signals, got %d", NumPublicSignals, len(signals))
	}
	parsed := make([]*BigInt, NumPublicSignals)
	for i, s := range signals {
		v, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, fmt.Errorf("public signal %d is not a decimal integer: %q", i, s)
		}
		parsed[i] = (*BigInt)(v)
	}
	return &PublicSignals{
		Root:        parsed[0],
		ElectionID:  parsed[1],
		Choice:      parsed[2],
		ChoiceBound: parsed[3],
		Nullifier:   parsed[4],
	}, nil
}
