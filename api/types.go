package api

import (
	"time"

	"github.com/tactizen/zkvote-node/types"
)

// NewElectionRequest is the payload to create an election instance.
type NewElectionRequest struct {
	Category             types.Category `json:"category"`
	ElectionID           uint64         `json:"electionId"`
	Scope                uint64         `json:"scope"`
	ChoiceBound          uint64         `json:"choiceBound"`
	RegistrationDeadline time.Time      `json:"registrationDeadline,omitempty"`
	StartTime            time.Time      `json:"startTime,omitempty"`
	EndTime              time.Time      `json:"endTime,omitempty"`
}

// ElectionListResponse is the response of the election listing endpoint.
type ElectionListResponse struct {
	Elections []*types.Election `json:"elections"`
}

// RegisterRequest is the payload to register a commitment in a registry.
type RegisterRequest struct {
	Participant types.HexBytes `json:"participant"`
	Commitment  *types.BigInt  `json:"commitment"`
}

// RegisterResponse is the receipt of a registration: where the commitment
// landed and the registry root after the insert.
type RegisterResponse struct {
	LeafIndex uint64        `json:"leafIndex"`
	Root      *types.BigInt `json:"root"`
}

// RegistryRootResponse is the response of the registry root endpoint.
type RegistryRootResponse struct {
	Root *types.BigInt `json:"root"`
	Size uint64        `json:"size"`
}

// BallotResponse is the receipt of an admitted ballot.
type BallotResponse struct {
	Nullifier   *types.BigInt         `json:"nullifier"`
	Choice      uint64                `json:"choice"`
	Attested    bool                  `json:"attested"`
	Attestation *types.AttestationRef `json:"attestation,omitempty"`
}
