package types

import (
	"encoding/json"
	"time"
)

// AttestationRef points at the external notarization of a verified proof.
type AttestationRef struct {
	TxHash      HexBytes `json:"txHash"      cbor:"0,keyasint"`
	BlockNumber uint64   `json:"blockNumber" cbor:"1,keyasint"`
}

// AdmittedVote is the durable, identity-free record of one validated
// ballot. Written once by the validation pipeline, never updated.
type AdmittedVote struct {
	Category    Category        `json:"category"              cbor:"0,keyasint"`
	ElectionID  uint64          `json:"electionId"            cbor:"1,keyasint"`
	Nullifier   *BigInt         `json:"nullifier"             cbor:"2,keyasint"`
	Choice      uint64          `json:"choice"                cbor:"3,keyasint"`
	RootUsed    *BigInt         `json:"rootUsed"              cbor:"4,keyasint"`
	Attested    bool            `json:"attested"              cbor:"5,keyasint"`
	Attestation *AttestationRef `json:"attestation,omitempty" cbor:"6,keyasint,omitempty"`
	Timestamp   time.Time       `json:"timestamp"             cbor:"7,keyasint"`
}

// Key returns the ElectionKey of the election the vote belongs to.
func (v *AdmittedVote) Key() ElectionKey {
	return ElectionKey{Category: v.Category, ElectionID: v.ElectionID}
}

func (v *AdmittedVote) String() string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
