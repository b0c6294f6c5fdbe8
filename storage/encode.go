package storage

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// EncodeArtifact encodes a stored record into deterministic CBOR.
func EncodeArtifact(a any) ([]byte, error) {
	encOpts := cbor.CoreDetEncOptions()
	em, err := encOpts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

// DecodeArtifact decodes a CBOR-encoded record into out.
func DecodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}

// EncodeArtifactJSON encodes a record into JSON, used for exported or
// human-readable artifacts.
func EncodeArtifactJSON(a any) ([]byte, error) {
	return json.Marshal(a)
}

// DecodeArtifactJSON decodes a JSON-encoded record into out.
func DecodeArtifactJSON(data []byte, out any) error {
	return json.Unmarshal(data, out)
}
