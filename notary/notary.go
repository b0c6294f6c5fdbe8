// Package notary submits verified proofs to an external attestation
// service, so third parties can audit admitted ballots without trusting
// this node. Notarization is best effort: the validation pipeline treats
// local verification as authoritative and records votes as unattested
// when the notary fails.
package notary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	snarktypes "github.com/iden3/go-rapidsnark/types"

	"github.com/tactizen/zkvote-node/types"
)

// ErrUnavailable is returned when the attestation service could not be
// reached or rejected the submission.
var ErrUnavailable = errors.New("notary unavailable")

// Notary is the external notarization capability: attest a verified
// proof and return a reference to the public attestation.
type Notary interface {
	Attest(ctx context.Context, proof *snarktypes.ProofData, publicSignals []string) (*types.AttestationRef, error)
}

// attestRequest is the submission payload of the attestation service.
type attestRequest struct {
	Proof         *snarktypes.ProofData `json:"proof"`
	PublicSignals []string              `json:"publicSignals"`
}

// attestResponse is the attestation receipt.
type attestResponse struct {
	TxHash      types.HexBytes `json:"txHash"`
	BlockNumber uint64         `json:"blockNumber"`
}

// HTTPNotary submits proofs to an attestation endpoint over HTTP.
type HTTPNotary struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

var _ Notary = (*HTTPNotary)(nil)

// NewHTTP returns an HTTPNotary for the given endpoint. The apiKey may
// be empty when the service does not require authentication.
func NewHTTP(endpoint, apiKey string) *HTTPNotary {
	return &HTTPNotary{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

// Attest submits the proof and returns the attestation reference.
func (n *HTTPNotary) Attest(ctx context.Context, proof *snarktypes.ProofData,
	publicSignals []string,
) (*types.AttestationRef, error) {
	body, err := json.Marshal(&attestRequest{
		Proof:         proof,
		PublicSignals: publicSignals,
	})
	if err != nil {
		return nil, fmt.Errorf("could not encode attestation request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, data)
	}

	receipt := &attestResponse{}
	if err := json.NewDecoder(resp.Body).Decode(receipt); err != nil {
		return nil, fmt.Errorf("%w: malformed receipt: %v", ErrUnavailable, err)
	}
	return &types.AttestationRef{
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber,
	}, nil
}
