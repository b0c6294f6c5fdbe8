package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tactizen/zkvote-node/storage"
	"github.com/tactizen/zkvote-node/validator"
)

// newVote handles POST /votes: the full ballot validation pipeline. Every
// rejection kind maps to its own error code so clients can tell a spent
// nullifier from a bad proof or an unavailable verifier.
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	ballot := &validator.Ballot{}
	if err := json.NewDecoder(r.Body).Decode(ballot); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	vote, err := a.validator.Validate(r.Context(), ballot)
	if err != nil {
		switch {
		case errors.Is(err, validator.ErrMalformedBallot):
			ErrMalformedBallot.WithErr(err).Write(w)
		case errors.Is(err, storage.ErrNotFound):
			ErrElectionNotFound.Withf("%s", ballot.Key()).Write(w)
		case errors.Is(err, validator.ErrElectionMismatch):
			ErrElectionMismatch.WithErr(err).Write(w)
		case errors.Is(err, validator.ErrVotingNotOpen):
			ErrVotingNotOpen.WithErr(err).Write(w)
		case errors.Is(err, validator.ErrInvalidChoice):
			ErrInvalidChoice.WithErr(err).Write(w)
		case errors.Is(err, validator.ErrStaleOrInvalidRoot):
			ErrStaleRoot.WithErr(err).Write(w)
		case errors.Is(err, validator.ErrDuplicateVote):
			ErrDuplicateVote.WithErr(err).Write(w)
		case errors.Is(err, validator.ErrInvalidProof):
			ErrInvalidBallotProof.WithErr(err).Write(w)
		case errors.Is(err, validator.ErrVerifierUnavailable):
			ErrVerifierUnavailable.WithErr(err).Write(w)
		case errors.Is(err, validator.ErrVerificationTimeout):
			ErrVerificationTimeout.WithErr(err).Write(w)
		default:
			ErrGenericInternalServerError.WithErr(err).Write(w)
		}
		return
	}
	httpWriteJSON(w, &BallotResponse{
		Nullifier:   vote.Nullifier,
		Choice:      vote.Choice,
		Attested:    vote.Attested,
		Attestation: vote.Attestation,
	})
}
