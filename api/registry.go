package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/tactizen/zkvote-node/registry"
	"github.com/tactizen/zkvote-node/types"
)

// registrationOpen reports whether the registry still accepts commitments:
// some election drawing from it must be in the registration phase with its
// registration deadline not yet passed, or in the voting phase with the
// post-freeze grace window still open.
func (a *API) registrationOpen(key types.RegistryKey) (bool, error) {
	elections, err := a.storage.ListElections()
	if err != nil {
		return false, err
	}
	for _, election := range elections {
		if election.RegistryKey() != key {
			continue
		}
		switch election.Status {
		case types.ElectionStatusRegistration:
			if election.RegistrationDeadline.IsZero() ||
				election.RegistrationDeadline.After(time.Now()) {
				return true, nil
			}
		case types.ElectionStatusVoting:
			if time.Since(election.FrozenAt) < a.registrationGrace {
				return true, nil
			}
		}
	}
	return false, nil
}

// register handles POST /registry/{category}/{scope}.
func (a *API) register(w http.ResponseWriter, r *http.Request) {
	key, apiErr := registryKeyFromRequest(r)
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	req := &RegisterRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(req.Participant) != common.AddressLength {
		ErrMalformedParam.Withf("participant must be a %d byte address", common.AddressLength).Write(w)
		return
	}

	open, err := a.registrationOpen(key)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if !open {
		ErrRegistrationClosed.Withf("registry %s", key).Write(w)
		return
	}

	leafIndex, root, err := a.storage.Registry().Register(key,
		common.BytesToAddress(req.Participant), req.Commitment)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrInvalidCommitment):
			ErrInvalidCommitment.WithErr(err).Write(w)
		case errors.Is(err, registry.ErrDuplicateCommitment):
			ErrDuplicateCommitment.Withf("%x", req.Participant).Write(w)
		case errors.Is(err, registry.ErrRegistryFull):
			ErrRegistryFull.Withf("registry %s", key).Write(w)
		default:
			ErrGenericInternalServerError.WithErr(err).Write(w)
		}
		return
	}
	httpWriteJSON(w, &RegisterResponse{LeafIndex: leafIndex, Root: root})
}

// registryProof handles GET /registry/{category}/{scope}/proof/{participant}.
func (a *API) registryProof(w http.ResponseWriter, r *http.Request) {
	key, apiErr := registryKeyFromRequest(r)
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	participantStr := chi.URLParam(r, ParticipantURLParam)
	if !common.IsHexAddress(participantStr) {
		ErrMalformedParam.Withf("malformed participant address %q", participantStr).Write(w)
		return
	}
	proof, err := a.storage.Registry().InclusionProof(key, common.HexToAddress(participantStr))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			ErrParticipantNotFound.Withf("%s in registry %s", participantStr, key).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, proof)
}

// registryRoot handles GET /registry/{category}/{scope}/root.
func (a *API) registryRoot(w http.ResponseWriter, r *http.Request) {
	key, apiErr := registryKeyFromRequest(r)
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	root, err := a.storage.Registry().Root(key)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	size, err := a.storage.Registry().Size(key)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &RegistryRootResponse{Root: root, Size: size})
}
