package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tactizen/zkvote-node/storage"
	"github.com/tactizen/zkvote-node/types"
)

// createElection handles POST /elections. The election is created in the
// setup state; registration opens with an explicit transition.
func (a *API) createElection(w http.ResponseWriter, r *http.Request) {
	req := &NewElectionRequest{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	election := &types.Election{
		Category:             req.Category,
		ElectionID:           req.ElectionID,
		Scope:                req.Scope,
		ChoiceBound:          req.ChoiceBound,
		Status:               types.ElectionStatusSetup,
		RegistrationDeadline: req.RegistrationDeadline,
		StartTime:            req.StartTime,
		EndTime:              req.EndTime,
	}
	if err := a.storage.CreateElection(election); err != nil {
		switch {
		case errors.Is(err, storage.ErrKeyAlreadyExists):
			ErrElectionAlreadyExists.Withf("%s", election.Key()).Write(w)
		default:
			ErrInvalidElectionConfig.WithErr(err).Write(w)
		}
		return
	}
	httpWriteJSON(w, election)
}

// electionList handles GET /elections.
func (a *API) electionList(w http.ResponseWriter, _ *http.Request) {
	elections, err := a.storage.ListElections()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &ElectionListResponse{Elections: elections})
}

// election handles GET /elections/{category}/{electionId}.
func (a *API) election(w http.ResponseWriter, r *http.Request) {
	key, apiErr := electionKeyFromRequest(r)
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	election, err := a.storage.Election(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrElectionNotFound.Withf("%s", key).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, election)
}

// transitionHandler builds a handler running one lifecycle transition.
func (a *API) transitionHandler(
	transition func(types.ElectionKey) (*types.Election, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, apiErr := electionKeyFromRequest(r)
		if apiErr != nil {
			apiErr.Write(w)
			return
		}
		election, err := transition(key)
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				ErrElectionNotFound.Withf("%s", key).Write(w)
			case errors.Is(err, storage.ErrInvalidStatusTransition):
				ErrInvalidStatusTransition.WithErr(err).Write(w)
			default:
				ErrGenericInternalServerError.WithErr(err).Write(w)
			}
			return
		}
		httpWriteJSON(w, election)
	}
}

// electionResults handles GET /elections/{category}/{electionId}/results.
// The tally is recomputed from the admitted vote log on every call, so
// partial results of a still-open election are visible too.
func (a *API) electionResults(w http.ResponseWriter, r *http.Request) {
	key, apiErr := electionKeyFromRequest(r)
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	tally, err := a.storage.Tally(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrElectionNotFound.Withf("%s", key).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, tally)
}
