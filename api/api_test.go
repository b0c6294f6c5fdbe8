package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	snarktypes "github.com/iden3/go-rapidsnark/types"

	"github.com/tactizen/zkvote-node/db/metadb"
	"github.com/tactizen/zkvote-node/internal/testutil"
	"github.com/tactizen/zkvote-node/storage"
	"github.com/tactizen/zkvote-node/types"
	"github.com/tactizen/zkvote-node/validator"
)

func newTestAPI(t *testing.T) *API {
	s := storage.New(metadb.NewTest(t))
	a := &API{
		storage:           s,
		validator:         validator.New(s, &testutil.MockVerifier{}, &testutil.MockNotary{}, validator.Options{}),
		registrationGrace: validator.DefaultGraceWindow,
	}
	a.initRouter()
	return a
}

// doRequest runs one request against the router and returns the status
// code and response body.
func doRequest(c *qt.C, a *API, method, path string, body any) (int, []byte) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func decodeJSON[T any](c *qt.C, data []byte) *T {
	out := new(T)
	c.Assert(json.Unmarshal(data, out), qt.IsNil)
	return out
}

// errorCode extracts the numeric code from an API error body.
func errorCode(c *qt.C, data []byte) int {
	body := struct {
		Code int `json:"code"`
	}{}
	c.Assert(json.Unmarshal(data, &body), qt.IsNil)
	return body.Code
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(t)
	status, _ := doRequest(c, a, http.MethodGet, PingEndpoint, nil)
	c.Assert(status, qt.Equals, http.StatusOK)
}

func TestFullElectionFlow(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(t)

	// create the election
	status, body := doRequest(c, a, http.MethodPost, ElectionsEndpoint, &NewElectionRequest{
		Category:    types.CategoryPresidential,
		ElectionID:  5,
		Scope:       1,
		ChoiceBound: 3,
	})
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body: %s", body))
	election := decodeJSON[types.Election](c, body)
	c.Assert(election.Status, qt.Equals, types.ElectionStatusSetup)

	electionPath := "/elections/presidential/5"
	registryPath := "/registry/presidential/1"

	// registration is rejected before the registration phase opens
	participant := types.HexBytes(bytes.Repeat([]byte{0x01}, 20))
	status, body = doRequest(c, a, http.MethodPost, registryPath, &RegisterRequest{
		Participant: participant,
		Commitment:  types.NewInt(101),
	})
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrRegistrationClosed.Code)

	status, _ = doRequest(c, a, http.MethodPost, electionPath+"/registration", nil)
	c.Assert(status, qt.Equals, http.StatusOK)

	// register two participants
	status, body = doRequest(c, a, http.MethodPost, registryPath, &RegisterRequest{
		Participant: participant,
		Commitment:  types.NewInt(101),
	})
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body: %s", body))
	first := decodeJSON[RegisterResponse](c, body)
	c.Assert(first.LeafIndex, qt.Equals, uint64(0))

	second := types.HexBytes(bytes.Repeat([]byte{0x02}, 20))
	status, _ = doRequest(c, a, http.MethodPost, registryPath, &RegisterRequest{
		Participant: second,
		Commitment:  types.NewInt(102),
	})
	c.Assert(status, qt.Equals, http.StatusOK)

	// re-registering the same participant conflicts
	status, body = doRequest(c, a, http.MethodPost, registryPath, &RegisterRequest{
		Participant: participant,
		Commitment:  types.NewInt(103),
	})
	c.Assert(status, qt.Equals, http.StatusConflict)
	c.Assert(errorCode(c, body), qt.Equals, ErrDuplicateCommitment.Code)

	// inclusion proof and live root
	status, body = doRequest(c, a, http.MethodGet,
		registryPath+fmt.Sprintf("/proof/0x%x", []byte(participant)), nil)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body: %s", body))

	status, body = doRequest(c, a, http.MethodGet, registryPath+"/root", nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	rootResp := decodeJSON[RegistryRootResponse](c, body)
	c.Assert(rootResp.Size, qt.Equals, uint64(2))

	// freeze the registry, opening the voting phase
	status, body = doRequest(c, a, http.MethodPost, electionPath+"/freeze", nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	frozen := decodeJSON[types.Election](c, body)
	c.Assert(frozen.Status, qt.Equals, types.ElectionStatusVoting)
	c.Assert(frozen.FrozenRoot.Equal(rootResp.Root), qt.IsTrue)

	// cast a ballot
	ballot := &validator.Ballot{
		Category:   types.CategoryPresidential,
		ElectionID: 5,
		Proof:      &snarktypes.ProofData{Protocol: "groth16"},
		Signals: &types.PublicSignals{
			Root:        frozen.FrozenRoot,
			ElectionID:  types.NewInt(5),
			Choice:      types.NewInt(2),
			ChoiceBound: types.NewInt(3),
			Nullifier:   types.NewInt(777),
		},
	}
	status, body = doRequest(c, a, http.MethodPost, VotesEndpoint, ballot)
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body: %s", body))
	receipt := decodeJSON[BallotResponse](c, body)
	c.Assert(receipt.Choice, qt.Equals, uint64(2))
	c.Assert(receipt.Attested, qt.IsTrue)

	// a second ballot with the same nullifier is a duplicate
	status, body = doRequest(c, a, http.MethodPost, VotesEndpoint, ballot)
	c.Assert(status, qt.Equals, http.StatusConflict)
	c.Assert(errorCode(c, body), qt.Equals, ErrDuplicateVote.Code)

	// close and read the results
	status, _ = doRequest(c, a, http.MethodPost, electionPath+"/close", nil)
	c.Assert(status, qt.Equals, http.StatusOK)

	status, body = doRequest(c, a, http.MethodGet, electionPath+"/results", nil)
	c.Assert(status, qt.Equals, http.StatusOK)
	tally := decodeJSON[types.TallyResult](c, body)
	c.Assert(tally.TotalVotes, qt.Equals, uint64(1))
	c.Assert(tally.PerChoice[2], qt.Equals, uint64(1))
}

func TestElectionErrors(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(t)

	// unknown category
	status, body := doRequest(c, a, http.MethodGet, "/elections/municipal/1", nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrMalformedCategory.Code)

	// missing election
	status, body = doRequest(c, a, http.MethodGet, "/elections/presidential/99", nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)
	c.Assert(errorCode(c, body), qt.Equals, ErrElectionNotFound.Code)

	// invalid configuration
	status, body = doRequest(c, a, http.MethodPost, ElectionsEndpoint, &NewElectionRequest{
		Category:    types.CategoryPresidential,
		ElectionID:  1,
		ChoiceBound: 0,
	})
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrInvalidElectionConfig.Code)

	// duplicate creation
	req := &NewElectionRequest{Category: types.CategoryParty, ElectionID: 1, ChoiceBound: 2}
	status, _ = doRequest(c, a, http.MethodPost, ElectionsEndpoint, req)
	c.Assert(status, qt.Equals, http.StatusOK)
	status, body = doRequest(c, a, http.MethodPost, ElectionsEndpoint, req)
	c.Assert(status, qt.Equals, http.StatusConflict)
	c.Assert(errorCode(c, body), qt.Equals, ErrElectionAlreadyExists.Code)

	// out-of-order transition
	status, body = doRequest(c, a, http.MethodPost, "/elections/party/1/close", nil)
	c.Assert(status, qt.Equals, http.StatusConflict)
	c.Assert(errorCode(c, body), qt.Equals, ErrInvalidStatusTransition.Code)
}

func TestRegistrationDeadline(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(t)

	// the election's registration deadline already passed
	status, _ := doRequest(c, a, http.MethodPost, ElectionsEndpoint, &NewElectionRequest{
		Category:             types.CategoryPresidential,
		ElectionID:           5,
		Scope:                1,
		ChoiceBound:          3,
		RegistrationDeadline: time.Now().Add(-time.Minute),
	})
	c.Assert(status, qt.Equals, http.StatusOK)
	status, _ = doRequest(c, a, http.MethodPost, "/elections/presidential/5/registration", nil)
	c.Assert(status, qt.Equals, http.StatusOK)

	participant := types.HexBytes(bytes.Repeat([]byte{0x01}, 20))
	status, body := doRequest(c, a, http.MethodPost, "/registry/presidential/1", &RegisterRequest{
		Participant: participant,
		Commitment:  types.NewInt(101),
	})
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrRegistrationClosed.Code)

	// another election on the same registry with an open deadline
	// admits the commitment
	status, _ = doRequest(c, a, http.MethodPost, ElectionsEndpoint, &NewElectionRequest{
		Category:             types.CategoryPresidential,
		ElectionID:           6,
		Scope:                1,
		ChoiceBound:          3,
		RegistrationDeadline: time.Now().Add(time.Hour),
	})
	c.Assert(status, qt.Equals, http.StatusOK)
	status, _ = doRequest(c, a, http.MethodPost, "/elections/presidential/6/registration", nil)
	c.Assert(status, qt.Equals, http.StatusOK)

	status, body = doRequest(c, a, http.MethodPost, "/registry/presidential/1", &RegisterRequest{
		Participant: participant,
		Commitment:  types.NewInt(101),
	})
	c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body: %s", body))
}

func TestVoteErrors(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(t)

	// prepare a voting election
	_, _ = doRequest(c, a, http.MethodPost, ElectionsEndpoint, &NewElectionRequest{
		Category:    types.CategoryPresidential,
		ElectionID:  5,
		Scope:       1,
		ChoiceBound: 3,
	})
	_, _ = doRequest(c, a, http.MethodPost, "/elections/presidential/5/registration", nil)
	_, body := doRequest(c, a, http.MethodPost, "/elections/presidential/5/freeze", nil)
	frozen := decodeJSON[types.Election](c, body)

	ballotFor := func(choice, nullifier int) *validator.Ballot {
		return &validator.Ballot{
			Category:   types.CategoryPresidential,
			ElectionID: 5,
			Proof:      &snarktypes.ProofData{Protocol: "groth16"},
			Signals: &types.PublicSignals{
				Root:        frozen.FrozenRoot,
				ElectionID:  types.NewInt(5),
				Choice:      types.NewInt(choice),
				ChoiceBound: types.NewInt(3),
				Nullifier:   types.NewInt(nullifier),
			},
		}
	}

	// out-of-range choice
	status, body := doRequest(c, a, http.MethodPost, VotesEndpoint, ballotFor(4, 1))
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrInvalidChoice.Code)

	// stale root
	stale := ballotFor(1, 2)
	stale.Signals.Root = types.NewInt(424242)
	status, body = doRequest(c, a, http.MethodPost, VotesEndpoint, stale)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrStaleRoot.Code)

	// unknown election
	missing := ballotFor(1, 3)
	missing.ElectionID = 99
	missing.Signals.ElectionID = types.NewInt(99)
	status, body = doRequest(c, a, http.MethodPost, VotesEndpoint, missing)
	c.Assert(status, qt.Equals, http.StatusNotFound)
	c.Assert(errorCode(c, body), qt.Equals, ErrElectionNotFound.Code)

	// missing proof
	noProof := ballotFor(1, 4)
	noProof.Proof = nil
	status, body = doRequest(c, a, http.MethodPost, VotesEndpoint, noProof)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(errorCode(c, body), qt.Equals, ErrMalformedBallot.Code)
}
