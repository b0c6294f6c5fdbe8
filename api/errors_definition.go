//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500, 503 or 504, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// If you notice there's a gap, DON'T fill it in, that code was used in the past and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound        = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody           = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedCategory       = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed category")}
	ErrMalformedParam          = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrElectionNotFound        = Error{Code: 40005, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("election not found")}
	ErrElectionAlreadyExists   = Error{Code: 40006, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("election already exists")}
	ErrInvalidElectionConfig   = Error{Code: 40007, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid election configuration")}
	ErrInvalidStatusTransition = Error{Code: 40008, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("invalid status transition")}
	ErrRegistrationClosed      = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("registration is closed")}
	ErrInvalidCommitment       = Error{Code: 40010, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid commitment")}
	ErrDuplicateCommitment     = Error{Code: 40011, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("participant already registered")}
	ErrRegistryFull            = Error{Code: 40012, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("registry is full")}
	ErrParticipantNotFound     = Error{Code: 40013, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("participant not found")}
	ErrMalformedBallot         = Error{Code: 40014, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed ballot")}
	ErrElectionMismatch        = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("ballot does not match the election")}
	ErrVotingNotOpen           = Error{Code: 40016, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voting is not open")}
	ErrInvalidChoice           = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("choice out of range")}
	ErrStaleRoot               = Error{Code: 40018, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("stale or invalid registry root")}
	ErrDuplicateVote           = Error{Code: 40019, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("nullifier already used")}
	ErrInvalidBallotProof      = Error{Code: 40020, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid ballot proof")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrVerifierUnavailable        = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("proof verifier unavailable")}
	ErrVerificationTimeout        = Error{Code: 50004, HTTPstatus: http.StatusGatewayTimeout, Err: fmt.Errorf("proof verification timed out")}
)
