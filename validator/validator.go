// Package validator implements the ballot validation pipeline: the
// ordered sequence of checks deciding whether a submitted proof plus
// public signals becomes an admitted vote. Cheap structural and state
// checks run first; the nullifier is reserved before the expensive
// cryptographic delegation; notarization is best effort.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	snarktypes "github.com/iden3/go-rapidsnark/types"

	"github.com/tactizen/zkvote-node/log"
	"github.com/tactizen/zkvote-node/notary"
	"github.com/tactizen/zkvote-node/storage"
	"github.com/tactizen/zkvote-node/types"
	"github.com/tactizen/zkvote-node/verifier"
)

var (
	// ErrMalformedBallot means the ballot is structurally invalid:
	// missing proof or incomplete public signals.
	ErrMalformedBallot = errors.New("malformed ballot")
	// ErrElectionMismatch means the public signals do not belong to the
	// election the ballot was submitted for.
	ErrElectionMismatch = errors.New("public signals do not match the election")
	// ErrVotingNotOpen means the election is not in the voting phase.
	ErrVotingNotOpen = errors.New("voting is not open")
	// ErrInvalidChoice means the choice signal is outside [0, choiceBound].
	ErrInvalidChoice = errors.New("choice out of range")
	// ErrStaleOrInvalidRoot means the root signal matches neither the
	// frozen root nor, within the grace window, the live registry root.
	ErrStaleOrInvalidRoot = errors.New("stale or invalid registry root")
	// ErrDuplicateVote means the nullifier was already used in this
	// election.
	ErrDuplicateVote = errors.New("nullifier already used in this election")
	// ErrInvalidProof means the proof failed cryptographic verification.
	ErrInvalidProof = errors.New("invalid proof")
	// ErrVerifierUnavailable means verification could not be attempted;
	// the ballot may be resubmitted unchanged.
	ErrVerifierUnavailable = errors.New("proof verifier unavailable")
	// ErrVerificationTimeout means verification did not finish in time; a
	// timeout does not prove invalidity and the ballot may be retried.
	ErrVerificationTimeout = errors.New("proof verification timed out")
)

const (
	// DefaultGraceWindow is how long after the freeze the live registry
	// root is still accepted, so participants who registered moments
	// before the freeze are not disenfranchised. Root acceptance is
	// strictly frozen-root-only once the window ends.
	DefaultGraceWindow = 10 * time.Minute
	// DefaultVerifyTimeout bounds the delegated proof verification.
	DefaultVerifyTimeout = 90 * time.Second
	// DefaultAttestTimeout bounds the notarization call.
	DefaultAttestTimeout = 60 * time.Second
)

// Ballot is one vote submission: the election it targets, the proof and
// its public signals.
type Ballot struct {
	Category   types.Category        `json:"category"`
	ElectionID uint64                `json:"electionId"`
	Proof      *snarktypes.ProofData `json:"proof"`
	Signals    *types.PublicSignals  `json:"publicSignals"`
}

// Key returns the ElectionKey the ballot targets.
func (b *Ballot) Key() types.ElectionKey {
	return types.ElectionKey{Category: b.Category, ElectionID: b.ElectionID}
}

// Options tunes the validation pipeline. Zero values fall back to the
// package defaults.
type Options struct {
	GraceWindow   time.Duration
	VerifyTimeout time.Duration
	AttestTimeout time.Duration
}

// Validator is the ballot validation pipeline.
type Validator struct {
	stg           *storage.Storage
	verifier      verifier.ProofVerifier
	notary        notary.Notary // nil disables notarization, votes are recorded unattested
	graceWindow   time.Duration
	verifyTimeout time.Duration
	attestTimeout time.Duration
}

// New returns a Validator wired to the given storage and collaborators.
func New(stg *storage.Storage, pv verifier.ProofVerifier, nt notary.Notary, opts Options) *Validator {
	if opts.GraceWindow == 0 {
		opts.GraceWindow = DefaultGraceWindow
	}
	if opts.VerifyTimeout == 0 {
		opts.VerifyTimeout = DefaultVerifyTimeout
	}
	if opts.AttestTimeout == 0 {
		opts.AttestTimeout = DefaultAttestTimeout
	}
	return &Validator{
		stg:           stg,
		verifier:      pv,
		notary:        nt,
		graceWindow:   opts.GraceWindow,
		verifyTimeout: opts.VerifyTimeout,
		attestTimeout: opts.AttestTimeout,
	}
}

// Validate runs the full pipeline on the ballot. On success it persists
// and returns the admitted vote record; on rejection it returns one of
// the package error kinds, never a generic failure.
//
// The nullifier is reserved before the cryptographic delegation and
// released again when verification fails for any reason: an invalid
// proof carries no assurance the nullifier was legitimately derived, and
// availability failures must leave the ballot retryable.
func (v *Validator) Validate(ctx context.Context, ballot *Ballot) (*types.AdmittedVote, error) {
	// structural checks
	if ballot == nil || ballot.Proof == nil || !ballot.Signals.Valid() {
		return nil, ErrMalformedBallot
	}
	signals := ballot.Signals
	if !signals.ElectionID.MathBigInt().IsUint64() ||
		signals.ElectionID.MathBigInt().Uint64() != ballot.ElectionID {
		return nil, fmt.Errorf("%w: election id signal %s", ErrElectionMismatch, signals.ElectionID)
	}

	election, err := v.stg.Election(ballot.Key())
	if err != nil {
		return nil, err
	}

	// lifecycle gate
	if election.Status != types.ElectionStatusVoting {
		return nil, fmt.Errorf("%w: election is %s", ErrVotingNotOpen, election.Status)
	}

	// choice range, before anything expensive
	if !signals.ChoiceBound.MathBigInt().IsUint64() ||
		signals.ChoiceBound.MathBigInt().Uint64() != election.ChoiceBound {
		return nil, fmt.Errorf("%w: choice bound signal %s", ErrElectionMismatch, signals.ChoiceBound)
	}
	if !signals.Choice.MathBigInt().IsUint64() ||
		signals.Choice.MathBigInt().Uint64() > election.ChoiceBound {
		return nil, fmt.Errorf("%w: choice %s with bound %d", ErrInvalidChoice, signals.Choice, election.ChoiceBound)
	}
	choice := signals.Choice.MathBigInt().Uint64()

	// root freshness
	if err := v.checkRoot(election, signals.Root); err != nil {
		return nil, err
	}

	// nullifier reservation, the point of no return for double votes
	if err := v.stg.ReserveNullifier(ballot.Key(), signals.Nullifier); err != nil {
		if errors.Is(err, storage.ErrNullifierAlreadyExists) {
			return nil, ErrDuplicateVote
		}
		return nil, err
	}

	// delegated cryptographic verification
	if err := v.verifyProof(ctx, ballot); err != nil {
		if relErr := v.stg.ReleaseNullifier(ballot.Key(), signals.Nullifier); relErr != nil {
			log.Warnw("could not release nullifier reservation",
				"election", ballot.Key().String(),
				"nullifier", signals.Nullifier.String(),
				"error", relErr)
		}
		return nil, err
	}

	// best-effort notarization
	attested, attestation := v.attest(ctx, ballot)

	vote := &types.AdmittedVote{
		Category:    ballot.Category,
		ElectionID:  ballot.ElectionID,
		Nullifier:   signals.Nullifier,
		Choice:      choice,
		RootUsed:    signals.Root,
		Attested:    attested,
		Attestation: attestation,
		Timestamp:   time.Now(),
	}
	if err := v.stg.PushAdmittedVote(vote); err != nil {
		if errors.Is(err, storage.ErrElectionNotInVoting) {
			// The election closed while the proof was being verified.
			// The vote is not recorded, so the reservation must not
			// outlive it.
			if relErr := v.stg.ReleaseNullifier(ballot.Key(), signals.Nullifier); relErr != nil {
				log.Warnw("could not release nullifier reservation",
					"election", ballot.Key().String(),
					"nullifier", signals.Nullifier.String(),
					"error", relErr)
			}
			return nil, fmt.Errorf("%w: election closed during verification", ErrVotingNotOpen)
		}
		return nil, fmt.Errorf("could not persist admitted vote: %w", err)
	}
	log.Infow("ballot admitted",
		"election", ballot.Key().String(),
		"choice", choice,
		"attested", attested)
	return vote, nil
}

// checkRoot accepts the frozen root, or the live registry root while the
// grace window after the freeze is still open.
func (v *Validator) checkRoot(election *types.Election, root *types.BigInt) error {
	if election.FrozenRoot == nil {
		return fmt.Errorf("%w: election has no frozen root", ErrStaleOrInvalidRoot)
	}
	if root.Equal(election.FrozenRoot) {
		return nil
	}
	if time.Since(election.FrozenAt) < v.graceWindow {
		liveRoot, err := v.stg.Registry().Root(election.RegistryKey())
		if err != nil {
			return fmt.Errorf("could not read live registry root: %w", err)
		}
		if root.Equal(liveRoot) {
			log.Warnw("ballot accepted against live root within grace window",
				"election", election.Key().String(),
				"frozenAt", election.FrozenAt,
				"root", root.String())
			return nil
		}
	}
	return ErrStaleOrInvalidRoot
}

// verifyProof delegates to the proof verifier with a bounded wait and
// maps its failure modes to the pipeline error kinds.
func (v *Validator) verifyProof(ctx context.Context, ballot *Ballot) error {
	verifyCtx, cancel := context.WithTimeout(ctx, v.verifyTimeout)
	defer cancel()
	err := v.verifier.Verify(verifyCtx, ballot.Proof, ballot.Signals.Slice())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return ErrVerificationTimeout
	case errors.Is(err, verifier.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
}

// attest submits the verified proof to the notary. Failures only degrade
// the record to unattested; local verification remains authoritative.
func (v *Validator) attest(ctx context.Context, ballot *Ballot) (bool, *types.AttestationRef) {
	if v.notary == nil {
		return false, nil
	}
	attestCtx, cancel := context.WithTimeout(ctx, v.attestTimeout)
	defer cancel()
	ref, err := v.notary.Attest(attestCtx, ballot.Proof, ballot.Signals.Slice())
	if err != nil {
		log.Warnw("notarization failed, recording vote as unattested",
			"election", ballot.Key().String(),
			"error", err)
		return false, nil
	}
	return true, ref
}
