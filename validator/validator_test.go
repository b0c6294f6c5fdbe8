package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	snarktypes "github.com/iden3/go-rapidsnark/types"

	"github.com/tactizen/zkvote-node/db/metadb"
	"github.com/tactizen/zkvote-node/internal/testutil"
	"github.com/tactizen/zkvote-node/storage"
	"github.com/tactizen/zkvote-node/types"
	"github.com/tactizen/zkvote-node/verifier"
)

func testProof() *snarktypes.ProofData {
	return &snarktypes.ProofData{Protocol: "groth16"}
}

// setupVotingElection creates an election, registers four commitments and
// freezes the registry, leaving the election accepting ballots.
func setupVotingElection(c *qt.C, s *storage.Storage) *types.Election {
	election := &types.Election{
		Category:    types.CategoryPresidential,
		ElectionID:  5,
		Scope:       1,
		ChoiceBound: 3,
		Status:      types.ElectionStatusSetup,
	}
	c.Assert(s.CreateElection(election), qt.IsNil)
	_, err := s.OpenRegistration(election.Key())
	c.Assert(err, qt.IsNil)

	regKey := election.RegistryKey()
	for i := 1; i <= 4; i++ {
		_, _, err := s.Registry().Register(regKey, common.Address{byte(i)}, types.NewInt(100+i))
		c.Assert(err, qt.IsNil)
	}

	frozen, err := s.FreezeElection(election.Key())
	c.Assert(err, qt.IsNil)
	c.Assert(frozen.FrozenRoot, qt.IsNotNil)
	return frozen
}

// ballotFor builds a well-formed ballot whose signals point at the
// election's frozen root.
func ballotFor(election *types.Election, choice, nullifier int) *Ballot {
	return &Ballot{
		Category:   election.Category,
		ElectionID: election.ElectionID,
		Proof:      testProof(),
		Signals: &types.PublicSignals{
			Root:        election.FrozenRoot,
			ElectionID:  types.NewInt(int(election.ElectionID)),
			Choice:      types.NewInt(choice),
			ChoiceBound: types.NewInt(int(election.ChoiceBound)),
			Nullifier:   types.NewInt(nullifier),
		},
	}
}

func TestValidateAdmitsBallot(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)

	mv := &testutil.MockVerifier{}
	mn := &testutil.MockNotary{}
	v := New(s, mv, mn, Options{})

	vote, err := v.Validate(context.Background(), ballotFor(election, 2, 1001))
	c.Assert(err, qt.IsNil)
	c.Assert(vote.Choice, qt.Equals, uint64(2))
	c.Assert(vote.Attested, qt.IsTrue)
	c.Assert(vote.Attestation, qt.IsNotNil)
	c.Assert(vote.Attestation.BlockNumber, qt.Equals, uint64(42))
	c.Assert(mv.Calls(), qt.Equals, 1)
	c.Assert(mn.Calls(), qt.Equals, 1)

	stored, err := s.AdmittedVote(election.Key(), types.NewInt(1001))
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Choice, qt.Equals, uint64(2))
	c.Assert(stored.RootUsed.Equal(election.FrozenRoot), qt.IsTrue)

	tally, err := s.Tally(election.Key())
	c.Assert(err, qt.IsNil)
	c.Assert(tally.TotalVotes, qt.Equals, uint64(1))
	c.Assert(tally.PerChoice[2], qt.Equals, uint64(1))
}

func TestValidateDuplicateNullifier(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)
	v := New(s, &testutil.MockVerifier{}, &testutil.MockNotary{}, Options{})

	_, err := v.Validate(context.Background(), ballotFor(election, 2, 1001))
	c.Assert(err, qt.IsNil)

	// second ballot reusing the nullifier, even with another choice
	_, err = v.Validate(context.Background(), ballotFor(election, 3, 1001))
	c.Assert(errors.Is(err, ErrDuplicateVote), qt.IsTrue)

	// the rejection left no trace in the tally
	tally, err := s.Tally(election.Key())
	c.Assert(err, qt.IsNil)
	c.Assert(tally.TotalVotes, qt.Equals, uint64(1))
	c.Assert(tally.PerChoice, qt.DeepEquals, map[uint64]uint64{1: 0, 2: 1, 3: 0})
}

func TestValidateVotingNotOpen(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))

	election := &types.Election{
		Category:    types.CategoryPresidential,
		ElectionID:  5,
		Scope:       1,
		ChoiceBound: 3,
	}
	c.Assert(s.CreateElection(election), qt.IsNil)
	_, err := s.OpenRegistration(election.Key())
	c.Assert(err, qt.IsNil)

	mv := &testutil.MockVerifier{}
	v := New(s, mv, nil, Options{})

	ballot := &Ballot{
		Category:   election.Category,
		ElectionID: election.ElectionID,
		Proof:      testProof(),
		Signals: &types.PublicSignals{
			Root:        types.NewInt(1),
			ElectionID:  types.NewInt(5),
			Choice:      types.NewInt(1),
			ChoiceBound: types.NewInt(3),
			Nullifier:   types.NewInt(1),
		},
	}
	_, err = v.Validate(context.Background(), ballot)
	c.Assert(errors.Is(err, ErrVotingNotOpen), qt.IsTrue)
	c.Assert(mv.Calls(), qt.Equals, 0)

	// closed elections reject ballots too
	_, err = s.FreezeElection(election.Key())
	c.Assert(err, qt.IsNil)
	closed, err := s.CloseElection(election.Key())
	c.Assert(err, qt.IsNil)

	_, err = v.Validate(context.Background(), ballotFor(closed, 1, 1))
	c.Assert(errors.Is(err, ErrVotingNotOpen), qt.IsTrue)
}

func TestValidateMalformedBallot(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)
	mv := &testutil.MockVerifier{}
	v := New(s, mv, nil, Options{})

	_, err := v.Validate(context.Background(), nil)
	c.Assert(errors.Is(err, ErrMalformedBallot), qt.IsTrue)

	noProof := ballotFor(election, 1, 1)
	noProof.Proof = nil
	_, err = v.Validate(context.Background(), noProof)
	c.Assert(errors.Is(err, ErrMalformedBallot), qt.IsTrue)

	noSignal := ballotFor(election, 1, 1)
	noSignal.Signals.Nullifier = nil
	_, err = v.Validate(context.Background(), noSignal)
	c.Assert(errors.Is(err, ErrMalformedBallot), qt.IsTrue)

	c.Assert(mv.Calls(), qt.Equals, 0)
}

func TestValidateElectionMismatch(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)
	mv := &testutil.MockVerifier{}
	v := New(s, mv, nil, Options{})

	// election id signal pointing at a different election
	wrongID := ballotFor(election, 1, 1)
	wrongID.Signals.ElectionID = types.NewInt(99)
	_, err := v.Validate(context.Background(), wrongID)
	c.Assert(errors.Is(err, ErrElectionMismatch), qt.IsTrue)

	// choice bound signal disagreeing with the election configuration
	wrongBound := ballotFor(election, 1, 1)
	wrongBound.Signals.ChoiceBound = types.NewInt(7)
	_, err = v.Validate(context.Background(), wrongBound)
	c.Assert(errors.Is(err, ErrElectionMismatch), qt.IsTrue)

	c.Assert(mv.Calls(), qt.Equals, 0)
}

func TestValidateInvalidChoice(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)
	mv := &testutil.MockVerifier{}
	v := New(s, mv, nil, Options{})

	_, err := v.Validate(context.Background(), ballotFor(election, 4, 1))
	c.Assert(errors.Is(err, ErrInvalidChoice), qt.IsTrue)

	// the range check runs before anything cryptographic
	c.Assert(mv.Calls(), qt.Equals, 0)

	// choice 0 is a valid abstention
	vote, err := v.Validate(context.Background(), ballotFor(election, 0, 1))
	c.Assert(err, qt.IsNil)
	c.Assert(vote.Choice, qt.Equals, uint64(0))

	tally, err := s.Tally(election.Key())
	c.Assert(err, qt.IsNil)
	c.Assert(tally.Abstentions, qt.Equals, uint64(1))
}

func TestValidateStaleRoot(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)
	mv := &testutil.MockVerifier{}
	v := New(s, mv, nil, Options{})

	ballot := ballotFor(election, 1, 1)
	ballot.Signals.Root = types.NewInt(123456)
	_, err := v.Validate(context.Background(), ballot)
	c.Assert(errors.Is(err, ErrStaleOrInvalidRoot), qt.IsTrue)
	c.Assert(mv.Calls(), qt.Equals, 0)
}

func TestValidateLiveRootGraceWindow(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)

	// a registration landing after the freeze moves the live root
	_, liveRoot, err := s.Registry().Register(election.RegistryKey(),
		common.Address{0x99}, types.NewInt(999))
	c.Assert(err, qt.IsNil)
	c.Assert(liveRoot.Equal(election.FrozenRoot), qt.IsFalse)

	ballot := ballotFor(election, 1, 1)
	ballot.Signals.Root = liveRoot

	// within the grace window the live root is accepted
	v := New(s, &testutil.MockVerifier{}, nil, Options{})
	_, err = v.Validate(context.Background(), ballot)
	c.Assert(err, qt.IsNil)

	// with the window elapsed only the frozen root passes
	strict := New(s, &testutil.MockVerifier{}, nil, Options{GraceWindow: time.Nanosecond})
	lateBallot := ballotFor(election, 1, 2)
	lateBallot.Signals.Root = liveRoot
	_, err = strict.Validate(context.Background(), lateBallot)
	c.Assert(errors.Is(err, ErrStaleOrInvalidRoot), qt.IsTrue)

	frozenBallot := ballotFor(election, 1, 2)
	_, err = strict.Validate(context.Background(), frozenBallot)
	c.Assert(err, qt.IsNil)
}

func TestValidateInvalidProofReleasesNullifier(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)

	rejecting := New(s, &testutil.MockVerifier{Err: errors.New("pairing check failed")}, nil, Options{})
	_, err := rejecting.Validate(context.Background(), ballotFor(election, 1, 1001))
	c.Assert(errors.Is(err, ErrInvalidProof), qt.IsTrue)

	used, err := s.HasNullifier(election.Key(), types.NewInt(1001))
	c.Assert(err, qt.IsNil)
	c.Assert(used, qt.IsFalse)

	// the same nullifier can be retried with a proof that verifies
	accepting := New(s, &testutil.MockVerifier{}, nil, Options{})
	vote, err := accepting.Validate(context.Background(), ballotFor(election, 1, 1001))
	c.Assert(err, qt.IsNil)
	c.Assert(vote.Nullifier.Equal(types.NewInt(1001)), qt.IsTrue)
}

func TestValidateVerifierUnavailable(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)

	v := New(s, &testutil.MockVerifier{Err: verifier.ErrUnavailable}, nil, Options{})
	_, err := v.Validate(context.Background(), ballotFor(election, 1, 1001))
	c.Assert(errors.Is(err, ErrVerifierUnavailable), qt.IsTrue)

	// availability failures leave the ballot retryable
	used, err := s.HasNullifier(election.Key(), types.NewInt(1001))
	c.Assert(err, qt.IsNil)
	c.Assert(used, qt.IsFalse)
}

func TestValidateVerificationTimeout(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)

	v := New(s, &testutil.MockVerifier{Delay: time.Second}, nil,
		Options{VerifyTimeout: 10 * time.Millisecond})
	_, err := v.Validate(context.Background(), ballotFor(election, 1, 1001))
	c.Assert(errors.Is(err, ErrVerificationTimeout), qt.IsTrue)
	c.Assert(errors.Is(err, ErrInvalidProof), qt.IsFalse)

	used, err := s.HasNullifier(election.Key(), types.NewInt(1001))
	c.Assert(err, qt.IsNil)
	c.Assert(used, qt.IsFalse)
}

func TestValidateElectionClosesDuringVerification(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)

	// the verifier is slow enough for the close to land while the proof
	// is still being checked
	v := New(s, &testutil.MockVerifier{Delay: 300 * time.Millisecond}, nil,
		Options{VerifyTimeout: 5 * time.Second})

	done := make(chan error, 1)
	go func() {
		_, err := v.Validate(context.Background(), ballotFor(election, 2, 1001))
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	_, err := s.CloseElection(election.Key())
	c.Assert(err, qt.IsNil)

	err = <-done
	c.Assert(errors.Is(err, ErrVotingNotOpen), qt.IsTrue)

	// the rejected ballot left no record and no reservation behind
	_, err = s.AdmittedVote(election.Key(), types.NewInt(1001))
	c.Assert(errors.Is(err, storage.ErrNotFound), qt.IsTrue)
	used, err := s.HasNullifier(election.Key(), types.NewInt(1001))
	c.Assert(err, qt.IsNil)
	c.Assert(used, qt.IsFalse)

	final, err := s.Election(election.Key())
	c.Assert(err, qt.IsNil)
	c.Assert(final.VoteCount, qt.Equals, uint64(0))
}

func TestValidateNotaryFailure(t *testing.T) {
	c := qt.New(t)
	s := storage.New(metadb.NewTest(t))
	election := setupVotingElection(c, s)

	mn := &testutil.MockNotary{Err: errors.New("chain congested")}
	v := New(s, &testutil.MockVerifier{}, mn, Options{})

	// notarization failure degrades the record but never rejects
	vote, err := v.Validate(context.Background(), ballotFor(election, 2, 1001))
	c.Assert(err, qt.IsNil)
	c.Assert(vote.Attested, qt.IsFalse)
	c.Assert(vote.Attestation, qt.IsNil)
	c.Assert(mn.Calls(), qt.Equals, 1)

	stored, err := s.AdmittedVote(election.Key(), types.NewInt(1001))
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Attested, qt.IsFalse)
}
