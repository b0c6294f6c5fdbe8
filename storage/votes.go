package storage

import (
	"errors"
	"fmt"

	"github.com/tactizen/zkvote-node/db"
	"github.com/tactizen/zkvote-node/db/prefixeddb"
	"github.com/tactizen/zkvote-node/log"
	"github.com/tactizen/zkvote-node/types"
)

// PushAdmittedVote appends the vote to the admitted vote log and bumps
// the election's vote counter in the same transaction. The log is
// append-only: a second record for the same nullifier is rejected with
// ErrKeyAlreadyExists regardless of content. The election status is
// re-read under the lock, so a ballot whose election closed while it
// was being verified is rejected with ErrElectionNotInVoting instead
// of slipping into the log.
func (s *Storage) PushAdmittedVote(vote *types.AdmittedVote) error {
	if vote == nil || vote.Nullifier == nil {
		return fmt.Errorf("malformed admitted vote")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	election, err := s.electionFromDB(vote.Key())
	if err != nil {
		return err
	}
	if election.Status != types.ElectionStatusVoting {
		return fmt.Errorf("%w: election is %s", ErrElectionNotInVoting, election.Status)
	}

	vKey := nullifierKey(vote.Key(), vote.Nullifier)
	wTx := s.db.WriteTx()
	defer wTx.Discard()

	voteTx := prefixeddb.NewPrefixedWriteTx(wTx, votePrefix)
	if _, err := voteTx.Get(vKey); err == nil {
		return ErrKeyAlreadyExists
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	data, err := EncodeArtifact(vote)
	if err != nil {
		return err
	}
	if err := voteTx.Set(vKey, data); err != nil {
		return err
	}

	election.VoteCount++
	electionData, err := EncodeArtifact(election)
	if err != nil {
		return err
	}
	electionTx := prefixeddb.NewPrefixedWriteTx(wTx, electionPrefix)
	if err := electionTx.Set(vote.Key().Bytes(), electionData); err != nil {
		return err
	}

	if err := wTx.Commit(); err != nil {
		return err
	}
	s.cache.Add(string(vote.Key().Bytes()), election)
	log.Debugw("vote admitted",
		"election", vote.Key().String(),
		"nullifier", vote.Nullifier.String(),
		"choice", vote.Choice,
		"attested", vote.Attested)
	return nil
}

// AdmittedVote returns the vote record stored for the given nullifier, or
// ErrNotFound.
func (s *Storage) AdmittedVote(key types.ElectionKey, nullifier *types.BigInt) (*types.AdmittedVote, error) {
	reader := prefixeddb.NewPrefixedReader(s.db, votePrefix)
	data, err := reader.Get(nullifierKey(key, nullifier))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	vote := &types.AdmittedVote{}
	if err := DecodeArtifact(data, vote); err != nil {
		return nil, fmt.Errorf("could not decode admitted vote: %w", err)
	}
	return vote, nil
}

// ListAdmittedVotes returns all admitted votes of an election.
func (s *Storage) ListAdmittedVotes(key types.ElectionKey) ([]*types.AdmittedVote, error) {
	var votes []*types.AdmittedVote
	var decodeErr error
	reader := prefixeddb.NewPrefixedReader(s.db, votePrefix)
	if err := reader.Iterate(key.Bytes(), func(_, value []byte) bool {
		vote := &types.AdmittedVote{}
		if err := DecodeArtifact(value, vote); err != nil {
			decodeErr = err
			return false
		}
		votes = append(votes, vote)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return votes, nil
}

// CountAdmittedVotes returns the number of admitted votes of an election
// by scanning the vote log.
func (s *Storage) CountAdmittedVotes(key types.ElectionKey) (uint64, error) {
	var count uint64
	reader := prefixeddb.NewPrefixedReader(s.db, votePrefix)
	if err := reader.Iterate(key.Bytes(), func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		return 0, err
	}
	return count, nil
}
