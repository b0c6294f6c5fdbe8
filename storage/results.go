package storage

import (
	"github.com/tactizen/zkvote-node/types"
)

// Tally folds the admitted vote log of an election into per-choice
// counts. Choice 0 counts as abstention; all other values count for
// their candidate. Pure read-side reduction: calling it repeatedly with
// no new votes yields identical results.
func (s *Storage) Tally(key types.ElectionKey) (*types.TallyResult, error) {
	election, err := s.Election(key)
	if err != nil {
		return nil, err
	}

	result := &types.TallyResult{
		PerChoice: make(map[uint64]uint64, election.ChoiceBound),
	}
	for choice := uint64(1); choice <= election.ChoiceBound; choice++ {
		result.PerChoice[choice] = 0
	}

	votes, err := s.ListAdmittedVotes(key)
	if err != nil {
		return nil, err
	}
	for _, vote := range votes {
		result.TotalVotes++
		if vote.Choice == 0 {
			result.Abstentions++
			continue
		}
		result.PerChoice[vote.Choice]++
	}
	return result, nil
}
