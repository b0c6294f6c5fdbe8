package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/tactizen/zkvote-node/db"
	"github.com/tactizen/zkvote-node/db/prefixeddb"
	"github.com/tactizen/zkvote-node/log"
	"github.com/tactizen/zkvote-node/types"
)

// CreateElection stores a new election record. The election must carry a
// valid category, a choice bound of at least 1 and an initial status of
// Setup or Registration.
func (s *Storage) CreateElection(election *types.Election) error {
	if election == nil {
		return fmt.Errorf("nil election")
	}
	if !election.Category.Valid() {
		return fmt.Errorf("invalid category %q", election.Category)
	}
	if election.ChoiceBound < 1 {
		return fmt.Errorf("choice bound must be at least 1")
	}
	if election.Status > types.ElectionStatusRegistration {
		return fmt.Errorf("new elections cannot start in status %s", election.Status)
	}
	if election.FrozenRoot != nil {
		return fmt.Errorf("new elections cannot carry a frozen root")
	}

	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	key := election.Key().Bytes()
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), electionPrefix)
	defer wTx.Discard()
	if _, err := wTx.Get(key); err == nil {
		return ErrKeyAlreadyExists
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	data, err := EncodeArtifact(election)
	if err != nil {
		return err
	}
	if err := wTx.Set(key, data); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	// cache a copy, the caller keeps ownership of its record
	cached := *election
	s.cache.Add(string(key), &cached)
	log.Infow("election created",
		"election", election.Key().String(),
		"scope", election.Scope,
		"choiceBound", election.ChoiceBound,
		"status", election.Status.String())
	return nil
}

// Election returns the election record of key, or ErrNotFound. The
// returned record is a snapshot: update paths never mutate an object
// that was handed out, they replace the cache entry with a freshly
// decoded copy instead.
func (s *Storage) Election(key types.ElectionKey) (*types.Election, error) {
	if election, ok := s.cache.Get(string(key.Bytes())); ok {
		return election, nil
	}
	election, err := s.electionFromDB(key)
	if err != nil {
		return nil, err
	}
	s.cache.Add(string(key.Bytes()), election)
	return election, nil
}

// electionFromDB decodes a fresh election record straight from the
// database, bypassing and never touching the cache.
func (s *Storage) electionFromDB(key types.ElectionKey) (*types.Election, error) {
	reader := prefixeddb.NewPrefixedReader(s.db, electionPrefix)
	data, err := reader.Get(key.Bytes())
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	election := &types.Election{}
	if err := DecodeArtifact(data, election); err != nil {
		return nil, fmt.Errorf("could not decode election: %w", err)
	}
	return election, nil
}

// ListElections returns all stored elections.
func (s *Storage) ListElections() ([]*types.Election, error) {
	var elections []*types.Election
	reader := prefixeddb.NewPrefixedReader(s.db, electionPrefix)
	var decodeErr error
	if err := reader.Iterate(nil, func(_, value []byte) bool {
		election := &types.Election{}
		if err := DecodeArtifact(value, election); err != nil {
			decodeErr = err
			return false
		}
		elections = append(elections, election)
		return true
	}); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	return elections, nil
}

// UpdateElection applies the given update functions to the election record
// of key under the global lock and persists the result.
func (s *Storage) UpdateElection(key types.ElectionKey, updates ...func(*types.Election) error) (*types.Election, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	return s.updateElectionUnsafe(key, updates...)
}

// updateElectionUnsafe is UpdateElection without acquiring the global
// lock; the caller must hold it.
func (s *Storage) updateElectionUnsafe(key types.ElectionKey, updates ...func(*types.Election) error) (*types.Election, error) {
	election, err := s.electionFromDB(key)
	if err != nil {
		return nil, err
	}
	for _, update := range updates {
		if err := update(election); err != nil {
			return nil, err
		}
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), electionPrefix)
	defer wTx.Discard()
	data, err := EncodeArtifact(election)
	if err != nil {
		return nil, err
	}
	if err := wTx.Set(key.Bytes(), data); err != nil {
		return nil, err
	}
	if err := wTx.Commit(); err != nil {
		return nil, err
	}
	s.cache.Add(string(key.Bytes()), election)
	return election, nil
}

// transitionElection moves the election of key to next, enforcing the
// one-directional state machine.
func (s *Storage) transitionElection(key types.ElectionKey, next types.ElectionStatus, updates ...func(*types.Election) error) (*types.Election, error) {
	all := append([]func(*types.Election) error{
		func(e *types.Election) error {
			if !e.Status.CanTransition(next) {
				return fmt.Errorf("%w: %s → %s", ErrInvalidStatusTransition, e.Status, next)
			}
			e.Status = next
			return nil
		},
	}, updates...)
	election, err := s.UpdateElection(key, all...)
	if err != nil {
		return nil, err
	}
	log.Infow("election status changed",
		"election", key.String(),
		"status", election.Status.String())
	return election, nil
}

// OpenRegistration opens the registry of the election's scope for new
// commitments.
func (s *Storage) OpenRegistration(key types.ElectionKey) (*types.Election, error) {
	return s.transitionElection(key, types.ElectionStatusRegistration)
}

// FreezeElection snapshots the current registry root as the frozen root
// and opens the voting phase. The frozen root is set exactly once for the
// lifetime of the election, and the root is read inside the locked
// update so no commitment appended between read and transition can slip
// past the snapshot.
func (s *Storage) FreezeElection(key types.ElectionKey) (*types.Election, error) {
	frozen, err := s.transitionElection(key, types.ElectionStatusVoting, func(e *types.Election) error {
		if e.FrozenRoot != nil {
			return fmt.Errorf("election %s already has a frozen root", key)
		}
		root, err := s.registry.Root(e.RegistryKey())
		if err != nil {
			return fmt.Errorf("could not read registry root: %w", err)
		}
		e.FrozenRoot = root
		e.FrozenAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infow("registry root frozen",
		"election", key.String(),
		"root", frozen.FrozenRoot.String(),
		"frozenAt", frozen.FrozenAt)
	return frozen, nil
}

// CloseElection ends the voting phase. No further votes are admitted, but
// all records remain queryable.
func (s *Storage) CloseElection(key types.ElectionKey) (*types.Election, error) {
	return s.transitionElection(key, types.ElectionStatusClosed, func(e *types.Election) error {
		if e.EndTime.IsZero() || e.EndTime.After(time.Now()) {
			e.EndTime = time.Now()
		}
		return nil
	})
}

// sweepElections applies the scheduled phase changes that are due at
// now: registration elections whose start time passed get their root
// frozen and voting opened, and voting elections whose end time passed
// are closed.
func (s *Storage) sweepElections(now time.Time) {
	elections, err := s.ListElections()
	if err != nil {
		log.Warnw("could not list elections", "error", err)
		return
	}
	for _, election := range elections {
		switch election.Status {
		case types.ElectionStatusRegistration:
			if election.StartTime.IsZero() || election.StartTime.After(now) {
				continue
			}
			if _, err := s.FreezeElection(election.Key()); err != nil {
				log.Warnw("could not open scheduled election",
					"election", election.Key().String(), "error", err)
			}
		case types.ElectionStatusVoting:
			if election.EndTime.IsZero() || election.EndTime.After(now) {
				continue
			}
			if _, err := s.CloseElection(election.Key()); err != nil {
				log.Warnw("could not close ended election",
					"election", election.Key().String(), "error", err)
			}
		}
	}
}

// monitorElectionSchedule runs sweepElections periodically until the
// storage is closed.
func (s *Storage) monitorElectionSchedule() {
	go func() {
		ticker := time.NewTicker(electionMonitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.closed:
				return
			case <-ticker.C:
				s.sweepElections(time.Now())
			}
		}
	}()
}
