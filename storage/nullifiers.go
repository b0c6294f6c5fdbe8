package storage

import (
	"errors"
	"slices"

	"github.com/tactizen/zkvote-node/db"
	"github.com/tactizen/zkvote-node/db/prefixeddb"
	"github.com/tactizen/zkvote-node/log"
	"github.com/tactizen/zkvote-node/types"
)

// ReserveNullifier atomically records nullifier as used for the given
// election. Returns ErrNullifierAlreadyExists when the nullifier was
// already reserved: under concurrent submissions of the same nullifier
// exactly one caller wins. This is the sole mechanism preventing double
// voting.
func (s *Storage) ReserveNullifier(key types.ElectionKey, nullifier *types.BigInt) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	nKey := nullifierKey(key, nullifier)
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), nullifierPrefix)
	defer wTx.Discard()
	if _, err := wTx.Get(nKey); err == nil {
		return ErrNullifierAlreadyExists
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return err
	}
	if err := wTx.Set(nKey, []byte{1}); err != nil {
		return err
	}
	return wTx.Commit()
}

// ReleaseNullifier drops a nullifier reservation. Only the validation
// pipeline calls this, and only when verification did not succeed: an
// invalid proof carries no assurance the nullifier was legitimately
// derived, and an unverified ballot must stay retryable.
func (s *Storage) ReleaseNullifier(key types.ElectionKey, nullifier *types.BigInt) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), nullifierPrefix)
	defer wTx.Discard()
	if err := wTx.Delete(nullifierKey(key, nullifier)); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	log.Debugw("nullifier reservation released",
		"election", key.String(),
		"nullifier", nullifier.String())
	return nil
}

// HasNullifier reports whether nullifier was already reserved for the
// given election.
func (s *Storage) HasNullifier(key types.ElectionKey, nullifier *types.BigInt) (bool, error) {
	reader := prefixeddb.NewPrefixedReader(s.db, nullifierPrefix)
	if _, err := reader.Get(nullifierKey(key, nullifier)); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// nullifierKey builds the composite key electionKey + 32-byte nullifier.
func nullifierKey(key types.ElectionKey, nullifier *types.BigInt) []byte {
	return slices.Concat(key.Bytes(), nullifier.MathBigInt().FillBytes(make([]byte, 32)))
}
