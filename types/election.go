package types

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

// Category partitions registries and elections by the kind of election
// being run.
type Category string

const (
	CategoryPresidential  Category = "presidential"
	CategoryCongressional Category = "congressional"
	CategoryParty         Category = "party"
)

// categoryBytes maps categories to the single byte used in database keys.
var categoryBytes = map[Category]byte{
	CategoryPresidential:  1,
	CategoryCongressional: 2,
	CategoryParty:         3,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryBytes[c]
	return ok
}

// Byte returns the key byte of the category. Panics on unknown categories,
// callers must check Valid first.
func (c Category) Byte() byte {
	b, ok := categoryBytes[c]
	if !ok {
		panic(fmt.Sprintf("unknown category %q", c))
	}
	return b
}

// RegistryKey identifies a commitment registry: one append-only tree per
// category and scope (a country, a party...).
type RegistryKey struct {
	Category Category `json:"category"`
	Scope    uint64   `json:"scope"`
}

// Bytes returns the fixed-size database key: category byte plus big-endian
// scope.
func (k RegistryKey) Bytes() []byte {
	out := make([]byte, 9)
	out[0] = k.Category.Byte()
	binary.BigEndian.PutUint64(out[1:], k.Scope)
	return out
}

func (k RegistryKey) String() string {
	return fmt.Sprintf("%s/%d", k.Category, k.Scope)
}

// ElectionKey identifies an election instance within a category.
type ElectionKey struct {
	Category   Category `json:"category"`
	ElectionID uint64   `json:"electionId"`
}

// Bytes returns the fixed-size database key: category byte plus big-endian
// election id.
func (k ElectionKey) Bytes() []byte {
	out := make([]byte, 9)
	out[0] = k.Category.Byte()
	binary.BigEndian.PutUint64(out[1:], k.ElectionID)
	return out
}

func (k ElectionKey) String() string {
	return fmt.Sprintf("%s/%d", k.Category, k.ElectionID)
}

// ElectionStatus is the lifecycle state of an election instance.
// Transitions are one-directional, no state is ever revisited.
type ElectionStatus uint8

const (
	ElectionStatusSetup        = ElectionStatus(iota) // created, not yet accepting registrations
	ElectionStatusRegistration                        // registry open for new commitments
	ElectionStatusVoting                              // root frozen, ballots accepted
	ElectionStatusClosed                              // no further ballots, results queryable

	ElectionStatusSetupName        = "setup"
	ElectionStatusRegistrationName = "registration"
	ElectionStatusVotingName       = "voting"
	ElectionStatusClosedName       = "closed"
)

func (s ElectionStatus) String() string {
	switch s {
	case ElectionStatusSetup:
		return ElectionStatusSetupName
	case ElectionStatusRegistration:
		return ElectionStatusRegistrationName
	case ElectionStatusVoting:
		return ElectionStatusVotingName
	case ElectionStatusClosed:
		return ElectionStatusClosedName
	default:
		return "unknown"
	}
}

// CanTransition reports whether the state machine admits moving from s to
// next. Only single forward steps are valid.
func (s ElectionStatus) CanTransition(next ElectionStatus) bool {
	return next == s+1 && next <= ElectionStatusClosed
}

// Election is the durable record of an election instance.
type Election struct {
	Category             Category       `json:"category"                       cbor:"0,keyasint"`
	ElectionID           uint64         `json:"electionId"                     cbor:"1,keyasint"`
	Scope                uint64         `json:"scope"                          cbor:"2,keyasint"`
	ChoiceBound          uint64         `json:"choiceBound"                    cbor:"3,keyasint"`
	Status               ElectionStatus `json:"status"                         cbor:"4,keyasint"`
	FrozenRoot           *BigInt        `json:"frozenRoot,omitempty"           cbor:"5,keyasint,omitempty"`
	FrozenAt             time.Time      `json:"frozenAt,omitempty"             cbor:"6,keyasint,omitempty"`
	RegistrationDeadline time.Time      `json:"registrationDeadline,omitempty" cbor:"7,keyasint,omitempty"`
	StartTime            time.Time      `json:"startTime,omitempty"            cbor:"8,keyasint,omitempty"`
	EndTime              time.Time      `json:"endTime,omitempty"              cbor:"9,keyasint,omitempty"`
	VoteCount            uint64         `json:"voteCount"                      cbor:"10,keyasint"`
}

// Key returns the ElectionKey of the election.
func (e *Election) Key() ElectionKey {
	return ElectionKey{Category: e.Category, ElectionID: e.ElectionID}
}

// RegistryKey returns the key of the registry the election draws its
// voters from.
func (e *Election) RegistryKey() RegistryKey {
	return RegistryKey{Category: e.Category, Scope: e.Scope}
}

func (e *Election) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(data)
}

// TallyResult is the aggregate of all admitted votes of an election.
// Choice value 0 counts as abstention.
type TallyResult struct {
	TotalVotes  uint64            `json:"totalVotes"`
	Abstentions uint64            `json:"abstentions"`
	PerChoice   map[uint64]uint64 `json:"perChoice"`
}
